// Package source resolves job source references into local files the
// spooler can read: plain paths, doublestar globs, and s3:// objects.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Sentinel errors for source resolution.
var (
	// ErrNotFound indicates the referenced file or object does not exist.
	ErrNotFound = errors.New("source not found")

	// ErrNoMatch indicates a glob matched nothing.
	ErrNoMatch = errors.New("pattern matched no files")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrThrottled indicates the request was rate limited by the store.
	ErrThrottled = errors.New("request throttled")

	// ErrUnavailable indicates the object store is unavailable.
	ErrUnavailable = errors.New("object store unavailable")
)

// Error wraps a resolution failure with the reference that caused it.
type Error struct {
	Op  string
	Ref string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a missing source.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoMatch)
}

// ObjectStore is the subset of an object store used to fetch sources.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Resolver turns references into local file paths.
type Resolver struct {
	// WorkDir receives downloaded objects.
	WorkDir string

	s3cfg    S3Config
	store    ObjectStore
	storeErr error
	once     sync.Once
	log      *zap.Logger
}

// NewResolver creates a Resolver. The S3 client is created on first use.
func NewResolver(workDir string, s3cfg S3Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{WorkDir: workDir, s3cfg: s3cfg, log: logger}
}

// WithStore replaces the object store, mainly for tests.
func (r *Resolver) WithStore(store ObjectStore) *Resolver {
	r.once.Do(func() {})
	r.store = store
	return r
}

func (r *Resolver) objectStore(ctx context.Context) (ObjectStore, error) {
	r.once.Do(func() {
		r.store, r.storeErr = NewS3Store(ctx, r.s3cfg, r.log)
	})
	return r.store, r.storeErr
}

// HasMeta reports whether s contains glob metacharacters.
func HasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// Resolve expands ref into one or more local files, sorted when ref is a
// pattern.
func (r *Resolver) Resolve(ctx context.Context, ref string) ([]string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &Error{Op: "resolve", Ref: ref, Err: ErrNotFound}
	}
	if strings.HasPrefix(ref, "s3://") {
		return r.resolveS3(ctx, ref)
	}
	return resolveLocal(ref)
}

// ResolveAll resolves every reference, preserving order.
func (r *Resolver) ResolveAll(ctx context.Context, refs []string) ([]string, error) {
	var out []string
	for _, ref := range refs {
		files, err := r.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

func resolveLocal(ref string) ([]string, error) {
	if !HasMeta(ref) {
		abs, err := filepath.Abs(ref)
		if err != nil {
			return nil, &Error{Op: "resolve", Ref: ref, Err: err}
		}
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &Error{Op: "resolve", Ref: ref, Err: ErrNotFound}
			}
			return nil, &Error{Op: "resolve", Ref: ref, Err: err}
		}
		if info.IsDir() {
			return nil, &Error{Op: "resolve", Ref: ref, Err: fmt.Errorf("is a directory")}
		}
		return []string{abs}, nil
	}

	matches, err := doublestar.FilepathGlob(ref, doublestar.WithFilesOnly())
	if err != nil {
		return nil, &Error{Op: "glob", Ref: ref, Err: err}
	}
	if len(matches) == 0 {
		return nil, &Error{Op: "glob", Ref: ref, Err: ErrNoMatch}
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, &Error{Op: "glob", Ref: ref, Err: err}
		}
		out = append(out, abs)
	}
	sort.Strings(out)
	return out, nil
}

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", ref)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri needs bucket and key: %q", ref)
	}
	return bucket, key, nil
}

func (r *Resolver) resolveS3(ctx context.Context, ref string) ([]string, error) {
	bucket, key, err := ParseS3URI(ref)
	if err != nil {
		return nil, &Error{Op: "resolve", Ref: ref, Err: err}
	}
	store, err := r.objectStore(ctx)
	if err != nil {
		return nil, &Error{Op: "connect", Ref: ref, Err: err}
	}

	keys := []string{key}
	if HasMeta(key) {
		keys, err = matchKeys(ctx, store, bucket, key)
		if err != nil {
			return nil, &Error{Op: "list", Ref: ref, Err: err}
		}
		if len(keys) == 0 {
			return nil, &Error{Op: "list", Ref: ref, Err: ErrNoMatch}
		}
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		local, err := r.download(ctx, store, bucket, k)
		if err != nil {
			return nil, &Error{Op: "get", Ref: "s3://" + bucket + "/" + k, Err: err}
		}
		out = append(out, local)
	}
	return out, nil
}

// matchKeys lists the literal prefix of pattern and filters with doublestar.
func matchKeys(ctx context.Context, store ObjectStore, bucket, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}
	prefix := pattern
	if i := strings.IndexAny(pattern, "*?[{"); i >= 0 {
		prefix = pattern[:i]
	}
	listed, err := store.List(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range listed {
		if strings.HasSuffix(k, "/") {
			continue
		}
		ok, err := doublestar.Match(pattern, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Resolver) download(ctx context.Context, store ObjectStore, bucket, key string) (string, error) {
	dir := r.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	// #nosec G301 -- spool work dir shared with the spooler user
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}

	body, err := store.Get(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp(dir, "*-"+path.Base(key))
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("download object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close local file: %w", err)
	}
	r.log.Debug("Downloaded source object",
		zap.String("bucket", bucket), zap.String("key", key), zap.String("path", tmp.Name()))
	return tmp.Name(), nil
}
