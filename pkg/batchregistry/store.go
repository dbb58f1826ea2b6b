// Package batchregistry keeps an on-disk history of print batches so
// operators can inspect what was submitted and how each job ended.
package batchregistry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store persists and loads BatchRecords from an on-disk directory.
//
// Directory layout:
//
//	<root>/<batch_id>/batch.json
//
// Root is expected to be under the app data dir.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

func (s *Store) RootDir() string {
	return s.root
}

func (s *Store) BatchDir(batchID string) string {
	return filepath.Join(s.root, batchID)
}

func (s *Store) BatchPath(batchID string) string {
	return filepath.Join(s.BatchDir(batchID), "batch.json")
}

func (s *Store) ensureRoot() error {
	if s.root == "" {
		return fmt.Errorf("batch registry root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

// Write replaces batch.json atomically (temp file + rename).
func (s *Store) Write(record *BatchRecord) error {
	if record == nil {
		return fmt.Errorf("batch record is nil")
	}
	batchID := strings.TrimSpace(record.BatchID)
	if batchID == "" {
		return fmt.Errorf("batch_id is required")
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}

	dir := s.BatchDir(batchID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create batch dir: %w", err)
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal batch record: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(dir, "batch.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp batch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp batch file: %w", err)
	}
	if err := os.Rename(tmpName, s.BatchPath(batchID)); err != nil {
		return fmt.Errorf("rename batch file: %w", err)
	}
	return nil
}

func (s *Store) Get(batchID string) (*BatchRecord, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("batch_id is required")
	}
	b, err := os.ReadFile(s.BatchPath(batchID))
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, fmt.Errorf("batch.json is empty")
	}

	var record BatchRecord
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return nil, fmt.Errorf("parse batch.json: %w", err)
	}
	return &record, nil
}

// List returns every readable batch, newest first. Unreadable entries are
// skipped.
func (s *Store) List() ([]BatchRecord, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read batches root: %w", err)
	}

	out := make([]BatchRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		r, err := s.Get(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, *r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].BatchID < out[j].BatchID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
