package spool

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/gospool/pkg/pages"
)

// DefaultSpoolBinary is the CUPS submission command.
const DefaultSpoolBinary = "lp"

// requestIDMarker precedes the job identifier in the spooler's stdout.
const requestIDMarker = "request id is "

// Runner executes an external command and returns its captured streams.
//
// A non-nil error that is an *exec.ExitError means the command ran and
// exited non-zero; any other error means it could not be run.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run ignores cancellation of ctx once the process has started; a spooled
// job is outside our control after hand-off.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	// #nosec G204 -- binary comes from configuration, args are built from validated options
	cmd := exec.CommandContext(context.WithoutCancel(ctx), name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// InvokerConfig configures submission.
type InvokerConfig struct {
	// Binary is the spooler command, "lp" by default.
	Binary string

	// SubmitRate limits submissions per second. Zero disables limiting.
	SubmitRate float64
}

// Invoker submits JobSpecs to the spooler.
type Invoker struct {
	runner  Runner
	binary  string
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewInvoker creates an Invoker. A nil runner uses ExecRunner.
func NewInvoker(runner Runner, cfg InvokerConfig, logger *zap.Logger) *Invoker {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = DefaultSpoolBinary
	}
	var limiter *rate.Limiter
	if cfg.SubmitRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), 1)
	}
	return &Invoker{runner: runner, binary: binary, limiter: limiter, log: logger}
}

// Submit runs the spooler for spec and classifies the outcome.
//
// Guards are checked in order: a second submission of the same spec gets a
// fresh ALREADY_RUNNING result and leaves the first untouched; a failed
// conversion gets FILE_CONVERT; an undefined printed page count gets
// PAGE_COUNT. None of these run the spooler.
func (inv *Invoker) Submit(ctx context.Context, spec *JobSpec) *Result {
	res := newResult(spec)
	if !spec.claim(res) {
		res.fail(ErrorAlreadyRunning, nil)
		return res
	}

	log := inv.log.With(zap.String("job", spec.Name()), zap.String("owner", spec.Owner()))

	if err := spec.ConvertErr(); err != nil {
		res.fail(ErrorFileConvert, err)
		log.Warn("Refusing to submit job", zap.String("reason", ErrorFileConvert.String()))
		return res
	}
	if !spec.PrintedPages().Known {
		res.fail(ErrorPageCount, nil)
		log.Warn("Refusing to submit job", zap.String("reason", ErrorPageCount.String()))
		return res
	}

	if inv.limiter != nil {
		if err := inv.limiter.Wait(ctx); err != nil {
			res.fail(ErrorExecution, err)
			log.Warn("Submission cancelled while rate limited", zap.Error(err))
			return res
		}
	}

	args, err := Command(spec)
	if err != nil {
		res.fail(ErrorExecution, err)
		log.Error("Failed to build spooler command", zap.Error(err))
		return res
	}

	log.Info("Submitting job", zap.String("binary", inv.binary), zap.Strings("args", args))
	stdout, stderr, err := inv.runner.Run(ctx, inv.binary, args...)

	for _, line := range splitLines(stderr) {
		log.Warn("Spooler stderr", zap.String("line", line))
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			res.fail(ErrorExecution, err)
			log.Error("Failed to run spooler", zap.Error(err))
			return res
		}
		log.Warn("Spooler exited with error", zap.Int("exit_code", exitErr.ExitCode()))
	}

	id := ParseSpoolID(stdout)
	if id == "" {
		res.fail(ErrorNoSpoolID, nil)
		log.Error("Spooler reported no job id", zap.String("stdout", strings.TrimSpace(string(stdout))))
		return res
	}

	res.setSpoolID(id)
	log.Info("Job accepted by spooler", zap.String("spool_id", id))
	return res
}

// Command builds the spooler arguments for spec:
//
//	<abs-path> [-d <printer>] [-o landscape] -o sides=<duplex> -o number-up=<n> [-o page-range=<expr>] -n <copies>
func Command(spec *JobSpec) ([]string, error) {
	abs, err := filepath.Abs(spec.File())
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}

	args := []string{abs}
	if p, ok := spec.Printer(); ok && strings.TrimSpace(p.SpoolName) != "" {
		args = append(args, "-d", p.SpoolName)
	}
	if spec.Orientation() == pages.Landscape {
		args = append(args, "-o", "landscape")
	}
	args = append(args,
		"-o", "sides="+spec.Duplex().String(),
		"-o", "number-up="+strconv.Itoa(int(spec.Layout())),
	)
	if r, ok := spec.Range(); ok {
		args = append(args, "-o", "page-range="+r.String())
	}
	args = append(args, "-n", strconv.Itoa(spec.Copies()))
	return args, nil
}

// ParseSpoolID extracts the token following "request id is " in stdout.
func ParseSpoolID(stdout []byte) string {
	text := string(stdout)
	idx := strings.Index(text, requestIDMarker)
	if idx < 0 {
		return ""
	}
	fields := strings.Fields(text[idx+len(requestIDMarker):])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func splitLines(b []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out
}
