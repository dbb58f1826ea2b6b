package spool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Defaults for the completion trackers.
const (
	DefaultStatusBinary = "lpstat"
	DefaultPollInterval = time.Second
	DefaultPollAttempts = 10
	DefaultWatchTimeout = 10 * time.Second
	DefaultLogInterval  = 250 * time.Millisecond
	DefaultPageLogPath  = "/var/log/cups/page_log"
)

// Tracker waits for a submitted job to finish. Await always leaves res in a
// terminal state, emits the terminal listener callback, and persists the
// job through the Recorder only on completion.
type Tracker interface {
	Await(ctx context.Context, res *Result, l Listener)
}

// Recorder persists completed jobs.
type Recorder interface {
	Record(ctx context.Context, res *Result) error
}

func finish(ctx context.Context, res *Result, l Listener, rec Recorder, log *zap.Logger) {
	if !res.complete() {
		return
	}
	if rec != nil {
		if err := rec.Record(context.WithoutCancel(ctx), res); err != nil {
			log.Error("Failed to persist job record", zap.Error(err))
		}
	}
	log.Info("Job completed", zap.Int("pages_printed", res.PagesPrinted()))
	l.OnCompleted(res.Spec(), res)
}

func abort(res *Result, t ErrorType, cause error, l Listener, log *zap.Logger) {
	if !res.fail(t, cause) {
		return
	}
	fields := []zap.Field{zap.String("error_type", t.String())}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	log.Warn(t.Message(), fields...)
	l.OnError(res)
}

func trackerLogger(base *zap.Logger, res *Result) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	log := base.With(zap.String("spool_id", res.SpoolID()))
	if spec := res.Spec(); spec != nil {
		log = log.With(zap.String("job", spec.Name()), zap.String("owner", spec.Owner()))
	}
	return log
}

// PollTracker queries the spooler's completed-jobs list until the job shows
// up or the attempts run out.
type PollTracker struct {
	Runner   Runner
	Binary   string
	Interval time.Duration
	Attempts int
	Recorder Recorder
	Logger   *zap.Logger
}

func (t *PollTracker) Await(ctx context.Context, res *Result, l Listener) {
	if l == nil {
		l = NopListener{}
	}
	log := trackerLogger(t.Logger, res)

	runner := t.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	binary := t.Binary
	if binary == "" {
		binary = DefaultStatusBinary
	}
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := t.Attempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}

	id := res.SpoolID()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			abort(res, ErrorTimeout, ctx.Err(), l, log)
			return
		case <-timer.C:
		}

		stdout, stderr, err := runner.Run(ctx, binary, "-W", "completed")
		for _, line := range splitLines(stderr) {
			log.Warn("Status query stderr", zap.String("line", line))
		}
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				abort(res, ErrorExecution, err, l, log)
				return
			}
		}
		if completedListed(stdout, id) {
			finish(ctx, res, l, t.Recorder, log)
			return
		}
		log.Debug("Job not completed yet", zap.Int("attempt", attempt))
		timer.Reset(interval)
	}

	abort(res, ErrorTimeout, fmt.Errorf("not completed after %d attempts", attempts), l, log)
}

func completedListed(stdout []byte, id string) bool {
	if id == "" {
		return false
	}
	for _, line := range splitLines(stdout) {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == id {
			return true
		}
	}
	return false
}

// LogSource yields complete lines appended to a progress log since offset.
type LogSource interface {
	ReadSince(ctx context.Context, offset int64) (lines []string, next int64, err error)
}

// LogTracker follows the spooler page log. Each matching line updates the
// printed counter and emits one progress event; a "total" line completes the
// job. WatchTimeout without a matching line ends in TIME_OUT.
type LogTracker struct {
	Source       LogSource
	Interval     time.Duration
	WatchTimeout time.Duration
	Recorder     Recorder
	Logger       *zap.Logger
}

func (t *LogTracker) Await(ctx context.Context, res *Result, l Listener) {
	if l == nil {
		l = NopListener{}
	}
	log := trackerLogger(t.Logger, res)

	if t.Source == nil {
		abort(res, ErrorExecution, errors.New("no page log source"), l, log)
		return
	}
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultLogInterval
	}
	watch := t.WatchTimeout
	if watch <= 0 {
		watch = DefaultWatchTimeout
	}

	id := res.SpoolID()
	idle := time.NewTimer(watch)
	defer idle.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	var offset int64
	for {
		lines, next, err := t.Source.ReadSince(ctx, offset)
		if err != nil {
			abort(res, ErrorExecution, fmt.Errorf("read page log: %w", err), l, log)
			return
		}
		offset = next

		matched := false
		for _, line := range lines {
			entry, ok := ParsePageLogLine(line)
			if !ok || entry.SpoolID != id {
				continue
			}
			matched = true
			printed, open := res.advance(entry.PagesPrinted)
			if !open {
				return
			}
			if entry.Total {
				finish(ctx, res, l, t.Recorder, log)
				return
			}
			l.OnProgress(res.Spec(), printed)
		}
		if matched {
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(watch)
		}

		select {
		case <-ctx.Done():
			abort(res, ErrorTimeout, ctx.Err(), l, log)
			return
		case <-idle.C:
			abort(res, ErrorTimeout, fmt.Errorf("no page log update within %s", watch), l, log)
			return
		case <-tick.C:
		}
	}
}

// PageLogEntry is one parsed page log line.
type PageLogEntry struct {
	Printer      string
	JobID        string
	SpoolID      string
	Page         string
	Total        bool
	PagesPrinted int
}

// ParsePageLogLine parses a comma-separated page log line. Field 0 is the
// printer, 1 the job number, 3 the page number or "total", and 7 the
// cumulative pages printed.
func ParsePageLogLine(line string) (PageLogEntry, bool) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 8 {
		return PageLogEntry{}, false
	}
	printer := strings.TrimSpace(fields[0])
	job := strings.TrimSpace(fields[1])
	if printer == "" || job == "" {
		return PageLogEntry{}, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(fields[7]))
	if err != nil || n < 0 {
		return PageLogEntry{}, false
	}
	page := strings.TrimSpace(fields[3])
	return PageLogEntry{
		Printer:      printer,
		JobID:        job,
		SpoolID:      printer + "-" + job,
		Page:         page,
		Total:        page == "total",
		PagesPrinted: n,
	}, true
}

// FileLogSource tails a log file by byte offset. A missing file reads as
// empty; a file shorter than the offset is treated as rotated and re-read
// from the start.
type FileLogSource struct {
	Path string
}

func (f FileLogSource) ReadSince(ctx context.Context, offset int64) ([]string, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, offset, err
	}
	// #nosec G304 -- page log path is operator configured
	file, err := os.Open(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, offset, nil
		}
		return nil, offset, err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, err
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return nil, offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, err
	}

	var lines []string
	next := offset
	reader := bufio.NewReader(file)
	for {
		chunk, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Partial trailing line; pick it up once it is terminated.
				break
			}
			return lines, next, err
		}
		next += int64(len(chunk))
		if line := strings.TrimRight(chunk, "\r\n"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, next, nil
}
