package spool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/3leaps/gospool/pkg/printer"
)

var zapNop = zap.NewNop()

type fakeCounter struct {
	pages int
	err   error
}

func (f fakeCounter) CountPages(ctx context.Context, path string) (int, error) {
	return f.pages, f.err
}

type fakeConverter struct {
	err error
}

func (f fakeConverter) Convert(ctx context.Context, src string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return src, nil
}

var testPrinters = printer.NewMemoryRepository(
	printer.Printer{ID: 1, Name: "Office", SpoolName: "office", Priority: 2, PriceOneSided: 0.10, PriceTwoSided: 0.15},
	printer.Printer{ID: 2, Name: "Lab", SpoolName: "lab", Priority: 1, PriceOneSided: 0.20, PriceTwoSided: 0.30},
)

func newTestSpec(t *testing.T, pages int) *JobSpec {
	t.Helper()
	var counter fakeCounter
	if pages > 0 {
		counter.pages = pages
	} else {
		counter.err = errors.New("not a pdf")
	}
	return NewJobSpec(context.Background(), "/srv/spool/report.pdf", SpecDeps{
		Counter:   counter,
		Converter: fakeConverter{},
		Printers:  testPrinters,
	})
}

// runnerFunc adapts a function to Runner.
type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return f(ctx, name, args...)
}

// lpRunner hands out sequential spooler ids and records invocations.
type lpRunner struct {
	mu    sync.Mutex
	next  int
	calls [][]string
}

func (r *lpRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.calls = append(r.calls, append([]string{name}, args...))
	return []byte(fmt.Sprintf("request id is lab-%d (1 file(s))\n", r.next)), nil, nil
}

func (r *lpRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type trackerFunc func(ctx context.Context, res *Result, l Listener)

func (f trackerFunc) Await(ctx context.Context, res *Result, l Listener) {
	f(ctx, res, l)
}

// event is one recorded listener callback.
type event struct {
	kind  string
	job   string
	pages int
	err   ErrorType
}

type recordingListener struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingListener) add(e event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingListener) OnSubmitted(job *JobSpec) {
	r.add(event{kind: "submitted", job: job.ID()})
}

func (r *recordingListener) OnProgress(job *JobSpec, pages int) {
	r.add(event{kind: "progress", job: job.ID(), pages: pages})
}

func (r *recordingListener) OnCompleted(job *JobSpec, res *Result) {
	r.add(event{kind: "completed", job: job.ID()})
}

func (r *recordingListener) OnError(res *Result) {
	r.add(event{kind: "error", job: res.Spec().ID(), err: res.ErrorType()})
}

func (r *recordingListener) Events() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingListener) For(jobID string) []event {
	var out []event
	for _, e := range r.Events() {
		if e.job == jobID {
			out = append(out, e)
		}
	}
	return out
}

type recorderFunc func(ctx context.Context, res *Result) error

func (f recorderFunc) Record(ctx context.Context, res *Result) error {
	return f(ctx, res)
}
