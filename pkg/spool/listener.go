package spool

import "sync"

// Listener observes per-job lifecycle events.
//
// Callbacks run on pool worker goroutines. Implementations that touch state
// owned by a single goroutine must hand the event over themselves. For a
// given job no callback follows OnCompleted or OnError.
type Listener interface {
	OnSubmitted(job *JobSpec)
	OnProgress(job *JobSpec, pagesPrinted int)
	OnCompleted(job *JobSpec, result *Result)
	OnError(result *Result)
}

// NopListener ignores all events.
type NopListener struct{}

func (NopListener) OnSubmitted(*JobSpec)          {}
func (NopListener) OnProgress(*JobSpec, int)      {}
func (NopListener) OnCompleted(*JobSpec, *Result) {}
func (NopListener) OnError(*Result)               {}

// ListenerFuncs adapts optional functions to a Listener.
type ListenerFuncs struct {
	Submitted func(job *JobSpec)
	Progress  func(job *JobSpec, pagesPrinted int)
	Completed func(job *JobSpec, result *Result)
	Error     func(result *Result)
}

func (f ListenerFuncs) OnSubmitted(job *JobSpec) {
	if f.Submitted != nil {
		f.Submitted(job)
	}
}

func (f ListenerFuncs) OnProgress(job *JobSpec, pagesPrinted int) {
	if f.Progress != nil {
		f.Progress(job, pagesPrinted)
	}
}

func (f ListenerFuncs) OnCompleted(job *JobSpec, result *Result) {
	if f.Completed != nil {
		f.Completed(job, result)
	}
}

func (f ListenerFuncs) OnError(result *Result) {
	if f.Error != nil {
		f.Error(result)
	}
}

// Listeners fans events out in order. Nil entries are skipped.
type Listeners []Listener

func (ls Listeners) OnSubmitted(job *JobSpec) {
	for _, l := range ls {
		if l != nil {
			l.OnSubmitted(job)
		}
	}
}

func (ls Listeners) OnProgress(job *JobSpec, pagesPrinted int) {
	for _, l := range ls {
		if l != nil {
			l.OnProgress(job, pagesPrinted)
		}
	}
}

func (ls Listeners) OnCompleted(job *JobSpec, result *Result) {
	for _, l := range ls {
		if l != nil {
			l.OnCompleted(job, result)
		}
	}
}

func (ls Listeners) OnError(result *Result) {
	for _, l := range ls {
		if l != nil {
			l.OnError(result)
		}
	}
}

// jobListener wraps a Listener for a single job and drops every event after
// the first terminal one.
type jobListener struct {
	inner Listener

	mu       sync.Mutex
	terminal bool
}

func guard(l Listener) *jobListener {
	if l == nil {
		l = NopListener{}
	}
	return &jobListener{inner: l}
}

// emit runs fn under the lock so no event can interleave with a terminal one.
func (g *jobListener) emit(terminal bool, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.terminal {
		return
	}
	if terminal {
		g.terminal = true
	}
	fn()
}

func (g *jobListener) OnSubmitted(job *JobSpec) {
	g.emit(false, func() { g.inner.OnSubmitted(job) })
}

func (g *jobListener) OnProgress(job *JobSpec, pagesPrinted int) {
	g.emit(false, func() { g.inner.OnProgress(job, pagesPrinted) })
}

func (g *jobListener) OnCompleted(job *JobSpec, result *Result) {
	g.emit(true, func() { g.inner.OnCompleted(job, result) })
}

func (g *jobListener) OnError(result *Result) {
	g.emit(true, func() { g.inner.OnError(result) })
}
