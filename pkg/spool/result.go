package spool

import (
	"sync"
)

// State is the lifecycle state of a submitted job.
type State string

const (
	StateCreated   State = "created"
	StateQueued    State = "queued"
	StateSubmitted State = "submitted"
	StatePrinting  State = "printing"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// Terminal reports whether s is absorbing.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// Result tracks one submission. It is mutated only by the invoker and a
// tracker, and is frozen once it reaches a terminal state.
type Result struct {
	spec *JobSpec

	mu           sync.Mutex
	spoolID      string
	state        State
	errType      ErrorType
	cause        error
	pagesPrinted int
	done         chan struct{}
}

func newResult(spec *JobSpec) *Result {
	return &Result{
		spec:  spec,
		state: StateSubmitted,
		done:  make(chan struct{}),
	}
}

// Spec returns the job this result belongs to.
func (r *Result) Spec() *JobSpec {
	return r.spec
}

// SpoolID is the spooler job identifier, empty until parsed.
func (r *Result) SpoolID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spoolID
}

func (r *Result) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ErrorType is ErrorNone unless the job failed.
func (r *Result) ErrorType() ErrorType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errType
}

// HasError reports whether an error classification is set.
func (r *Result) HasError() bool {
	return r.ErrorType() != ErrorNone
}

// Err returns a *JobError for failed results and nil otherwise.
func (r *Result) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errType == ErrorNone {
		return nil
	}
	je := &JobError{Type: r.errType, SpoolID: r.spoolID, Err: r.cause}
	if r.spec != nil {
		je.Job = r.spec.Name()
		je.Owner = r.spec.Owner()
	}
	return je
}

// PagesPrinted is the cumulative page counter; it never decreases.
func (r *Result) PagesPrinted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pagesPrinted
}

// Terminal reports whether the result reached completed or error.
func (r *Result) Terminal() bool {
	return r.State().Terminal()
}

// Done is closed when the result becomes terminal.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

func (r *Result) setSpoolID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	r.spoolID = id
}

// advance records progress. It returns the counter after the update and
// false when the result is terminal.
func (r *Result) advance(pages int) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return r.pagesPrinted, false
	}
	r.state = StatePrinting
	if pages > r.pagesPrinted {
		r.pagesPrinted = pages
	}
	return r.pagesPrinted, true
}

// fail moves the result to error. It is a no-op on a terminal result and
// reports whether the transition happened.
func (r *Result) fail(t ErrorType, cause error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return false
	}
	r.state = StateError
	r.errType = t
	r.cause = cause
	close(r.done)
	return true
}

// complete moves the result to completed, once.
func (r *Result) complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return false
	}
	r.state = StateCompleted
	close(r.done)
	return true
}
