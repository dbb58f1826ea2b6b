package spool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pool defaults.
const (
	DefaultMinWorkers = 5
	DefaultMaxWorkers = 100
	DefaultJobTimeout = time.Minute
	DefaultKeepAlive  = 30 * time.Second
)

// ErrPoolClosed is returned for work handed to a closed pool.
var ErrPoolClosed = errors.New("job pool is closed")

// PoolConfig configures a Pool.
type PoolConfig struct {
	// MinWorkers stay resident for the life of the pool.
	MinWorkers int

	// MaxWorkers caps concurrently running jobs. Work beyond it is queued
	// without bound.
	MaxWorkers int

	// JobTimeout bounds how long Process waits for one job before reporting
	// TIME_OUT for it. Zero means DefaultJobTimeout; negative disables it.
	JobTimeout time.Duration

	// KeepAlive is how long a worker above MinWorkers may sit idle.
	KeepAlive time.Duration
}

type task func()

// Pool runs submission and completion tracking for batches of jobs on a
// shared set of workers.
type Pool struct {
	cfg     PoolConfig
	invoker *Invoker
	tracker Tracker
	log     *zap.Logger

	incoming chan task
	tasks    chan task

	mu     sync.RWMutex
	closed bool

	workerMu sync.Mutex
	workers  int

	// idle counts workers not running a task. The dispatcher takes a slot
	// when a send succeeds; the worker returns it after the task.
	idle    atomic.Int32
	retired chan struct{}

	wg           sync.WaitGroup
	dispatchDone chan struct{}
}

// NewPool starts a pool with MinWorkers resident workers.
func NewPool(cfg PoolConfig, invoker *Invoker, tracker Tracker, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = DefaultMinWorkers
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}

	p := &Pool{
		cfg:          cfg,
		invoker:      invoker,
		tracker:      tracker,
		log:          logger,
		incoming:     make(chan task),
		tasks:        make(chan task),
		retired:      make(chan struct{}, 1),
		dispatchDone: make(chan struct{}),
	}
	for i := 0; i < cfg.MinWorkers; i++ {
		p.spawn()
	}
	go p.dispatch()
	return p
}

// Workers returns the number of live workers.
func (p *Pool) Workers() int {
	p.workerMu.Lock()
	defer p.workerMu.Unlock()
	return p.workers
}

// Config returns the effective configuration.
func (p *Pool) Config() PoolConfig {
	return p.cfg
}

// enqueue hands t to the dispatcher.
func (p *Pool) enqueue(t task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.incoming <- t
	return nil
}

// dispatch moves work from the unbounded queue to workers, growing the
// worker set while work is waiting and no worker is idle.
func (p *Pool) dispatch() {
	defer close(p.dispatchDone)
	defer close(p.tasks)

	var queue []task
	in := p.incoming
	for in != nil || len(queue) > 0 {
		var out chan task
		var head task
		if len(queue) > 0 {
			out = p.tasks
			head = queue[0]
			if p.idle.Load() <= 0 {
				p.grow()
			}
		}

		select {
		case t, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			queue = append(queue, t)
		case out <- head:
			p.idle.Add(-1)
			queue[0] = nil
			queue = queue[1:]
		case <-p.retired:
		}
	}
}

func (p *Pool) grow() {
	p.workerMu.Lock()
	defer p.workerMu.Unlock()
	if p.workers >= p.cfg.MaxWorkers {
		return
	}
	p.spawnLocked()
}

func (p *Pool) spawn() {
	p.workerMu.Lock()
	defer p.workerMu.Unlock()
	p.spawnLocked()
}

func (p *Pool) spawnLocked() {
	p.workers++
	p.idle.Add(1)
	p.wg.Add(1)
	go p.work()
}

// retire lets an idle worker exit while the pool is above MinWorkers.
func (p *Pool) retire() bool {
	p.workerMu.Lock()
	defer p.workerMu.Unlock()
	if p.workers <= p.cfg.MinWorkers {
		return false
	}
	p.workers--
	p.idle.Add(-1)
	select {
	case p.retired <- struct{}{}:
	default:
	}
	return true
}

func (p *Pool) work() {
	defer p.wg.Done()
	keepAlive := time.NewTimer(p.cfg.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case t, ok := <-p.tasks:
			if !ok {
				p.idle.Add(-1)
				p.workerMu.Lock()
				p.workers--
				p.workerMu.Unlock()
				return
			}
			t()
			p.idle.Add(1)
		case <-keepAlive.C:
			if p.retire() {
				return
			}
		}
		if !keepAlive.Stop() {
			select {
			case <-keepAlive.C:
			default:
			}
		}
		keepAlive.Reset(p.cfg.KeepAlive)
	}
}

// Close stops accepting work, lets queued and running jobs finish, and
// waits for the workers or ctx.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.incoming)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-p.dispatchDone
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Batch is the pending outcome of one Process call.
type Batch struct {
	results []*Result
	done    chan struct{}
}

// Done is closed once every job in the batch is terminal.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch resolves or ctx ends. Results are in batch order.
func (b *Batch) Wait(ctx context.Context) ([]*Result, error) {
	select {
	case <-b.done:
		return b.Results(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Results returns the outcomes; it is only complete after Done is closed.
func (b *Batch) Results() []*Result {
	out := make([]*Result, len(b.results))
	copy(out, b.results)
	return out
}

// Process takes ownership of every spec in batch and runs each one
// independently: submit, then on success track completion. A job that does
// not finish within JobTimeout is reported as TIME_OUT; a job whose worker
// panics is reported as EXECUTION_EXCEPTION. Neither affects other jobs.
func (p *Pool) Process(ctx context.Context, batch []*JobSpec, l Listener) *Batch {
	b := &Batch{
		results: make([]*Result, len(batch)),
		done:    make(chan struct{}),
	}

	var wg sync.WaitGroup
	for i, spec := range batch {
		if spec == nil {
			continue
		}
		spec.freeze()

		jl := guard(l)
		jobCtx, cancel := context.WithCancel(ctx)
		slot := make(chan *Result, 1)

		err := p.enqueue(func() {
			defer cancel()
			slot <- p.runSafely(jobCtx, spec, jl)
		})
		if err != nil {
			cancel()
			res := spec.claimed()
			if res.fail(ErrorExecution, err) {
				jl.OnError(res)
			}
			b.results[i] = res
			continue
		}

		wg.Add(1)
		go func(i int, spec *JobSpec) {
			defer wg.Done()
			b.results[i] = p.collect(spec, jl, slot, cancel)
		}(i, spec)
	}

	go func() {
		wg.Wait()
		close(b.done)
	}()
	return b
}

// collect waits for one job's result, enforcing JobTimeout.
func (p *Pool) collect(spec *JobSpec, jl *jobListener, slot <-chan *Result, cancel context.CancelFunc) *Result {
	if p.cfg.JobTimeout <= 0 {
		return <-slot
	}

	timer := time.NewTimer(p.cfg.JobTimeout)
	defer timer.Stop()

	select {
	case res := <-slot:
		return res
	case <-timer.C:
		res := spec.claimed()
		if res.fail(ErrorTimeout, fmt.Errorf("no outcome within %s", p.cfg.JobTimeout)) {
			spec.scopedLogger().Warn("Job exceeded pool timeout", zap.Duration("timeout", p.cfg.JobTimeout))
			jl.OnError(res)
		}
		cancel()
		return res
	}
}

func (p *Pool) runSafely(ctx context.Context, spec *JobSpec, jl *jobListener) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = spec.claimed()
			err := fmt.Errorf("panic: %v", r)
			p.log.Error("Job worker panicked",
				zap.String("job", spec.Name()),
				zap.String("owner", spec.Owner()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			if res.fail(ErrorExecution, err) {
				jl.OnError(res)
			}
		}
	}()
	return p.run(ctx, spec, jl)
}

func (p *Pool) run(ctx context.Context, spec *JobSpec, jl *jobListener) *Result {
	res := p.invoker.Submit(ctx, spec)
	if res.HasError() {
		jl.OnError(res)
		return res
	}

	jl.OnSubmitted(spec)
	if p.tracker != nil {
		p.tracker.Await(ctx, res, jl)
	}
	if !res.Terminal() {
		abort(res, ErrorExecution, errors.New("tracker returned without an outcome"), jl, spec.scopedLogger())
	}
	return res
}
