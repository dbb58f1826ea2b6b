package batchregistry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/gospool/pkg/spool"
)

// Recorder is a spool.Listener that keeps batch.json in step with job
// lifecycle events. Write failures are logged and never reach the pool.
type Recorder struct {
	store *Store
	log   *zap.Logger
	now   func() time.Time

	mu    sync.Mutex
	rec   BatchRecord
	index map[string]int
}

// RecorderOptions describes a batch about to be processed.
type RecorderOptions struct {
	// BatchID defaults to a random UUID.
	BatchID      string
	Owner        string
	ManifestPath string
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewRecorder registers the batch as running and writes its initial record.
func NewRecorder(store *Store, jobs []*spool.JobSpec, opts RecorderOptions) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("batch store is nil")
	}
	if opts.BatchID == "" {
		opts.BatchID = uuid.New().String()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := &Recorder{
		store: store,
		log:   opts.Logger.With(zap.String("batch_id", opts.BatchID)),
		now:   opts.Now,
		index: make(map[string]int, len(jobs)),
		rec: BatchRecord{
			BatchID:      opts.BatchID,
			Owner:        opts.Owner,
			ManifestPath: opts.ManifestPath,
			State:        BatchStateRunning,
			CreatedAt:    opts.Now().UTC(),
			Jobs:         make([]JobEntry, 0, len(jobs)),
		},
	}
	for _, job := range jobs {
		entry := JobEntry{
			JobID:  job.ID(),
			Name:   job.Name(),
			Source: job.Source(),
			State:  JobStatePending,
		}
		if p, ok := job.Printer(); ok {
			entry.Printer = p.Name
		}
		r.index[job.ID()] = len(r.rec.Jobs)
		r.rec.Jobs = append(r.rec.Jobs, entry)
	}

	if err := store.Write(&r.rec); err != nil {
		return nil, err
	}
	return r, nil
}

// BatchID returns the registry identifier of the batch.
func (r *Recorder) BatchID() string {
	return r.rec.BatchID
}

// Snapshot returns a copy of the current record.
func (r *Recorder) Snapshot() BatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked()
}

func (r *Recorder) copyLocked() BatchRecord {
	out := r.rec
	out.Jobs = append([]JobEntry(nil), r.rec.Jobs...)
	return out
}

func (r *Recorder) update(jobID string, fn func(*JobEntry)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[jobID]
	if !ok {
		r.log.Warn("Event for job outside batch", zap.String("job", jobID))
		return
	}
	entry := &r.rec.Jobs[i]
	if entry.State.Terminal() {
		return
	}
	fn(entry)
	r.writeLocked()
}

func (r *Recorder) writeLocked() {
	if err := r.store.Write(&r.rec); err != nil {
		r.log.Warn("Failed to write batch record", zap.Error(err))
	}
}

func (r *Recorder) OnSubmitted(job *spool.JobSpec) {
	r.update(job.ID(), func(e *JobEntry) {
		e.State = JobStateSubmitted
	})
}

func (r *Recorder) OnProgress(job *spool.JobSpec, pagesPrinted int) {
	r.update(job.ID(), func(e *JobEntry) {
		e.State = JobStatePrinting
		e.PagesPrinted = pagesPrinted
	})
}

func (r *Recorder) OnCompleted(job *spool.JobSpec, result *spool.Result) {
	r.update(job.ID(), func(e *JobEntry) {
		e.State = JobStateCompleted
		e.SpoolID = result.SpoolID()
		e.PagesPrinted = result.PagesPrinted()
	})
}

func (r *Recorder) OnError(result *spool.Result) {
	r.update(result.Spec().ID(), func(e *JobEntry) {
		e.State = JobStateError
		e.SpoolID = result.SpoolID()
		e.PagesPrinted = result.PagesPrinted()
		e.UserError = result.ErrorType().UserMessage()
		if err := result.Err(); err != nil {
			e.Error = err.Error()
		}
	})
}

// Finish settles the batch state from its job entries and records the end
// time. Jobs still pending are marked as errors.
func (r *Recorder) Finish() (BatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.rec.Jobs {
		if !r.rec.Jobs[i].State.Terminal() {
			r.rec.Jobs[i].State = JobStateError
			if r.rec.Jobs[i].Error == "" {
				r.rec.Jobs[i].Error = "batch ended before job finished"
			}
		}
	}
	ended := r.now().UTC()
	r.rec.EndedAt = &ended
	r.rec.State = r.rec.settle()

	err := r.store.Write(&r.rec)
	return r.copyLocked(), err
}

var _ spool.Listener = (*Recorder)(nil)
