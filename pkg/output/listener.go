package output

import (
	"context"

	"go.uber.org/zap"

	"github.com/3leaps/gospool/pkg/spool"
)

// JobEvents streams spool listener events as job records. Write failures
// are logged; listeners cannot fail a job.
type JobEvents struct {
	W   Writer
	Log *zap.Logger
}

func (e JobEvents) write(rec *JobRecord) {
	if err := e.W.WriteJob(context.Background(), rec); err != nil && e.Log != nil {
		e.Log.Warn("Failed to write job event", zap.String("event", rec.Event), zap.Error(err))
	}
}

func jobRecord(event string, job *spool.JobSpec) *JobRecord {
	rec := &JobRecord{Event: event}
	if job == nil {
		return rec
	}
	rec.JobID = job.ID()
	rec.Name = job.Name()
	rec.Owner = job.Owner()
	if p, ok := job.Printer(); ok {
		rec.Printer = p.Name
	}
	return rec
}

func (e JobEvents) OnSubmitted(job *spool.JobSpec) {
	e.write(jobRecord(EventSubmitted, job))
}

func (e JobEvents) OnProgress(job *spool.JobSpec, pagesPrinted int) {
	rec := jobRecord(EventProgress, job)
	rec.PagesPrinted = pagesPrinted
	e.write(rec)
}

func (e JobEvents) OnCompleted(job *spool.JobSpec, result *spool.Result) {
	rec := jobRecord(EventCompleted, job)
	rec.SpoolID = result.SpoolID()
	rec.PagesPrinted = result.PagesPrinted()
	if cost, ok := job.Cost(); ok {
		rec.Cost = &cost
	}
	e.write(rec)
}

func (e JobEvents) OnError(result *spool.Result) {
	rec := jobRecord(EventError, result.Spec())
	rec.SpoolID = result.SpoolID()
	rec.ErrorType = result.ErrorType().UserMessage()
	if err := result.Err(); err != nil {
		rec.Message = err.Error()
	}
	e.write(rec)
}

// Summarize totals a settled batch.
func Summarize(results []*spool.Result) *SummaryRecord {
	sum := &SummaryRecord{Jobs: len(results)}
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.HasError() {
			sum.Failed++
			continue
		}
		if res.State() != spool.StateCompleted {
			continue
		}
		sum.Completed++
		spec := res.Spec()
		if n := spec.PrintedPages(); n.Known {
			sum.PagesPrinted += n.N
		}
		if cost, ok := spec.Cost(); ok {
			sum.Cost += cost
		}
	}
	return sum
}

var _ spool.Listener = JobEvents{}
