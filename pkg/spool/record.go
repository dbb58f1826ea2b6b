package spool

import (
	"context"
	"errors"
	"time"

	"github.com/3leaps/gospool/pkg/jobrecord"
)

// NewRecord builds the durable record for a completed result.
func NewRecord(res *Result, now time.Time) *jobrecord.Record {
	spec := res.Spec()
	rec := &jobrecord.Record{
		SpoolID:   res.SpoolID(),
		Timestamp: now.UTC(),
	}
	if spec == nil {
		return rec
	}
	rec.FileName = spec.Name()
	rec.Owner = spec.Owner()
	rec.DocumentPages = spec.DocumentPages().N
	rec.SelectedPages = spec.SelectedPages().N
	rec.PrintedPages = spec.PrintedPages().N
	rec.Cost, _ = spec.Cost()
	if p, ok := spec.Printer(); ok {
		rec.PrinterID = p.ID
		rec.PrinterName = p.Name
	}
	return rec
}

// RepositoryRecorder saves completed jobs to a jobrecord.Repository.
type RepositoryRecorder struct {
	Repo jobrecord.Repository

	// Now defaults to time.Now.
	Now func() time.Time
}

func (r RepositoryRecorder) Record(ctx context.Context, res *Result) error {
	if r.Repo == nil {
		return errors.New("no job record repository")
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	_, err := r.Repo.Save(ctx, NewRecord(res, now()))
	return err
}
