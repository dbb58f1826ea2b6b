package batchregistry

import "time"

// BatchState is the lifecycle state of a submitted batch.
//
// NOTE: These values are persisted in batch.json and are part of the stable
// on-disk contract.
type BatchState string

const (
	BatchStateRunning BatchState = "running"
	BatchStateSuccess BatchState = "success"
	BatchStatePartial BatchState = "partial"
	BatchStateFailed  BatchState = "failed"
)

// JobState mirrors the spool result states for a single job entry.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateSubmitted JobState = "submitted"
	JobStatePrinting  JobState = "printing"
	JobStateCompleted JobState = "completed"
	JobStateError     JobState = "error"
)

// Terminal reports whether no further updates are expected for the job.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateError
}

// JobEntry is one job inside a batch record.
type JobEntry struct {
	JobID        string   `json:"job_id"`
	Name         string   `json:"name"`
	Source       string   `json:"source"`
	Printer      string   `json:"printer,omitempty"`
	State        JobState `json:"state"`
	SpoolID      string   `json:"spool_id,omitempty"`
	PagesPrinted int      `json:"pages_printed,omitempty"`
	Error        string   `json:"error,omitempty"`
	UserError    string   `json:"user_error,omitempty"`
}

// BatchRecord is the persistent record written to batch.json.
//
// The schema is designed for backward-compatible extension (additive fields).
type BatchRecord struct {
	BatchID      string     `json:"batch_id"`
	Owner        string     `json:"owner,omitempty"`
	ManifestPath string     `json:"manifest_path,omitempty"`
	State        BatchState `json:"state"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Jobs         []JobEntry `json:"jobs"`
}

// Counts returns the number of completed and failed jobs.
func (r *BatchRecord) Counts() (completed, failed int) {
	for _, j := range r.Jobs {
		switch j.State {
		case JobStateCompleted:
			completed++
		case JobStateError:
			failed++
		}
	}
	return completed, failed
}

// settle derives the final batch state from its jobs.
func (r *BatchRecord) settle() BatchState {
	completed, _ := r.Counts()
	switch {
	case len(r.Jobs) > 0 && completed == len(r.Jobs):
		return BatchStateSuccess
	case completed > 0:
		return BatchStatePartial
	}
	return BatchStateFailed
}
