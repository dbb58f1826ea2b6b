// Package output provides JSONL output for print batches.
//
// Output is structured as typed record envelopes carrying job events,
// errors, and the final batch summary. Each line is a self-contained JSON
// object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants follow the pattern gospool.<type>.v<version>.
const (
	TypeJob     = "gospool.job.v1"
	TypeError   = "gospool.error.v1"
	TypeSummary = "gospool.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the payload, e.g. "gospool.job.v1".
	Type string `json:"type"`

	// TS is when the record was created.
	TS time.Time `json:"ts"`

	// BatchID correlates every record of one print run.
	BatchID string `json:"batch_id"`

	Data json.RawMessage `json:"data"`
}

// Job event names.
const (
	EventSubmitted = "submitted"
	EventProgress  = "progress"
	EventCompleted = "completed"
	EventError     = "error"
)

// JobRecord is the data payload for a job lifecycle event.
type JobRecord struct {
	Event        string   `json:"event"`
	JobID        string   `json:"job_id"`
	Name         string   `json:"name"`
	Owner        string   `json:"owner,omitempty"`
	Printer      string   `json:"printer,omitempty"`
	SpoolID      string   `json:"spool_id,omitempty"`
	PagesPrinted int      `json:"pages_printed,omitempty"`
	Cost         *float64 `json:"cost,omitempty"`

	// ErrorType is the stable user token, e.g. "time_out".
	ErrorType string `json:"error_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ErrorRecord is the data payload for failures outside a single job, such
// as a source that cannot be resolved.
type ErrorRecord struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeAccessDenied = "ACCESS_DENIED"
	ErrCodeInvalid      = "INVALID"
	ErrCodeInternal     = "INTERNAL"
)

// SummaryRecord is emitted once a batch has settled.
type SummaryRecord struct {
	Jobs          int           `json:"jobs"`
	Completed     int           `json:"completed"`
	Failed        int           `json:"failed"`
	PagesPrinted  int           `json:"pages_printed"`
	Cost          float64       `json:"cost"`
	Duration      time.Duration `json:"duration_ns"`
	DurationHuman string        `json:"duration"`
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = errors.New("writer is closed")

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // e.g. "marshal_data", "write"
	Err error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
