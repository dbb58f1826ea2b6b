package spool

import (
	"errors"
	"fmt"
)

// ErrorType classifies why a job ended in error. All types are terminal and
// mutually exclusive per job.
type ErrorType int

const (
	// ErrorNone means no error has been recorded.
	ErrorNone ErrorType = iota

	// ErrorNoSpoolID means the spooler ran but reported no job identifier.
	ErrorNoSpoolID

	// ErrorExecution means the spooler could not be run, or reading its
	// output or progress log failed.
	ErrorExecution

	// ErrorAlreadyRunning means the job was submitted a second time.
	ErrorAlreadyRunning

	// ErrorTimeout means no completion was observed within the allowed wait.
	ErrorTimeout

	// ErrorFileConvert means the source could not be made spoolable.
	ErrorFileConvert

	// ErrorPageCount means the printed page count is undefined.
	ErrorPageCount
)

type errorInfo struct {
	code    string
	message string
	user    string
	err     error
}

// Sentinel errors, one per ErrorType, for errors.Is matching.
var (
	ErrNoSpoolID      = errors.New("unable to determine print job")
	ErrExecution      = errors.New("exception while waiting for result")
	ErrAlreadyRunning = errors.New("job already running")
	ErrTimeout        = errors.New("timed out")
	ErrFileConvert    = errors.New("unable to convert file")
	ErrPageCount      = errors.New("unable to calculate page number")
)

var errorTable = map[ErrorType]errorInfo{
	ErrorNoSpoolID:      {"NO_CUPS_ID", "unable to determine print job", "no_cups_id", ErrNoSpoolID},
	ErrorExecution:      {"EXECUTION_EXCEPTION", "exception while waiting for result", "execution_exception", ErrExecution},
	ErrorAlreadyRunning: {"ALREADY_RUNNING", "job already running", "already_running", ErrAlreadyRunning},
	ErrorTimeout:        {"TIME_OUT", "timed out", "time_out", ErrTimeout},
	ErrorFileConvert:    {"FILE_CONVERT", "unable to convert file", "file_convert", ErrFileConvert},
	ErrorPageCount:      {"PAGE_COUNT", "unable to calculate page number", "page_count", ErrPageCount},
}

// String returns the upper-case classification code, e.g. TIME_OUT.
func (t ErrorType) String() string {
	if info, ok := errorTable[t]; ok {
		return info.code
	}
	if t == ErrorNone {
		return "NONE"
	}
	return fmt.Sprintf("ErrorType(%d)", int(t))
}

// Message is the diagnostic description used in logs.
func (t ErrorType) Message() string {
	return errorTable[t].message
}

// UserMessage is the stable token shown to users, suitable for translation.
func (t ErrorType) UserMessage() string {
	return errorTable[t].user
}

// Sentinel returns the sentinel error for t, or nil for ErrorNone.
func (t ErrorType) Sentinel() error {
	return errorTable[t].err
}

// ParseErrorType maps a code (TIME_OUT) or user token (time_out) back to a type.
func ParseErrorType(s string) (ErrorType, bool) {
	for t, info := range errorTable {
		if s == info.code || s == info.user {
			return t, true
		}
	}
	return ErrorNone, false
}

// JobError describes a terminal job failure with its context.
type JobError struct {
	Type    ErrorType
	Job     string
	Owner   string
	SpoolID string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *JobError) Error() string {
	msg := e.Type.Message()
	if e.Job != "" {
		msg = fmt.Sprintf("job %q: %s", e.Job, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the cause and the sentinel for the error type.
func (e *JobError) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := e.Type.Sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// TypeOf extracts the ErrorType carried by err, or ErrorNone.
func TypeOf(err error) ErrorType {
	var je *JobError
	if errors.As(err, &je) {
		return je.Type
	}
	for t, info := range errorTable {
		if errors.Is(err, info.err) {
			return t
		}
	}
	return ErrorNone
}

// IsTimeout returns true if the error indicates the completion wait expired.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsAlreadyRunning returns true if the error indicates a duplicate submission.
func IsAlreadyRunning(err error) bool {
	return errors.Is(err, ErrAlreadyRunning)
}

// IsSubmissionGuard returns true for failures detected before the spooler ran.
func IsSubmissionGuard(err error) bool {
	switch TypeOf(err) {
	case ErrorAlreadyRunning, ErrorFileConvert, ErrorPageCount:
		return true
	}
	return false
}
