package spool

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypeMessages(t *testing.T) {
	tests := []struct {
		t    ErrorType
		code string
		msg  string
		user string
	}{
		{ErrorNoSpoolID, "NO_CUPS_ID", "unable to determine print job", "no_cups_id"},
		{ErrorExecution, "EXECUTION_EXCEPTION", "exception while waiting for result", "execution_exception"},
		{ErrorAlreadyRunning, "ALREADY_RUNNING", "job already running", "already_running"},
		{ErrorTimeout, "TIME_OUT", "timed out", "time_out"},
		{ErrorFileConvert, "FILE_CONVERT", "unable to convert file", "file_convert"},
		{ErrorPageCount, "PAGE_COUNT", "unable to calculate page number", "page_count"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.t.String())
			assert.Equal(t, tt.msg, tt.t.Message())
			assert.Equal(t, tt.user, tt.t.UserMessage())

			parsed, ok := ParseErrorType(tt.user)
			assert.True(t, ok)
			assert.Equal(t, tt.t, parsed)
		})
	}

	assert.Equal(t, "NONE", ErrorNone.String())
	assert.Empty(t, ErrorNone.UserMessage())
}

func TestJobErrorMatching(t *testing.T) {
	cause := errors.New("disk on fire")
	err := fmt.Errorf("batch: %w", &JobError{Type: ErrorExecution, Job: "a.pdf", Owner: "alice", Err: cause})

	assert.ErrorIs(t, err, ErrExecution)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, ErrorExecution, TypeOf(err))
	assert.Contains(t, err.Error(), `job "a.pdf": exception while waiting for result: disk on fire`)

	assert.True(t, IsTimeout(&JobError{Type: ErrorTimeout}))
	assert.True(t, IsAlreadyRunning(ErrAlreadyRunning))
	assert.True(t, IsSubmissionGuard(&JobError{Type: ErrorPageCount}))
	assert.False(t, IsSubmissionGuard(&JobError{Type: ErrorNoSpoolID}))
	assert.Equal(t, ErrorNone, TypeOf(errors.New("other")))
}
