package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/gospool/internal/errors"
	"github.com/3leaps/gospool/pkg/printer"
	"github.com/3leaps/gospool/pkg/spool"
)

func TestDefaultResponderClassifiesDomainErrors(t *testing.T) {
	ResetHTTPErrorResponder()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown printer", fmt.Errorf("printer 9: %w", printer.ErrNotFound), http.StatusNotFound, apperrors.CodeNotFound},
		{"duplicate submission", &spool.JobError{Type: spool.ErrorAlreadyRunning, Job: "q1.pdf"}, http.StatusConflict, apperrors.CodeConflict},
		{"bad query", apperrors.NewBadRequest("invalid page size", nil), http.StatusBadRequest, apperrors.CodeBadRequest},
		{"anything else", errors.New("disk I/O error"), http.StatusInternalServerError, apperrors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithError(rec, httptest.NewRequest(http.MethodGet, "/printers/9/jobs", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body apperrors.HTTPErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestInternalCauseIsHidden(t *testing.T) {
	ResetHTTPErrorResponder()

	rec := httptest.NewRecorder()
	respondWithError(rec, httptest.NewRequest(http.MethodGet, "/totals", nil), errors.New("sqlite: database disk image is malformed"))

	assert.NotContains(t, rec.Body.String(), "malformed")
}

func TestSwapResponder(t *testing.T) {
	t.Cleanup(ResetHTTPErrorResponder)

	var seen error
	SetHTTPErrorResponder(func(w http.ResponseWriter, r *http.Request, err error) {
		seen = err
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	respondWithError(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil), spool.ErrTimeout)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.ErrorIs(t, seen, spool.ErrTimeout)

	SetHTTPErrorResponder(nil)
	rec = httptest.NewRecorder()
	respondWithError(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil), printer.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
