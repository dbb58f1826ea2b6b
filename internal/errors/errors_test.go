package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gospool/pkg/printer"
	"github.com/3leaps/gospool/pkg/spool"
)

func TestClassify(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"printer not found", fmt.Errorf("get: %w", printer.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"already running", spool.ErrAlreadyRunning, http.StatusConflict, CodeConflict},
		{"app error kept", NewBadRequest("bad page", nil), http.StatusBadRequest, CodeBadRequest},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(ctx, tt.err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.code, got.Code)
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, CodeServiceUnavailable, Classify(cancelled, fmt.Errorf("late")).Code)
}

func TestRespondWithError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/printers/9", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, printer.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeNotFound, body.Error.Code)
	assert.Equal(t, "req-1", body.Error.RequestID)
	assert.Equal(t, string(gferrors.SeverityLow), body.Error.Severity)
	assert.NotEmpty(t, body.Error.Timestamp)
}

func TestAppErrorIsEnvelope(t *testing.T) {
	cause := fmt.Errorf("strconv: bad digit")
	appErr := NewBadRequest("invalid printer id", cause).WithDetails(map[string]any{"id": "x"})

	env := appErr.ErrorEnvelope
	assert.Equal(t, CodeBadRequest, env.Code)
	assert.Equal(t, gferrors.SeverityLow, env.Severity)
	assert.Equal(t, "x", env.Details["id"])
	assert.ErrorIs(t, appErr, cause)
	assert.Equal(t, "invalid printer id: strconv: bad digit", appErr.Error())

	assert.Equal(t, gferrors.SeverityHigh, WrapInternal(context.Background(), cause, "boom").Severity)
	assert.Equal(t, gferrors.SeverityMedium, Classify(context.Background(), spool.ErrAlreadyRunning).Severity)
}

func TestWriteErrorCarriesRequestIDAndDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req-9"))
	rec := httptest.NewRecorder()

	WriteError(rec, req, http.StatusServiceUnavailable, CodeServiceUnavailable, "not ready",
		map[string]any{"checks": map[string]string{"store": "unhealthy"}})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "req-9", body.Error.RequestID)
	assert.Equal(t, map[string]any{"store": "unhealthy"}, body.Error.Details["checks"])
}

func TestRespondWithErrorLeavesSharedEnvelopeAlone(t *testing.T) {
	appErr := NewNotFound("no active printer")
	for _, id := range []string{"req-a", "req-b"} {
		req := httptest.NewRequest(http.MethodGet, "/printers/default", nil)
		req = req.WithContext(WithRequestID(req.Context(), id))
		rec := httptest.NewRecorder()
		RespondWithError(rec, req, appErr)

		var body HTTPErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, id, body.Error.RequestID)
	}
	assert.Empty(t, appErr.CorrelationID)
}

func TestRespondWithErrorHidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("dsn password=hunter2"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeInternal, body.Error.Code)
	assert.NotContains(t, body.Error.Message, "hunter2")
}
