package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var panicky = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	panic("catalog reload")
})

func TestRecoveryPassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/printers", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestRecoveryWritesEnvelopeAndLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	req := httptest.NewRequest(http.MethodGet, "/printers", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		RequestID(RecoveryWithLogger(zap.New(core))(panicky)).ServeHTTP(rec, req)
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "panic: catalog reload", body.Error.Message)
	assert.Equal(t, "req-42", body.Error.RequestID)
	assert.Equal(t, "high", body.Error.Severity)

	entries := logs.FilterMessage("Handler panic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
}

func TestRequestIDGenerated(t *testing.T) {
	var incoming string
	rec := httptest.NewRecorder()
	RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		incoming = r.Header.Get(RequestIDHeader)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, incoming, "the id travels in the context, not the request header")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		name     string
		envelope *gferrors.ErrorEnvelope
		status   int
		wantID   string
	}{
		{"bad request", gferrors.NewErrorEnvelope("BAD_REQUEST", "invalid page size"), http.StatusBadRequest, ""},
		{"correlated", gferrors.NewErrorEnvelope("NOT_FOUND", "printer 9 not found").WithCorrelationID("req-7"), http.StatusNotFound, "req-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeErrorResponse(rec, tt.envelope, tt.status)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.envelope.Code, body.Error.Code)
			assert.Equal(t, tt.envelope.Message, body.Error.Message)
			assert.Equal(t, tt.wantID, body.Error.RequestID)
			assert.NotEmpty(t, body.Error.Timestamp)
		})
	}
}

func TestWriteErrorResponseContextAndDetails(t *testing.T) {
	envelope, err := gferrors.NewErrorEnvelope("BAD_REQUEST", "invalid page size").
		WithContext(map[string]any{"field": "size", "value": "0"})
	require.NoError(t, err)
	envelope = envelope.WithDetails(map[string]any{"max": 500})

	rec := httptest.NewRecorder()
	writeErrorResponse(rec, envelope, http.StatusBadRequest)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "size", body.Error.Details["field"])
	assert.Equal(t, "0", body.Error.Details["value"])
	assert.Equal(t, float64(500), body.Error.Details["max"])
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := AccessLog(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/totals" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/printers", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/totals", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Request served", entries[0].Message)
	assert.Equal(t, int64(200), entries[0].ContextMap()["status"])
	assert.Equal(t, "Request failed", entries[1].Message)
}
