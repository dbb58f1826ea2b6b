// Package errors defines the application error envelope shared by the HTTP
// server and the CLI.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/3leaps/gospool/pkg/jobrecord"
	"github.com/3leaps/gospool/pkg/printer"
	"github.com/3leaps/gospool/pkg/source"
	"github.com/3leaps/gospool/pkg/spool"
)

// Error codes used in HTTP responses.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeConflict           = "CONFLICT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError is a gofulmen error envelope paired with an HTTP status and the
// underlying cause. The cause never reaches the wire for 5xx responses.
type AppError struct {
	*gferrors.ErrorEnvelope
	Status int
	Err    error
}

func newAppError(status int, code, message string, err error) *AppError {
	return &AppError{ErrorEnvelope: NewEnvelope(status, code, message), Status: status, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches response details and returns e.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.ErrorEnvelope = e.ErrorEnvelope.WithDetails(details)
	return e
}

// NewEnvelope builds an envelope whose severity follows the HTTP status.
func NewEnvelope(status int, code, message string) *gferrors.ErrorEnvelope {
	return gferrors.SafeWithSeverity(gferrors.NewErrorEnvelope(code, message), severityFor(status))
}

func severityFor(status int) gferrors.Severity {
	switch {
	case status >= http.StatusInternalServerError:
		return gferrors.SeverityHigh
	case status == http.StatusConflict:
		return gferrors.SeverityMedium
	case status >= http.StatusBadRequest:
		return gferrors.SeverityLow
	}
	return gferrors.SeverityInfo
}

func NewBadRequest(message string, err error) *AppError {
	return newAppError(http.StatusBadRequest, CodeBadRequest, message, err)
}

func NewNotFound(message string) *AppError {
	return newAppError(http.StatusNotFound, CodeNotFound, message, nil)
}

func NewServiceUnavailable(message string) *AppError {
	return newAppError(http.StatusServiceUnavailable, CodeServiceUnavailable, message, nil)
}

func NewExternalServiceError(message string) *AppError {
	return newAppError(http.StatusBadGateway, CodeExternalService, message, nil)
}

// WrapInternal wraps err as a 500. A cancelled ctx is reported as
// unavailable instead.
func WrapInternal(ctx context.Context, err error, message string) *AppError {
	if ctx != nil && ctx.Err() != nil {
		return newAppError(http.StatusServiceUnavailable, CodeServiceUnavailable, message, err)
	}
	return newAppError(http.StatusInternalServerError, CodeInternal, message, err)
}

// Classify maps domain errors onto an AppError.
func Classify(ctx context.Context, err error) *AppError {
	var appErr *AppError
	switch {
	case stderrors.As(err, &appErr):
		return appErr
	case stderrors.Is(err, printer.ErrNotFound), source.IsNotFound(err):
		return newAppError(http.StatusNotFound, CodeNotFound, "not found", err)
	case stderrors.Is(err, jobrecord.ErrInvalidRecord):
		return NewBadRequest("invalid job record", err)
	case spool.IsAlreadyRunning(err):
		return newAppError(http.StatusConflict, CodeConflict, "job already running", err)
	case stderrors.Is(err, source.ErrAccessDenied), stderrors.Is(err, source.ErrUnavailable):
		return newAppError(http.StatusBadGateway, CodeExternalService, "object store error", err)
	}
	return WrapInternal(ctx, err, "internal error")
}

// ErrorBody is the error object inside HTTPErrorResponse.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Severity  string         `json:"severity,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HTTPErrorResponse is the JSON envelope for every error response.
type HTTPErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// bodyFrom flattens an envelope into the response body. The correlation id
// is the request id; structured context is merged into details.
func bodyFrom(env *gferrors.ErrorEnvelope) ErrorBody {
	body := ErrorBody{
		Code:      env.Code,
		Message:   env.Message,
		RequestID: env.CorrelationID,
		Severity:  string(env.Severity),
		Timestamp: env.Timestamp,
	}
	if len(env.Details)+len(env.Context) > 0 {
		body.Details = make(map[string]any, len(env.Details)+len(env.Context))
		for k, v := range env.Context {
			body.Details[k] = v
		}
		for k, v := range env.Details {
			body.Details[k] = v
		}
	}
	return body
}

type requestIDKey struct{}

// WithRequestID stores the request id for error responses and logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WriteEnvelope writes env as the JSON error response with the given status.
func WriteEnvelope(w http.ResponseWriter, env *gferrors.ErrorEnvelope, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: bodyFrom(env)})
}

// WriteError builds an envelope for r and writes it.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	env := NewEnvelope(status, code, message)
	if details != nil {
		env = env.WithDetails(details)
	}
	if r != nil {
		env = env.WithCorrelationID(RequestID(r.Context()))
	}
	WriteEnvelope(w, env, status)
}

// RespondWithError classifies err and writes the envelope. Internal causes
// are not exposed to clients.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}
	appErr := Classify(ctx, err)

	env := *appErr.ErrorEnvelope
	if appErr.Status < http.StatusInternalServerError && appErr.Err != nil {
		env.Message = appErr.Error()
	}
	env.CorrelationID = RequestID(ctx)
	WriteEnvelope(w, &env, appErr.Status)
}
