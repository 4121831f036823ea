package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewJSONHandler(io.Discard, nil)), false)
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{
			name:       "run not found",
			err:        ErrRunNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   TypeRunNotFound,
			wantCode:   "RUN_NOT_FOUND",
		},
		{
			name:       "wrapped run not complete",
			err:        fmt.Errorf("report: %w", ErrRunNotComplete),
			wantStatus: http.StatusConflict,
			wantType:   TypeRunNotComplete,
			wantCode:   "RUN_NOT_COMPLETE",
		},
		{
			name: "validation errors",
			err: NewValidationErrors([]ValidationError{
				{Field: "epochs", Message: "must be at least 10"},
			}),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "queue full",
			err:        QueueFullError(fmt.Errorf("queue is full")),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeQueueFull,
			wantCode:   "QUEUE_FULL",
		},
		{
			name:       "deadline",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "plain not found message",
			err:        fmt.Errorf("file not found"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "unknown",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	h := newTestHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/abc", nil)

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/v1/runs/abc", body["instance"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			}
		})
	}
}

func TestHandleErrorNil(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler().HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, 0, rec.Body.Len())
}

func TestProblemDetailsMarshalKeepsStandardFields(t *testing.T) {
	pd := NewProblemDetails(http.StatusConflict, TypeConflict, "Conflict", "detail", "/x").
		WithExtension("status", 999).
		WithExtension("extra", "value")

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, float64(http.StatusConflict), body["status"])
	assert.Equal(t, "value", body["extra"])
}

func TestHandlePanic(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler().HandlePanic(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil), "kaboom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeInternal, body["type"])
	_, hasPanic := body["panic"]
	assert.False(t, hasPanic)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["detail"], "DELETE")
}
