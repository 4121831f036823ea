package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRequestIDGeneratesAndPropagates(t *testing.T) {
	var seenReqID, seenTrace string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenReqID = middleware.GetReqID(r.Context())
		seenTrace = infrastructure.GetTraceID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seenReqID)
	assert.Equal(t, seenReqID, seenTrace)
	assert.Equal(t, seenReqID, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetReqID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-id")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "client-id", seen)
}

func TestRecovererReturnsProblem(t *testing.T) {
	h := RequestID(Recoverer(apierrors.NewErrorHandler(discardLogger(), false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/errors/internal", body["type"])
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body["trace_id"])
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1, discardLogger())
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusAccepted, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, apierrors.TypeRateLimit, body["type"])
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error_code"])
	assert.Equal(t, float64(http.StatusTooManyRequests), body["status"])
}

func TestTimeoutCancelsContext(t *testing.T) {
	var ctxErr error
	h := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		ctxErr = r.Context().Err()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, errors.Is(ctxErr, context.DeadlineExceeded))
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type sample struct {
	Epochs     int     `json:"epochs" validate:"min=10,max=100"`
	Activation string  `json:"activation" validate:"oneof=relu tanh sigmoid"`
	Dropout    float64 `json:"dropout" validate:"gte=0,lte=0.5"`
}

func TestValidateStruct(t *testing.T) {
	v := NewValidator(discardLogger())

	assert.NoError(t, v.ValidateStruct(sample{Epochs: 50, Activation: "relu", Dropout: 0.3}))

	err := v.ValidateStruct(sample{Epochs: 5, Activation: "softmax", Dropout: 0.9})
	require.Error(t, err)

	var apiErr *apierrors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	details, ok := apiErr.Details.(apierrors.ValidationErrors)
	require.True(t, ok)
	require.Len(t, details.Errors, 3)

	fields := map[string]string{}
	for _, fe := range details.Errors {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "epochs must be at least 10", fields["epochs"])
	assert.True(t, strings.HasPrefix(fields["activation"], "activation must be one of: relu, tanh, sigmoid"))
	assert.Equal(t, "dropout must be at most 0.5", fields["dropout"])
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator("application/json", "application/x-www-form-urlencoded")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
