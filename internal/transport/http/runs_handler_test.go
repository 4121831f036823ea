package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/middleware"
	"salesdash/internal/operations"
	"salesdash/internal/report"
	"salesdash/internal/services"
	transport "salesdash/internal/transport/http"
	api "salesdash/pkg/contracts/api/v1"
	"salesdash/pkg/contracts/domain"
)

const runID = "6f1c2a8e-4b7d-4c1e-9a55-0d3e8b2f7c11"

type mockRunService struct {
	mock.Mock
}

func (m *mockRunService) StartRun(ctx context.Context, hp domain.Hyperparameters, wait bool) (*api.RunDetail, error) {
	args := m.Called(ctx, hp, wait)
	detail, _ := args.Get(0).(*api.RunDetail)
	return detail, args.Error(1)
}

func (m *mockRunService) GetRun(ctx context.Context, id string) (*api.RunDetail, error) {
	args := m.Called(ctx, id)
	detail, _ := args.Get(0).(*api.RunDetail)
	return detail, args.Error(1)
}

func (m *mockRunService) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]domain.RunSummary)
	return runs, args.Error(1)
}

func (m *mockRunService) CancelRun(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRunService) Report(ctx context.Context, id string) (*report.Report, error) {
	args := m.Called(ctx, id)
	rep, _ := args.Get(0).(*report.Report)
	return rep, args.Error(1)
}

func (m *mockRunService) Chart(ctx context.Context, id, name string) ([]byte, error) {
	args := m.Called(ctx, id, name)
	png, _ := args.Get(0).([]byte)
	return png, args.Error(1)
}

func (m *mockRunService) WriteWorkbook(ctx context.Context, id string, w io.Writer) error {
	return m.Called(ctx, id, w).Error(0)
}

func (m *mockRunService) Stats(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(map[string]interface{})
	return stats, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunsRouter(svc transport.RunService) http.Handler {
	logger := discardLogger()
	h := transport.NewRunsHandler(svc, middleware.NewValidator(logger), apierrors.NewErrorHandler(logger, false), logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount("/api/v1/runs", h.Routes(middleware.ContentTypeValidator("application/json")))
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func queuedRun(hp domain.Hyperparameters) *api.RunDetail {
	return &api.RunDetail{RunSummary: domain.RunSummary{
		ID:              runID,
		Status:          domain.RunStatusIdle,
		Hyperparameters: hp,
		CreatedAt:       time.Now(),
	}}
}

func TestStartRunAccepted(t *testing.T) {
	svc := new(mockRunService)
	hp := domain.DefaultHyperparameters()
	hp.HiddenLayers = 2
	hp.Activation = domain.ActivationTanh
	svc.On("StartRun", mock.Anything, hp, false).Return(queuedRun(hp), nil)

	rec := do(t, newRunsRouter(svc), http.MethodPost, "/api/v1/runs",
		`{"hidden_layers": 2, "activation": " TANH "}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, runID, body["run_id"])
	assert.Equal(t, "idle", body["status"])
	assert.Equal(t, "/api/v1/runs/"+runID, body["status_url"])
	assert.Equal(t, "/api/v1/runs/"+runID+"/report", body["report_url"])
	svc.AssertExpectations(t)
}

func TestStartRunEmptyBodyUsesDefaults(t *testing.T) {
	svc := new(mockRunService)
	hp := domain.DefaultHyperparameters()
	svc.On("StartRun", mock.Anything, hp, false).Return(queuedRun(hp), nil)

	rec := do(t, newRunsRouter(svc), http.MethodPost, "/api/v1/runs", "")

	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestStartRunWaitReturnsFinishedRun(t *testing.T) {
	svc := new(mockRunService)
	hp := domain.DefaultHyperparameters()
	run := queuedRun(hp)
	run.Status = domain.RunStatusComplete
	run.Progress = 100
	run.Metrics = map[string]string{"MAE": "0.1234"}
	svc.On("StartRun", mock.Anything, hp, true).Return(run, nil)

	rec := do(t, newRunsRouter(svc), http.MethodPost, "/api/v1/runs?wait=true", "{}")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "complete", body["status"])
	assert.Equal(t, "0.1234", body["metrics"].(map[string]interface{})["MAE"])
}

func TestStartRunRejectsInvalidHyperparameters(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"too few neurons", `{"neurons": 16}`, "neurons"},
		{"too many layers", `{"hidden_layers": 6}`, "hidden_layers"},
		{"dropout above range", `{"dropout": 0.9}`, "dropout"},
		{"unknown activation", `{"activation": "softmax"}`, "activation"},
		{"unknown optimizer", `{"optimizer": "adagrad"}`, "optimizer"},
		{"learning rate too small", `{"learning_rate": 0.00001}`, "learning_rate"},
		{"too few epochs", `{"epochs": 5}`, "epochs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockRunService)
			rec := do(t, newRunsRouter(svc), http.MethodPost, "/api/v1/runs", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
			assert.Contains(t, rec.Body.String(), `"field":"`+tt.field+`"`)
			svc.AssertNotCalled(t, "StartRun", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestStartRunMalformedJSON(t *testing.T) {
	svc := new(mockRunService)
	rec := do(t, newRunsRouter(svc), http.MethodPost, "/api/v1/runs", `{"epochs":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, rec)["error_code"])
}

func TestStartRunWrongContentType(t *testing.T) {
	svc := new(mockRunService)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader("epochs=10"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	newRunsRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestStartRunQueueFull(t *testing.T) {
	svc := new(mockRunService)
	svc.On("StartRun", mock.Anything, mock.Anything, false).
		Return(nil, fmt.Errorf("failed to queue run: %w", operations.ErrQueueFull))

	rec := do(t, newRunsRouter(svc), http.MethodPost, "/api/v1/runs", "{}")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "QUEUE_FULL", decode(t, rec)["error_code"])
}

func TestRunErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown run", fmt.Errorf("run %s: %w", runID, operations.ErrRunNotFound), http.StatusNotFound, "RUN_NOT_FOUND"},
		{"malformed id", fmt.Errorf("%w: %q", services.ErrInvalidRunID, "x"), http.StatusNotFound, "RUN_NOT_FOUND"},
		{"still training", fmt.Errorf("run is training: %w", operations.ErrRunNotComplete), http.StatusConflict, "RUN_NOT_COMPLETE"},
		{"failed run", fmt.Errorf("%w: schema mismatch", services.ErrRunFailed), http.StatusConflict, "RUN_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockRunService)
			svc.On("Report", mock.Anything, runID).Return(nil, tt.err)

			rec := do(t, newRunsRouter(svc), http.MethodGet, "/api/v1/runs/"+runID+"/report", "")

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.code, body["error_code"])
			assert.NotEmpty(t, body["trace_id"])
		})
	}
}

func TestGetRun(t *testing.T) {
	svc := new(mockRunService)
	run := queuedRun(domain.DefaultHyperparameters())
	run.Status = domain.RunStatusTraining
	run.Progress = 40
	run.CurrentStep = "training"
	svc.On("GetRun", mock.Anything, runID).Return(run, nil)

	rec := do(t, newRunsRouter(svc), http.MethodGet, "/api/v1/runs/"+runID, "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "training", body["status"])
	assert.Equal(t, float64(40), body["progress"])
	assert.Equal(t, "training", body["current_step"])
}

func TestListRunsLimit(t *testing.T) {
	svc := new(mockRunService)
	runs := []domain.RunSummary{queuedRun(domain.DefaultHyperparameters()).RunSummary}
	svc.On("ListRuns", mock.Anything, 500).Return(runs, nil).Once()
	svc.On("ListRuns", mock.Anything, 0).Return(runs, nil).Once()
	router := newRunsRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/v1/runs?limit=10000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["total"])

	rec = do(t, router, http.MethodGet, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertExpectations(t)
}

func TestCancelRun(t *testing.T) {
	svc := new(mockRunService)
	svc.On("CancelRun", mock.Anything, runID).Return(nil).Once()
	svc.On("CancelRun", mock.Anything, runID).
		Return(fmt.Errorf("failed to cancel run: %w", operations.ErrRunFinished)).Once()
	router := newRunsRouter(svc)

	rec := do(t, router, http.MethodDelete, "/api/v1/runs/"+runID, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/v1/runs/"+runID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode(t, rec)["error_code"])
}

func TestGetChart(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	svc := new(mockRunService)
	svc.On("Chart", mock.Anything, runID, report.ChartMAE).Return(png, nil)
	svc.On("Chart", mock.Anything, runID, "pie").
		Return(nil, fmt.Errorf("%w: pie", report.ErrUnknownChart))
	router := newRunsRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/v1/runs/"+runID+"/charts/"+report.ChartMAE+".png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())

	rec = do(t, router, http.MethodGet, "/api/v1/runs/"+runID+"/charts/pie.png", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadWorkbook(t *testing.T) {
	svc := new(mockRunService)
	svc.On("Report", mock.Anything, runID).Return(&report.Report{}, nil)
	svc.On("WriteWorkbook", mock.Anything, runID, mock.Anything).
		Run(func(args mock.Arguments) {
			io.WriteString(args.Get(2).(io.Writer), "xlsx-bytes")
		}).
		Return(nil)

	rec := do(t, newRunsRouter(svc), http.MethodGet, "/api/v1/runs/"+runID+"/report.xlsx", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), runID)
	assert.Equal(t, "xlsx-bytes", rec.Body.String())
}

func TestDownloadWorkbookBeforeCompletion(t *testing.T) {
	svc := new(mockRunService)
	svc.On("Report", mock.Anything, runID).Return(nil, operations.ErrRunNotComplete)

	rec := do(t, newRunsRouter(svc), http.MethodGet, "/api/v1/runs/"+runID+"/report.xlsx", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	svc.AssertNotCalled(t, "WriteWorkbook", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetStats(t *testing.T) {
	svc := new(mockRunService)
	svc.On("Stats", mock.Anything).Return(map[string]interface{}{"total_runs": 3}, nil)

	rec := do(t, newRunsRouter(svc), http.MethodGet, "/api/v1/runs/stats", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decode(t, rec)["total_runs"])
}
