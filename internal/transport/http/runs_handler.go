package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
	"salesdash/internal/middleware"
	"salesdash/internal/report"
	api "salesdash/pkg/contracts/api/v1"
	"salesdash/pkg/contracts/domain"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxListLimit    = 500
)

// RunService is the part of services.TrainingService the runs handler uses
type RunService interface {
	StartRun(ctx context.Context, hp domain.Hyperparameters, wait bool) (*api.RunDetail, error)
	GetRun(ctx context.Context, id string) (*api.RunDetail, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
	CancelRun(ctx context.Context, id string) error
	Report(ctx context.Context, id string) (*report.Report, error)
	Chart(ctx context.Context, id, name string) ([]byte, error)
	WriteWorkbook(ctx context.Context, id string, w io.Writer) error
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// RunsHandler handles training run requests
type RunsHandler struct {
	service      RunService
	validator    *middleware.Validator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
	tracer       trace.Tracer
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(service RunService, validator *middleware.Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "runs")),
		tracer:       otel.Tracer("runs-handler"),
	}
}

// Routes returns the run routes. submit is applied to run submission only,
// typically rate limiting and content type checks.
func (h *RunsHandler) Routes(submit ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(submit...).Post("/", h.StartRun)
	r.Get("/", h.ListRuns)
	r.Get("/stats", h.GetStats)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetRun)
		r.Delete("/", h.CancelRun)
		r.Get("/report", h.GetReport)
		r.Get("/report.xlsx", h.DownloadWorkbook)
		r.Get("/charts/{chart}.png", h.GetChart)
	})

	return r
}

// startSpan opens the handler span with the attributes every run request carries
func (h *RunsHandler) startSpan(r *http.Request, name, route string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", r.Method),
		attribute.String("http.route", route),
		attribute.String("request_id", middleware.GetReqID(r.Context())),
	}
	if id := chi.URLParam(r, "id"); id != "" {
		attrs = append(attrs, attribute.String("run.id", id))
	}
	return h.tracer.Start(r.Context(), "runs_handler."+name, trace.WithAttributes(attrs...))
}

// fail records err on the span and renders it as problem details
func (h *RunsHandler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	h.errorHandler.HandleError(w, r, apiError(err, chi.URLParam(r, "id")))
}

// StartRun handles POST /api/v1/runs. The run is queued and 202 returned,
// or with ?wait=true the request blocks until the run is finished.
func (h *RunsHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "start_run", "/api/v1/runs")
	defer span.End()
	r = r.WithContext(ctx)

	req := api.NewStartRunRequest()
	if err := render.Bind(r, req); err != nil && !errors.Is(err, io.EOF) {
		span.SetAttributes(attribute.String("error.type", "request_decode"))
		h.fail(w, r, span, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req.Hyperparameters); err != nil {
		span.SetAttributes(attribute.String("error.type", "request_validation"))
		h.fail(w, r, span, err)
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	h.logger.InfoContext(ctx, "run start request",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
		slog.Int("hidden_layers", req.HiddenLayers),
		slog.Int("neurons", req.Neurons),
		slog.String("activation", string(req.Activation)),
		slog.String("optimizer", string(req.Optimizer)),
		slog.Int("epochs", req.Epochs),
		slog.Bool("wait", wait))

	run, err := h.service.StartRun(ctx, req.Hyperparameters, wait)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}

	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.status", string(run.Status)),
	)

	if wait {
		render.JSON(w, r, run)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, api.StartRunResponse{
		RunID:     run.ID,
		Status:    run.Status,
		StatusURL: fmt.Sprintf("/api/v1/runs/%s", run.ID),
		ReportURL: fmt.Sprintf("/api/v1/runs/%s/report", run.ID),
	})
}

// ListRuns handles GET /api/v1/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "list_runs", "/api/v1/runs")
	defer span.End()
	r = r.WithContext(ctx)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.fail(w, r, span, apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST",
				"limit must be a non-negative integer", raw))
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.service.ListRuns(ctx, limit)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}

	span.SetAttributes(attribute.Int("runs.count", len(runs)))
	render.JSON(w, r, api.ListRunsResponse{Runs: runs, Total: len(runs)})
}

// GetRun handles GET /api/v1/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "get_run", "/api/v1/runs/{id}")
	defer span.End()
	r = r.WithContext(ctx)

	run, err := h.service.GetRun(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, span, err)
		return
	}

	span.SetAttributes(
		attribute.String("run.status", string(run.Status)),
		attribute.Int("run.progress", run.Progress),
	)
	render.JSON(w, r, run)
}

// CancelRun handles DELETE /api/v1/runs/{id}
func (h *RunsHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "cancel_run", "/api/v1/runs/{id}")
	defer span.End()
	r = r.WithContext(ctx)

	id := chi.URLParam(r, "id")
	if err := h.service.CancelRun(ctx, id); err != nil {
		h.fail(w, r, span, err)
		return
	}

	h.logger.InfoContext(ctx, "run cancel requested",
		slog.String("run_id", id),
		slog.String("request_id", middleware.GetReqID(ctx)))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"run_id":  id,
		"message": "cancellation requested",
	})
}

// GetReport handles GET /api/v1/runs/{id}/report
func (h *RunsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "get_report", "/api/v1/runs/{id}/report")
	defer span.End()
	r = r.WithContext(ctx)

	rep, err := h.service.Report(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	render.JSON(w, r, rep)
}

// GetChart handles GET /api/v1/runs/{id}/charts/{chart}.png
func (h *RunsHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "get_chart", "/api/v1/runs/{id}/charts/{chart}.png")
	defer span.End()
	r = r.WithContext(ctx)

	name := chi.URLParam(r, "chart")
	span.SetAttributes(attribute.String("chart.name", name))

	png, err := h.service.Chart(ctx, chi.URLParam(r, "id"), name)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(png); err != nil {
		h.logger.WarnContext(ctx, "failed to write chart",
			slog.String("chart", name),
			slog.String("error", err.Error()))
	}
}

// DownloadWorkbook handles GET /api/v1/runs/{id}/report.xlsx
func (h *RunsHandler) DownloadWorkbook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "download_workbook", "/api/v1/runs/{id}/report.xlsx")
	defer span.End()
	r = r.WithContext(ctx)

	id := chi.URLParam(r, "id")

	// Make sure the report exists before committing to the xlsx headers
	if _, err := h.service.Report(ctx, id); err != nil {
		h.fail(w, r, span, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="run_%s_report.xlsx"`, id))
	if err := h.service.WriteWorkbook(ctx, id, w); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "workbook write failed")
		h.logger.ErrorContext(ctx, "failed to write workbook",
			slog.String("run_id", id),
			slog.String("error", err.Error()))
	}
}

// GetStats handles GET /api/v1/runs/stats
func (h *RunsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "get_stats", "/api/v1/runs/stats")
	defer span.End()
	r = r.WithContext(ctx)

	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	render.JSON(w, r, stats)
}
