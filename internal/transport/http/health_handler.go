package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/services"
	api "salesdash/pkg/contracts/api/v1"
)

// HealthService is the part of services.HealthService served over HTTP
type HealthService interface {
	HealthCheck(ctx context.Context) api.HealthResponse
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() api.VersionResponse
	SystemStats(ctx context.Context) (services.SystemStats, error)
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	service      HealthService
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service HealthService, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		service:      service,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /healthz
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.HealthCheck(r.Context()))
}

// ReadinessCheck handles GET /healthz/ready. A service that is not ready
// turns the response into 503.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := h.service.ReadinessCheck(r.Context())
	if status.Status != "ready" {
		h.logger.WarnContext(r.Context(), "readiness check failed",
			slog.Any("services", status.Services))
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

// LivenessCheck handles GET /healthz/live
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.LivenessCheck(r.Context()))
}

// Version handles GET /api/v1/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Version())
}

// Stats handles GET /api/v1/stats
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.SystemStats(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}
