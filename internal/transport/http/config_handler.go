package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"salesdash/pkg/contracts/domain"
)

// ConfigHandler serves the settings the dashboard form is built from
type ConfigHandler struct {
	logger *slog.Logger
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(logger *slog.Logger) *ConfigHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigHandler{
		logger: logger.With(slog.String("handler", "config")),
	}
}

// Routes returns the config routes
func (h *ConfigHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/hyperparameters", h.Hyperparameters)
	return r
}

// Hyperparameters handles GET /api/v1/config/hyperparameters
func (h *ConfigHandler) Hyperparameters(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	render.JSON(w, r, domain.Schema())
}
