package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"salesdash/internal/config"
	apierrors "salesdash/internal/errors"
	"salesdash/internal/middleware"
	"salesdash/internal/services"
	api "salesdash/pkg/contracts/api/v1"
)

// DataService provides the preprocessed table
type DataService interface {
	PreprocessedCSV(ctx context.Context) (*services.PreprocessedFile, error)
	PreprocessedPreview(ctx context.Context) (*api.DataPreview, error)
}

// DataHandler serves the data artifacts produced by training runs
type DataHandler struct {
	service      DataService
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(service DataService, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *DataHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataHandler{
		service:      service,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "data")),
	}
}

// Routes returns the data routes
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/preprocessed", h.DownloadPreprocessed)
	r.Head("/preprocessed", h.DownloadPreprocessed)
	r.Get("/preprocessed/preview", h.PreviewPreprocessed)
	return r
}

// DownloadPreprocessed handles GET /api/v1/data/preprocessed. Conditional
// requests with a matching If-None-Match get 304.
func (h *DataHandler) DownloadPreprocessed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	file, err := h.service.PreprocessedCSV(ctx)
	if err != nil {
		h.errorHandler.HandleError(w, r, apiError(err, ""))
		return
	}

	f, err := os.Open(file.Path)
	if err != nil {
		// replaced or removed between stat and open
		h.logger.WarnContext(ctx, "preprocessed data disappeared",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.ErrDataNotFound)
		return
	}
	defer f.Close()

	h.logger.InfoContext(ctx, "serving preprocessed data",
		slog.String("request_id", reqID),
		slog.String("etag", file.ETag),
		slog.Int64("size", file.Size))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, config.PreprocessedFileName))
	w.Header().Set("ETag", file.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, config.PreprocessedFileName, file.ModTime, f)
}

// PreviewPreprocessed handles GET /api/v1/data/preprocessed/preview
func (h *DataHandler) PreviewPreprocessed(w http.ResponseWriter, r *http.Request) {
	preview, err := h.service.PreprocessedPreview(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, apiError(err, ""))
		return
	}

	w.Header().Set("ETag", preview.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	render.JSON(w, r, preview)
}
