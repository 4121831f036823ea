package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"salesdash/internal/report"
	"salesdash/pkg/contracts/domain"
)

// Slider is one numeric control of the hyperparameter form
type Slider struct {
	Name  string
	Label string
	Value float64
	domain.Bound
}

// PageData is passed to the dashboard template
type PageData struct {
	Version     string
	Sliders     []Slider
	Activations []domain.Activation
	Optimizers  []domain.OptimizerName
	Defaults    domain.Hyperparameters
	Charts      []string
}

// PageHandler serves the dashboard page and its static assets
type PageHandler struct {
	tmpl   *template.Template
	assets http.Handler
	data   PageData
	logger *slog.Logger
}

// NewPageHandler parses index.html from frontend. Files under assets/ are
// served as they are.
func NewPageHandler(frontend fs.FS, version string, logger *slog.Logger) (*PageHandler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.ParseFS(frontend, "index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}

	return &PageHandler{
		tmpl:   tmpl,
		assets: http.FileServer(http.FS(frontend)),
		data:   newPageData(version),
		logger: logger.With(slog.String("handler", "page")),
	}, nil
}

func newPageData(version string) PageData {
	schema := domain.Schema()
	d := schema.Defaults

	slider := func(name, label string, value float64) Slider {
		return Slider{Name: name, Label: label, Value: value, Bound: schema.Bounds[name]}
	}

	return PageData{
		Version: version,
		Sliders: []Slider{
			slider("hidden_layers", "Number of Hidden Layers", float64(d.HiddenLayers)),
			slider("neurons", "Neurons per Layer", float64(d.Neurons)),
			slider("dropout", "Dropout Rate", d.Dropout),
			slider("learning_rate", "Learning Rate", d.LearningRate),
			slider("epochs", "Number of Epochs", float64(d.Epochs)),
		},
		Activations: schema.Activations,
		Optimizers:  schema.Optimizers,
		Defaults:    d,
		Charts:      report.ChartNames,
	}
}

// Index handles GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, h.data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render dashboard",
			slog.String("error", err.Error()))
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}

// Assets serves the files under /assets/
func (h *PageHandler) Assets() http.Handler {
	return h.assets
}
