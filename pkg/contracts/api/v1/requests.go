// Package api contains the request and response bodies of the v1 HTTP API.
package api

import (
	"net/http"
	"strings"
	"time"

	"salesdash/pkg/contracts"
	"salesdash/pkg/contracts/domain"
	"salesdash/pkg/contracts/events"
)

// StartRunRequest starts a training run. Omitted fields take the defaults
// of domain.DefaultHyperparameters.
type StartRunRequest struct {
	domain.Hyperparameters
}

// NewStartRunRequest returns a request pre-filled with the defaults, ready
// to be decoded over.
func NewStartRunRequest() *StartRunRequest {
	return &StartRunRequest{Hyperparameters: domain.DefaultHyperparameters()}
}

// Bind normalizes the choice fields after decoding
func (r *StartRunRequest) Bind(*http.Request) error {
	r.Activation = domain.Activation(strings.ToLower(strings.TrimSpace(string(r.Activation))))
	r.Optimizer = domain.OptimizerName(strings.ToLower(strings.TrimSpace(string(r.Optimizer))))
	return nil
}

// StartRunResponse is returned with 202 Accepted (or 200 when waiting)
type StartRunResponse struct {
	RunID     string           `json:"run_id"`
	Status    domain.RunStatus `json:"status"`
	StatusURL string           `json:"status_url"`
	ReportURL string           `json:"report_url"`
}

// ListRunsResponse lists every run known to the server
type ListRunsResponse struct {
	Runs  []domain.RunSummary `json:"runs"`
	Total int                 `json:"total"`
}

// HealthResponse is served on /healthz
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   int    `json:"queued_runs"`
}

// VersionResponse is served on /api/v1/version
type VersionResponse struct {
	contracts.VersionInfo
	Name      string    `json:"name"`
	Uptime    float64   `json:"uptime_seconds"`
	StartTime time.Time `json:"start_time"`
}

// RunDetail is the full view of one run
type RunDetail struct {
	domain.RunSummary
	Message   string                `json:"message,omitempty"`
	Steps     []events.StepSnapshot `json:"steps,omitempty"`
	StartedAt *time.Time            `json:"started_at,omitempty"`
	// Metrics holds the formatted holdout metrics once the run completed
	Metrics map[string]string `json:"metrics,omitempty"`
}

// DataPreview is the head of the preprocessed table, shown on the
// dashboard once preprocessing finished
type DataPreview struct {
	Message string     `json:"message"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	ETag    string     `json:"etag"`
}
