package operations

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"salesdash/internal/exporter"
	"salesdash/internal/report"
	"salesdash/pkg/contracts/domain"
)

// Run step identifiers
const (
	StepIDAcquisition   = "acquisition"
	StepIDPreprocessing = "preprocessing"
	StepIDSplit         = "split"
	StepIDTraining      = "training"
	StepIDReporting     = "reporting"
)

// Run step names
const (
	StepNameAcquisition   = "Data Acquisition"
	StepNamePreprocessing = "Feature Pipeline"
	StepNameSplit         = "Train/Holdout Split"
	StepNameTraining      = "Model Training"
	StepNameReporting     = "Reporting"
)

// PreprocessingCompleteMessage is reported once the feature table is on disk
const PreprocessingCompleteMessage = "Data Preprocessing Complete"

// Context keys for operation state
const (
	ContextKeyHyperparameters = "hyperparameters"
	ContextKeyFeatures        = "features"
	ContextKeySplit           = "split"
	ContextKeyNetwork         = "network"
	ContextKeyHistory         = "history"
	ContextKeyResult          = "result"
)

// WebSocket event types
const (
	EventTypeRunSnapshot = "run:snapshot"
	EventTypeRunEpoch    = "run:epoch"
)

// Default timeouts
const (
	DefaultStageTimeout         = 30 * time.Minute
	DefaultAcquisitionTimeout   = 15 * time.Minute
	DefaultPreprocessingTimeout = 15 * time.Minute
	DefaultSplitTimeout         = 5 * time.Minute
	DefaultTrainingTimeout      = 2 * time.Hour
	DefaultReportingTimeout     = 10 * time.Minute
)

// RetryConfig defines retry behavior for steps
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration. A failed step
// fails the run, so there is a single attempt.
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  1,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// RunRequest asks for one training run
type RunRequest struct {
	ID              string                 `json:"id"`
	Hyperparameters domain.Hyperparameters `json:"hyperparameters"`
	TraceID         string                 `json:"trace_id,omitempty"`
}

// OperationResponse represents the response from a run execution
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`

	// State is the final operation state, context included
	State *OperationState `json:"-"`
}

// FeatureSet is the numeric output of the feature pipeline
type FeatureSet struct {
	X        *mat.Dense
	Names    []string
	Target   []float64
	Scaled   bool
	Artifact exporter.Artifact
}

// RunResult is what a completed run leaves behind
type RunResult struct {
	Report       *report.Report
	Charts       map[string][]byte
	Preprocessed exporter.Artifact
}
