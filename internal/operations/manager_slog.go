package operations

import (
	"context"
	"log/slog"
	"time"
)

func (m *Manager) logOperationStart(ctx context.Context, req RunRequest) {
	hp := req.Hyperparameters
	slog.InfoContext(ctx, "run_start",
		slog.Int("epochs", hp.Epochs),
		slog.Int("hidden_layers", hp.HiddenLayers),
		slog.Int("neurons", hp.Neurons),
		slog.Float64("learning_rate", hp.LearningRate),
		slog.String("activation", string(hp.Activation)),
		slog.String("optimizer", string(hp.Optimizer)),
		slog.Float64("dropout", hp.Dropout))
}

func (m *Manager) logOperationComplete(ctx context.Context, duration time.Duration, status string) {
	slog.InfoContext(ctx, "run_complete",
		slog.String("status", status),
		slog.Duration("duration", duration))
}

func (m *Manager) logOperationError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "run_error",
		slog.String("error", errorString(err)))
}

func (m *Manager) logStageStart(ctx context.Context, stepID string) {
	slog.InfoContext(ctx, "step_start",
		slog.String("step", stepID))
}

func (m *Manager) logStageComplete(ctx context.Context, stepID string, duration time.Duration) {
	slog.InfoContext(ctx, "step_complete",
		slog.String("step", stepID),
		slog.Duration("duration", duration))
}

func (m *Manager) logStageError(ctx context.Context, stepID string, err error) {
	slog.ErrorContext(ctx, "step_error",
		slog.String("step", stepID),
		slog.String("error_type", string(GetErrorType(err))),
		slog.String("error", errorString(err)))
}

func errorString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
