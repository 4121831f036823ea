package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"salesdash/internal/infrastructure"
)

// Manager orchestrates run execution
type Manager struct {
	registry    *Registry
	config      *Config
	hub         WebSocketHub
	broadcaster *StatusBroadcaster
	tracer      *OperationTracer
}

// NewManager creates a new run manager
func NewManager(hub WebSocketHub, registry *Registry, config *Config) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}

	return &Manager{
		registry:    registry,
		config:      config,
		hub:         hub,
		broadcaster: NewStatusBroadcaster(hub, slog.Default()),
	}
}

// RegisterStage registers a Step with the manager
func (m *Manager) RegisterStage(step Step) error {
	return m.registry.Register(step)
}

// SetConfig updates the run configuration
func (m *Manager) SetConfig(config *Config) {
	if config != nil {
		m.config = config
	}
}

// SetTracer attaches tracing and business metrics
func (m *Manager) SetTracer(tracer *OperationTracer) {
	m.tracer = tracer
}

// GetRegistry returns the registry for accessing registered steps
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Execute runs every registered step in dependency order for one run
func (m *Manager) Execute(ctx context.Context, req RunRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	state := NewOperationState(req.ID)
	state.SetConfig(ContextKeyHyperparameters, req.Hyperparameters)

	ctx = infrastructure.WithRunID(ctx, req.ID)
	if req.TraceID != "" {
		ctx = infrastructure.WithTraceID(ctx, req.TraceID)
	}

	ctx, span := m.tracer.TraceRun(ctx, req.ID, req.Hyperparameters)
	m.logOperationStart(ctx, req)

	steps, err := m.registry.GetDependencyOrder()
	if err == nil && len(steps) == 0 {
		err = fmt.Errorf("no steps registered")
	}
	if err != nil {
		m.logOperationError(ctx, err)
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
		m.tracer.EndRun(ctx, span, req.ID, state.Duration(), err)
		return m.createResponse(state), err
	}

	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}
	m.broadcaster.CreateOperation(req.ID, steps)

	state.Start()
	m.broadcaster.StartOperation(req.ID)

	err = m.executeSequential(ctx, state, steps)

	switch {
	case err != nil && GetErrorType(err) == ErrorTypeCancellation:
		state.Fail(err)
		state.Cancel()
		m.broadcaster.FailOperation(req.ID, err)
	case err != nil:
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
	default:
		state.Complete()
		m.broadcaster.CompleteOperation(req.ID, "Run completed successfully")
	}

	m.logOperationComplete(ctx, state.Duration(), string(state.CurrentStatus()))
	m.tracer.EndRun(ctx, span, req.ID, state.Duration(), err)
	return m.createResponse(state), err
}

// executeSequential executes steps one by one. The first failed step skips
// every step that depends on it and ends the run.
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "run_interrupted",
				slog.String("step", step.ID()),
				slog.String("reason", err.Error()))
			m.skipRemaining(state, steps[i:], "Run interrupted")
			for _, rest := range steps[i:] {
				m.broadcaster.SkipStep(state.ID, rest.ID(), "Run interrupted")
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return NewTimeoutError(step.ID(), "run deadline")
			}
			return NewCancellationError(step.ID())
		}

		stepState := state.GetStage(step.ID())
		if stepState.CurrentStatus() == StepStatusSkipped {
			continue
		}

		slog.InfoContext(ctx, "executing_step",
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStage(ctx, state, step); err != nil {
			m.logStageError(ctx, step.ID(), err)
			m.skipDependentStages(state, steps, step.ID())
			return err
		}
	}
	return nil
}

// executeStage executes a single Step with timeout and retry logic
func (m *Manager) executeStage(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStage(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found", nil)
	}

	if err := m.checkDependencies(state, step); err != nil {
		stepState.Skip(fmt.Sprintf("Dependencies not met: %v", err))
		m.broadcaster.SkipStep(state.ID, step.ID(), err.Error())
		return err
	}

	if err := step.Validate(state); err != nil {
		verr := NewValidationError(step.ID(), err.Error())
		stepState.Fail(verr)
		m.broadcaster.FailStep(state.ID, step.ID(), verr)
		return verr
	}

	timeout := m.config.GetStageTimeout(step.ID())
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	retryConfig := m.config.RetryConfig
	attempts := max(retryConfig.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		m.logStageStart(ctx, step.ID())
		stepState.Start()
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), 0, "Step started")

		spanCtx, span := m.tracer.TraceStep(stageCtx, state.ID, step.ID())
		start := time.Now()
		err := step.Execute(spanCtx, state)
		duration := time.Since(start)
		m.tracer.EndStep(spanCtx, span, step.ID(), duration, err)

		if err == nil {
			m.logStageComplete(ctx, step.ID(), duration)
			stepState.Complete()
			m.broadcaster.CompleteStep(state.ID, step.ID(), fmt.Sprintf("Completed in %s", duration.Round(time.Millisecond)))
			return nil
		}

		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			err = NewCancellationError(step.ID())
		case errors.Is(stageCtx.Err(), context.DeadlineExceeded):
			err = NewTimeoutError(step.ID(), timeout.String())
		}

		if !IsRetryable(err) || attempt >= attempts {
			wrapped := WrapError(err, step.ID(), "step execution failed")
			stepState.Fail(wrapped)
			m.broadcaster.FailStep(state.ID, step.ID(), wrapped)
			return wrapped
		}

		delay := m.calculateRetryDelay(attempt, retryConfig)
		slog.WarnContext(ctx, "step_retry",
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-time.After(delay):
		case <-stageCtx.Done():
			terr := NewTimeoutError(step.ID(), timeout.String())
			stepState.Fail(terr)
			m.broadcaster.FailStep(state.ID, step.ID(), terr)
			return terr
		}
	}
}

// skipDependentStages marks all steps that depend on the failed Step as skipped
func (m *Manager) skipDependentStages(state *OperationState, steps []Step, failedID string) {
	for _, step := range steps {
		for _, dep := range step.GetDependencies() {
			if dep != failedID {
				continue
			}
			stepState := state.GetStage(step.ID())
			if stepState != nil && stepState.CurrentStatus() == StepStatusPending {
				reason := fmt.Sprintf("Dependency %s failed", failedID)
				stepState.Skip(reason)
				m.broadcaster.SkipStep(state.ID, step.ID(), reason)
				m.skipDependentStages(state, steps, step.ID())
			}
			break
		}
	}
}

func (m *Manager) skipRemaining(state *OperationState, steps []Step, reason string) {
	for _, step := range steps {
		if stepState := state.GetStage(step.ID()); stepState != nil && stepState.CurrentStatus() == StepStatusPending {
			stepState.Skip(reason)
		}
	}
}

// checkDependencies verifies that all dependencies are satisfied
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.GetDependencies() {
		depState := state.GetStage(dep)
		if depState == nil {
			return NewDependencyError(step.ID(), dep, fmt.Sprintf("dependency %s not found", dep))
		}
		if status := depState.CurrentStatus(); status != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep, fmt.Sprintf("dependency %s not completed (status: %s)", dep, status))
		}
	}
	return nil
}

// calculateRetryDelay calculates the delay before next retry
func (m *Manager) calculateRetryDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * config.Multiplier)
	}
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// createResponse creates a run response from state
func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	snapshot := state.Clone()
	resp := &OperationResponse{
		ID:       snapshot.ID,
		Status:   snapshot.Status,
		Duration: snapshot.Duration(),
		Steps:    snapshot.Steps,
		State:    snapshot,
	}
	if snapshot.Error != nil {
		resp.Error = snapshot.Error.Error()
	}
	return resp
}
