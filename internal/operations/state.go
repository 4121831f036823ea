package operations

import (
	"fmt"
	"sync"
	"time"

	"salesdash/pkg/contracts/domain"
)

// OperationStatusValue represents the overall operation status enum
type OperationStatusValue string

// OperationStatus is an alias for OperationStatusValue
type OperationStatus = OperationStatusValue

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// RunStatus maps the internal status onto the dashboard state machine.
// A cancelled run never produces a report, so it shows as failed.
func (s OperationStatusValue) RunStatus() domain.RunStatus {
	switch s {
	case OperationStatusRunning:
		return domain.RunStatusTraining
	case OperationStatusCompleted:
		return domain.RunStatusComplete
	case OperationStatusFailed, OperationStatusCancelled:
		return domain.RunStatusFailed
	default:
		return domain.RunStatusIdle
	}
}

// IsFinished reports whether the status is final
func (s OperationStatusValue) IsFinished() bool {
	return s == OperationStatusCompleted || s == OperationStatusFailed || s == OperationStatusCancelled
}

// OperationState represents the complete state of a run
type OperationState struct {
	mu sync.RWMutex

	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`

	Steps map[string]*StepState `json:"steps"`

	// Context passes data between steps
	Context map[string]interface{} `json:"-"`

	// Config holds the request parameters
	Config map[string]interface{} `json:"config"`

	Error error `json:"-"`
}

// NewOperationState creates a new operation state
func NewOperationState(id string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
		Config:    make(map[string]interface{}),
	}
}

// Start marks the operation as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the operation as completed
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail marks the operation as failed
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	p.Error = err
}

// Cancel marks the operation as cancelled
func (p *OperationState) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCancelled
}

// CurrentStatus returns the status under the read lock
func (p *OperationState) CurrentStatus() OperationStatusValue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status
}

// GetStage returns the state of a specific Step
func (p *OperationState) GetStage(stageID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Steps[stageID]
}

// SetStage updates the state of a specific Step
func (p *OperationState) SetStage(stageID string, state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Steps[stageID] = state
}

// GetContext retrieves a value from the operation context
func (p *OperationState) GetContext(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.Context[key]
	return val, ok
}

// SetContext sets a value in the operation context
func (p *OperationState) SetContext(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Context[key] = value
}

// DeleteContext drops a value that later steps no longer need
func (p *OperationState) DeleteContext(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Context, key)
}

// GetConfig retrieves a configuration value
func (p *OperationState) GetConfig(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.Config[key]
	return val, ok
}

// SetConfig sets a configuration value
func (p *OperationState) SetConfig(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Config[key] = value
}

// Duration returns the duration of the operation execution
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// Clone creates a copy of the operation state. Context values are shared,
// not copied.
func (p *OperationState) Clone() *OperationState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	clone := &OperationState{
		ID:        p.ID,
		Status:    p.Status,
		StartTime: p.StartTime,
		Steps:     make(map[string]*StepState, len(p.Steps)),
		Context:   make(map[string]interface{}, len(p.Context)),
		Config:    make(map[string]interface{}, len(p.Config)),
		Error:     p.Error,
	}

	if p.EndTime != nil {
		endTime := *p.EndTime
		clone.EndTime = &endTime
	}

	for k, v := range p.Steps {
		v.mu.RLock()
		stepCopy := &StepState{
			ID:        v.ID,
			Name:      v.Name,
			Status:    v.Status,
			StartTime: v.StartTime,
			EndTime:   v.EndTime,
			Progress:  v.Progress,
			Message:   v.Message,
			Error:     v.Error,
			Metadata:  make(map[string]interface{}, len(v.Metadata)),
		}
		for mk, mv := range v.Metadata {
			stepCopy.Metadata[mk] = mv
		}
		v.mu.RUnlock()
		clone.Steps[k] = stepCopy
	}

	for k, v := range p.Context {
		clone.Context[k] = v
	}
	for k, v := range p.Config {
		clone.Config[k] = v
	}

	return clone
}

// contextValue fetches a typed value left by an earlier step
func contextValue[T any](state *OperationState, key string) (T, error) {
	var zero T
	raw, ok := state.GetContext(key)
	if !ok {
		return zero, NewDependencyError("", key, fmt.Sprintf("%s not found in run context", key))
	}
	v, ok := raw.(T)
	if !ok {
		return zero, NewFatalError(fmt.Sprintf("%s has unexpected type %T", key, raw), nil)
	}
	return v, nil
}

// hyperparameters reads the run configuration
func hyperparameters(state *OperationState) (domain.Hyperparameters, error) {
	raw, ok := state.GetConfig(ContextKeyHyperparameters)
	if !ok {
		return domain.Hyperparameters{}, NewValidationError("", "hyperparameters missing from run config")
	}
	hp, ok := raw.(domain.Hyperparameters)
	if !ok {
		return domain.Hyperparameters{}, NewFatalError(fmt.Sprintf("hyperparameters have unexpected type %T", raw), nil)
	}
	return hp, nil
}
