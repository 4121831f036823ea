package operations

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"salesdash/internal/nn"
	"salesdash/pkg/contracts/domain"
	"salesdash/pkg/contracts/events"
)

// Step snapshot statuses
const (
	snapshotStepPending   = "pending"
	snapshotStepRunning   = "running"
	snapshotStepCompleted = "completed"
	snapshotStepFailed    = "failed"
	snapshotStepSkipped   = "skipped"
)

// StatusBroadcaster is the single authority for all run status updates.
// It keeps the latest snapshot of every run and pushes each change to the
// hub.
type StatusBroadcaster struct {
	mu       sync.RWMutex
	runs     map[string]*events.RunSnapshot
	hub      WebSocketHub
	logger   *slog.Logger
	updates  chan updateRequest
	stop     chan struct{}
	stopOnce sync.Once
}

type updateRequest struct {
	runID      string
	updateFunc func(*events.RunSnapshot)
	done       chan struct{}
}

// NewStatusBroadcaster creates a new status broadcaster
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		runs:    make(map[string]*events.RunSnapshot),
		hub:     hub,
		logger:  logger.With(slog.String("component", "status_broadcaster")),
		updates: make(chan updateRequest, 100),
		stop:    make(chan struct{}),
	}

	go sb.processUpdates()

	return sb
}

// processUpdates applies updates one at a time
func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	defer sb.mu.Unlock()

	now := time.Now()
	snapshot, exists := sb.runs[req.runID]
	if !exists {
		snapshot = &events.RunSnapshot{
			RunID:     req.runID,
			Status:    string(domain.RunStatusIdle),
			StartedAt: now,
			Steps:     []events.StepSnapshot{},
		}
		sb.runs[req.runID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = now

	if len(snapshot.Steps) > 0 {
		total := 0
		for _, step := range snapshot.Steps {
			total += step.Progress
		}
		snapshot.Progress = total / len(snapshot.Steps)
	}

	if domain.RunStatus(snapshot.Status).IsTerminal() && snapshot.CompletedAt == nil {
		snapshot.CompletedAt = &now
	}

	sb.broadcast(copySnapshot(snapshot))
}

// broadcast sends the complete snapshot to all connected clients
func (sb *StatusBroadcaster) broadcast(snapshot *events.RunSnapshot) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting run snapshot",
		slog.String("run_id", snapshot.RunID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep))

	sb.hub.BroadcastUpdate(EventTypeRunSnapshot, snapshot.RunID, snapshot.Status, snapshot)
}

// UpdateStatus applies updateFunc to the run snapshot and waits until the
// change has been broadcast
func (sb *StatusBroadcaster) UpdateStatus(runID string, updateFunc func(*events.RunSnapshot)) {
	req := updateRequest{
		runID:      runID,
		updateFunc: updateFunc,
		done:       make(chan struct{}),
	}

	select {
	case sb.updates <- req:
	case <-sb.stop:
		return
	}
	select {
	case <-req.done:
	case <-sb.stop:
	}
}

// CreateOperation resets the run snapshot to idle with the given steps
func (sb *StatusBroadcaster) CreateOperation(runID string, steps []Step) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Status = string(domain.RunStatusIdle)
		snapshot.Progress = 0
		snapshot.CurrentStep = ""
		snapshot.Error = ""
		snapshot.CompletedAt = nil
		snapshot.Steps = make([]events.StepSnapshot, len(steps))
		for i, step := range steps {
			snapshot.Steps[i] = events.StepSnapshot{
				ID:     step.ID(),
				Name:   step.Name(),
				Status: snapshotStepPending,
			}
		}
		snapshot.Message = "Run queued"
	})
}

// StartOperation marks a run as training
func (sb *StatusBroadcaster) StartOperation(runID string) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Status = string(domain.RunStatusTraining)
		snapshot.Message = "Run started"
	})
}

// UpdateStepProgress updates a specific step's progress
func (sb *StatusBroadcaster) UpdateStepProgress(runID, stepID string, progress int, message string) {
	sb.UpdateStepWithMetadata(runID, stepID, progress, message, nil)
}

// UpdateStepWithMetadata updates a specific step's progress with metadata
func (sb *StatusBroadcaster) UpdateStepWithMetadata(runID, stepID string, progress int, message string, metadata map[string]interface{}) {
	progress = min(max(progress, 0), 100)
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		step := findStep(snapshot, stepID)
		if step == nil {
			snapshot.Steps = append(snapshot.Steps, events.StepSnapshot{ID: stepID, Name: stepID})
			step = &snapshot.Steps[len(snapshot.Steps)-1]
		}

		// progress never moves backwards while a step is running
		if !(step.Status == snapshotStepRunning && progress < step.Progress) {
			step.Progress = progress
		}
		step.Message = message
		if metadata != nil {
			step.Metadata = metadata
		}
		if progress >= 100 {
			step.Status = snapshotStepCompleted
		} else {
			step.Status = snapshotStepRunning
			snapshot.CurrentStep = step.Name
		}
	})
}

// CompleteStep marks a step as completed
func (sb *StatusBroadcaster) CompleteStep(runID, stepID string, message string) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		if step := findStep(snapshot, stepID); step != nil {
			step.Status = snapshotStepCompleted
			step.Progress = 100
			step.Message = message
		}
	})
}

// FailStep marks a step as failed
func (sb *StatusBroadcaster) FailStep(runID, stepID string, err error) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		if step := findStep(snapshot, stepID); step != nil {
			step.Status = snapshotStepFailed
			step.Error = err.Error()
		}
	})
}

// SkipStep marks a step as skipped
func (sb *StatusBroadcaster) SkipStep(runID, stepID string, reason string) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		if step := findStep(snapshot, stepID); step != nil {
			step.Status = snapshotStepSkipped
			step.Message = reason
		}
	})
}

// CompleteOperation marks a run as complete
func (sb *StatusBroadcaster) CompleteOperation(runID string, message string) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Status = string(domain.RunStatusComplete)
		snapshot.CurrentStep = ""
		snapshot.Message = message
		for i := range snapshot.Steps {
			snapshot.Steps[i].Status = snapshotStepCompleted
			snapshot.Steps[i].Progress = 100
		}
	})
}

// FailOperation marks a run as failed. Pending steps are marked skipped.
func (sb *StatusBroadcaster) FailOperation(runID string, err error) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Status = string(domain.RunStatusFailed)
		snapshot.Error = err.Error()
		snapshot.CurrentStep = ""
		snapshot.Message = "Run failed"
		for i := range snapshot.Steps {
			if snapshot.Steps[i].Status == snapshotStepPending {
				snapshot.Steps[i].Status = snapshotStepSkipped
			}
		}
	})
}

// BroadcastEpoch sends the metrics of one finished epoch
func (sb *StatusBroadcaster) BroadcastEpoch(runID string, r nn.EpochResult) {
	if sb.hub == nil {
		return
	}
	sb.hub.BroadcastUpdate(EventTypeRunEpoch, runID, string(domain.RunStatusTraining), events.EpochEvent{
		RunID:   runID,
		Epoch:   r.Epoch,
		Epochs:  r.Epochs,
		Loss:    r.Loss,
		MAE:     r.MAE,
		ValLoss: r.ValLoss,
		ValMAE:  r.ValMAE,
	})
}

// GetSnapshot returns a copy of the current snapshot of a run
func (sb *StatusBroadcaster) GetSnapshot(runID string) (*events.RunSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.runs[runID]
	if !exists {
		return nil, false
	}
	return copySnapshot(snapshot), true
}

// GetAllSnapshots returns copies of every known run snapshot
func (sb *StatusBroadcaster) GetAllSnapshots() []*events.RunSnapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshots := make([]*events.RunSnapshot, 0, len(sb.runs))
	for _, snapshot := range sb.runs {
		snapshots = append(snapshots, copySnapshot(snapshot))
	}
	return snapshots
}

// Forget drops the snapshot of a run
func (sb *StatusBroadcaster) Forget(runID string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	delete(sb.runs, runID)
}

// CleanupOldOperations removes finished runs older than maxAge
func (sb *StatusBroadcaster) CleanupOldOperations(ctx context.Context, maxAge time.Duration) int {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, snapshot := range sb.runs {
		if snapshot.CompletedAt != nil && now.Sub(*snapshot.CompletedAt) > maxAge {
			delete(sb.runs, id)
			removed++
			sb.logger.DebugContext(ctx, "cleaned up old run snapshot",
				slog.String("run_id", id),
				slog.String("status", snapshot.Status))
		}
	}
	return removed
}

// Stop shuts down the update loop. Later updates are dropped.
func (sb *StatusBroadcaster) Stop() {
	sb.stopOnce.Do(func() { close(sb.stop) })
}

func findStep(snapshot *events.RunSnapshot, stepID string) *events.StepSnapshot {
	for i := range snapshot.Steps {
		if snapshot.Steps[i].ID == stepID {
			return &snapshot.Steps[i]
		}
	}
	return nil
}

func copySnapshot(s *events.RunSnapshot) *events.RunSnapshot {
	c := *s
	c.Steps = make([]events.StepSnapshot, len(s.Steps))
	copy(c.Steps, s.Steps)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
