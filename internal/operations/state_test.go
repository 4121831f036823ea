package operations_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/operations"
	"salesdash/pkg/contracts/domain"
)

func TestOperationStatusRunStatus(t *testing.T) {
	tests := []struct {
		status operations.OperationStatusValue
		want   domain.RunStatus
	}{
		{operations.OperationStatusPending, domain.RunStatusIdle},
		{operations.OperationStatusRunning, domain.RunStatusTraining},
		{operations.OperationStatusCompleted, domain.RunStatusComplete},
		{operations.OperationStatusFailed, domain.RunStatusFailed},
		{operations.OperationStatusCancelled, domain.RunStatusFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.RunStatus())
			assert.Equal(t, tt.want.IsTerminal(), tt.status.IsFinished())
		})
	}
}

func TestOperationStateClone(t *testing.T) {
	state := operations.NewOperationState("run")
	step := operations.NewStepState("a", "A")
	step.SetMetadata("rows", 10)
	state.SetStage("a", step)
	state.SetContext("key", "value")
	state.Start()
	state.Complete()

	clone := state.Clone()
	clone.Steps["a"].Metadata["rows"] = 99
	clone.SetContext("key", "changed")

	assert.Equal(t, 10, state.GetStage("a").MetadataCopy()["rows"])
	v, _ := state.GetContext("key")
	assert.Equal(t, "value", v)
	assert.Equal(t, operations.OperationStatusCompleted, clone.Status)
	assert.NotNil(t, clone.EndTime)
}

func TestStepStateTransitions(t *testing.T) {
	step := operations.NewStepState("a", "A")
	assert.Equal(t, operations.StepStatusPending, step.CurrentStatus())

	step.Start()
	assert.Equal(t, operations.StepStatusActive, step.CurrentStatus())
	step.UpdateProgress(40, "working")
	assert.Equal(t, 40.0, step.Progress)

	step.Fail(errors.New("broken"))
	assert.Equal(t, operations.StepStatusFailed, step.CurrentStatus())
	assert.EqualError(t, step.Error, "broken")

	skipped := operations.NewStepState("b", "B")
	skipped.Skip("dependency failed")
	assert.Equal(t, operations.StepStatusSkipped, skipped.CurrentStatus())
	assert.Equal(t, "dependency failed", skipped.Message)
}

func TestOperationErrors(t *testing.T) {
	wrapped := fmt.Errorf("%w: abc", operations.ErrRunNotFound)
	assert.ErrorIs(t, wrapped, operations.ErrRunNotFound)
	assert.NotErrorIs(t, wrapped, operations.ErrRunNotComplete)
	assert.Equal(t, operations.ErrorTypeNotFound, operations.GetErrorType(wrapped))

	cause := errors.New("disk full")
	execErr := operations.NewExecutionError("preprocessing", cause, true)
	assert.ErrorIs(t, execErr, cause)
	assert.True(t, operations.IsRetryable(execErr))
	assert.Contains(t, execErr.Error(), "preprocessing")
	assert.Contains(t, execErr.Error(), "disk full")

	plain := operations.WrapError(cause, "split", "split failed")
	require.NotNil(t, plain)
	assert.Equal(t, "split", plain.Step)
	assert.Equal(t, operations.ErrorTypeExecution, plain.Type)
	assert.False(t, operations.IsRetryable(plain))
	assert.Nil(t, operations.WrapError(nil, "split", "unused"))

	assert.Equal(t, operations.ErrorTypeTimeout, operations.GetErrorType(operations.NewTimeoutError("training", "1s")))
	assert.Equal(t, operations.ErrorType(""), operations.GetErrorType(nil))
}

func TestProgressTracker(t *testing.T) {
	p := operations.NewProgressTracker(4)
	_, ok := p.ETA()
	assert.False(t, ok)
	assert.Equal(t, "calculating...", p.ETAString())

	p.Update(1)
	assert.Equal(t, 25, p.Percent())
	eta, ok := p.ETA()
	require.True(t, ok)
	assert.GreaterOrEqual(t, eta, time.Duration(0))

	p.Update(9)
	assert.Equal(t, 100, p.Percent())
}
