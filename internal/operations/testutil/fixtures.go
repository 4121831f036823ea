package testutil

import (
	"context"
	"time"

	"salesdash/internal/operations"
	"salesdash/pkg/contracts/domain"
)

// CreateTestConfig returns a manager config with short timeouts
func CreateTestConfig() *operations.Config {
	return operations.NewConfigBuilder().
		WithStageTimeout(operations.StepIDAcquisition, 5*time.Second).
		WithStageTimeout(operations.StepIDPreprocessing, 5*time.Second).
		WithStageTimeout(operations.StepIDSplit, 5*time.Second).
		WithStageTimeout(operations.StepIDTraining, 10*time.Second).
		WithStageTimeout(operations.StepIDReporting, 5*time.Second).
		Build()
}

// CreateSuccessfulStage creates a step that always succeeds
func CreateSuccessfulStage(id, name string, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
	}
}

// CreateFailingStage creates a step whose Execute returns err
func CreateFailingStage(id, name string, err error, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(context.Context, *operations.OperationState) error {
			return err
		},
	}
}

// CreateSlowStage creates a step that sleeps for d or until cancelled
func CreateSlowStage(id, name string, d time.Duration, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, _ *operations.OperationState) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// CreateRunStages returns five succeeding steps chained like a real run.
// The last one stores result under the result key.
func CreateRunStages(result *operations.RunResult) []*MockStage {
	return []*MockStage{
		CreateSuccessfulStage(operations.StepIDAcquisition, operations.StepNameAcquisition),
		CreateSuccessfulStage(operations.StepIDPreprocessing, operations.StepNamePreprocessing, operations.StepIDAcquisition),
		CreateSuccessfulStage(operations.StepIDSplit, operations.StepNameSplit, operations.StepIDPreprocessing),
		CreateSuccessfulStage(operations.StepIDTraining, operations.StepNameTraining, operations.StepIDSplit),
		{
			IDValue:           operations.StepIDReporting,
			NameValue:         operations.StepNameReporting,
			DependenciesValue: []string{operations.StepIDTraining},
			ExecuteFunc: func(_ context.Context, state *operations.OperationState) error {
				state.SetContext(operations.ContextKeyResult, result)
				return nil
			},
		},
	}
}

// CreateRunRequest returns a request with the default form values
func CreateRunRequest(id string) operations.RunRequest {
	return operations.RunRequest{
		ID:              id,
		Hyperparameters: domain.DefaultHyperparameters(),
	}
}
