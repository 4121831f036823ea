package operations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/operations"
	"salesdash/internal/operations/testutil"
)

func stepIDs(steps []operations.Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID()
	}
	return ids
}

func TestRegistryRegister(t *testing.T) {
	r := operations.NewRegistry()

	require.NoError(t, r.Register(testutil.CreateSuccessfulStage("a", "A")))
	assert.Error(t, r.Register(testutil.CreateSuccessfulStage("a", "A again")))
	assert.Error(t, r.Register(testutil.CreateSuccessfulStage("", "No ID")))
	assert.Error(t, r.Register(nil))

	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("b"))
	assert.Equal(t, 1, r.Count())

	step, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "A", step.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestRegistryDependencyOrder(t *testing.T) {
	tests := []struct {
		name    string
		stages  []*testutil.MockStage
		want    []string
		wantErr bool
	}{
		{
			name:   "run steps registered in order",
			stages: testutil.CreateRunStages(nil),
			want: []string{
				operations.StepIDAcquisition,
				operations.StepIDPreprocessing,
				operations.StepIDSplit,
				operations.StepIDTraining,
				operations.StepIDReporting,
			},
		},
		{
			name: "registered in reverse",
			stages: []*testutil.MockStage{
				testutil.CreateSuccessfulStage("c", "C", "b"),
				testutil.CreateSuccessfulStage("b", "B", "a"),
				testutil.CreateSuccessfulStage("a", "A"),
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "independent steps keep registration order",
			stages: []*testutil.MockStage{
				testutil.CreateSuccessfulStage("z", "Z"),
				testutil.CreateSuccessfulStage("y", "Y"),
				testutil.CreateSuccessfulStage("x", "X", "z"),
			},
			want: []string{"z", "y", "x"},
		},
		{
			name: "cycle",
			stages: []*testutil.MockStage{
				testutil.CreateSuccessfulStage("a", "A", "b"),
				testutil.CreateSuccessfulStage("b", "B", "a"),
			},
			wantErr: true,
		},
		{
			name: "unknown dependency",
			stages: []*testutil.MockStage{
				testutil.CreateSuccessfulStage("a", "A", "ghost"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := operations.NewRegistry()
			for _, s := range tt.stages {
				require.NoError(t, r.Register(s))
			}

			ordered, err := r.GetDependencyOrder()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, stepIDs(ordered))
		})
	}
}
