package nn

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"salesdash/pkg/contracts/domain"
)

func testHyperparameters() domain.Hyperparameters {
	hp := domain.DefaultHyperparameters()
	hp.HiddenLayers = 1
	hp.Neurons = 32
	hp.Dropout = 0
	hp.LearningRate = 0.01
	hp.Epochs = 10
	return hp
}

// linearData returns y = 3*x0 - 2*x1 + 1 over random inputs
func linearData(rows int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(rows, 2, nil)
	y := make([]float64, rows)
	for i := 0; i < rows; i++ {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		x.Set(i, 0, a)
		x.Set(i, 1, b)
		y[i] = 3*a - 2*b + 1
	}
	return x, y
}

func TestBuildLayerLayout(t *testing.T) {
	for layers := 1; layers <= 5; layers++ {
		hp := domain.DefaultHyperparameters()
		hp.HiddenLayers = layers

		n, err := Build(12, hp, 42)
		require.NoError(t, err)

		all := n.Layers()
		require.Len(t, all, 3*layers+1)

		dense := 0
		for i, l := range all[:len(all)-1] {
			switch i % 3 {
			case 0:
				assert.Equal(t, "Dense", l.Kind())
				assert.Equal(t, hp.Neurons, l.Units())
				dense++
			case 1:
				assert.Equal(t, "BatchNormalization", l.Kind())
			case 2:
				assert.Equal(t, "Dropout", l.Kind())
				assert.Equal(t, hp.Dropout, l.(*Dropout).Rate())
			}
		}
		assert.Equal(t, layers, dense)

		out, ok := all[len(all)-1].(*Dense)
		require.True(t, ok)
		assert.Equal(t, 1, out.Units())
		assert.Equal(t, "linear", out.Activation().Name)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Hyperparameters)
		input  int
	}{
		{"unknown activation", func(hp *domain.Hyperparameters) { hp.Activation = "softplus" }, 4},
		{"unknown optimizer", func(hp *domain.Hyperparameters) { hp.Optimizer = "adagrad" }, 4},
		{"zero learning rate", func(hp *domain.Hyperparameters) { hp.LearningRate = 0 }, 4},
		{"no hidden layers", func(hp *domain.Hyperparameters) { hp.HiddenLayers = 0 }, 4},
		{"dropout of one", func(hp *domain.Hyperparameters) { hp.Dropout = 1 }, 4},
		{"no inputs", func(*domain.Hyperparameters) {}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hp := domain.DefaultHyperparameters()
			tt.mutate(&hp)
			_, err := Build(tt.input, hp, 42)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	hp := domain.DefaultHyperparameters()
	a, err := Build(5, hp, 7)
	require.NoError(t, err)
	b, err := Build(5, hp, 7)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.FirstLayerWeights(), b.FirstLayerWeights()))

	r, c := a.FirstLayerWeights().Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, hp.Neurons, c)
}

func TestFitRecordsOneEntryPerEpoch(t *testing.T) {
	for _, opt := range []domain.OptimizerName{domain.OptimizerAdam, domain.OptimizerSGD, domain.OptimizerRMSprop} {
		t.Run(string(opt), func(t *testing.T) {
			x, y := linearData(200, 1)
			xv, yv := linearData(50, 2)

			hp := testHyperparameters()
			hp.Optimizer = opt
			n, err := Build(2, hp, 42)
			require.NoError(t, err)

			var seen []int
			h, err := n.Fit(context.Background(), x, y, xv, yv, FitOptions{
				Epochs:    10,
				BatchSize: 64,
				OnEpoch:   func(r EpochResult) { seen = append(seen, r.Epoch) },
			})
			require.NoError(t, err)

			assert.Equal(t, 10, h.Epochs())
			assert.Len(t, h.Loss, 10)
			assert.Len(t, h.MAE, 10)
			assert.Len(t, h.ValLoss, 10)
			assert.Len(t, h.ValMAE, 10)
			assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, seen)
		})
	}
}

func TestFitReducesLoss(t *testing.T) {
	for _, opt := range []domain.OptimizerName{domain.OptimizerAdam, domain.OptimizerSGD, domain.OptimizerRMSprop} {
		t.Run(string(opt), func(t *testing.T) {
			x, y := linearData(256, 3)
			xv, yv := linearData(64, 4)

			hp := testHyperparameters()
			hp.Optimizer = opt
			n, err := Build(2, hp, 42)
			require.NoError(t, err)

			h, err := n.Fit(context.Background(), x, y, xv, yv, FitOptions{Epochs: 30, BatchSize: 32})
			require.NoError(t, err)
			assert.Less(t, h.Loss[len(h.Loss)-1], h.Loss[0])
			assert.Less(t, h.ValLoss[len(h.ValLoss)-1], h.ValLoss[0])
		})
	}
}

func TestFitNonFiniteLoss(t *testing.T) {
	x, _ := linearData(64, 5)
	y := make([]float64, 64)
	for i := range y {
		y[i] = 1e200
	}

	n, err := Build(2, testHyperparameters(), 42)
	require.NoError(t, err)

	h, err := n.Fit(context.Background(), x, y, nil, nil, FitOptions{Epochs: 10, BatchSize: 64})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonFinite))
	assert.Equal(t, 0, h.Epochs())
}

func TestFitCancelled(t *testing.T) {
	x, y := linearData(64, 6)
	n, err := Build(2, testHyperparameters(), 42)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = n.Fit(ctx, x, y, nil, nil, FitOptions{Epochs: 10, BatchSize: 16})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFitShapeMismatch(t *testing.T) {
	x, y := linearData(10, 7)
	n, err := Build(3, testHyperparameters(), 42)
	require.NoError(t, err)

	_, err = n.Fit(context.Background(), x, y, nil, nil, FitOptions{Epochs: 1, BatchSize: 4})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSummaryParamCounts(t *testing.T) {
	hp := domain.DefaultHyperparameters()
	hp.HiddenLayers = 2
	hp.Neurons = 32

	n, err := Build(10, hp, 42)
	require.NoError(t, err)
	s := n.Summary()

	require.Len(t, s.Layers, 7)
	assert.Equal(t, LayerSummary{Name: "dense", Type: "Dense", OutputShape: "(None, 32)", Params: 352}, s.Layers[0])
	assert.Equal(t, "batch_normalization", s.Layers[1].Name)
	assert.Equal(t, 128, s.Layers[1].Params)
	assert.Equal(t, "dropout", s.Layers[2].Name)
	assert.Equal(t, 0, s.Layers[2].Params)
	assert.Equal(t, "dense_1", s.Layers[3].Name)
	assert.Equal(t, 1056, s.Layers[3].Params)
	assert.Equal(t, LayerSummary{Name: "dense_2", Type: "Dense", OutputShape: "(None, 1)", Params: 33}, s.Layers[6])

	assert.Equal(t, 1697, s.TotalParams)
	assert.Equal(t, 128, s.NonTrainableParams)
	assert.Equal(t, 1569, s.TrainableParams)
}

func TestPredictMatchesRowCount(t *testing.T) {
	x, _ := linearData(predictChunk+17, 8)
	n, err := Build(2, testHyperparameters(), 42)
	require.NoError(t, err)

	pred := n.Predict(x)
	assert.Len(t, pred, predictChunk+17)
	for _, p := range pred {
		assert.False(t, math.IsNaN(p))
	}
}
