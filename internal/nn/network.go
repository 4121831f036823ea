package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"salesdash/pkg/contracts/domain"
)

// Batch normalization constants of every hidden block
const (
	BatchNormMomentum = 0.99
	BatchNormEpsilon  = 1e-3
)

// predictChunk bounds the rows pushed through the network at once
const predictChunk = 8192

// Network is an ordered stack of layers ending in one linear unit
type Network struct {
	layers    []Layer
	inputDim  int
	optimizer Optimizer
	shuffle   *rand.Rand
}

// Build assembles hp.HiddenLayers blocks of Dense(hp.Neurons, activation),
// BatchNorm and Dropout(hp.Dropout), followed by Dense(1). All randomness
// (initial weights, dropout masks, batch order) derives from seed.
func Build(inputDim int, hp domain.Hyperparameters, seed int64) (*Network, error) {
	if inputDim < 1 {
		return nil, fmt.Errorf("%w: input dimension must be positive, got %d", ErrInvalidConfig, inputDim)
	}
	if hp.HiddenLayers < 1 || hp.Neurons < 1 {
		return nil, fmt.Errorf("%w: need at least one hidden layer and one neuron", ErrInvalidConfig)
	}
	if hp.Dropout < 0 || hp.Dropout >= 1 {
		return nil, fmt.Errorf("%w: dropout must be in [0, 1), got %v", ErrInvalidConfig, hp.Dropout)
	}

	act, err := ActivationFor(hp.Activation)
	if err != nil {
		return nil, err
	}
	opt, err := NewOptimizer(hp.Optimizer, hp.LearningRate)
	if err != nil {
		return nil, err
	}

	initRNG := rand.New(rand.NewSource(seed))
	dropRNG := rand.New(rand.NewSource(seed + 1))

	n := &Network{
		inputDim:  inputDim,
		optimizer: opt,
		shuffle:   rand.New(rand.NewSource(seed + 2)),
	}

	in := inputDim
	for i := 0; i < hp.HiddenLayers; i++ {
		n.layers = append(n.layers,
			NewDense(layerName("dense", i), in, hp.Neurons, act, initRNG),
			NewBatchNorm(layerName("batch_normalization", i), hp.Neurons, BatchNormMomentum, BatchNormEpsilon),
			NewDropout(layerName("dropout", i), hp.Neurons, hp.Dropout, dropRNG),
		)
		in = hp.Neurons
	}
	n.layers = append(n.layers, NewDense(layerName("dense", hp.HiddenLayers), in, 1, Linear, initRNG))

	return n, nil
}

// layerName numbers repeated layers the usual way: dense, dense_1, dense_2
func layerName(base string, i int) string {
	if i == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, i)
}

// Layers returns the layers in order
func (n *Network) Layers() []Layer { return n.layers }

// Optimizer returns the update rule used by Fit
func (n *Network) Optimizer() Optimizer { return n.optimizer }

// FirstLayerWeights returns the kernel of the first dense layer, shaped
// features x units
func (n *Network) FirstLayerWeights() *mat.Dense {
	return n.layers[0].(*Dense).Weights()
}

// Predict runs inference and returns one prediction per row of x
func (n *Network) Predict(x *mat.Dense) []float64 {
	rows, cols := x.Dims()
	out := make([]float64, 0, rows)
	for start := 0; start < rows; start += predictChunk {
		end := min(start+predictChunk, rows)
		chunk := x.Slice(start, end, 0, cols).(*mat.Dense)
		pred := n.forward(chunk, false)
		out = append(out, mat.Col(nil, 0, pred)...)
	}
	return out
}

func (n *Network) forward(x *mat.Dense, training bool) *mat.Dense {
	for _, l := range n.layers {
		x = l.Forward(x, training)
	}
	return x
}

func (n *Network) backward(grad *mat.Dense) {
	for i := len(n.layers) - 1; i >= 0; i-- {
		grad = n.layers[i].Backward(grad)
	}
}

func (n *Network) params() []*Param {
	var ps []*Param
	for _, l := range n.layers {
		ps = append(ps, l.Params()...)
	}
	return ps
}
