package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultHyperparametersWithinBounds(t *testing.T) {
	hp := DefaultHyperparameters()
	s := Schema()

	check := func(name string, v float64) {
		b, ok := s.Bounds[name]
		if assert.True(t, ok, name) {
			assert.GreaterOrEqual(t, v, b.Min, name)
			assert.LessOrEqual(t, v, b.Max, name)
		}
	}
	check("hidden_layers", float64(hp.HiddenLayers))
	check("neurons", float64(hp.Neurons))
	check("dropout", hp.Dropout)
	check("learning_rate", hp.LearningRate)
	check("epochs", float64(hp.Epochs))

	assert.Contains(t, s.Activations, hp.Activation)
	assert.Contains(t, s.Optimizers, hp.Optimizer)
}

func TestRunStatusIsTerminal(t *testing.T) {
	assert.False(t, RunStatusIdle.IsTerminal())
	assert.False(t, RunStatusTraining.IsTerminal())
	assert.True(t, RunStatusComplete.IsTerminal())
	assert.True(t, RunStatusFailed.IsTerminal())
}
