package nn

import (
	"fmt"
	"math"

	"salesdash/pkg/contracts/domain"
)

// Activation is an element-wise function whose derivative can be computed
// from its output
type Activation struct {
	Name  string
	apply func(z float64) float64
	deriv func(a float64) float64
}

var (
	// Linear is the identity
	Linear = Activation{
		Name:  "linear",
		apply: func(z float64) float64 { return z },
		deriv: func(float64) float64 { return 1 },
	}
	// ReLU is max(0, z)
	ReLU = Activation{
		Name:  string(domain.ActivationReLU),
		apply: func(z float64) float64 { return math.Max(0, z) },
		deriv: func(a float64) float64 {
			if a > 0 {
				return 1
			}
			return 0
		},
	}
	// Tanh is the hyperbolic tangent
	Tanh = Activation{
		Name:  string(domain.ActivationTanh),
		apply: math.Tanh,
		deriv: func(a float64) float64 { return 1 - a*a },
	}
	// Sigmoid is the logistic function
	Sigmoid = Activation{
		Name:  string(domain.ActivationSigmoid),
		apply: func(z float64) float64 { return 1 / (1 + math.Exp(-z)) },
		deriv: func(a float64) float64 { return a * (1 - a) },
	}
)

// ActivationFor resolves a hyperparameter activation name
func ActivationFor(name domain.Activation) (Activation, error) {
	switch name {
	case domain.ActivationReLU:
		return ReLU, nil
	case domain.ActivationTanh:
		return Tanh, nil
	case domain.ActivationSigmoid:
		return Sigmoid, nil
	}
	return Activation{}, fmt.Errorf("%w: unknown activation %q", ErrInvalidConfig, name)
}
