package nn

import (
	"fmt"
	"math"

	"salesdash/pkg/contracts/domain"
)

// Optimizer applies one update to every parameter from its gradient
type Optimizer interface {
	Name() string
	Step(params []*Param)
}

// NewOptimizer returns the named optimizer with its default constants
func NewOptimizer(name domain.OptimizerName, learningRate float64) (Optimizer, error) {
	if learningRate <= 0 {
		return nil, fmt.Errorf("%w: learning rate must be positive, got %v", ErrInvalidConfig, learningRate)
	}
	switch name {
	case domain.OptimizerAdam:
		return NewAdam(learningRate, 0.9, 0.999, 1e-7), nil
	case domain.OptimizerSGD:
		return &SGD{LearningRate: learningRate}, nil
	case domain.OptimizerRMSprop:
		return NewRMSprop(learningRate, 0.9, 1e-7), nil
	}
	return nil, fmt.Errorf("%w: unknown optimizer %q", ErrInvalidConfig, name)
}

// SGD is plain stochastic gradient descent
type SGD struct {
	LearningRate float64
}

func (o *SGD) Name() string { return string(domain.OptimizerSGD) }

func (o *SGD) Step(params []*Param) {
	for _, p := range params {
		w, g := p.Value.RawMatrix().Data, p.Grad.RawMatrix().Data
		for i := range w {
			w[i] -= o.LearningRate * g[i]
		}
	}
}

// Adam keeps bias-corrected first and second moment estimates
type Adam struct {
	LearningRate, Beta1, Beta2, Epsilon float64

	t    int
	m, v map[*Param][]float64
}

// NewAdam creates an Adam optimizer
func NewAdam(lr, beta1, beta2, epsilon float64) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        beta1,
		Beta2:        beta2,
		Epsilon:      epsilon,
		m:            make(map[*Param][]float64),
		v:            make(map[*Param][]float64),
	}
}

func (o *Adam) Name() string { return string(domain.OptimizerAdam) }

func (o *Adam) Step(params []*Param) {
	o.t++
	lr := o.LearningRate * math.Sqrt(1-math.Pow(o.Beta2, float64(o.t))) / (1 - math.Pow(o.Beta1, float64(o.t)))
	for _, p := range params {
		w, g := p.Value.RawMatrix().Data, p.Grad.RawMatrix().Data
		m, ok := o.m[p]
		if !ok {
			m = make([]float64, len(w))
			o.m[p] = m
			o.v[p] = make([]float64, len(w))
		}
		v := o.v[p]
		for i := range w {
			m[i] = o.Beta1*m[i] + (1-o.Beta1)*g[i]
			v[i] = o.Beta2*v[i] + (1-o.Beta2)*g[i]*g[i]
			w[i] -= lr * m[i] / (math.Sqrt(v[i]) + o.Epsilon)
		}
	}
}

// RMSprop scales each step by a moving average of squared gradients
type RMSprop struct {
	LearningRate, Rho, Epsilon float64

	v map[*Param][]float64
}

// NewRMSprop creates an RMSprop optimizer
func NewRMSprop(lr, rho, epsilon float64) *RMSprop {
	return &RMSprop{LearningRate: lr, Rho: rho, Epsilon: epsilon, v: make(map[*Param][]float64)}
}

func (o *RMSprop) Name() string { return string(domain.OptimizerRMSprop) }

func (o *RMSprop) Step(params []*Param) {
	for _, p := range params {
		w, g := p.Value.RawMatrix().Data, p.Grad.RawMatrix().Data
		v, ok := o.v[p]
		if !ok {
			v = make([]float64, len(w))
			o.v[p] = v
		}
		for i := range w {
			v[i] = o.Rho*v[i] + (1-o.Rho)*g[i]*g[i]
			w[i] -= o.LearningRate * g[i] / (math.Sqrt(v[i]) + o.Epsilon)
		}
	}
}
