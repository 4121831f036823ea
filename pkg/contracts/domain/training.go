// Package domain holds the types shared between the HTTP surface, the
// operations pipeline and the dashboard page.
package domain

import "time"

// Activation names a hidden-layer nonlinearity
type Activation string

const (
	ActivationReLU    Activation = "relu"
	ActivationTanh    Activation = "tanh"
	ActivationSigmoid Activation = "sigmoid"
)

// OptimizerName names a gradient-update rule
type OptimizerName string

const (
	OptimizerAdam    OptimizerName = "adam"
	OptimizerSGD     OptimizerName = "sgd"
	OptimizerRMSprop OptimizerName = "rmsprop"
)

// Hyperparameters is the configuration form submitted to start a run
type Hyperparameters struct {
	HiddenLayers int           `json:"hidden_layers" validate:"min=1,max=5"`
	Neurons      int           `json:"neurons" validate:"min=32,max=256"`
	Activation   Activation    `json:"activation" validate:"required,oneof=relu tanh sigmoid"`
	Dropout      float64       `json:"dropout" validate:"gte=0,lte=0.5"`
	Optimizer    OptimizerName `json:"optimizer" validate:"required,oneof=adam sgd rmsprop"`
	LearningRate float64       `json:"learning_rate" validate:"gte=0.0001,lte=0.01"`
	Epochs       int           `json:"epochs" validate:"min=10,max=100"`
}

// DefaultHyperparameters returns the values the form starts with
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		HiddenLayers: 3,
		Neurons:      128,
		Activation:   ActivationReLU,
		Dropout:      0.3,
		Optimizer:    OptimizerAdam,
		LearningRate: 0.001,
		Epochs:       50,
	}
}

// Bound describes the slider range of one numeric control
type Bound struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// HyperparameterSchema is what the dashboard needs to draw the form
type HyperparameterSchema struct {
	Defaults    Hyperparameters  `json:"defaults"`
	Bounds      map[string]Bound `json:"bounds"`
	Activations []Activation     `json:"activations"`
	Optimizers  []OptimizerName  `json:"optimizers"`
}

// Schema returns the form description. The bounds mirror the validate tags
// on Hyperparameters.
func Schema() HyperparameterSchema {
	return HyperparameterSchema{
		Defaults: DefaultHyperparameters(),
		Bounds: map[string]Bound{
			"hidden_layers": {Min: 1, Max: 5, Step: 1},
			"neurons":       {Min: 32, Max: 256, Step: 1},
			"dropout":       {Min: 0, Max: 0.5, Step: 0.05},
			"learning_rate": {Min: 0.0001, Max: 0.01, Step: 0.0001},
			"epochs":        {Min: 10, Max: 100, Step: 1},
		},
		Activations: []Activation{ActivationReLU, ActivationTanh, ActivationSigmoid},
		Optimizers:  []OptimizerName{OptimizerAdam, OptimizerSGD, OptimizerRMSprop},
	}
}

// RunStatus is the training state machine: idle -> training -> complete|failed
type RunStatus string

const (
	RunStatusIdle     RunStatus = "idle"
	RunStatusTraining RunStatus = "training"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// IsTerminal reports whether no further transition can happen
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// RunSummary is the list view of a run
type RunSummary struct {
	ID              string          `json:"id"`
	Status          RunStatus       `json:"status"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	CurrentStep     string          `json:"current_step,omitempty"`
	Progress        int             `json:"progress"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}
