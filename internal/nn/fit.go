package nn

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// FitOptions controls the training loop
type FitOptions struct {
	Epochs    int
	BatchSize int
	// OnEpoch is called after every epoch, holdout metrics included
	OnEpoch func(EpochResult)
}

// EpochResult is the outcome of one epoch
type EpochResult struct {
	Epoch    int           `json:"epoch"`
	Epochs   int           `json:"epochs"`
	Loss     float64       `json:"loss"`
	MAE      float64       `json:"mae"`
	ValLoss  float64       `json:"val_loss"`
	ValMAE   float64       `json:"val_mae"`
	Duration time.Duration `json:"duration"`
}

// History is the per-epoch record of a fit. Every slice has one entry per
// completed epoch.
type History struct {
	Loss    []float64 `json:"loss"`
	MAE     []float64 `json:"mae"`
	ValLoss []float64 `json:"val_loss"`
	ValMAE  []float64 `json:"val_mae"`
}

// Epochs returns the number of recorded epochs
func (h *History) Epochs() int { return len(h.Loss) }

func (h *History) add(r EpochResult) {
	h.Loss = append(h.Loss, r.Loss)
	h.MAE = append(h.MAE, r.MAE)
	h.ValLoss = append(h.ValLoss, r.ValLoss)
	h.ValMAE = append(h.ValMAE, r.ValMAE)
}

// Fit trains on (x, y) with mean squared error for opts.Epochs epochs,
// shuffling the rows each epoch. The holdout set (xVal, yVal) is only
// evaluated, never trained on. Fit stops with ErrNonFinite when the
// training loss leaves the finite range and with ctx.Err() when ctx is
// cancelled between batches.
func (n *Network) Fit(ctx context.Context, x *mat.Dense, y []float64, xVal *mat.Dense, yVal []float64, opts FitOptions) (*History, error) {
	rows, cols := x.Dims()
	if rows != len(y) {
		return nil, fmt.Errorf("%w: %d rows but %d targets", ErrInvalidConfig, rows, len(y))
	}
	if cols != n.inputDim {
		return nil, fmt.Errorf("%w: network expects %d features, got %d", ErrInvalidConfig, n.inputDim, cols)
	}
	if opts.Epochs < 1 || opts.BatchSize < 1 {
		return nil, fmt.Errorf("%w: epochs and batch size must be positive", ErrInvalidConfig)
	}

	history := &History{}
	params := n.params()

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		start := time.Now()
		perm := n.shuffle.Perm(rows)
		var sumSq, sumAbs float64

		for b := 0; b < rows; b += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return history, fmt.Errorf("fit cancelled at epoch %d: %w", epoch, err)
			}

			idx := perm[b:min(b+opts.BatchSize, rows)]
			xb, yb := batch(x, y, idx)

			pred := n.forward(xb, true)
			grad := mat.NewDense(len(idx), 1, nil)
			scale := 2 / float64(len(idx))
			var batchSq float64
			for i, target := range yb {
				diff := pred.At(i, 0) - target
				batchSq += diff * diff
				sumAbs += math.Abs(diff)
				grad.Set(i, 0, scale*diff)
			}
			if !isFinite(batchSq) {
				return history, fmt.Errorf("%w at epoch %d", ErrNonFinite, epoch)
			}
			sumSq += batchSq

			n.backward(grad)
			n.optimizer.Step(params)
		}

		result := EpochResult{
			Epoch:  epoch,
			Epochs: opts.Epochs,
			Loss:   sumSq / float64(rows),
			MAE:    sumAbs / float64(rows),
		}
		if !isFinite(result.Loss) {
			return history, fmt.Errorf("%w at epoch %d", ErrNonFinite, epoch)
		}
		if xVal != nil && len(yVal) > 0 {
			result.ValLoss, result.ValMAE = evaluate(n.Predict(xVal), yVal)
		}
		result.Duration = time.Since(start)

		history.add(result)
		if opts.OnEpoch != nil {
			opts.OnEpoch(result)
		}
	}

	return history, nil
}

func batch(x *mat.Dense, y []float64, idx []int) (*mat.Dense, []float64) {
	_, cols := x.Dims()
	xb := mat.NewDense(len(idx), cols, nil)
	yb := make([]float64, len(idx))
	for i, j := range idx {
		xb.SetRow(i, x.RawRowView(j))
		yb[i] = y[j]
	}
	return xb, yb
}

// evaluate returns mean squared and mean absolute error
func evaluate(pred, target []float64) (mse, mae float64) {
	for i, p := range pred {
		d := p - target[i]
		mse += d * d
		mae += math.Abs(d)
	}
	n := float64(len(pred))
	return mse / n, mae / n
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
