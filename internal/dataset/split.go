package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Split holds the training and holdout partitions
type Split struct {
	XTrain   *mat.Dense
	XTest    *mat.Dense
	YTrain   []float64
	YTest    []float64
	TrainIdx []int
	TestIdx  []int

	// Features labels the matrix columns; filled in by the caller
	Features []string
}

// TrainTestSplit shuffles row indices with a generator seeded by seed and
// cuts them into n-ceil(n*testSize) training rows and ceil(n*testSize)
// holdout rows. The same inputs always give the same partitions.
func TrainTestSplit(x *mat.Dense, y []float64, testSize float64, seed int64) (Split, error) {
	n, _ := x.Dims()
	if n != len(y) {
		return Split{}, fmt.Errorf("%w: %d feature rows but %d targets", ErrSchema, n, len(y))
	}
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}

	nTest := int(math.Ceil(float64(n) * testSize))
	nTrain := n - nTest
	if nTrain < 1 || nTest < 1 {
		return Split{}, fmt.Errorf("%w: %d rows cannot be split with test size %v", ErrSchema, n, testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	trainIdx := perm[:nTrain]
	testIdx := perm[nTrain:]

	return Split{
		XTrain:   takeRows(x, trainIdx),
		XTest:    takeRows(x, testIdx),
		YTrain:   take(y, trainIdx),
		YTest:    take(y, testIdx),
		TrainIdx: trainIdx,
		TestIdx:  testIdx,
	}, nil
}

func takeRows(x *mat.Dense, idx []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, j := range idx {
		out.SetRow(i, x.RawRowView(j))
	}
	return out
}

func take(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}
