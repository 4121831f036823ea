package services_test

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"salesdash/internal/config"
	"salesdash/internal/dataset"
	"salesdash/internal/nn"
	"salesdash/internal/operations"
	"salesdash/internal/operations/testutil"
	"salesdash/internal/report"
	"salesdash/internal/services"
	"salesdash/pkg/contracts/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// smallReport trains a tiny network on a synthetic linear target
func smallReport(t *testing.T) *report.Report {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	x := mat.NewDense(60, 2, nil)
	y := make([]float64, 60)
	for i := range y {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		x.SetRow(i, []float64{a, b})
		y[i] = 20 + 5*a - 2*b
	}

	split, err := dataset.TrainTestSplit(x, y, 0.2, 42)
	require.NoError(t, err)
	split.Features = []string{"promo", "distance"}

	hp := domain.DefaultHyperparameters()
	hp.HiddenLayers = 1
	hp.Neurons = 32
	net, err := nn.Build(2, hp, 42)
	require.NoError(t, err)
	history, err := net.Fit(context.Background(), split.XTrain, split.YTrain, split.XTest, split.YTest,
		nn.FitOptions{Epochs: 3, BatchSize: 16})
	require.NoError(t, err)

	r, err := report.Build(net, history, split, y)
	require.NoError(t, err)
	return r
}

type serviceFixture struct {
	svc     *services.TrainingService
	queue   *operations.JobQueue
	manager *operations.Manager
	paths   *config.Paths
}

func newServiceFixture(t *testing.T, start bool, steps ...*testutil.MockStage) serviceFixture {
	t.Helper()
	m := operations.NewManager(&testutil.MockWebSocketHub{}, nil, testutil.CreateTestConfig())
	t.Cleanup(m.GetBroadcaster().Stop)
	for _, step := range steps {
		require.NoError(t, m.RegisterStage(step))
	}

	q := operations.NewJobQueue(1, 2, operations.NewMemoryJobStore(), m, discardLogger())
	t.Cleanup(func() { _ = q.Stop(5 * time.Second) })
	if start {
		q.Start(context.Background())
	}

	paths := config.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())

	return serviceFixture{
		svc:     services.NewTrainingService(q, m, paths, discardLogger()),
		queue:   q,
		manager: m,
		paths:   paths,
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
