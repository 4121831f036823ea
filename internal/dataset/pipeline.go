package dataset

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Pipeline runs the fixed preprocessing stages over the two raw tables
type Pipeline struct {
	logger *slog.Logger
	scale  bool
}

// NewPipeline creates a pipeline. When scale is false the scaled columns
// are left untouched so the caller can fit a scaler after splitting.
func NewPipeline(logger *slog.Logger, scale bool) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger: logger.With(slog.String("component", "pipeline")),
		scale:  scale,
	}
}

// Run loads both files and transforms them into the feature table
func (p *Pipeline) Run(trainPath, storePath string) (*Table, error) {
	train, err := LoadCSV(trainPath, TrainSchema)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	store, err := LoadCSV(storePath, StoreSchema)
	if err != nil {
		return nil, fmt.Errorf("load stores: %w", err)
	}
	return p.Transform(train, store)
}

// Transform applies merge, drop, calendar features, imputation, encoding
// and (optionally) scaling. train is consumed.
func (p *Pipeline) Transform(train, store *Table) (*Table, error) {
	start := time.Now()

	t, err := LeftJoin(train, store, ColStore)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	p.logger.Debug("merged tables",
		slog.Int("rows", t.Rows()),
		slog.Int("columns", len(t.Columns())))

	if err := t.Drop(DroppedColumns...); err != nil {
		return nil, fmt.Errorf("drop columns: %w", err)
	}

	if err := AddCalendarFeatures(t); err != nil {
		return nil, fmt.Errorf("calendar features: %w", err)
	}

	for _, c := range t.Columns() {
		if n := c.MissingCount(); n > 0 {
			p.logger.Debug("missing values", slog.String("column", c.Name), slog.Int("count", n))
		}
	}
	fills, err := FillMedian(t, MedianFilled...)
	if err != nil {
		return nil, fmt.Errorf("impute: %w", err)
	}
	if err := FillZero(t, ZeroFilled...); err != nil {
		return nil, fmt.Errorf("impute: %w", err)
	}
	for name, v := range fills {
		p.logger.Debug("median fill", slog.String("column", name), slog.Float64("value", v))
	}

	cats, err := OneHotEncode(t, EncodedColumns...)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	for _, name := range EncodedColumns {
		p.logger.Debug("one-hot encoded",
			slog.String("column", name),
			slog.Any("categories", cats[name]))
	}

	if p.scale {
		scaler, err := ScaleTable(t, ScaledColumns...)
		if err != nil {
			return nil, fmt.Errorf("scale: %w", err)
		}
		t.Scaler = scaler
	}

	p.logger.Info("feature table ready",
		slog.Int("rows", t.Rows()),
		slog.Int("columns", len(t.Columns())),
		slog.Bool("scaled", p.scale),
		slog.Duration("duration", time.Since(start)))
	return t, nil
}

// Features separates the feature matrix X (every column except Sales and
// Date) from the target y (Sales)
func Features(t *Table) (*mat.Dense, []string, []float64, error) {
	sales, err := t.NumericColumn(ColSales)
	if err != nil {
		return nil, nil, nil, err
	}
	for i, v := range sales.Values {
		if math.IsNaN(v) {
			return nil, nil, nil, fmt.Errorf("%w: %s missing at row %d", ErrSchema, ColSales, i)
		}
	}

	x, names, err := t.Matrix(NonFeatureColumns...)
	if err != nil {
		return nil, nil, nil, err
	}
	y := append([]float64(nil), sales.Values...)
	return x, names, y, nil
}
