package report

import (
	"fmt"
	"math"
	"sort"

	"salesdash/internal/dataset"
	"salesdash/internal/evaluation"
	"salesdash/internal/nn"
)

// MaxScatterPoints caps the points carried by each scatter series
const MaxScatterPoints = 5000

// HistogramBins is the number of bins of each target histogram
const HistogramBins = 50

// Curve is a per-epoch train/validation pair
type Curve struct {
	Title      string    `json:"title"`
	Metric     string    `json:"metric"`
	Train      []float64 `json:"train"`
	Validation []float64 `json:"validation"`
}

// Point is one scatter point
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scatter is a point cloud with a horizontal or diagonal reference line
type Scatter struct {
	Title     string  `json:"title"`
	XLabel    string  `json:"x_label"`
	YLabel    string  `json:"y_label"`
	Reference string  `json:"reference"`
	Points    []Point `json:"points"`
}

// Reference lines drawn on scatter charts
const (
	ReferenceIdentity = "identity"
	ReferenceZero     = "zero"
)

// Importance is the mean absolute first-layer weight of one input feature
type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Bin is one histogram bucket, [Min, Max)
type Bin struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count float64 `json:"count"`
}

// Histogram is a binned distribution
type Histogram struct {
	Title string `json:"title"`
	Bins  []Bin  `json:"bins"`
}

// Report holds every diagnostic of a completed run
type Report struct {
	MAECurve          Curve              `json:"mae_curve"`
	LossCurve         Curve              `json:"loss_curve"`
	PredictedVsActual Scatter            `json:"predicted_vs_actual"`
	Residuals         Scatter            `json:"residuals"`
	FeatureImportance []Importance       `json:"feature_importance"`
	SalesHistogram    Histogram          `json:"sales_histogram"`
	TargetHistogram   Histogram          `json:"target_histogram"`
	Metrics           evaluation.Metrics `json:"metrics"`
	MetricsDisplay    map[string]string  `json:"metrics_display"`
	Summary           nn.Summary         `json:"summary"`
	History           nn.History         `json:"history"`

	// Actual and Predicted are the full holdout vectors
	Actual    []float64 `json:"-"`
	Predicted []float64 `json:"-"`
}

// Build scores the network on the holdout partition and assembles the
// report. rawTarget is the Sales column of the feature table before the
// split.
func Build(net *nn.Network, history *nn.History, split dataset.Split, rawTarget []float64) (*Report, error) {
	if net == nil || history == nil {
		return nil, fmt.Errorf("report needs a trained network and its history")
	}

	predicted := net.Predict(split.XTest)
	metrics, err := evaluation.Evaluate(split.YTest, predicted)
	if err != nil {
		return nil, fmt.Errorf("evaluate holdout: %w", err)
	}

	r := &Report{
		MAECurve: Curve{
			Title:      "Model Mean Absolute Error",
			Metric:     "mae",
			Train:      history.MAE,
			Validation: history.ValMAE,
		},
		LossCurve: Curve{
			Title:      "Model Loss (MSE)",
			Metric:     "loss",
			Train:      history.Loss,
			Validation: history.ValLoss,
		},
		PredictedVsActual: Scatter{
			Title:     "Predicted vs Actual Sales",
			XLabel:    "Actual Sales",
			YLabel:    "Predicted Sales",
			Reference: ReferenceIdentity,
			Points:    samplePoints(split.YTest, predicted),
		},
		Residuals: Scatter{
			Title:     "Residual Plot",
			XLabel:    "Predicted Sales",
			YLabel:    "Residuals",
			Reference: ReferenceZero,
			Points:    samplePoints(predicted, residuals(split.YTest, predicted)),
		},
		FeatureImportance: FeatureImportance(net, split.Features),
		SalesHistogram:    NewHistogram("Sales Distribution Before Preprocessing", rawTarget, HistogramBins),
		TargetHistogram:   NewHistogram("Sales Distribution After Preprocessing", split.YTrain, HistogramBins),
		Metrics:           metrics,
		MetricsDisplay:    metrics.Formatted(),
		Summary:           net.Summary(),
		History:           *history,
		Actual:            split.YTest,
		Predicted:         predicted,
	}
	return r, nil
}

// FeatureImportance averages |w| over the units of the first dense layer
// for each input feature, most important first. Ties keep input order.
func FeatureImportance(net *nn.Network, features []string) []Importance {
	w := net.FirstLayerWeights()
	rows, cols := w.Dims()

	out := make([]Importance, rows)
	for i := 0; i < rows; i++ {
		var sum float64
		for _, v := range w.RawRowView(i) {
			sum += math.Abs(v)
		}
		name := fmt.Sprintf("feature_%d", i)
		if i < len(features) {
			name = features[i]
		}
		out[i] = Importance{Feature: name, Importance: sum / float64(cols)}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out
}

func residuals(actual, predicted []float64) []float64 {
	out := make([]float64, len(actual))
	for i, a := range actual {
		out[i] = a - predicted[i]
	}
	return out
}

// samplePoints pairs xs and ys, keeping at most MaxScatterPoints evenly
// strided points
func samplePoints(xs, ys []float64) []Point {
	n := len(xs)
	step := 1
	if n > MaxScatterPoints {
		step = int(math.Ceil(float64(n) / MaxScatterPoints))
	}
	points := make([]Point, 0, n/step+1)
	for i := 0; i < n; i += step {
		points = append(points, Point{X: xs[i], Y: ys[i]})
	}
	return points
}
