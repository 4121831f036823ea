package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg" // png canvas
)

// Chart names accepted by RenderChart
const (
	ChartMAE               = "mae"
	ChartLoss              = "loss"
	ChartPredictedVsActual = "predicted_vs_actual"
	ChartResiduals         = "residuals"
	ChartFeatureImportance = "feature_importance"
	ChartSalesHistogram    = "sales_histogram"
	ChartTargetHistogram   = "target_histogram"
)

// ChartNames lists every chart in display order
var ChartNames = []string{
	ChartMAE,
	ChartLoss,
	ChartPredictedVsActual,
	ChartResiduals,
	ChartFeatureImportance,
	ChartSalesHistogram,
	ChartTargetHistogram,
}

// maxImportanceBars limits the bars of the feature importance chart
const maxImportanceBars = 30

var (
	trainColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	valColor   = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	refColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	pointColor = color.RGBA{R: 31, G: 119, B: 180, A: 110}
)

// ErrUnknownChart is returned for a chart name not in ChartNames
var ErrUnknownChart = errors.New("unknown chart")

// RenderChart draws the named chart of r as PNG into w
func RenderChart(r *Report, name string, w io.Writer) error {
	var (
		p   *plot.Plot
		err error
	)
	width, height := 8*vg.Inch, 5*vg.Inch

	switch name {
	case ChartMAE:
		p, err = curvePlot(r.MAECurve, "Mean Absolute Error")
	case ChartLoss:
		p, err = curvePlot(r.LossCurve, "Mean Squared Error")
	case ChartPredictedVsActual:
		p, err = scatterPlot(r.PredictedVsActual)
		width, height = 6*vg.Inch, 6*vg.Inch
	case ChartResiduals:
		p, err = scatterPlot(r.Residuals)
	case ChartFeatureImportance:
		p, err = importancePlot(r.FeatureImportance)
		height = vg.Length(math.Max(4, float64(min(len(r.FeatureImportance), maxImportanceBars))*0.3)) * vg.Inch
	case ChartSalesHistogram:
		p, err = histogramPlot(r.SalesHistogram, trainColor)
	case ChartTargetHistogram:
		p, err = histogramPlot(r.TargetHistogram, valColor)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}
	if err != nil {
		return fmt.Errorf("build %s chart: %w", name, err)
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render %s chart: %w", name, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// RenderAll draws every chart concurrently and returns the PNG bytes by
// chart name
func RenderAll(ctx context.Context, r *Report) (map[string][]byte, error) {
	var mu sync.Mutex
	out := make(map[string][]byte, len(ChartNames))

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range ChartNames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := RenderChart(r, name, &buf); err != nil {
				return err
			}
			mu.Lock()
			out[name] = buf.Bytes()
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func curvePlot(c Curve, yLabel string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true

	for _, s := range []struct {
		label  string
		values []float64
		color  color.Color
	}{
		{"Train", c.Train, trainColor},
		{"Validation", c.Validation, valColor},
	} {
		line, err := plotter.NewLine(epochXYs(s.values))
		if err != nil {
			return nil, err
		}
		line.Color = s.color
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.label, line)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

func epochXYs(values []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(i + 1), Y: v})
	}
	return xys
}

func scatterPlot(s Scatter) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = s.XLabel
	p.Y.Label.Text = s.YLabel

	xys := make(plotter.XYs, 0, len(s.Points))
	for _, pt := range s.Points {
		if isFinite(pt.X) && isFinite(pt.Y) {
			xys = append(xys, plotter.XY{X: pt.X, Y: pt.Y})
		}
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle = draw.GlyphStyle{Color: pointColor, Radius: vg.Points(1.5), Shape: draw.CircleGlyph{}}
	p.Add(sc)

	var ref *plotter.Function
	switch s.Reference {
	case ReferenceIdentity:
		ref = plotter.NewFunction(func(x float64) float64 { return x })
	case ReferenceZero:
		ref = plotter.NewFunction(func(float64) float64 { return 0 })
	}
	if ref != nil {
		ref.Color = refColor
		ref.Width = vg.Points(1.5)
		ref.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(ref)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

func importancePlot(items []Importance) (*plot.Plot, error) {
	if len(items) > maxImportanceBars {
		items = items[:maxImportanceBars]
	}
	p := plot.New()
	p.Title.Text = "Feature Importance (mean |first-layer weight|)"
	p.X.Label.Text = "Importance"

	// bars are drawn bottom-up, so reverse to put the largest on top
	values := make(plotter.Values, len(items))
	names := make([]string, len(items))
	for i, it := range items {
		j := len(items) - 1 - i
		values[j] = it.Importance
		names[j] = it.Feature
	}

	bars, err := plotter.NewBarChart(values, vg.Points(10))
	if err != nil {
		return nil, err
	}
	bars.Horizontal = true
	bars.Color = trainColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(names...)
	return p, nil
}

func histogramPlot(h Histogram, fill color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = h.Title
	p.X.Label.Text = "Sales"
	p.Y.Label.Text = "Count"

	if len(h.Bins) == 0 {
		return p, nil
	}
	bins := make([]plotter.HistogramBin, len(h.Bins))
	for i, b := range h.Bins {
		bins[i] = plotter.HistogramBin{Min: b.Min, Max: b.Max, Weight: b.Count}
	}
	p.Add(&plotter.Histogram{
		Bins:      bins,
		Width:     h.Bins[0].Max - h.Bins[0].Min,
		FillColor: fill,
		LineStyle: plotter.DefaultLineStyle,
	})
	return p, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
