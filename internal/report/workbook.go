package report

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names
const (
	SheetMetrics     = "Metrics"
	SheetHistory     = "History"
	SheetImportance  = "Feature Importance"
	SheetPredictions = "Predictions"
	SheetSummary     = "Model Summary"
)

// WriteWorkbook exports the report as an xlsx workbook with one sheet per
// table: metrics, per-epoch history, feature importance, holdout
// predictions and the layer summary
func WriteWorkbook(r *Report, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName(f.GetSheetName(0), SheetMetrics); err != nil {
		return err
	}

	metricRows := [][]interface{}{
		{"MSE", cell(r.Metrics.MSE.Float()), r.MetricsDisplay["MSE"]},
		{"RMSE", cell(r.Metrics.RMSE.Float()), r.MetricsDisplay["RMSE"]},
		{"MAE", cell(r.Metrics.MAE.Float()), r.MetricsDisplay["MAE"]},
		{"MAPE", cell(r.Metrics.MAPE.Float()), r.MetricsDisplay["MAPE"]},
		{"R2", cell(r.Metrics.R2.Float()), r.MetricsDisplay["R2"]},
	}
	if err := writeTable(f, SheetMetrics, header, []interface{}{"Metric", "Value", "Display"}, metricRows); err != nil {
		return err
	}

	historyRows := make([][]interface{}, r.History.Epochs())
	for i := range historyRows {
		historyRows[i] = []interface{}{
			i + 1,
			cell(r.History.Loss[i]),
			cell(r.History.MAE[i]),
			cell(at(r.History.ValLoss, i)),
			cell(at(r.History.ValMAE, i)),
		}
	}
	if err := writeTable(f, SheetHistory, header, []interface{}{"Epoch", "loss", "mae", "val_loss", "val_mae"}, historyRows); err != nil {
		return err
	}

	importanceRows := make([][]interface{}, len(r.FeatureImportance))
	for i, it := range r.FeatureImportance {
		importanceRows[i] = []interface{}{it.Feature, cell(it.Importance)}
	}
	if err := writeTable(f, SheetImportance, header, []interface{}{"Feature", "Importance"}, importanceRows); err != nil {
		return err
	}

	predictionRows := make([][]interface{}, len(r.Actual))
	for i, a := range r.Actual {
		p := at(r.Predicted, i)
		predictionRows[i] = []interface{}{cell(a), cell(p), cell(a - p)}
	}
	if err := writeTable(f, SheetPredictions, header, []interface{}{"Actual", "Predicted", "Residual"}, predictionRows); err != nil {
		return err
	}

	summaryRows := make([][]interface{}, 0, len(r.Summary.Layers)+3)
	for _, l := range r.Summary.Layers {
		summaryRows = append(summaryRows, []interface{}{l.Name, l.Type, l.OutputShape, l.Params})
	}
	summaryRows = append(summaryRows,
		[]interface{}{"Total params", "", "", r.Summary.TotalParams},
		[]interface{}{"Trainable params", "", "", r.Summary.TrainableParams},
		[]interface{}{"Non-trainable params", "", "", r.Summary.NonTrainableParams},
	)
	if err := writeTable(f, SheetSummary, header, []interface{}{"Layer", "Type", "Output Shape", "Params"}, summaryRows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// writeTable streams a header row and the data rows into sheet, creating
// the sheet unless it is the default first one
func writeTable(f *excelize.File, sheet string, headerStyle int, header []interface{}, rows [][]interface{}) error {
	if sheet != f.GetSheetName(0) {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open %s writer: %w", sheet, err)
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(start, row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return sw.Flush()
}

// cell keeps finite numbers numeric and writes the rest as text, since a
// spreadsheet has no NaN or infinity
func cell(v float64) interface{} {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return v
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return math.NaN()
}
