// Package evaluation scores regression predictions against a holdout set.
package evaluation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Value is a metric that stays representable in JSON when it is NaN or
// infinite
type Value float64

// MarshalJSON writes finite values as numbers and the rest as the strings
// "NaN", "+Inf" or "-Inf"
func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON accepts both encodings produced by MarshalJSON
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid metric value %q", s)
		}
		*v = Value(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

// Float returns the plain float64
func (v Value) Float() float64 { return float64(v) }

// Metrics is the holdout scorecard
type Metrics struct {
	MSE  Value `json:"mse"`
	RMSE Value `json:"rmse"`
	MAE  Value `json:"mae"`
	MAPE Value `json:"mape"`
	R2   Value `json:"r2"`
}

// Formatted renders the scorecard for display: four decimals, and MAPE as
// a percentage with two
func (m Metrics) Formatted() map[string]string {
	return map[string]string{
		"MSE":  fmt.Sprintf("%.4f", m.MSE.Float()),
		"RMSE": fmt.Sprintf("%.4f", m.RMSE.Float()),
		"MAE":  fmt.Sprintf("%.4f", m.MAE.Float()),
		"MAPE": fmt.Sprintf("%.2f%%", m.MAPE.Float()),
		"R2":   fmt.Sprintf("%.4f", m.R2.Float()),
	}
}

// Evaluate computes every metric. actual and predicted must have the same
// length.
func Evaluate(actual, predicted []float64) (Metrics, error) {
	if len(actual) != len(predicted) {
		return Metrics{}, fmt.Errorf("length mismatch: %d actual vs %d predicted", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return Metrics{}, fmt.Errorf("no samples to evaluate")
	}
	mse := MSE(actual, predicted)
	return Metrics{
		MSE:  Value(mse),
		RMSE: Value(math.Sqrt(mse)),
		MAE:  Value(MAE(actual, predicted)),
		MAPE: Value(MAPE(actual, predicted)),
		R2:   Value(R2(actual, predicted)),
	}, nil
}

// MSE is the mean squared error
func MSE(actual, predicted []float64) float64 {
	var sum float64
	for i, a := range actual {
		d := a - predicted[i]
		sum += d * d
	}
	return sum / float64(len(actual))
}

// RMSE is the square root of MSE
func RMSE(actual, predicted []float64) float64 {
	return math.Sqrt(MSE(actual, predicted))
}

// MAE is the mean absolute error
func MAE(actual, predicted []float64) float64 {
	diff := make([]float64, len(actual))
	floats.SubTo(diff, actual, predicted)
	var sum float64
	for _, d := range diff {
		sum += math.Abs(d)
	}
	return sum / float64(len(actual))
}

// MAPE is the mean absolute percentage error, in percent. A zero actual
// value makes the result infinite or NaN; that is reported as is.
func MAPE(actual, predicted []float64) float64 {
	var sum float64
	for i, a := range actual {
		sum += math.Abs((a - predicted[i]) / a)
	}
	return sum / float64(len(actual)) * 100
}

// R2 is the coefficient of determination. When every actual value is the
// same there is no variance to explain: R2 is 1 for an exact prediction
// and 0 otherwise, as scikit-learn reports it.
func R2(actual, predicted []float64) float64 {
	if floats.Max(actual) == floats.Min(actual) {
		if floats.Equal(actual, predicted) {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(predicted, actual, nil)
}
