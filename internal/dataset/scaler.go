package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler stores per-column mean and population standard deviation
type StandardScaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

// FitScaler computes mean and scale for each column. A constant column
// gets scale 1 so it maps to all zeros.
func FitScaler(names []string, columns [][]float64) *StandardScaler {
	s := &StandardScaler{
		Columns: append([]string(nil), names...),
		Mean:    make([]float64, len(names)),
		Scale:   make([]float64, len(names)),
	}
	for i, values := range columns {
		mean, std := stat.PopMeanStdDev(values, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[i] = mean
		s.Scale[i] = std
	}
	return s
}

// Transform standardizes columns in place; columns[i] belongs to s.Columns[i]
func (s *StandardScaler) Transform(columns [][]float64) {
	for i, values := range columns {
		for j, v := range values {
			values[j] = (v - s.Mean[i]) / s.Scale[i]
		}
	}
}

// ScaleTable fits a scaler on the named table columns and applies it
func ScaleTable(t *Table, names ...string) (*StandardScaler, error) {
	columns := make([][]float64, len(names))
	for i, name := range names {
		c, err := t.NumericColumn(name)
		if err != nil {
			return nil, err
		}
		columns[i] = c.Values
	}
	s := FitScaler(names, columns)
	s.Transform(columns)
	return s, nil
}

// FitMatrix fits a scaler on the named columns of m, whose columns are
// labelled by features
func FitMatrix(m *mat.Dense, features []string, names ...string) (*StandardScaler, error) {
	idx, err := columnIndexes(features, names)
	if err != nil {
		return nil, err
	}
	columns := make([][]float64, len(idx))
	for i, j := range idx {
		columns[i] = mat.Col(nil, j, m)
	}
	return FitScaler(names, columns), nil
}

// TransformMatrix standardizes the scaler's columns of m in place
func (s *StandardScaler) TransformMatrix(m *mat.Dense, features []string) error {
	idx, err := columnIndexes(features, s.Columns)
	if err != nil {
		return err
	}
	rows, _ := m.Dims()
	for i, j := range idx {
		for r := 0; r < rows; r++ {
			m.Set(r, j, (m.At(r, j)-s.Mean[i])/s.Scale[i])
		}
	}
	return nil
}

func columnIndexes(features, names []string) ([]int, error) {
	pos := make(map[string]int, len(features))
	for i, f := range features {
		pos[f] = i
	}
	idx := make([]int, len(names))
	for i, n := range names {
		j, ok := pos[n]
		if !ok {
			return nil, fmt.Errorf("%w: feature %q not found", ErrSchema, n)
		}
		idx[i] = j
	}
	return idx, nil
}
