package dataset

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Kind tells whether a column holds numbers or labels
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Column is a named, typed column. Missing numeric values are NaN and
// missing labels are the empty string.
type Column struct {
	Name   string
	Kind   Kind
	Values []float64
	Labels []string
}

// Len returns the number of rows in the column
func (c *Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Labels)
	}
	return len(c.Values)
}

// IsMissing reports whether row i holds no value
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Categorical {
		return c.Labels[i] == ""
	}
	return math.IsNaN(c.Values[i])
}

// MissingCount returns the number of missing cells
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Cell renders row i as CSV text. Missing cells are empty.
func (c *Column) Cell(i int) string {
	if c.Kind == Categorical {
		return c.Labels[i]
	}
	v := c.Values[i]
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NumericColumn builds a numeric column
func NumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Values: values}
}

// CategoricalColumn builds a label column
func CategoricalColumn(name string, labels []string) *Column {
	return &Column{Name: name, Kind: Categorical, Labels: labels}
}

// Table is an ordered set of equally long columns
type Table struct {
	rows    int
	columns []*Column
	index   map[string]int

	// Scaler holds the fitted standardization when the table was scaled
	Scaler *StandardScaler
}

// NewTable creates a table from columns, which must all have the same length
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if err := t.Add(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Rows returns the number of rows
func (t *Table) Rows() int { return t.rows }

// Names returns the column names in order
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. The slice must not be modified.
func (t *Table) Columns() []*Column { return t.columns }

// Has reports whether the table has a column called name
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column looks a column up by name
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: column %q not found", ErrSchema, name)
	}
	return t.columns[i], nil
}

// NumericColumn looks a numeric column up by name
func (t *Table) NumericColumn(name string) (*Column, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Numeric {
		return nil, fmt.Errorf("%w: column %q is %s, want numeric", ErrSchema, name, c.Kind)
	}
	return c, nil
}

// Add appends a column, or replaces the column with the same name in place
func (t *Table) Add(c *Column) error {
	if len(t.columns) > 0 && c.Len() != t.rows {
		return fmt.Errorf("%w: column %q has %d rows, table has %d", ErrSchema, c.Name, c.Len(), t.rows)
	}
	t.rows = c.Len()
	if i, ok := t.index[c.Name]; ok {
		t.columns[i] = c
		return nil
	}
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// Drop removes the named columns. Every name must exist.
func (t *Table) Drop(names ...string) error {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if !t.Has(n) {
			return fmt.Errorf("%w: cannot drop missing column %q", ErrSchema, n)
		}
		drop[n] = true
	}

	kept := t.columns[:0]
	for _, c := range t.columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	t.columns = kept
	t.reindex()
	return nil
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		t.index[c.Name] = i
	}
}

// Record renders row i as CSV fields in column order
func (t *Table) Record(i int) []string {
	rec := make([]string, len(t.columns))
	for j, c := range t.columns {
		rec[j] = c.Cell(i)
	}
	return rec
}

// Matrix copies every column except the excluded ones into a dense row
// major matrix. All copied columns must be numeric and free of missing
// values.
func (t *Table) Matrix(exclude ...string) (*mat.Dense, []string, error) {
	skip := make(map[string]bool, len(exclude))
	for _, n := range exclude {
		skip[n] = true
	}

	var cols []*Column
	for _, c := range t.columns {
		if skip[c.Name] {
			continue
		}
		if c.Kind != Numeric {
			return nil, nil, fmt.Errorf("%w: feature column %q is %s", ErrSchema, c.Name, c.Kind)
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 || t.rows == 0 {
		return nil, nil, fmt.Errorf("%w: empty feature matrix", ErrSchema)
	}

	names := make([]string, len(cols))
	data := make([]float64, t.rows*len(cols))
	for j, c := range cols {
		names[j] = c.Name
		for i, v := range c.Values {
			if math.IsNaN(v) {
				return nil, nil, fmt.Errorf("%w: column %q has a missing value at row %d", ErrSchema, c.Name, i)
			}
			data[i*len(cols)+j] = v
		}
	}
	return mat.NewDense(t.rows, len(cols), data), names, nil
}
