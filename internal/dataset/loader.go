package dataset

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// missingTokens are read as missing values, matching what a pandas
// reader treats as NA for these files
var missingTokens = []string{"", "NA", "NaN", "nan", "<nil>"}

// LoadCSV reads a header-first CSV file into a Table. Every column named
// in schema must be present; other columns are kept with a detected type.
func LoadCSV(path string, schema Schema) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadCSV is LoadCSV over an arbitrary reader
func ReadCSV(r io.Reader, schema Schema) (*Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(missingTokens),
		dataframe.WithTypes(map[string]series.Type(schema)),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("parse csv: %w", df.Err)
	}

	if missing := missingColumns(df.Names(), schema); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrSchema, strings.Join(missing, ", "))
	}

	return fromDataFrame(df)
}

func fromDataFrame(df dataframe.DataFrame) (*Table, error) {
	t, _ := NewTable()
	for _, name := range df.Names() {
		s := df.Col(name)
		var col *Column
		switch s.Type() {
		case series.String:
			labels := s.Records()
			for i, na := range s.IsNaN() {
				if na {
					labels[i] = ""
				}
			}
			col = CategoricalColumn(name, labels)
		default:
			col = NumericColumn(name, s.Float())
		}
		if err := t.Add(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func missingColumns(have []string, schema Schema) []string {
	present := make(map[string]bool, len(have))
	for _, n := range have {
		present[n] = true
	}
	var missing []string
	for n := range schema {
		if !present[n] {
			missing = append(missing, n)
		}
	}
	sort.Strings(missing)
	return missing
}

// normalizeLabel makes numeric spellings of the same label equal, so that
// 0, "0" and "0.0" are one category
func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}
