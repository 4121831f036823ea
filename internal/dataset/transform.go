package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// LeftJoin returns left with every column of right (except key) appended.
// Rows keep the order of left; left rows without a match get missing
// values. Keys in right must be unique so the row count never changes.
func LeftJoin(left, right *Table, key string) (*Table, error) {
	lk, err := left.Column(key)
	if err != nil {
		return nil, fmt.Errorf("left table: %w", err)
	}
	rk, err := right.Column(key)
	if err != nil {
		return nil, fmt.Errorf("right table: %w", err)
	}

	lookup := make(map[string]int, right.Rows())
	for i := 0; i < right.Rows(); i++ {
		if rk.IsMissing(i) {
			continue
		}
		k := rk.Cell(i)
		if _, dup := lookup[k]; dup {
			return nil, fmt.Errorf("%w: duplicate %s %q in right table", ErrSchema, key, k)
		}
		lookup[k] = i
	}

	match := make([]int, left.Rows())
	for i := range match {
		match[i] = -1
		if lk.IsMissing(i) {
			continue
		}
		if j, ok := lookup[lk.Cell(i)]; ok {
			match[i] = j
		}
	}

	out, _ := NewTable()
	for _, c := range left.Columns() {
		if err := out.Add(c); err != nil {
			return nil, err
		}
	}
	for _, c := range right.Columns() {
		if c.Name == key {
			continue
		}
		if out.Has(c.Name) {
			return nil, fmt.Errorf("%w: column %q exists in both tables", ErrSchema, c.Name)
		}
		if err := out.Add(gather(c, match)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// gather picks rows of c by index; -1 yields a missing cell
func gather(c *Column, idx []int) *Column {
	if c.Kind == Categorical {
		labels := make([]string, len(idx))
		for i, j := range idx {
			if j >= 0 {
				labels[i] = c.Labels[j]
			}
		}
		return CategoricalColumn(c.Name, labels)
	}
	values := make([]float64, len(idx))
	for i, j := range idx {
		if j >= 0 {
			values[i] = c.Values[j]
		} else {
			values[i] = math.NaN()
		}
	}
	return NumericColumn(c.Name, values)
}

// AddCalendarFeatures parses the Date column and appends Year, Month,
// Day and ISO-8601 WeekOfYear
func AddCalendarFeatures(t *Table) error {
	dates, err := t.Column(ColDate)
	if err != nil {
		return err
	}
	if dates.Kind != Categorical {
		return fmt.Errorf("%w: column %q must hold text dates", ErrSchema, ColDate)
	}

	n := t.Rows()
	year := make([]float64, n)
	month := make([]float64, n)
	day := make([]float64, n)
	week := make([]float64, n)
	for i, raw := range dates.Labels {
		d, err := time.Parse(DateLayout, raw)
		if err != nil {
			return fmt.Errorf("%w: row %d: bad date %q", ErrSchema, i, raw)
		}
		_, w := d.ISOWeek()
		year[i] = float64(d.Year())
		month[i] = float64(d.Month())
		day[i] = float64(d.Day())
		week[i] = float64(w)
	}

	for _, c := range []*Column{
		NumericColumn(ColYear, year),
		NumericColumn(ColMonth, month),
		NumericColumn(ColDay, day),
		NumericColumn(ColWeekOfYear, week),
	} {
		if err := t.Add(c); err != nil {
			return err
		}
	}
	return nil
}

// FillMedian replaces missing values of each column with the median of
// its present values. A column with no present values is filled with 0.
// The fill values are returned by column name.
func FillMedian(t *Table, names ...string) (map[string]float64, error) {
	fills := make(map[string]float64, len(names))
	for _, name := range names {
		c, err := t.NumericColumn(name)
		if err != nil {
			return nil, err
		}
		m := median(c.Values)
		if math.IsNaN(m) {
			m = 0
		}
		fill(c, m)
		fills[name] = m
	}
	return fills, nil
}

// FillZero replaces missing values of each column with 0
func FillZero(t *Table, names ...string) error {
	for _, name := range names {
		c, err := t.NumericColumn(name)
		if err != nil {
			return err
		}
		fill(c, 0)
	}
	return nil
}

func fill(c *Column, v float64) {
	for i, x := range c.Values {
		if math.IsNaN(x) {
			c.Values[i] = v
		}
	}
}

// median skips NaN and averages the two middle values of an even count
func median(values []float64) float64 {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return math.NaN()
	}
	sort.Float64s(present)
	mid := len(present) / 2
	if len(present)%2 == 1 {
		return present[mid]
	}
	return (present[mid-1] + present[mid]) / 2
}

// OneHotEncode replaces each named column with k-1 indicator columns
// named <col>_<value>, where k is the number of distinct present values.
// Categories are sorted and the first is dropped. Indicators are appended
// at the end of the table in the order of names; a row with a missing
// value gets 0 in every indicator of that column.
func OneHotEncode(t *Table, names ...string) (map[string][]string, error) {
	categories := make(map[string][]string, len(names))
	for _, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}

		labels := make([]string, c.Len())
		for i := range labels {
			if !c.IsMissing(i) {
				labels[i] = normalizeLabel(c.Cell(i))
			}
		}

		cats := distinct(labels)
		categories[name] = cats
		if err := t.Drop(name); err != nil {
			return nil, err
		}
		if len(cats) < 2 {
			continue
		}

		for _, cat := range cats[1:] {
			ind := make([]float64, len(labels))
			for i, l := range labels {
				if l == cat {
					ind[i] = 1
				}
			}
			if err := t.Add(NumericColumn(name+"_"+cat, ind)); err != nil {
				return nil, err
			}
		}
	}
	return categories, nil
}

func distinct(labels []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range labels {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
