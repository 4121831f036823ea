package report

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// NewHistogram bins the finite values of data into n equal-width bins
// spanning [min, max]
func NewHistogram(title string, data []float64, n int) Histogram {
	h := Histogram{Title: title}

	values := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			values = append(values, v)
		}
	}
	if len(values) == 0 || n < 1 {
		return h
	}
	sort.Float64s(values)

	lo, hi := values[0], values[len(values)-1]
	if hi == lo {
		h.Bins = []Bin{{Min: lo - 0.5, Max: hi + 0.5, Count: float64(len(values))}}
		return h
	}

	dividers := floats.Span(make([]float64, n+1), lo, hi)
	// the last divider must be strictly above the maximum
	dividers[n] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, values, nil)

	h.Bins = make([]Bin, n)
	for i, c := range counts {
		h.Bins[i] = Bin{Min: dividers[i], Max: dividers[i+1], Count: c}
	}
	return h
}

// Total returns the number of values in the histogram
func (h Histogram) Total() float64 {
	var sum float64
	for _, b := range h.Bins {
		sum += b.Count
	}
	return sum
}
