// Package dispersion computes spacing statistics over the pooled
// inter-anchor deltas of two sources. The statistics drive the adaptive
// tolerances of the alignment engine.
package dispersion

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/weldalign/internal/model"
)

// Fallback is returned when neither source has a positive delta.
var Fallback = model.Stats{
	Mean:         10.0,
	Std:          2.0,
	CV:           0.2,
	Q25:          8.0,
	Q50:          10.0,
	Q75:          12.0,
	IQR:          4.0,
	FilteredMean: 10.0,
	FilteredStd:  2.0,
	FilteredCV:   0.2,
}

// Pool returns the strictly positive deltas of both sources, source 1 first.
// The leading zero of each sequence is excluded by construction.
func Pool(d1, d2 []float64) []float64 {
	pool := make([]float64, 0, len(d1)+len(d2))
	for _, d := range d1 {
		if d > 0 {
			pool = append(pool, d)
		}
	}
	for _, d := range d2 {
		if d > 0 {
			pool = append(pool, d)
		}
	}
	return pool
}

// Compute returns the dispersion statistics of the pooled positive deltas.
func Compute(d1, d2 []float64) model.Stats {
	pool := Pool(d1, d2)
	if len(pool) == 0 {
		return Fallback
	}

	mean, std := stat.PopMeanStdDev(pool, nil)
	s := model.Stats{
		Mean: mean,
		Std:  std,
		CV:   cv(mean, std),
	}

	sorted := append([]float64(nil), pool...)
	sort.Float64s(sorted)
	s.Q25 = Percentile(sorted, 25)
	s.Q50 = Percentile(sorted, 50)
	s.Q75 = Percentile(sorted, 75)
	s.IQR = s.Q75 - s.Q25

	lo, hi := s.Q25-1.5*s.IQR, s.Q75+1.5*s.IQR
	filtered := make([]float64, 0, len(pool))
	for _, d := range pool {
		if d >= lo && d <= hi {
			filtered = append(filtered, d)
		}
	}
	if len(filtered) == 0 {
		s.FilteredMean, s.FilteredStd, s.FilteredCV = s.Mean, s.Std, s.CV
		return s
	}
	fm, fs := stat.PopMeanStdDev(filtered, nil)
	s.FilteredMean, s.FilteredStd, s.FilteredCV = fm, fs, cv(fm, fs)
	return s
}

// Percentile returns the p-th percentile (0-100) of sorted using linear
// interpolation between closest ranks: rank = p/100 * (n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch n {
	case 0:
		return math.NaN()
	case 1:
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func cv(mean, std float64) float64 {
	if mean > 0 {
		return std / mean
	}
	return 0
}
