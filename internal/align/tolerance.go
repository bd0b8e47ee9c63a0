// Package align matches the girth welds of two inspection records by their
// spacing. Run aligns two anchor sequences for one accumulation window and
// Search picks the window that pairs the most anchors.
package align

import (
	"math"

	"github.com/sells-group/weldalign/internal/model"
)

// Tolerances are the thresholds one alignment run works with. They adapt to
// the spacing statistics of the two sources.
type Tolerances struct {
	Abs        float64 // absolute delta difference for seed and segment matches
	Rel        float64 // relative difference for segment matches
	Similarity float64 // accumulated-sum similarity for segment discovery
	MinMatch   int     // consecutive matching deltas required for a seed
}

const (
	seedScanLimit    = 50
	fallbackSimilar  = 0.2
	defaultMinMatch  = 4
	shortSequenceLen = 5
)

// SelectTolerances derives Tolerances from the filtered spacing statistics
// and the sequence lengths.
func SelectTolerances(stats model.Stats, n1, n2 int) Tolerances {
	var t Tolerances

	switch mean := stats.FilteredMean; {
	case mean < 5:
		t.Abs, t.Rel = 0.2, 0.07
	case mean < 15:
		t.Abs, t.Rel = 0.3, 0.06
	default:
		t.Abs, t.Rel = 0.5, 0.05
	}

	switch cv := stats.FilteredCV; {
	case cv < 0.1:
		t.Similarity = 0.10
	case cv < 0.25:
		t.Similarity = 0.15
	case cv < 0.5:
		t.Similarity = 0.20
	default:
		t.Similarity = 0.25
	}

	t.MinMatch = defaultMinMatch
	if n1 < shortSequenceLen || n2 < shortSequenceLen {
		t.MinMatch = min(2, min(n1, n2))
	}
	return t
}

// similar reports whether two accumulated distances agree within the
// relative tolerance tol: 1 - |a-b|/max(a,b) >= 1 - tol. Two zeros are
// similar; a single zero is not.
func similar(a, b, tol float64) bool {
	if a == 0 && b == 0 {
		return true
	}
	if a == 0 || b == 0 {
		return false
	}
	return 1-math.Abs(a-b)/math.Max(a, b) >= 1-tol
}

// deltaConfidence scores a single delta pair against the absolute tolerance.
func deltaConfidence(d1, d2, abs float64) float64 {
	return clamp01(1 - math.Abs(d1-d2)/abs)
}

// segmentConfidence scores two accumulated distances by their relative
// difference scaled by the absolute tolerance.
func segmentConfidence(acc1, acc2, abs float64) float64 {
	diff := math.Abs(acc1 - acc2)
	sum := acc1 + acc2
	if sum <= 0 {
		if diff == 0 {
			return 1
		}
		return 0
	}
	return clamp01(1 - 2*diff/sum/abs)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
