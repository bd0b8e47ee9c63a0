// Package defect pairs the defects of two inspection records using the weld
// alignment and a weighted similarity score.
package defect

import (
	"math"
	"strings"

	"github.com/sells-group/weldalign/internal/model"
)

// Weights of each dimension in the overall confidence. Length, depth and
// type are scored for the explanation but carry no weight.
var Weights = struct {
	Distance, Clock, Length, Depth, Type float64
}{
	Distance: 0.75,
	Clock:    0.25,
}

// Similarity is the per-dimension comparison of two defects.
type Similarity struct {
	Distance    float64
	Clock       float64
	Length      float64
	Depth       float64
	Type        float64
	Confidence  float64
	Explanation string
}

// Score compares two defects under the given tolerances.
func Score(a, b *model.Defect, tol model.Tolerances) Similarity {
	s := Similarity{
		Distance: ratioScore(a.DistanceToWeld, b.DistanceToWeld, tol.Distance),
		Clock:    math.Max(0, 1-CircularDiff(a.ClockDegrees, b.ClockDegrees)/tol.ClockPosition),
		Length:   magnitudeScore(a.Length, b.Length, tol.Length),
		Depth:    magnitudeScore(a.Depth, b.Depth, tol.Depth),
		Type:     typeScore(a.Type, b.Type),
	}
	s.Confidence = s.Distance*Weights.Distance +
		s.Clock*Weights.Clock +
		s.Length*Weights.Length +
		s.Depth*Weights.Depth +
		s.Type*Weights.Type
	s.Explanation = explain(s, a, b)
	return s
}

// CircularDiff returns the angular distance in degrees between two clock
// positions, going the short way round.
func CircularDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	return math.Min(d, 360-d)
}

func ratioScore(a, b, tol float64) float64 {
	return math.Max(0, 1-math.Abs(a-b)/tol)
}

// magnitudeScore is neutral when either side did not report the value.
func magnitudeScore(a, b, tol float64) float64 {
	if a > 0 && b > 0 {
		return ratioScore(a, b, tol)
	}
	return 0.5
}

func typeScore(t1, t2 string) float64 {
	t1, t2 = strings.ToLower(strings.TrimSpace(t1)), strings.ToLower(strings.TrimSpace(t2))
	if t1 == "" || t2 == "" {
		return 0.5
	}
	switch {
	case isCorrosion(t1) && isCorrosion(t2):
		return 1
	case isManufacturing(t1) && isManufacturing(t2):
		return 1
	case t1 == t2:
		return 1
	case isMfgAbbrev(t1) && isManufacturing(t2), isManufacturing(t1) && isMfgAbbrev(t2):
		return 0.8
	}
	return 0.5
}

func isCorrosion(t string) bool {
	return strings.Contains(t, "corrosion") || strings.Contains(t, "腐蚀")
}

func isManufacturing(t string) bool {
	return strings.Contains(t, "manufactur") || strings.Contains(t, "制造")
}

func isMfgAbbrev(t string) bool {
	return strings.Contains(t, "mfg")
}

func quality(score float64) string {
	switch {
	case score > 0.8:
		return "good"
	case score > 0.5:
		return "fair"
	}
	return "poor"
}

func explain(s Similarity, a, b *model.Defect) string {
	parts := []string{
		"distance " + quality(s.Distance),
		"clock " + quality(s.Clock),
	}
	if a.Length > 0 && b.Length > 0 {
		parts = append(parts, "length "+quality(s.Length))
	}
	if a.Depth > 0 && b.Depth > 0 {
		parts = append(parts, "depth "+quality(s.Depth))
	}
	if s.Type > 0.7 {
		parts = append(parts, "type match")
	}
	return strings.Join(parts, "; ")
}
