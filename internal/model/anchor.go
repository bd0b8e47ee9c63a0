// Package model defines the records exchanged between ingest, alignment,
// defect matching, reporting and storage.
package model

import "math"

// Anchor is a girth weld located by its absolute position along the line.
type Anchor struct {
	ID        string  `json:"id"`
	Synthetic bool    `json:"synthetic,omitempty"` // ID was assigned, not read from the source
	Position  float64 `json:"position"`
	Row       int     `json:"row"` // 0-based data row in the source sheet
}

// AnchorSequence holds a source's anchors ordered by position and the
// spacing between consecutive anchors. Deltas[0] is always 0, so both
// slices have the same length.
type AnchorSequence struct {
	Anchors []Anchor  `json:"anchors"`
	Deltas  []float64 `json:"deltas"`
}

// NewAnchorSequence derives deltas for anchors that are already sorted by
// position.
func NewAnchorSequence(anchors []Anchor) AnchorSequence {
	deltas := make([]float64, len(anchors))
	for i := 1; i < len(anchors); i++ {
		deltas[i] = Round(anchors[i].Position-anchors[i-1].Position, 4)
	}
	return AnchorSequence{Anchors: anchors, Deltas: deltas}
}

// Len returns the number of anchors.
func (s AnchorSequence) Len() int { return len(s.Anchors) }

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
