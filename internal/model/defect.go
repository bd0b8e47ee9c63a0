package model

import "github.com/rotisserie/eris"

// Defect is a point event located relative to its nearest preceding weld.
type Defect struct {
	Source         int     `json:"source"` // 1 or 2
	WeldID         string  `json:"weld_id"`
	DistanceToWeld float64 `json:"distance_to_weld"`
	ClockDegrees   float64 `json:"clock_degrees"` // [0, 360)
	Depth          float64 `json:"depth"`
	Length         float64 `json:"length"`
	Width          float64 `json:"width"`
	Type           string  `json:"type"`
	Comment        string  `json:"comment,omitempty"`
	Position       float64 `json:"position"` // absolute position
	Index          int     `json:"index"`    // 0-based data row in the source sheet
}

// MatchType tags how a DefectMatch row was produced.
type MatchType string

const (
	MatchWeldAnchored         MatchType = "weld-anchored"
	MatchDistanceExtrapolated MatchType = "distance-extrapolated"
	MatchUnmatchedSource1     MatchType = "unmatched-source1"
	MatchUnmatchedSource2     MatchType = "unmatched-source2"
)

// MatchTypes lists every MatchType in report order.
var MatchTypes = []MatchType{
	MatchWeldAnchored,
	MatchDistanceExtrapolated,
	MatchUnmatchedSource1,
	MatchUnmatchedSource2,
}

// Matched reports whether the row pairs a defect from each source.
func (t MatchType) Matched() bool {
	return t == MatchWeldAnchored || t == MatchDistanceExtrapolated
}

// DefectMatch pairs zero or one defect from each source.
type DefectMatch struct {
	Defect1     *Defect   `json:"defect1,omitempty"`
	Defect2     *Defect   `json:"defect2,omitempty"`
	Confidence  float64   `json:"confidence"`
	Explanation string    `json:"explanation"`
	Type        MatchType `json:"match_type"`
}

// Tolerances are the caller-tunable limits for defect scoring.
type Tolerances struct {
	Distance      float64 `json:"distance" mapstructure:"distance"`             // metres
	ClockPosition float64 `json:"clock_position" mapstructure:"clock_position"` // degrees
	Length        float64 `json:"length" mapstructure:"length"`                 // mm
	Width         float64 `json:"width" mapstructure:"width"`                   // mm
	Depth         float64 `json:"depth" mapstructure:"depth"`
	MinConfidence float64 `json:"min_confidence" mapstructure:"min_confidence"`
}

// DefaultTolerances returns the stock defect tolerances.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Distance:      1.0,
		ClockPosition: 45,
		Length:        10,
		Width:         10,
		Depth:         2,
		MinConfidence: 0.6,
	}
}

// Validate rejects non-positive tolerances and a min confidence outside (0,1].
func (t Tolerances) Validate() error {
	for name, v := range map[string]float64{
		"distance":       t.Distance,
		"clock_position": t.ClockPosition,
		"length":         t.Length,
		"width":          t.Width,
		"depth":          t.Depth,
	} {
		if v <= 0 {
			return eris.Errorf("tolerances: %s must be positive, got %g", name, v)
		}
	}
	if t.MinConfidence <= 0 || t.MinConfidence > 1 {
		return eris.Errorf("tolerances: min_confidence must be in (0,1], got %g", t.MinConfidence)
	}
	return nil
}
