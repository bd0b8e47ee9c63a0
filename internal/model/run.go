package model

import "time"

// Run records one completed alignment for the run history.
type Run struct {
	ID           string        `json:"id"`
	Source1      string        `json:"source1"`
	Source2      string        `json:"source2"`
	BaseDistance float64       `json:"base_distance"`
	Summary      Summary       `json:"summary"`
	Stats        Stats         `json:"stats"`
	Tolerances   Tolerances    `json:"tolerances"`
	Matches      []DefectMatch `json:"matches,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Summary holds the headline counts of an alignment.
type Summary struct {
	Anchors1             int               `json:"anchors1"`
	Anchors2             int               `json:"anchors2"`
	AlignedAnchors       int               `json:"aligned_anchors"`
	Source1OnlyAnchors   int               `json:"source1_only_anchors"`
	Source2OnlyAnchors   int               `json:"source2_only_anchors"`
	Defects1             int               `json:"defects1"`
	Defects2             int               `json:"defects2"`
	WeldAnchored         int               `json:"weld_anchored"`
	DistanceExtrapolated int               `json:"distance_extrapolated"`
	TotalMatched         int               `json:"total_matched"`
	BaseDistance         float64           `json:"base_distance"`
	ByType               map[MatchType]int `json:"by_type"`
}
