package model

import "math"

// PairKind classifies an AlignmentPair by which sides are present.
type PairKind string

const (
	PairMatched     PairKind = "paired"
	PairSource1Only PairKind = "source1-only"
	PairSource2Only PairKind = "source2-only"
)

// AlignmentPair is one row of an anchor alignment. Either side may be nil,
// never both.
type AlignmentPair struct {
	Anchor1    *Anchor `json:"anchor1,omitempty"`
	Delta1     float64 `json:"delta1"`
	Anchor2    *Anchor `json:"anchor2,omitempty"`
	Delta2     float64 `json:"delta2"`
	Confidence float64 `json:"confidence"` // 0 means no overlap estimate
}

// Kind reports which sides of the pair are present.
func (p AlignmentPair) Kind() PairKind {
	switch {
	case p.Anchor1 != nil && p.Anchor2 != nil:
		return PairMatched
	case p.Anchor1 != nil:
		return PairSource1Only
	default:
		return PairSource2Only
	}
}

// Paired reports whether both sides are present.
func (p AlignmentPair) Paired() bool { return p.Kind() == PairMatched }

// AlignmentResult is the ordered output of one alignment run. It is
// read-only once built by NewAlignmentResult.
type AlignmentResult struct {
	Pairs        []AlignmentPair `json:"pairs"`
	BaseDistance float64         `json:"base_distance"`
	AlignedCount int             `json:"aligned_count"`
	Stats        Stats           `json:"stats"`

	by1 map[string]*AlignmentPair
	by2 map[string]*AlignmentPair
}

// NewAlignmentResult indexes pairs and counts the paired rows. Lookups use
// first-match semantics when an anchor ID occurs more than once.
func NewAlignmentResult(pairs []AlignmentPair, baseDistance float64, stats Stats) *AlignmentResult {
	r := &AlignmentResult{
		Pairs:        pairs,
		BaseDistance: baseDistance,
		Stats:        stats,
		by1:          make(map[string]*AlignmentPair),
		by2:          make(map[string]*AlignmentPair),
	}
	for i := range r.Pairs {
		p := &r.Pairs[i]
		if !p.Paired() {
			continue
		}
		r.AlignedCount++
		if _, ok := r.by1[p.Anchor1.ID]; !ok {
			r.by1[p.Anchor1.ID] = p
		}
		if _, ok := r.by2[p.Anchor2.ID]; !ok {
			r.by2[p.Anchor2.ID] = p
		}
	}
	return r
}

// MappedTo2 returns the source-2 anchor paired with the given source-1
// anchor ID.
func (r *AlignmentResult) MappedTo2(id1 string) (*Anchor, bool) {
	p, ok := r.by1[id1]
	if !ok {
		return nil, false
	}
	return p.Anchor2, true
}

// MappedTo1 returns the source-1 anchor paired with the given source-2
// anchor ID.
func (r *AlignmentResult) MappedTo1(id2 string) (*Anchor, bool) {
	p, ok := r.by2[id2]
	if !ok {
		return nil, false
	}
	return p.Anchor1, true
}

// NearestBySource1 returns the paired row whose source-1 anchor is closest
// to pos. Ties go to the earlier row.
func (r *AlignmentResult) NearestBySource1(pos float64) (*AlignmentPair, bool) {
	return r.nearest(pos, func(p *AlignmentPair) float64 { return p.Anchor1.Position })
}

// NearestBySource2 is NearestBySource1 for the source-2 side.
func (r *AlignmentResult) NearestBySource2(pos float64) (*AlignmentPair, bool) {
	return r.nearest(pos, func(p *AlignmentPair) float64 { return p.Anchor2.Position })
}

func (r *AlignmentResult) nearest(pos float64, side func(*AlignmentPair) float64) (*AlignmentPair, bool) {
	var best *AlignmentPair
	bestDiff := math.Inf(1)
	for i := range r.Pairs {
		p := &r.Pairs[i]
		if !p.Paired() {
			continue
		}
		if d := math.Abs(side(p) - pos); d < bestDiff {
			best, bestDiff = p, d
		}
	}
	return best, best != nil
}

// Source1Only counts rows that carry only a source-1 anchor.
func (r *AlignmentResult) Source1Only() int { return r.count(PairSource1Only) }

// Source2Only counts rows that carry only a source-2 anchor.
func (r *AlignmentResult) Source2Only() int { return r.count(PairSource2Only) }

func (r *AlignmentResult) count(k PairKind) int {
	n := 0
	for _, p := range r.Pairs {
		if p.Kind() == k {
			n++
		}
	}
	return n
}
