// Package report summarizes an alignment run and writes it out as a
// spreadsheet and a delta-profile chart.
package report

import "github.com/sells-group/weldalign/internal/model"

// BuildSummary counts anchors, defects and match outcomes. n1 and n2 are
// the defect counts of each source.
func BuildSummary(res *model.AlignmentResult, matches []model.DefectMatch, n1, n2 int) model.Summary {
	s := model.Summary{
		Defects1: n1,
		Defects2: n2,
		ByType:   make(map[model.MatchType]int, len(model.MatchTypes)),
	}
	for _, t := range model.MatchTypes {
		s.ByType[t] = 0
	}

	if res != nil {
		s.BaseDistance = res.BaseDistance
		s.AlignedAnchors = res.AlignedCount
		s.Source1OnlyAnchors = res.Source1Only()
		s.Source2OnlyAnchors = res.Source2Only()
		for _, p := range res.Pairs {
			if p.Anchor1 != nil {
				s.Anchors1++
			}
			if p.Anchor2 != nil {
				s.Anchors2++
			}
		}
	}

	for _, m := range matches {
		s.ByType[m.Type]++
	}
	s.WeldAnchored = s.ByType[model.MatchWeldAnchored]
	s.DistanceExtrapolated = s.ByType[model.MatchDistanceExtrapolated]
	s.TotalMatched = s.WeldAnchored + s.DistanceExtrapolated
	return s
}
