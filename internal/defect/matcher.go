package defect

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/weldalign/internal/model"
)

const (
	maxExtrapolatedCandidates = 5
	distancePenalty           = 0.3
	extrapolatedConfidenceMul = 0.8
)

// matcher tracks which defects have been consumed across the three phases.
type matcher struct {
	d1, d2    []model.Defect
	res       *model.AlignmentResult
	tol       model.Tolerances
	processed []bool // source 1
	claimed   []bool // source 2
	out       []model.DefectMatch
}

// Match pairs the defects of two sources in three phases: defects on
// aligned welds, defects projected through the nearest aligned weld, and
// the unclaimed remainder of source 2. Every input defect appears in
// exactly one returned row.
func Match(d1, d2 []model.Defect, res *model.AlignmentResult, tol model.Tolerances) []model.DefectMatch {
	m := &matcher{
		d1:        d1,
		d2:        d2,
		res:       res,
		tol:       tol,
		processed: make([]bool, len(d1)),
		claimed:   make([]bool, len(d2)),
		out:       make([]model.DefectMatch, 0, len(d1)+len(d2)),
	}
	m.weldAnchored()
	m.extrapolated()
	m.residual()
	return m.out
}

func (m *matcher) weldAnchored() {
	matched := 0
	for i := range m.d1 {
		a := &m.d1[i]
		w2, ok := m.res.MappedTo2(a.WeldID)
		if !ok {
			continue
		}
		m.processed[i] = true

		best := -1
		var bestSim Similarity
		for j := range m.d2 {
			if m.claimed[j] || m.d2[j].WeldID != w2.ID {
				continue
			}
			if sim := Score(a, &m.d2[j], m.tol); sim.Confidence > bestSim.Confidence {
				best, bestSim = j, sim
			}
		}

		switch {
		case best >= 0 && bestSim.Confidence >= m.tol.MinConfidence:
			m.claimed[best] = true
			m.emit(a, &m.d2[best], bestSim.Confidence, bestSim.Explanation, model.MatchWeldAnchored)
			matched++
		case best >= 0:
			m.emit(a, nil, bestSim.Confidence,
				fmt.Sprintf("aligned weld, confidence too low: %.2f", bestSim.Confidence),
				model.MatchUnmatchedSource1)
		default:
			m.emit(a, nil, 0, "aligned weld, no candidate defect", model.MatchUnmatchedSource1)
		}
	}
	zap.L().Debug("defect: weld-anchored phase complete", zap.Int("matched", matched))
}

type candidate struct {
	idx  int
	diff float64
}

func (m *matcher) extrapolated() {
	window := 2 * m.tol.Distance
	matched := 0
	for i := range m.d1 {
		if m.processed[i] {
			continue
		}
		m.processed[i] = true
		a := &m.d1[i]

		ref, ok := m.res.NearestBySource1(a.Position)
		if !ok {
			m.emit(a, nil, 0, "no reference weld", model.MatchUnmatchedSource1)
			continue
		}
		expected := ref.Anchor2.Position + (a.Position - ref.Anchor1.Position)

		var cands []candidate
		for j := range m.d2 {
			if m.claimed[j] {
				continue
			}
			if diff := math.Abs(m.d2[j].Position - expected); diff < window {
				cands = append(cands, candidate{idx: j, diff: diff})
			}
		}
		sort.SliceStable(cands, func(x, y int) bool { return cands[x].diff < cands[y].diff })
		if len(cands) > maxExtrapolatedCandidates {
			cands = cands[:maxExtrapolatedCandidates]
		}

		best := -1
		var bestConf float64
		var bestExpl string
		for _, c := range cands {
			sim := Score(a, &m.d2[c.idx], m.tol)
			adjusted := math.Max(0, sim.Confidence-c.diff/window*distancePenalty)
			if adjusted > bestConf {
				best, bestConf, bestExpl = c.idx, adjusted, sim.Explanation
			}
		}

		if best >= 0 && bestConf >= m.tol.MinConfidence*extrapolatedConfidenceMul {
			m.claimed[best] = true
			m.emit(a, &m.d2[best], bestConf, bestExpl+"; matched by relative distance", model.MatchDistanceExtrapolated)
			matched++
			continue
		}
		m.emit(a, nil, bestConf, "no match by relative distance", model.MatchUnmatchedSource1)
	}
	zap.L().Debug("defect: distance-extrapolated phase complete", zap.Int("matched", matched))
}

func (m *matcher) residual() {
	for j := range m.d2 {
		if m.claimed[j] {
			continue
		}
		b := &m.d2[j]

		var expl string
		if _, ok := m.res.MappedTo1(b.WeldID); ok {
			expl = "aligned weld, no corresponding defect"
		} else if _, ok := m.res.NearestBySource2(b.Position); ok {
			expl = fmt.Sprintf("weld %s has no mapping in source 1; no match by relative distance", b.WeldID)
		} else {
			expl = fmt.Sprintf("weld %s has no mapping in source 1; no reference weld", b.WeldID)
		}
		m.emit(nil, b, 0, expl, model.MatchUnmatchedSource2)
	}
}

func (m *matcher) emit(a, b *model.Defect, confidence float64, explanation string, t model.MatchType) {
	m.out = append(m.out, model.DefectMatch{
		Defect1:     clone(a),
		Defect2:     clone(b),
		Confidence:  math.Min(1, math.Max(0, confidence)),
		Explanation: explanation,
		Type:        t,
	})
}

func clone(d *model.Defect) *model.Defect {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Sort orders rows by the source-1 absolute position, falling back to the
// source-2 position for one-sided rows. Equal keys keep their order.
func Sort(matches []model.DefectMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return sortKey(matches[i]) < sortKey(matches[j])
	})
}

func sortKey(m model.DefectMatch) float64 {
	switch {
	case m.Defect1 != nil:
		return m.Defect1.Position
	case m.Defect2 != nil:
		return m.Defect2.Position
	}
	return math.Inf(1)
}
