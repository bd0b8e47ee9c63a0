package align

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/weldalign/internal/model"
)

type state int

const (
	stateSeedSearch state = iota
	stateAccumulate
	stateSegmentMatch
	stateSingleFallback
	stateFlush
	stateDone
)

func (s state) String() string {
	switch s {
	case stateSeedSearch:
		return "seed_search"
	case stateAccumulate:
		return "accumulate"
	case stateSegmentMatch:
		return "segment_match"
	case stateSingleFallback:
		return "single_fallback"
	case stateFlush:
		return "flush"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// engine walks two delta sequences with cursors i and j. Each state
// handler consumes input, appends to the builder and returns the next state.
type engine struct {
	d1, d2 []float64
	base   float64
	tol    Tolerances
	out    *builder

	i, j int

	// Pending segments found by stateAccumulate and the cursors that
	// follow them.
	seg1, seg2   []int
	next1, next2 int
}

// Run aligns two anchor sequences using baseDistance as the accumulation
// window. stats parameterises the tolerances. Every anchor of both
// sequences appears in exactly one pair of the result.
func Run(s1, s2 model.AnchorSequence, baseDistance float64, stats model.Stats) *model.AlignmentResult {
	e := newEngine(s1, s2, baseDistance, SelectTolerances(stats, s1.Len(), s2.Len()))
	e.run()
	return model.NewAlignmentResult(e.out.build(), baseDistance, stats)
}

func newEngine(s1, s2 model.AnchorSequence, base float64, tol Tolerances) *engine {
	return &engine{
		d1:   s1.Deltas,
		d2:   s2.Deltas,
		base: base,
		tol:  tol,
		out:  newBuilder(s1, s2),
	}
}

func (e *engine) run() {
	for st := stateSeedSearch; st != stateDone; {
		st = e.step(st)
	}
}

func (e *engine) step(st state) state {
	switch st {
	case stateSeedSearch:
		return e.seedSearch()
	case stateAccumulate:
		return e.accumulate()
	case stateSegmentMatch:
		return e.segmentMatch()
	case stateSingleFallback:
		return e.singleFallback()
	case stateFlush:
		return e.flush()
	}
	return stateDone
}

// findSeed scans start offsets in order and returns the first pair whose
// deltas agree within the absolute tolerance for MinMatch consecutive steps.
func (e *engine) findSeed() (int, int, bool) {
	n1, n2 := len(e.d1), len(e.d2)
	for s1 := 0; s1 < min(seedScanLimit, n1); s1++ {
		for s2 := 0; s2 < min(seedScanLimit, n2); s2++ {
			count := 0
			for i, j := s1, s2; i < n1 && j < n2 && count < e.tol.MinMatch; i, j = i+1, j+1 {
				if math.Abs(e.d1[i]-e.d2[j]) >= e.tol.Abs {
					break
				}
				count++
			}
			if count >= e.tol.MinMatch {
				return s1, s2, true
			}
		}
	}
	return 0, 0, false
}

func (e *engine) seedSearch() state {
	b1, b2, ok := e.findSeed()
	if !ok {
		zap.L().Debug("align: no seed found, starting at origin",
			zap.Float64("base_distance", e.base),
			zap.Int("min_match", e.tol.MinMatch),
		)
		e.i, e.j = 0, 0
		return stateAccumulate
	}
	zap.L().Debug("align: seed found",
		zap.Int("start1", b1),
		zap.Int("start2", b2),
		zap.Int("length", e.tol.MinMatch),
	)

	for k := 0; k < b1-1; k++ {
		e.out.only1(k)
	}
	for k := 0; k < b2-1; k++ {
		e.out.only2(k)
	}

	// The anchor before the first seed delta closes that delta on both
	// sides, so it inherits the first seed confidence.
	var lead float64
	if e.tol.MinMatch > 0 {
		lead = deltaConfidence(e.d1[b1], e.d2[b2], e.tol.Abs)
	}
	switch {
	case b1 > 0 && b2 > 0:
		e.out.paired(b1-1, b2-1, lead)
	case b1 > 0:
		e.out.only1(b1 - 1)
	case b2 > 0:
		e.out.only2(b2 - 1)
	}

	for k := 0; k < e.tol.MinMatch; k++ {
		e.out.paired(b1+k, b2+k, deltaConfidence(e.d1[b1+k], e.d2[b2+k], e.tol.Abs))
	}
	e.i, e.j = b1+e.tol.MinMatch, b2+e.tol.MinMatch
	return stateAccumulate
}

// accumulate gathers a window of at least base on each side, then extends
// the shorter side until the sums are similar or a side runs out.
func (e *engine) accumulate() state {
	n1, n2 := len(e.d1), len(e.d2)
	if e.i >= n1 || e.j >= n2 {
		return stateFlush
	}

	acc1, seg1, k := accumulateUntil(e.d1, e.i, e.base)
	acc2, seg2, l := accumulateUntil(e.d2, e.j, e.base)

	for (k < n1 || l < n2) && !similar(acc1, acc2, e.tol.Similarity) {
		if acc1 < acc2 {
			if k >= n1 {
				break
			}
			acc1 += e.d1[k]
			seg1 = append(seg1, k)
			k++
		} else {
			if l >= n2 {
				break
			}
			acc2 += e.d2[l]
			seg2 = append(seg2, l)
			l++
		}
	}

	if similar(acc1, acc2, e.tol.Similarity) && len(seg1) > 0 && len(seg2) > 0 {
		e.seg1, e.seg2 = seg1, seg2
		e.next1, e.next2 = k, l
		return stateSegmentMatch
	}
	return stateSingleFallback
}

func (e *engine) segmentMatch() state {
	e.alignSegments(e.seg1, e.seg2)
	e.i, e.j = e.next1, e.next2
	e.seg1, e.seg2 = nil, nil
	return stateAccumulate
}

// singleFallback pairs the current deltas when they are loosely similar.
// Otherwise the side with the smaller delta is emitted alone.
func (e *engine) singleFallback() state {
	d1, d2 := e.d1[e.i], e.d2[e.j]
	switch {
	case similar(d1, d2, fallbackSimilar):
		e.out.paired(e.i, e.j, deltaConfidence(d1, d2, e.tol.Abs))
		e.i++
		e.j++
	case d1 <= d2:
		e.out.only1(e.i)
		e.i++
	default:
		e.out.only2(e.j)
		e.j++
	}
	return stateAccumulate
}

func (e *engine) flush() state {
	for ; e.i < len(e.d1); e.i++ {
		e.out.only1(e.i)
	}
	for ; e.j < len(e.d2); e.j++ {
		e.out.only2(e.j)
	}
	return stateDone
}

// accumulateUntil sums deltas from start until the sum reaches threshold or
// the sequence ends. It returns the sum, the consumed indices and the next
// index.
func accumulateUntil(deltas []float64, start int, threshold float64) (float64, []int, int) {
	var acc float64
	var seg []int
	idx := start
	for idx < len(deltas) && acc < threshold {
		acc += deltas[idx]
		seg = append(seg, idx)
		idx++
	}
	return acc, seg, idx
}
