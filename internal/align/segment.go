package align

import "math"

// alignSegments pairs anchors inside two index segments whose total lengths
// already agree. Each side keeps a running sum of deltas. When the sums
// agree the two heads are paired and both sums restart. Otherwise the head
// of the shorter side is emitted alone and its next delta is added.
func (e *engine) alignSegments(seg1, seg2 []int) {
	a, b := 0, 0
	acc1, acc2 := e.d1[seg1[0]], e.d2[seg2[0]]

	for a < len(seg1) && b < len(seg2) {
		switch {
		case e.segmentAgrees(acc1, acc2):
			e.out.paired(seg1[a], seg2[b], segmentConfidence(acc1, acc2, e.tol.Abs))
			a++
			b++
			if a < len(seg1) && b < len(seg2) {
				acc1, acc2 = e.d1[seg1[a]], e.d2[seg2[b]]
			}
		case acc1 < acc2:
			e.out.only1(seg1[a])
			a++
			if a < len(seg1) {
				acc1 += e.d1[seg1[a]]
			}
		default:
			e.out.only2(seg2[b])
			b++
			if b < len(seg2) {
				acc2 += e.d2[seg2[b]]
			}
		}
	}

	for ; a < len(seg1); a++ {
		e.out.only1(seg1[a])
	}
	for ; b < len(seg2); b++ {
		e.out.only2(seg2[b])
	}
}

// segmentAgrees applies the absolute tolerance first, then the relative
// tolerance against either accumulator.
func (e *engine) segmentAgrees(acc1, acc2 float64) bool {
	diff := math.Abs(acc1 - acc2)
	if diff < e.tol.Abs {
		return true
	}
	if acc1 > 0 && diff/acc1 < e.tol.Rel {
		return true
	}
	return acc2 > 0 && diff/acc2 < e.tol.Rel
}
