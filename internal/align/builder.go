package align

import "github.com/sells-group/weldalign/internal/model"

// builder owns the pair slice of one alignment run. Pairs are only ever
// appended, and every anchor is copied so the result never aliases the
// input sequences.
type builder struct {
	s1, s2 model.AnchorSequence
	pairs  []model.AlignmentPair
}

func newBuilder(s1, s2 model.AnchorSequence) *builder {
	return &builder{
		s1:    s1,
		s2:    s2,
		pairs: make([]model.AlignmentPair, 0, max(s1.Len(), s2.Len())),
	}
}

func (b *builder) paired(i, j int, confidence float64) {
	a1, a2 := b.s1.Anchors[i], b.s2.Anchors[j]
	b.pairs = append(b.pairs, model.AlignmentPair{
		Anchor1:    &a1,
		Delta1:     b.s1.Deltas[i],
		Anchor2:    &a2,
		Delta2:     b.s2.Deltas[j],
		Confidence: clamp01(confidence),
	})
}

func (b *builder) only1(i int) {
	a := b.s1.Anchors[i]
	b.pairs = append(b.pairs, model.AlignmentPair{Anchor1: &a, Delta1: b.s1.Deltas[i]})
}

func (b *builder) only2(j int) {
	a := b.s2.Anchors[j]
	b.pairs = append(b.pairs, model.AlignmentPair{Anchor2: &a, Delta2: b.s2.Deltas[j]})
}

func (b *builder) build() []model.AlignmentPair {
	return b.pairs
}
