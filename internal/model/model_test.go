package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnchorSequence(t *testing.T) {
	s := NewAnchorSequence([]Anchor{{ID: "1", Position: 0}, {ID: "2", Position: 10.12346}, {ID: "3", Position: 22}})
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{0, 10.1235, 11.8765}, s.Deltas)

	empty := NewAnchorSequence(nil)
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Deltas)
}

func TestAlignmentResult_Lookups(t *testing.T) {
	a := func(id string, pos float64) *Anchor { return &Anchor{ID: id, Position: pos} }
	pairs := []AlignmentPair{
		{Anchor1: a("1", 0), Anchor2: a("A", 1)},
		{Anchor1: a("2", 10)},
		{Anchor2: a("B", 12)},
		{Anchor1: a("3", 20), Anchor2: a("C", 21)},
	}
	res := NewAlignmentResult(pairs, 50, Stats{})

	assert.Equal(t, 2, res.AlignedCount)
	assert.Equal(t, 1, res.Source1Only())
	assert.Equal(t, 1, res.Source2Only())
	assert.Equal(t, PairSource1Only, res.Pairs[1].Kind())
	assert.Equal(t, PairSource2Only, res.Pairs[2].Kind())

	got, ok := res.MappedTo2("3")
	require.True(t, ok)
	assert.Equal(t, "C", got.ID)

	_, ok = res.MappedTo2("2")
	assert.False(t, ok)

	got, ok = res.MappedTo1("A")
	require.True(t, ok)
	assert.Equal(t, "1", got.ID)

	p, ok := res.NearestBySource1(9)
	require.True(t, ok)
	assert.Equal(t, "1", p.Anchor1.ID)

	// 11 is equidistant from 1 and 21; the earlier row wins.
	p, ok = res.NearestBySource2(11)
	require.True(t, ok)
	assert.Equal(t, "A", p.Anchor2.ID)
}

func TestAlignmentResult_NoPairs(t *testing.T) {
	res := NewAlignmentResult([]AlignmentPair{{Anchor1: &Anchor{ID: "1"}}}, 10, Stats{})
	_, ok := res.NearestBySource1(0)
	assert.False(t, ok)
	assert.Equal(t, 0, res.AlignedCount)
}

func TestMatchType_Matched(t *testing.T) {
	assert.True(t, MatchWeldAnchored.Matched())
	assert.True(t, MatchDistanceExtrapolated.Matched())
	assert.False(t, MatchUnmatchedSource1.Matched())
	assert.False(t, MatchUnmatchedSource2.Matched())
}

func TestTolerances_Validate(t *testing.T) {
	require.NoError(t, DefaultTolerances().Validate())

	bad := DefaultTolerances()
	bad.ClockPosition = 0
	assert.Error(t, bad.Validate())

	bad = DefaultTolerances()
	bad.MinConfidence = 1.2
	assert.Error(t, bad.Validate())
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.235, Round(1.23456, 3))
	assert.Equal(t, -2.5, Round(-2.46, 1))
}
