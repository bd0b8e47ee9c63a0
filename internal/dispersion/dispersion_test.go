package dispersion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_EmptyPoolReturnsFallback(t *testing.T) {
	s := Compute([]float64{0}, []float64{0, 0})

	assert.Equal(t, 10.0, s.Mean)
	assert.Equal(t, 2.0, s.Std)
	assert.Equal(t, 0.2, s.CV)
	assert.Equal(t, 8.0, s.Q25)
	assert.Equal(t, 10.0, s.Q50)
	assert.Equal(t, 12.0, s.Q75)
	assert.Equal(t, 4.0, s.IQR)
}

func TestCompute_NilInputs(t *testing.T) {
	assert.Equal(t, Fallback, Compute(nil, nil))
}

func TestCompute_UniformDeltas(t *testing.T) {
	s := Compute([]float64{0, 10, 10, 10}, []float64{0, 10, 10})

	assert.InDelta(t, 10.0, s.Mean, 1e-9)
	assert.InDelta(t, 0.0, s.Std, 1e-9)
	assert.InDelta(t, 0.0, s.CV, 1e-9)
	assert.InDelta(t, 0.0, s.IQR, 1e-9)
	assert.InDelta(t, 10.0, s.FilteredMean, 1e-9)
}

func TestCompute_PopulationStd(t *testing.T) {
	// pool = 2, 4, 4, 4, 5, 5, 7, 9: mean 5, population std 2.
	s := Compute([]float64{0, 2, 4, 4, 4}, []float64{0, 5, 5, 7, 9})

	assert.InDelta(t, 5.0, s.Mean, 1e-9)
	assert.InDelta(t, 2.0, s.Std, 1e-9)
	assert.InDelta(t, 0.4, s.CV, 1e-9)
}

func TestCompute_FiltersOutliers(t *testing.T) {
	d1 := []float64{0, 10, 11, 12, 10, 11}
	d2 := []float64{0, 12, 10, 11, 200}
	s := Compute(d1, d2)

	assert.Greater(t, s.Mean, 20.0)
	assert.InDelta(t, 10.875, s.FilteredMean, 1e-9)
	assert.Less(t, s.FilteredCV, s.CV)
}

func TestCompute_NegativeDeltasExcluded(t *testing.T) {
	s := Compute([]float64{0, -3, 10}, []float64{0, 10})
	assert.InDelta(t, 10.0, s.Mean, 1e-9)
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	assert.InDelta(t, 1.75, Percentile(sorted, 25), 1e-9)
	assert.InDelta(t, 2.5, Percentile(sorted, 50), 1e-9)
	assert.InDelta(t, 3.25, Percentile(sorted, 75), 1e-9)
	assert.InDelta(t, 1.0, Percentile(sorted, 0), 1e-9)
	assert.InDelta(t, 4.0, Percentile(sorted, 100), 1e-9)
}

func TestPercentile_Degenerate(t *testing.T) {
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 25))
}

func TestPool_KeepsOnlyPositive(t *testing.T) {
	got := Pool([]float64{0, 1.5, 0, 2}, []float64{0, -1, 3})
	require.Len(t, got, 3)
	assert.Equal(t, []float64{1.5, 2, 3}, got)
}
