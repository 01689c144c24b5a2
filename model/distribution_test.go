package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skedge.dev/csa/model"
)

func TestDistributionCDF(t *testing.T) {
	d, err := model.NewDistribution(7, []int{0, 1, 2, 5}, []float64{0.4, 0.3, 0.2, 0.1})
	require.NoError(t, err)

	for _, tc := range []struct {
		Delay    int
		Expected float64
	}{
		{0, 0.4},
		{1, 0.7},
		{2, 0.9},
		{3, 0.9},
		{4, 0.9},
		{5, 1.0},
		{100, 1.0},
	} {
		p, err := d.CDF(tc.Delay)
		assert.NoError(t, err)
		assert.InDelta(t, tc.Expected, p, 1e-9, "cdf(%d)", tc.Delay)
	}
}

func TestDistributionCDFNegativeDelay(t *testing.T) {
	d, err := model.NewDistribution(0, []int{0}, []float64{1})
	require.NoError(t, err)

	_, err = d.CDF(-1)
	assert.ErrorIs(t, err, model.ErrInvalidDelay)
}

func TestDistributionCDFUnsortedInput(t *testing.T) {
	// Construction sorts the points, so CDF works regardless of
	// input order.
	d, err := model.NewDistribution(0, []int{5, 0, 2}, []float64{0.1, 0.6, 0.3})
	require.NoError(t, err)

	p, err := d.CDF(2)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, p, 1e-9)

	p, err = d.CDF(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, p, 1e-9)
}

func TestDistributionMismatchedLengths(t *testing.T) {
	_, err := model.NewDistribution(0, []int{0, 1}, []float64{1})
	assert.ErrorIs(t, err, model.ErrDistributionMismatch)
}

func TestDistributionPartialMass(t *testing.T) {
	// Probabilities summing below one are fine; the missing mass
	// is delay beyond every recorded point.
	d, err := model.NewDistribution(0, []int{0, 1}, []float64{0.5, 0.25})
	require.NoError(t, err)

	p, err := d.CDF(10)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, p, 1e-9)
}

func TestDistributionCopiesInput(t *testing.T) {
	times := []int{3, 1}
	probas := []float64{0.5, 0.5}
	d, err := model.NewDistribution(0, times, probas)
	require.NoError(t, err)

	times[0] = 99
	probas[0] = 0

	p, err := d.CDF(3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p, 1e-9)
}
