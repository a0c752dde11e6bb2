package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModule(t *testing.T) {
	for _, m := range Modules() {
		got, err := ParseModule(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
		assert.NotEmpty(t, m.Title())
	}

	_, err := ParseModule("reinsurance")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestHistogram(t *testing.T) {
	bins := histogram([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10}, 5)
	require.Len(t, bins, 5)

	counts := make([]int, len(bins))
	for i, b := range bins {
		counts[i] = b.Count
	}
	assert.Equal(t, []int{2, 2, 2, 2, 2}, counts)
	assert.Equal(t, 0.0, bins[0].Lower)
	assert.Equal(t, 10.0, bins[4].Upper)

	assert.Nil(t, histogram(nil, 5))
	assert.Equal(t, []Bin{{Lower: 3, Upper: 3, Count: 2}}, histogram([]float64{3, 3}, 4))
}

func TestValidationError(t *testing.T) {
	err := invalid("trials", "must be at least %d", 1)
	assert.EqualError(t, err, "invalid trials: must be at least 1")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
