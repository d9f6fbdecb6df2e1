package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	assert.Equal(t, 12.3, Round(12.34, 1))
	assert.Equal(t, 12.4, Round(12.36, 1))
	assert.Equal(t, -3.5, Round(-3.46, 1))
	assert.Equal(t, 5.0, Round(5, 1))

	// halfway literals are not exact in binary
	assert.Equal(t, 1.1, Round(1.15, 1))
	assert.Equal(t, 2.67, Round(2.675, 2))
	// exact ties go to even
	assert.Equal(t, 0.2, Round(0.25, 1))
	assert.Equal(t, 0.8, Round(0.75, 1))
	assert.False(t, math.Signbit(Round(-0.04, 1)))
}

func TestMean(t *testing.T) {
	_, ok := Mean(nil)
	assert.False(t, ok)

	m, ok := Mean([]float64{10, 12, 11, 13, 14})
	assert.True(t, ok)
	assert.Equal(t, 12.0, m)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b ,"))
	assert.Nil(t, SplitList(""))
}
