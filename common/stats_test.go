package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsCalculate(t *testing.T) {
	s := NewStats[string]()
	mean, stddev, n := s.Calculate("x")
	assert.Zero(t, mean)
	assert.Zero(t, stddev)
	assert.Zero(t, n)

	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add("x", v)
	}
	mean, stddev, n = s.Calculate("x")
	assert.Equal(t, 8, n)
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, math.Sqrt(32.0/7.0), stddev, 1e-9)

	s.Add("y", 3)
	_, stddev, n = s.Calculate("y")
	assert.Equal(t, 1, n)
	assert.Zero(t, stddev)
	assert.Equal(t, 2, s.Len())
}

func TestStatsCV(t *testing.T) {
	s := NewStats[int]()
	for _, v := range []float64{100, 101, 99} {
		s.Add(1, v)
	}
	for _, v := range []float64{10, 20, 30} {
		s.Add(2, v)
	}
	s.Add(3, 5)
	s.Add(3, 5)

	assert.True(t, s.IsCVSufficient(1, 0.05))
	assert.False(t, s.IsCVSufficient(2, 0.05))
	// too few samples to judge
	assert.False(t, s.IsCVSufficient(3, 0.05))

	assert.Equal(t, []int{2, 3}, FilterCvSufficient([]int{1, 2, 3}, s, 0.05))
	assert.InDelta(t, 0.5, s.MaxRelative(), 1e-9)
}

func TestStatsZeroMean(t *testing.T) {
	s := NewStats[int]()
	for i := 0; i < 3; i++ {
		s.Add(0, 0)
	}
	assert.True(t, s.IsCVSufficient(0, 0.05))
	assert.True(t, math.IsNaN(s.MaxRelative()))
}
