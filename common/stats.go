package common

import (
	"math"
)

// 統計情報
type Stats[K comparable] struct {
	trials map[K][]float64
}

func NewStats[K comparable]() *Stats[K] {
	return &Stats[K]{
		trials: make(map[K][]float64),
	}
}

func (s *Stats[K]) Add(key K, value float64) {
	s.trials[key] = append(s.trials[key], value)
}

func (s *Stats[K]) Samples(key K) []float64 {
	return s.trials[key]
}

func (s *Stats[K]) Len() int {
	return len(s.trials)
}

// Calculate returns the mean, the sample standard deviation and the number
// of trials recorded for key.
func (s *Stats[K]) Calculate(key K) (float64, float64, int) {
	trials, ok := s.trials[key]
	if !ok || len(trials) == 0 {
		return 0, 0, len(trials)
	}
	sum := 0.0
	for _, v := range trials {
		sum += v
	}
	mean := sum / float64(len(trials))
	sumSquaredDiff := 0.0
	for _, v := range trials {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	stddev := 0.0
	if len(trials)-1 >= 1 {
		variance := sumSquaredDiff / float64(len(trials)-1)
		stddev = math.Sqrt(variance)
	}
	return mean, stddev, len(trials)
}

func (s *Stats[K]) IsCVSufficient(x K, cv float64) bool {
	mean, stddev, count := s.Calculate(x)
	if count <= 2 {
		return false
	}
	if mean == 0 {
		return stddev == 0
	}
	return stddev/mean < cv
}

// MaxRelative is the largest coefficient of variation over all keys, NaN
// when nothing has been recorded.
func (s *Stats[K]) MaxRelative() float64 {
	relative := math.NaN()
	for x := range s.trials {
		mean, stddev, _ := s.Calculate(x)
		if mean == 0 {
			continue
		}
		r := stddev / mean
		if math.IsNaN(relative) || r > relative {
			relative = r
		}
	}
	return relative
}

// FilterCvSufficient keeps the keys whose coefficient of variation has not
// dropped below cv yet.
func FilterCvSufficient[K comparable](gauge []K, s *Stats[K], cv float64) []K {
	var result []K
	for _, i := range gauge {
		if !s.IsCVSufficient(i, cv) {
			result = append(result, i)
		}
	}
	return result
}
