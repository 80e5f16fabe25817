package workload

// Splitmix64 is the mixing function behind the plan's pseudo-random picks.
func Splitmix64(x uint64) uint64 {
	z := x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// sequence yields Splitmix64 of consecutive counters starting at seed.
type sequence struct {
	state uint64
}

func (s *sequence) next() uint64 {
	s.state++
	return Splitmix64(s.state)
}

// intn returns a value in [0, n).
func (s *sequence) intn(n int) int {
	return int(s.next() % uint64(n))
}
