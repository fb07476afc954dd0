package dice

// Script replays fixed results, for tests and replays.
// Ints holds dice faces: a queued 3 makes Between(src, 1, 100) return 3.
// Faces outside the requested range are clamped, and an exhausted queue
// yields the low end of the range.
type Script struct {
	Ints   []int
	Floats []float64
}

func (s *Script) face(lo, hi int) int {
	if len(s.Ints) == 0 {
		return lo
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *Script) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.face(0, n-1)
}

func (s *Script) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	if v < 0 {
		return 0
	}
	if v >= 1 {
		return 0.999999
	}
	return v
}
