package integrators

import (
	"sort"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

type Stats struct {
	Accepted    int `json:"accepted_steps"`
	Rejected    int `json:"rejected_steps"`
	Evaluations int `json:"evaluations"`
}

// Segment is the quartic interpolant of one accepted step over [T0, T0+H].
type Segment struct {
	T0, H float64
	coef  []float64 // five blocks of len(state)
}

// Eval writes y(t) into dst. t is expected to lie inside the segment.
func (s Segment) Eval(t float64, dst dynamo.State) {
	n := len(dst)
	th := (t - s.T0) / s.H
	th1 := 1 - th
	r := s.coef
	for i := 0; i < n; i++ {
		dst[i] = r[i] + th*(r[n+i]+th1*(r[2*n+i]+th*(r[3*n+i]+th1*r[4*n+i])))
	}
}

// Solution is the continuous solution assembled from accepted steps.
type Solution struct {
	Stats Stats

	segments []Segment
	t0, t1   float64
	dim      int
}

func (s *Solution) Span() (float64, float64) { return s.t0, s.t1 }

func (s *Solution) Segments() []Segment { return s.segments }

// At evaluates the solution at t, clamped to the integrated span.
func (s *Solution) At(t float64) dynamo.State {
	x := make(dynamo.State, s.dim)
	s.AtInto(t, x)
	return x
}

func (s *Solution) AtInto(t float64, dst dynamo.State) {
	if len(s.segments) == 0 {
		return
	}
	i := sort.Search(len(s.segments), func(i int) bool {
		seg := s.segments[i]
		return seg.T0+seg.H >= t
	})
	if i == len(s.segments) {
		i--
	}
	seg := s.segments[i]
	t = max(seg.T0, min(t, seg.T0+seg.H))
	seg.Eval(t, dst)
}
