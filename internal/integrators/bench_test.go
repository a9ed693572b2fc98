package integrators

import (
	"context"
	"testing"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

func BenchmarkRK45Integrate(b *testing.B) {
	integrator := NewRK45(DefaultOptions())
	dyn := &harmonicOscillator{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := integrator.Integrate(context.Background(), dyn, dynamo.State{1, 0}, 0, 600); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSolutionAt(b *testing.B) {
	sol, err := NewRK45(DefaultOptions()).Integrate(context.Background(), &harmonicOscillator{}, dynamo.State{1, 0}, 0, 600)
	if err != nil {
		b.Fatal(err)
	}
	dst := make(dynamo.State, 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sol.AtInto(float64(i%600), dst)
	}
}
