package optim

import (
	"context"
	"math"
	"math/rand"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

var testBounds = Bounds{
	Mass:    Range{Min: 5000, Max: 20000},
	Damping: Range{Min: 1000, Max: 50000},
}

// bowl peaks at (12000, 20000) with 1000 W; damping above dampingLimit
// violates a limit proportional to the excess.
func bowl(dampingLimit float64) ObjectiveFunc {
	return func(ctx context.Context, c Candidate) Evaluation {
		e := Evaluation{Candidate: c}
		if !testBounds.Contains(c) {
			e.Status = StatusRejected
			e.Reason = "out of bounds"
			return e
		}
		dm := (c.Mass - 12000) / 1000
		dc := (c.Damping - 20000) / 5000
		e.MeanPower = 1000 - dm*dm - dc*dc
		e.Status = StatusFeasible
		if c.Damping > dampingLimit {
			e.Status = StatusInfeasible
			e.Violations = []dynamo.ConstraintViolation{{Name: "damping", Value: c.Damping, Limit: dampingLimit}}
		}
		return e
	}
}

type recorder struct {
	mu    sync.Mutex
	obj   Objective
	evals []Evaluation
}

func (r *recorder) Evaluate(ctx context.Context, c Candidate) Evaluation {
	e := r.obj.Evaluate(ctx, c)
	r.mu.Lock()
	r.evals = append(r.evals, e)
	r.mu.Unlock()
	return e
}

func testConfig() DEConfig {
	cfg := DefaultDEConfig()
	cfg.MaxGenerations = 40
	cfg.Tol = 0
	return cfg
}

var _ = Describe("Penalty", func() {
	p := Penalty{Base: 1e10}

	It("scores feasible candidates by negative power", func() {
		Expect(p.Score(Evaluation{Status: StatusFeasible, MeanPower: 1234})).To(Equal(-1234.0))
	})

	It("ranks infeasible candidates by violation", func() {
		small := Evaluation{Status: StatusInfeasible, Violations: []dynamo.ConstraintViolation{{Name: "a", Value: 2.2, Limit: 2}}}
		large := Evaluation{Status: StatusInfeasible, Violations: []dynamo.ConstraintViolation{{Name: "a", Value: 4, Limit: 2}}}
		Expect(p.Score(small)).To(BeNumerically("<", p.Score(large)))
		Expect(p.Score(small)).To(BeNumerically(">", p.Score(Evaluation{Status: StatusFeasible, MeanPower: 1e6})))
	})

	It("keeps every infeasible score below rejection", func() {
		huge := Evaluation{Status: StatusInfeasible, Violations: []dynamo.ConstraintViolation{{Name: "a", Value: 1e9, Limit: 1}}}
		Expect(p.Score(huge)).To(Equal(99e10))
		Expect(p.Score(Evaluation{Status: StatusRejected})).To(Equal(100e10))
		Expect(p.Score(Evaluation{Status: StatusFailed})).To(Equal(100e10))
	})

	It("uses the worst violation", func() {
		e := Evaluation{Violations: []dynamo.ConstraintViolation{
			{Name: "a", Value: 3, Limit: 2},
			{Name: "b", Value: 12, Limit: 4},
		}}
		Expect(e.Violation()).To(BeNumerically("~", 2, 1e-12))
	})
})

var _ = Describe("DifferentialEvolution", func() {
	It("finds the feasible optimum of a smooth bowl", func() {
		rec := &recorder{obj: bowl(math.Inf(1))}
		out, err := NewDifferentialEvolution(testBounds, testConfig()).Optimize(context.Background(), rec)
		Expect(err).NotTo(HaveOccurred())

		Expect(out.Feasible).To(BeTrue())
		Expect(out.Best.MeanPower).To(BeNumerically(">", 990))
		Expect(out.Evaluations).To(Equal(len(rec.evals)))
		Expect(out.Generations).To(Equal(40))
		Expect(out.History).To(HaveLen(41))
		for _, e := range rec.evals {
			Expect(e.MeanPower).To(BeNumerically("<=", out.Best.MeanPower))
		}
	})

	It("is deterministic for a fixed seed", func() {
		de := NewDifferentialEvolution(testBounds, testConfig())
		a, err := de.Optimize(context.Background(), bowl(25000))
		Expect(err).NotTo(HaveOccurred())
		b, err := de.Optimize(context.Background(), bowl(25000))
		Expect(err).NotTo(HaveOccurred())

		Expect(b.Best.Candidate).To(Equal(a.Best.Candidate))
		Expect(b.Best.MeanPower).To(Equal(a.Best.MeanPower))
		Expect(b.Evaluations).To(Equal(a.Evaluations))
	})

	It("depends on the seed", func() {
		cfg := testConfig()
		cfg.MaxGenerations = 2
		a, _ := NewDifferentialEvolution(testBounds, cfg).Optimize(context.Background(), bowl(25000))
		cfg.Seed = 7
		b, _ := NewDifferentialEvolution(testBounds, cfg).Optimize(context.Background(), bowl(25000))
		Expect(b.Best.Candidate).NotTo(Equal(a.Best.Candidate))
	})

	It("gives identical results with parallel workers", func() {
		serial := testConfig()
		parallel := testConfig()
		parallel.Workers = 4

		a, err := NewDifferentialEvolution(testBounds, serial).Optimize(context.Background(), bowl(25000))
		Expect(err).NotTo(HaveOccurred())
		b, err := NewDifferentialEvolution(testBounds, parallel).Optimize(context.Background(), bowl(25000))
		Expect(err).NotTo(HaveOccurred())

		Expect(b.Best).To(Equal(a.Best))
		Expect(b.History).To(Equal(a.History))
	})

	It("returns the least-infeasible candidate when nothing is feasible", func() {
		rec := &recorder{obj: bowl(500)}
		out, err := NewDifferentialEvolution(testBounds, testConfig()).Optimize(context.Background(), rec)
		Expect(err).NotTo(HaveOccurred())

		Expect(out.Feasible).To(BeFalse())
		Expect(out.Best.Status).To(Equal(StatusInfeasible))
		Expect(out.Message).To(ContainSubstring("constraint violated"))
		for _, e := range rec.evals {
			Expect(e.Violation()).To(BeNumerically(">=", out.Best.Violation()))
		}
	})

	It("never selects a rejected candidate over a feasible one", func() {
		obj := ObjectiveFunc(func(ctx context.Context, c Candidate) Evaluation {
			if c.Mass < 15000 {
				// Rejected candidates may carry any power; it must not count.
				return Evaluation{Candidate: c, Status: StatusRejected, MeanPower: 1e9}
			}
			return bowl(math.Inf(1))(ctx, c)
		})
		out, err := NewDifferentialEvolution(testBounds, testConfig()).Optimize(context.Background(), obj)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Best.Status).To(Equal(StatusFeasible))
		Expect(out.Best.Candidate.Mass).To(BeNumerically(">=", 15000))
	})

	It("stops at the evaluation budget", func() {
		cfg := testConfig()
		cfg.MaxEvaluations = 25
		rec := &recorder{obj: bowl(math.Inf(1))}

		out, err := NewDifferentialEvolution(testBounds, cfg).Optimize(context.Background(), rec)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Evaluations).To(Equal(25))
		Expect(rec.evals).To(HaveLen(25))
	})

	It("converges on a flat objective", func() {
		cfg := testConfig()
		cfg.Tol = 0.01
		flat := ObjectiveFunc(func(ctx context.Context, c Candidate) Evaluation {
			return Evaluation{Candidate: c, Status: StatusFeasible, MeanPower: 10}
		})

		out, err := NewDifferentialEvolution(testBounds, cfg).Optimize(context.Background(), flat)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Converged).To(BeTrue())
		Expect(out.Generations).To(Equal(1))
		Expect(out.Best.Index).To(Equal(0))
	})

	It("only improves when polishing", func() {
		cfg := testConfig()
		cfg.MaxGenerations = 3
		plain, err := NewDifferentialEvolution(testBounds, cfg).Optimize(context.Background(), bowl(math.Inf(1)))
		Expect(err).NotTo(HaveOccurred())

		cfg.Polish = true
		polished, err := NewDifferentialEvolution(testBounds, cfg).Optimize(context.Background(), bowl(math.Inf(1)))
		Expect(err).NotTo(HaveOccurred())

		Expect(polished.Best.Score).To(BeNumerically("<=", plain.Best.Score))
		Expect(polished.Evaluations).To(BeNumerically(">", plain.Evaluations))
		Expect(polished.Evaluations - plain.Evaluations).To(BeNumerically("<=", cfg.PolishEvaluations))
	})

	It("keeps polishing inside the evaluation budget", func() {
		cfg := testConfig()
		cfg.MaxGenerations = 1
		plain, err := NewDifferentialEvolution(testBounds, cfg).Optimize(context.Background(), bowl(math.Inf(1)))
		Expect(err).NotTo(HaveOccurred())

		cfg.Polish = true
		cfg.MaxEvaluations = plain.Evaluations + 2
		Expect(cfg.PolishEvaluations).To(BeNumerically(">", 2))
		rec := &recorder{obj: bowl(math.Inf(1))}

		out, err := NewDifferentialEvolution(testBounds, cfg).Optimize(context.Background(), rec)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Evaluations).To(BeNumerically(">", plain.Evaluations))
		Expect(out.Evaluations).To(BeNumerically("<=", cfg.MaxEvaluations))
		Expect(len(rec.evals)).To(Equal(out.Evaluations))
	})

	It("reports every generation to the observer", func() {
		var seen []int
		de := NewDifferentialEvolution(testBounds, testConfig())
		de.SetObserver(func(st GenerationStats) { seen = append(seen, st.Generation) })

		_, err := de.Optimize(context.Background(), bowl(math.Inf(1)))
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(HaveLen(41))
		Expect(seen[0]).To(Equal(0))
		Expect(seen[40]).To(Equal(40))
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewDifferentialEvolution(testBounds, testConfig()).Optimize(ctx, bowl(math.Inf(1)))
		Expect(err).To(MatchError(context.Canceled))
	})

	It("rejects invalid configuration", func() {
		cfg := testConfig()
		cfg.Recombination = 1.5
		_, err := NewDifferentialEvolution(testBounds, cfg).Optimize(context.Background(), bowl(0))
		Expect(err).To(MatchError(dynamo.ErrInvalidParameter))

		bad := Bounds{Mass: Range{Min: 10, Max: 1}, Damping: testBounds.Damping}
		_, err = NewDifferentialEvolution(bad, testConfig()).Optimize(context.Background(), bowl(0))
		Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
	})
})

var _ = Describe("sampling helpers", func() {
	It("places one Latin hypercube point per stratum", func() {
		rng := rand.New(rand.NewSource(3))
		pts := latinHypercube(rng, 10, 2)
		for j := 0; j < 2; j++ {
			strata := map[int]bool{}
			for _, p := range pts {
				Expect(p[j]).To(BeNumerically(">=", 0))
				Expect(p[j]).To(BeNumerically("<", 1))
				strata[int(p[j]*10)] = true
			}
			Expect(strata).To(HaveLen(10))
		}
	})

	It("picks two distinct partners", func() {
		rng := rand.New(rand.NewSource(5))
		for i := 0; i < 200; i++ {
			a, b := pickTwo(rng, 4, i%4)
			Expect(a).NotTo(Equal(i % 4))
			Expect(b).NotTo(Equal(i % 4))
			Expect(a).NotTo(Equal(b))
		}
	})
})

var _ = Describe("GridSearch", func() {
	bounds := Bounds{Mass: Range{Min: 8000, Max: 16000}, Damping: Range{Min: 10000, Max: 30000}}
	penalty := Penalty{Base: DefaultPenalty}

	It("finds the grid optimum", func() {
		out, err := NewGridSearch(bounds, 5, 1, penalty).Optimize(context.Background(), bowl(math.Inf(1)))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Feasible).To(BeTrue())
		Expect(out.Best.Candidate).To(Equal(Candidate{Mass: 12000, Damping: 20000}))
		Expect(out.Best.MeanPower).To(Equal(1000.0))
		Expect(out.Evaluations).To(Equal(25))
	})

	It("sweeps mass slowest and scores every point", func() {
		evals, err := NewGridSearch(bounds, 3, 2, penalty).Sweep(context.Background(), bowl(math.Inf(1)))
		Expect(err).NotTo(HaveOccurred())
		Expect(evals).To(HaveLen(9))
		Expect(evals[0].Candidate).To(Equal(Candidate{Mass: 8000, Damping: 10000}))
		Expect(evals[1].Candidate).To(Equal(Candidate{Mass: 8000, Damping: 20000}))
		Expect(evals[3].Candidate).To(Equal(Candidate{Mass: 12000, Damping: 10000}))
		for i, e := range evals {
			Expect(e.Index).To(Equal(i))
			Expect(e.Score).To(Equal(-e.MeanPower))
		}
	})

	It("rejects an empty grid", func() {
		_, err := NewGridSearch(bounds, 0, 1, penalty).Optimize(context.Background(), bowl(0))
		Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
	})
})
