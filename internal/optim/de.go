package optim

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/buoyopt/internal/dynamo"
	"github.com/san-kum/buoyopt/internal/logger"
)

// DEConfig tunes the best1bin differential evolution.
type DEConfig struct {
	PopSize        int     // population = PopSize × dimensions, at least 5
	MaxGenerations int     // generations after the initial population
	MaxEvaluations int     // 0 means unlimited
	Tol            float64 // relative convergence tolerance
	Atol           float64 // absolute convergence tolerance
	MutationMin    float64 // dithered differential weight lower bound
	MutationMax    float64
	Recombination  float64
	Seed           int64
	Workers        int
	Penalty        Penalty

	Polish            bool
	PolishEvaluations int
}

func DefaultDEConfig() DEConfig {
	return DEConfig{
		PopSize:           5,
		MaxGenerations:    10,
		Tol:               0.1,
		MutationMin:       0.5,
		MutationMax:       1.0,
		Recombination:     0.7,
		Seed:              42,
		Workers:           1,
		Penalty:           Penalty{Base: DefaultPenalty},
		PolishEvaluations: 40,
	}
}

func (c DEConfig) Validate() error {
	switch {
	case c.PopSize < 1:
		return &dynamo.InvalidParameterError{Name: "popsize", Value: float64(c.PopSize), Reason: "must be at least 1"}
	case c.MaxGenerations < 0:
		return &dynamo.InvalidParameterError{Name: "max_generations", Value: float64(c.MaxGenerations), Reason: "must be non-negative"}
	case c.MaxEvaluations < 0:
		return &dynamo.InvalidParameterError{Name: "max_evaluations", Value: float64(c.MaxEvaluations), Reason: "must be non-negative"}
	case c.Tol < 0 || c.Atol < 0:
		return &dynamo.InvalidParameterError{Name: "tol", Value: c.Tol, Reason: "tolerances must be non-negative"}
	case !(c.MutationMin > 0) || c.MutationMax < c.MutationMin || c.MutationMax > 2:
		return &dynamo.InvalidParameterError{Name: "mutation", Value: c.MutationMin, Reason: "need 0 < min <= max <= 2"}
	case c.Recombination < 0 || c.Recombination > 1:
		return &dynamo.InvalidParameterError{Name: "recombination", Value: c.Recombination, Reason: "must be in [0, 1]"}
	}
	return nil
}

// DifferentialEvolution works on the unit square and maps members onto the
// bounds only to evaluate them. Trials for a generation are all drawn before
// any is evaluated, so the result does not depend on Workers.
type DifferentialEvolution struct {
	bounds   Bounds
	cfg      DEConfig
	observer Observer
}

func NewDifferentialEvolution(bounds Bounds, cfg DEConfig) *DifferentialEvolution {
	return &DifferentialEvolution{bounds: bounds, cfg: cfg}
}

func (de *DifferentialEvolution) SetObserver(o Observer) { de.observer = o }

func (de *DifferentialEvolution) popSize() int {
	return max(5, de.cfg.PopSize*dims)
}

func (de *DifferentialEvolution) Optimize(ctx context.Context, obj Objective) (Outcome, error) {
	if err := de.bounds.Validate(); err != nil {
		return Outcome{}, err
	}
	if err := de.cfg.Validate(); err != nil {
		return Outcome{}, err
	}

	rng := rand.New(rand.NewSource(de.cfg.Seed))
	np := de.popSize()
	tr := &tracker{penalty: de.cfg.Penalty}

	pop := latinHypercube(rng, np, dims)
	pop = de.budget(pop, tr)
	evals, err := evaluateBatch(ctx, obj, de.candidates(pop), de.cfg.Workers)
	if err != nil {
		return Outcome{}, fmt.Errorf("differential evolution: %w", err)
	}
	scores := make([]float64, len(pop))
	for i := range evals {
		evals[i], _ = tr.add(evals[i])
		scores[i] = evals[i].Score
	}

	var history []GenerationStats
	record := func(gen int) GenerationStats {
		st := summarize(gen, tr, scores, evals)
		history = append(history, st)
		if de.observer != nil {
			de.observer(st)
		}
		logger.Log.Debugw("generation",
			"generation", gen,
			"evaluations", st.Evaluations,
			"best_score", st.BestScore,
			"feasible", st.Feasible,
		)
		return st
	}
	record(0)

	gens := 0
	converged := false
	for gen := 1; gen <= de.cfg.MaxGenerations && len(pop) >= 4; gen++ {
		if de.exhausted(tr) {
			break
		}

		trials := de.trials(rng, pop, scores)
		trials = de.budget(trials, tr)
		trialEvals, err := evaluateBatch(ctx, obj, de.candidates(trials), de.cfg.Workers)
		if err != nil {
			return Outcome{}, fmt.Errorf("differential evolution: %w", err)
		}

		for i := range trialEvals {
			trialEvals[i], _ = tr.add(trialEvals[i])
			if trialEvals[i].Score < scores[i] {
				pop[i] = trials[i]
				scores[i] = trialEvals[i].Score
				evals[i] = trialEvals[i]
			}
		}
		gens = gen

		st := record(gen)
		if st.StdScore <= de.cfg.Atol+de.cfg.Tol*math.Abs(st.MeanScore) {
			converged = true
			break
		}
	}

	polished := false
	if de.cfg.Polish && tr.best.Status == StatusFeasible && !de.exhausted(tr) {
		polished, err = polish(ctx, obj, de.bounds, tr, de.polishBudget(tr))
		if err != nil {
			return Outcome{}, fmt.Errorf("differential evolution: %w", err)
		}
	}

	out := tr.outcome("differential_evolution")
	out.Generations = gens
	out.Converged = converged
	out.Polished = polished
	out.History = history
	logger.Log.Infow("optimization finished",
		"strategy", out.Strategy,
		"generations", out.Generations,
		"evaluations", out.Evaluations,
		"converged", out.Converged,
		"feasible", out.Feasible,
		"best", out.Best.Candidate.String(),
	)
	return out, nil
}

// polishBudget is what remains of MaxEvaluations, capped by PolishEvaluations.
func (de *DifferentialEvolution) polishBudget(tr *tracker) int {
	budget := de.cfg.PolishEvaluations
	if de.cfg.MaxEvaluations > 0 {
		budget = min(budget, de.cfg.MaxEvaluations-tr.count)
	}
	return budget
}

func (de *DifferentialEvolution) exhausted(tr *tracker) bool {
	return de.cfg.MaxEvaluations > 0 && tr.count >= de.cfg.MaxEvaluations
}

// budget truncates a batch to what MaxEvaluations still allows.
func (de *DifferentialEvolution) budget(batch [][]float64, tr *tracker) [][]float64 {
	if de.cfg.MaxEvaluations == 0 {
		return batch
	}
	left := de.cfg.MaxEvaluations - tr.count
	if left < len(batch) {
		return batch[:max(left, 0)]
	}
	return batch
}

func (de *DifferentialEvolution) candidates(units [][]float64) []Candidate {
	cands := make([]Candidate, len(units))
	for i, u := range units {
		cands[i] = de.bounds.FromUnit(u)
	}
	return cands
}

// trials draws one best1bin trial per member: mutant = best + F·(r1 − r2)
// with binomial crossover against the member, out-of-range components
// resampled uniformly.
func (de *DifferentialEvolution) trials(rng *rand.Rand, pop [][]float64, scores []float64) [][]float64 {
	n := len(pop)
	best := 0
	for i, s := range scores {
		if s < scores[best] {
			best = i
		}
	}
	f := de.cfg.MutationMin + rng.Float64()*(de.cfg.MutationMax-de.cfg.MutationMin)

	out := make([][]float64, n)
	for i := range pop {
		r1, r2 := pickTwo(rng, n, i)
		trial := make([]float64, dims)
		copy(trial, pop[i])
		fill := rng.Intn(dims)
		for j := 0; j < dims; j++ {
			if j == fill || rng.Float64() < de.cfg.Recombination {
				trial[j] = pop[best][j] + f*(pop[r1][j]-pop[r2][j])
			}
		}
		for j, v := range trial {
			if v < 0 || v > 1 {
				trial[j] = rng.Float64()
			}
		}
		out[i] = trial
	}
	return out
}

// pickTwo returns two distinct indices in [0, n) other than skip.
func pickTwo(rng *rand.Rand, n, skip int) (int, int) {
	draw := func(exclude ...int) int {
		for {
			k := rng.Intn(n)
			ok := true
			for _, e := range exclude {
				if k == e {
					ok = false
					break
				}
			}
			if ok {
				return k
			}
		}
	}
	a := draw(skip)
	return a, draw(skip, a)
}

// latinHypercube places n points in [0, 1)^d with one point per stratum in
// every dimension.
func latinHypercube(rng *rand.Rand, n, d int) [][]float64 {
	pts := make([][]float64, n)
	for i := range pts {
		pts[i] = make([]float64, d)
	}
	seg := 1 / float64(n)
	for j := 0; j < d; j++ {
		perm := rng.Perm(n)
		for i := 0; i < n; i++ {
			pts[i][j] = (float64(perm[i]) + rng.Float64()) * seg
		}
	}
	return pts
}
