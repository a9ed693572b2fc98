package optim

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

// GridSearch evaluates every point of a Points × Points grid over the
// bounds, mass varying slowest.
type GridSearch struct {
	bounds   Bounds
	points   int
	workers  int
	penalty  Penalty
	observer Observer
}

func NewGridSearch(bounds Bounds, points, workers int, penalty Penalty) *GridSearch {
	return &GridSearch{bounds: bounds, points: points, workers: workers, penalty: penalty}
}

func (g *GridSearch) SetObserver(o Observer) { g.observer = o }

// Axes returns the grid values along mass and damping.
func (g *GridSearch) Axes() [][]float64 {
	axis := func(r Range) []float64 {
		if g.points == 1 {
			return []float64{r.At(0.5)}
		}
		return floats.Span(make([]float64, g.points), r.Min, r.Max)
	}
	return [][]float64{axis(g.bounds.Mass), axis(g.bounds.Damping)}
}

// Sweep evaluates and scores the whole grid.
func (g *GridSearch) Sweep(ctx context.Context, obj Objective) ([]Evaluation, error) {
	evals, _, err := g.run(ctx, obj)
	return evals, err
}

func (g *GridSearch) Optimize(ctx context.Context, obj Objective) (Outcome, error) {
	evals, tr, err := g.run(ctx, obj)
	if err != nil {
		return Outcome{}, err
	}
	out := tr.outcome("grid_search")
	out.Generations = 1
	st := summarize(1, tr, scoresOf(evals), evals)
	out.History = []GenerationStats{st}
	if g.observer != nil {
		g.observer(st)
	}
	return out, nil
}

func (g *GridSearch) run(ctx context.Context, obj Objective) ([]Evaluation, *tracker, error) {
	if err := g.bounds.Validate(); err != nil {
		return nil, nil, err
	}
	if g.points < 1 {
		return nil, nil, &dynamo.InvalidParameterError{Name: "grid_points", Value: float64(g.points), Reason: "must be at least 1"}
	}

	var cands []Candidate
	g.enumerate(0, g.Axes(), make([]float64, dims), &cands)

	evals, err := evaluateBatch(ctx, obj, cands, g.workers)
	if err != nil {
		return nil, nil, fmt.Errorf("grid search: %w", err)
	}
	tr := &tracker{penalty: g.penalty}
	for i := range evals {
		evals[i], _ = tr.add(evals[i])
	}
	return evals, tr, nil
}

func (g *GridSearch) enumerate(depth int, axes [][]float64, current []float64, out *[]Candidate) {
	if depth == len(axes) {
		*out = append(*out, Candidate{Mass: current[0], Damping: current[1]})
		return
	}
	for _, v := range axes[depth] {
		current[depth] = v
		g.enumerate(depth+1, axes, current, out)
	}
}

func scoresOf(evals []Evaluation) []float64 {
	s := make([]float64, len(evals))
	for i, e := range evals {
		s[i] = e.Score
	}
	return s
}
