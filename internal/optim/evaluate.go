package optim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// evaluateBatch scores cands with up to workers concurrent evaluations.
// Results are indexed like cands regardless of completion order.
func evaluateBatch(ctx context.Context, obj Objective, cands []Candidate, workers int) ([]Evaluation, error) {
	out := make([]Evaluation, len(cands))
	if workers <= 1 {
		for i, c := range cands {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = obj.Evaluate(ctx, c)
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range cands {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = obj.Evaluate(gctx, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, ctx.Err()
}

// tracker scores evaluations and keeps the best seen, in evaluation order.
type tracker struct {
	penalty Penalty
	best    Evaluation
	count   int
}

// add scores e, stamps its evaluation index and reports whether it became
// the new best. Ties keep the earlier evaluation.
func (t *tracker) add(e Evaluation) (Evaluation, bool) {
	e = t.penalty.Apply(e)
	e.Index = t.count
	t.count++
	if e.Index == 0 || e.Score < t.best.Score {
		t.best = e
		return e, true
	}
	return e, false
}

func (t *tracker) outcome(strategy string) Outcome {
	o := Outcome{Strategy: strategy, Best: t.best, Evaluations: t.count}
	o.Feasible = t.count > 0 && t.best.Status == StatusFeasible
	switch {
	case t.count == 0:
		o.Message = "no candidates evaluated"
	case o.Feasible:
		o.Message = fmt.Sprintf("best feasible candidate %s", t.best.Candidate)
	case t.best.Status == StatusInfeasible:
		o.Message = fmt.Sprintf("constraint violated: no feasible candidate found, least infeasible is %s", t.best.Candidate)
	default:
		o.Message = fmt.Sprintf("constraint violated: every candidate was rejected (%s)", t.best.Reason)
	}
	return o
}

func summarize(gen int, t *tracker, scores []float64, evals []Evaluation) GenerationStats {
	st := GenerationStats{Generation: gen, Evaluations: t.count, BestScore: t.best.Score, Best: t.best}
	if len(scores) > 0 {
		st.MeanScore, st.StdScore = stat.MeanStdDev(scores, nil)
		if len(scores) == 1 {
			st.StdScore = 0
		}
	}
	for _, e := range evals {
		if e.Status == StatusFeasible {
			st.Feasible++
		}
	}
	return st
}
