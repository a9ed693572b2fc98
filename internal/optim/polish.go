package optim

import (
	"context"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/san-kum/buoyopt/internal/logger"
)

// polish runs a bounded Nelder-Mead search from the tracker's best point.
// Every trial point goes through the tracker, so the best can only improve.
// At most budget objective calls are made.
func polish(ctx context.Context, obj Objective, b Bounds, tr *tracker, budget int) (bool, error) {
	if budget <= 0 {
		return false, nil
	}
	start := tr.best
	var ctxErr error
	used := 0

	p := optimize.Problem{
		Func: func(u []float64) float64 {
			if ctxErr = ctx.Err(); ctxErr != nil {
				return math.Inf(1)
			}
			if used >= budget {
				return math.Inf(1)
			}
			used++
			e, _ := tr.add(obj.Evaluate(ctx, b.FromUnit(u)))
			return e.Score
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: budget,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-3,
			Relative:   1e-6,
			Iterations: 10,
		},
	}

	res, err := optimize.Minimize(p, b.ToUnit(start.Candidate), settings, &optimize.NelderMead{})
	if ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		logger.Log.Debugw("polish stopped", "error", err)
	} else if res != nil {
		logger.Log.Debugw("polish finished", "status", res.Status.String(), "evaluations", res.Stats.FuncEvaluations)
	}

	improved := tr.best.Index != start.Index
	if improved {
		logger.Log.Infow("polish improved best",
			"from", start.Candidate.String(),
			"to", tr.best.Candidate.String(),
			"score", tr.best.Score,
		)
	}
	return improved, nil
}
