// Package optim searches (mass, PTO damping) space for the buoy with the
// highest mean power under its design limits.
//
// An [Objective] turns a [Candidate] into a typed [Evaluation]; the search
// scores it with a [Penalty] so that feasible power and constraint
// violations share one scale to be minimised. [DifferentialEvolution] is
// the default search; [GridSearch] evaluates a regular grid and doubles as
// a parameter sweep.
package optim
