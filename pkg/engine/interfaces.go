package engine

import (
	"context"

	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
)

// Backend solves a compiled constraint model. Implementations are registered
// under pkg/solvers; the engine never cares which one it talks to.
type Backend interface {
	// Name returns the backend identifier used in logs and the registry.
	Name() string

	// Solve runs the solver on the compiled model within opts.TimeLimit.
	// The context is consulted before the solve starts; once the solver is
	// running, only the time budget interrupts it. Solver outcomes
	// (optimal, feasible, infeasible) travel in the Outcome; the error is
	// reserved for solver faults.
	Solve(ctx context.Context, model *CompiledModel, opts SolveOptions) (*Outcome, error)
}

// Admission authorizes a solve before any model is built. Implementations
// evaluate guardrail policies over the problem's shape and budget.
type Admission interface {
	// Authorize returns a policy-class error when the problem may not be
	// solved, nil otherwise.
	Authorize(ctx context.Context, p *Problem, opts SolveOptions) error
}

// Outcome is a backend's raw answer, before schedule extraction.
type Outcome struct {
	// Status is the solve outcome.
	Status Status `json:"status"`

	// Stats describes the solver run.
	Stats SolveStats `json:"stats"`

	// Response is the raw solver response holding variable assignments.
	// It is nil when the status carries no solution.
	Response *cmpb.CpSolverResponse `json:"-"`
}
