// Package cpsat backs the engine with Google's CP-SAT solver.
package cpsat

import (
	"context"
	"fmt"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	sppb "github.com/google/or-tools/ortools/sat/proto/satparameters"
	"google.golang.org/protobuf/proto"

	"github.com/atelier-sched/atelier/pkg/engine"
)

// Name is the registry name of the CP-SAT backend.
const Name = "cpsat"

// Backend solves compiled models with CP-SAT. It is stateless and safe for
// concurrent use; every solve is an independent solver run.
type Backend struct{}

// New creates a CP-SAT backend.
func New() *Backend {
	return &Backend{}
}

// Name implements engine.Backend.
func (b *Backend) Name() string {
	return Name
}

// Solve implements engine.Backend. The context is consulted once before the
// solve starts; a running solve is interrupted only by the time budget.
func (b *Backend) Solve(ctx context.Context, model *engine.CompiledModel, opts engine.SolveOptions) (*engine.Outcome, error) {
	if model == nil || model.Proto == nil {
		return nil, engine.NewSolverError("no compiled model to solve", nil).
			WithCode(engine.ErrCodeSolveFailed).
			WithOperation(string(engine.PhaseSolve))
	}
	if err := ctx.Err(); err != nil {
		return nil, engine.NewSolverError("solve canceled before it started", err).
			WithCode(engine.ErrCodeCanceled).
			WithOperation(string(engine.PhaseSolve))
	}

	response, err := cpmodel.SolveCpModelWithParameters(model.Proto, parameters(opts))
	if err != nil {
		return nil, engine.NewSolverError("cp-sat solve failed", err).
			WithCode(engine.ErrCodeSolveFailed).
			WithOperation(string(engine.PhaseSolve))
	}

	return outcome(response)
}

// parameters maps solve options onto CP-SAT parameters. A zero time limit
// leaves the solver unbounded.
func parameters(opts engine.SolveOptions) *sppb.SatParameters {
	params := &sppb.SatParameters{}
	if opts.TimeLimit > 0 {
		params.MaxTimeInSeconds = proto.Float64(opts.TimeLimit.Seconds())
	}
	if opts.Workers > 0 {
		params.NumWorkers = proto.Int32(int32(opts.Workers))
	}
	if opts.Seed != 0 {
		params.RandomSeed = proto.Int32(int32(opts.Seed))
	}
	if opts.LogSearchProgress {
		params.LogSearchProgress = proto.Bool(true)
	}
	return params
}

// outcome maps a solver response onto the engine's outcome taxonomy.
// FEASIBLE and UNKNOWN both mean the budget ran out, with and without a
// solution in hand; only INFEASIBLE is a proof.
func outcome(response *cmpb.CpSolverResponse) (*engine.Outcome, error) {
	stats := engine.SolveStats{
		WallSeconds: response.GetWallTime(),
		Branches:    response.GetNumBranches(),
		Conflicts:   response.GetNumConflicts(),
	}

	switch response.GetStatus() {
	case cmpb.CpSolverStatus_OPTIMAL:
		stats.Objective = response.GetObjectiveValue()
		stats.BestBound = response.GetBestObjectiveBound()
		return &engine.Outcome{Status: engine.StatusOptimal, Stats: stats, Response: response}, nil

	case cmpb.CpSolverStatus_FEASIBLE:
		stats.Objective = response.GetObjectiveValue()
		stats.BestBound = response.GetBestObjectiveBound()
		stats.TimedOut = true
		return &engine.Outcome{Status: engine.StatusFeasible, Stats: stats, Response: response}, nil

	case cmpb.CpSolverStatus_INFEASIBLE:
		return &engine.Outcome{Status: engine.StatusInfeasible, Stats: stats}, nil

	case cmpb.CpSolverStatus_UNKNOWN:
		stats.TimedOut = true
		return &engine.Outcome{Status: engine.StatusInfeasible, Stats: stats}, nil

	default:
		return nil, engine.NewSolverError(
			fmt.Sprintf("cp-sat rejected the model: %s", response.GetStatus()), nil).
			WithCode(engine.ErrCodeSolveFailed).
			WithOperation(string(engine.PhaseSolve))
	}
}
