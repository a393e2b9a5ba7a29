package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/atelier-sched/atelier/pkg/telemetry"
)

// Scheduler runs the solve pipeline: admission, model build, backend solve,
// schedule extraction, KPI computation. Every Solve call is self-contained
// and shares no mutable state with concurrent calls; a single Scheduler is
// safe for concurrent use.
type Scheduler struct {
	// backend solves compiled models.
	backend Backend

	// admission guards solves; nil means no admission control.
	admission Admission

	// telemetry provides logging, tracing, metrics, and events.
	telemetry *telemetry.Telemetry

	// defaults are applied to zero-valued solve options.
	defaults SolveOptions
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Backend is the solver backend used to solve compiled models. Required.
	Backend Backend

	// Admission optionally guards solves. Nil disables admission control.
	Admission Admission

	// Telemetry provides logging, tracing, metrics, and events.
	// Nil selects a disabled telemetry instance.
	Telemetry *telemetry.Telemetry

	// Defaults are the solve options applied where a caller passes zero values.
	Defaults SolveOptions
}

// NewScheduler creates a scheduler from the given configuration.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Backend == nil {
		return nil, NewValidationError("scheduler requires a backend", nil).
			WithCode(ErrCodeUnknownBackend)
	}

	tel := cfg.Telemetry
	if tel == nil {
		tel = telemetry.Nop()
	}

	defaults := cfg.Defaults
	if defaults.TimeLimit <= 0 {
		defaults.TimeLimit = DefaultSolveOptions().TimeLimit
	}

	return &Scheduler{
		backend:   cfg.Backend,
		admission: cfg.Admission,
		telemetry: tel,
		defaults:  defaults,
	}, nil
}

// Backend returns the configured solver backend.
func (s *Scheduler) Backend() Backend {
	return s.backend
}

// Solve runs the full pipeline for one problem and returns the result.
//
// Solver outcomes travel in the result: an infeasible problem or an exhausted
// time budget is a valid Result, not an error. The error return is reserved
// for faults: rejected problems, policy denials, solver failures, and
// inconsistent schedules.
func (s *Scheduler) Solve(ctx context.Context, problem *Problem, opts SolveOptions) (*Result, error) {
	if problem == nil {
		return nil, NewValidationError("problem is nil", nil).WithCode(ErrCodeEmptyJobs)
	}

	opts = s.applyDefaults(opts)
	solveID := uuid.New().String()

	ctx = s.telemetry.WithContext(ctx)
	ctx = telemetry.WithSolveContext(ctx, solveID, string(problem.Kind),
		problem.JobCount(), problem.MachineCount())

	result, err := s.pipeline(ctx, solveID, problem, opts)

	status := string(StatusError)
	var makespan int64
	if err == nil && result != nil {
		status = string(result.Status)
		if result.Metrics != nil {
			makespan = result.Metrics.Makespan
		}
	}
	telemetry.EndSolveContext(ctx, solveID, status, makespan, err)

	if err != nil {
		s.recordError(err)
		return nil, err
	}
	return result, nil
}

// applyDefaults fills zero-valued options from the scheduler defaults.
func (s *Scheduler) applyDefaults(opts SolveOptions) SolveOptions {
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = s.defaults.TimeLimit
	}
	if opts.Workers == 0 {
		opts.Workers = s.defaults.Workers
	}
	if opts.Seed == 0 {
		opts.Seed = s.defaults.Seed
	}
	if opts.HorizonSlack == 0 {
		opts.HorizonSlack = s.defaults.HorizonSlack
	}
	return opts
}

// pipeline runs the solve phases in order. The context is consulted between
// phases; a running backend solve is interrupted only by its time budget.
func (s *Scheduler) pipeline(ctx context.Context, solveID string, p *Problem, opts SolveOptions) (*Result, error) {
	logger := telemetry.FromContext(ctx)

	if s.admission != nil {
		if err := s.phase(ctx, solveID, PhaseAdmission, func(ctx context.Context) error {
			return s.admission.Authorize(ctx, p, opts)
		}); err != nil {
			if IsPolicy(err) {
				policy := policyName(err)
				s.telemetry.Metrics.RecordPolicyDenial(policy)
				_ = s.telemetry.Events.PublishPolicyViolation(solveID, policy, err.Error())
			}
			return nil, err
		}
	}

	var compiled *CompiledModel
	if err := s.phase(ctx, solveID, PhaseBuild, func(ctx context.Context) error {
		var err error
		compiled, err = BuildModel(p, opts)
		return err
	}); err != nil {
		return nil, err
	}

	s.telemetry.Metrics.ObserveModelSize(compiled.Stats.Variables, compiled.Stats.Constraints)
	logger.WithFields(map[string]interface{}{
		"variables":   compiled.Stats.Variables,
		"constraints": compiled.Stats.Constraints,
		"intervals":   compiled.Stats.Intervals,
		"horizon":     compiled.Stats.Horizon,
	}).Debug("Model compiled")

	var outcome *Outcome
	if err := s.phase(ctx, solveID, PhaseSolve, func(ctx context.Context) error {
		return telemetry.RecordBackendOperation(ctx, s.backend.Name(), func(ctx context.Context) error {
			var err error
			outcome, err = s.backend.Solve(ctx, compiled, opts)
			return err
		})
	}); err != nil {
		return nil, err
	}
	if outcome == nil {
		return nil, NewSolverError("backend returned no outcome", nil).
			WithCode(ErrCodeSolveFailed).
			WithResource(s.backend.Name())
	}

	result := &Result{
		ID:     solveID,
		Status: outcome.Status,
		Model:  compiled.Stats,
		Solve:  outcome.Stats,
	}

	if !outcome.Status.HasSolution() {
		logger.WithField("status", string(outcome.Status)).Info("Solve finished without a schedule")
		return result, nil
	}

	var schedule *Schedule
	if err := s.phase(ctx, solveID, PhaseExtract, func(ctx context.Context) error {
		var err error
		schedule, err = ExtractSchedule(compiled, outcome)
		return err
	}); err != nil {
		return nil, err
	}
	result.Schedule = schedule

	if err := s.phase(ctx, solveID, PhaseMetrics, func(ctx context.Context) error {
		result.Metrics = ComputeMetrics(p, schedule)
		return nil
	}); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"status":     string(result.Status),
		"makespan":   result.Metrics.Makespan,
		"wall_time":  result.Solve.WallSeconds,
		"objective":  result.Solve.Objective,
		"best_bound": result.Solve.BestBound,
	}).Info("Solve completed")

	return result, nil
}

// phase runs one pipeline phase under a span, records its duration, and
// publishes its completion. It refuses to start once the context is done.
func (s *Scheduler) phase(ctx context.Context, solveID string, phase Phase, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return NewInternalError("solve canceled", err).
			WithCode(ErrCodeCanceled).
			WithOperation(string(phase))
	}

	ic := telemetry.StartOperation(ctx, fmt.Sprintf("solve.%s", phase),
		telemetry.AttrSolveID.String(solveID),
		telemetry.AttrPhase.String(string(phase)),
	)
	err := fn(ic.Ctx)
	ic.End(err)

	s.telemetry.Metrics.RecordPhase(string(phase), ic.Timer.Duration())
	if err == nil {
		_ = s.telemetry.Events.PublishPhaseCompleted(solveID, string(phase), ic.Timer.Duration())
	}
	return err
}

// recordError counts a failed solve by error class and code.
func (s *Scheduler) recordError(err error) {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		s.telemetry.Metrics.RecordError(string(engineErr.Class), engineErr.Code)
		return
	}
	s.telemetry.Metrics.RecordError(string(ErrorClassInternal), "")
}

// policyName extracts the denying policy from a policy-class error.
func policyName(err error) string {
	var engineErr *EngineError
	if errors.As(err, &engineErr) && engineErr.Resource != "" {
		return engineErr.Resource
	}
	return "unknown"
}
