package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelier-sched/atelier/pkg/engine"
)

// Admission adapts the policy engine to the scheduler's admission hook. It
// runs before any model is built: a denied problem never reaches the solver.
type Admission struct {
	engine *Engine
	logger zerolog.Logger
}

// NewAdmission creates an admission guard backed by the given policy engine.
func NewAdmission(e *Engine, logger zerolog.Logger) *Admission {
	return &Admission{
		engine: e,
		logger: logger.With().Str("component", "admission").Logger(),
	}
}

// Engine returns the underlying policy engine, for loading custom policies.
func (a *Admission) Engine() *Engine {
	return a.engine
}

// NewInput summarizes a normalized problem and its solve options into the
// document policies evaluate. The horizon is computed the same way the model
// builder computes it, so policies judge the model that would actually be
// built.
func NewInput(p *engine.Problem, opts engine.SolveOptions) (*Input, error) {
	horizon, err := engine.Horizon(p, opts.HorizonSlack)
	if err != nil {
		return nil, err
	}

	setupEntries := 0
	if p.Setup != nil {
		setupEntries = p.Setup.Len()
	}

	return &Input{
		Problem: ProblemShape{
			Kind:            string(p.Kind),
			Jobs:            p.JobCount(),
			Machines:        p.MachineCount(),
			Stages:          len(p.Stages),
			Operations:      p.TotalOperations(),
			MaxAlternatives: p.MaxAlternatives(),
			SetupEntries:    setupEntries,
			Horizon:         horizon,
			TimeScale:       p.TimeScale,
			Features:        p.Features,
		},
		Budget: BudgetShape{
			TimeLimitSeconds:  opts.TimeLimit.Seconds(),
			Workers:           opts.Workers,
			Seed:              opts.Seed,
			LogSearchProgress: opts.LogSearchProgress,
		},
		Context: EvalContext{
			Operation: "solve",
			Timestamp: time.Now(),
		},
	}, nil
}

// Authorize implements engine.Admission. It evaluates all enabled policies
// against the problem's shape and budget and returns a policy-class error
// carrying the violated policy's name when the solve is denied. Non-blocking
// findings are logged and do not stop the solve.
func (a *Admission) Authorize(ctx context.Context, p *engine.Problem, opts engine.SolveOptions) error {
	input, err := NewInput(p, opts)
	if err != nil {
		// Horizon overflow is a model defect; report it as such rather
		// than dressing it up as a policy verdict.
		return err
	}

	result, err := a.engine.Evaluate(ctx, input)
	if err != nil {
		// A guardrail that cannot run must not wave the solve through.
		return engine.NewInternalError("policy evaluation failed", err).
			WithCode(engine.ErrCodeInternal).
			WithOperation(string(engine.PhaseAdmission))
	}

	for _, w := range result.Warnings {
		a.logger.Warn().
			Str("policy", w.Policy).
			Str("severity", string(w.Severity)).
			Msg(w.Message)
	}

	if result.Allowed {
		return nil
	}

	first := result.Violations[0]
	messages := make([]string, len(result.Violations))
	for i, v := range result.Violations {
		messages[i] = fmt.Sprintf("%s: %s", v.Policy, v.Message)
	}

	return engine.NewPolicyError(first.Message, nil).
		WithCode(engine.ErrCodePolicyDenied).
		WithResource(first.Policy).
		WithOperation(string(engine.PhaseAdmission)).
		WithDetail("violations", messages)
}
