package problem

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/atelier-sched/atelier/pkg/engine"
)

// Normalizer turns request documents into the engine's canonical problem
// form. Nothing malformed passes: every rejected input carries a validation
// error with the offending job, operation, or machine, never a silently
// applied default.
type Normalizer struct {
	validate *validator.Validate
}

// NewNormalizer creates a normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{validate: validator.New()}
}

// Normalize validates a request and converts it into a canonical problem:
// machine space resolved, stage operations expanded into per-machine
// alternatives, all times quantized to integer ticks, setup entries folded
// into a typed matrix, and model features derived.
func (n *Normalizer) Normalize(req *Request) (*engine.Problem, error) {
	if req == nil || len(req.Jobs) == 0 {
		return nil, engine.NewValidationError("request has no jobs", nil).
			WithCode(engine.ErrCodeEmptyJobs).
			WithOperation(string(engine.PhaseNormalize))
	}

	if err := req.Kind.Validate(); err != nil {
		return nil, engine.NewValidationError("request has an unknown shop kind", err).
			WithCode(engine.ErrCodeBadForm).
			WithOperation(string(engine.PhaseNormalize))
	}

	if len(req.DueDates) != len(req.Jobs) {
		return nil, engine.NewValidationError(
			fmt.Sprintf("request has %d jobs but %d due dates", len(req.Jobs), len(req.DueDates)), nil).
			WithCode(engine.ErrCodeDueCountMismatch).
			WithOperation(string(engine.PhaseNormalize))
	}

	if len(req.ReleaseTimes) > 0 && len(req.ReleaseTimes) != len(req.Jobs) {
		return nil, engine.NewValidationError(
			fmt.Sprintf("request has %d jobs but %d release times", len(req.Jobs), len(req.ReleaseTimes)), nil).
			WithCode(engine.ErrCodeReleaseMismatch).
			WithOperation(string(engine.PhaseNormalize))
	}

	if err := n.validate.Struct(req); err != nil {
		return nil, engine.NewValidationError("request failed structural validation", err).
			WithCode(engine.ErrCodeBadForm).
			WithOperation(string(engine.PhaseNormalize))
	}

	scale := req.TimeScale
	if scale == 0 {
		scale = 1
	}
	if scale < 0 {
		return nil, engine.NewValidationError(fmt.Sprintf("time scale must be positive, got %d", scale), nil).
			WithCode(engine.ErrCodeBadScale).
			WithOperation(string(engine.PhaseNormalize))
	}

	if req.TimeLimitSeconds < 0 {
		return nil, engine.NewValidationError(fmt.Sprintf("time limit must not be negative, got %v", req.TimeLimitSeconds), nil).
			WithCode(engine.ErrCodeBadBudget).
			WithOperation(string(engine.PhaseNormalize))
	}

	stages, err := resolveStages(req)
	if err != nil {
		return nil, err
	}

	machines, err := resolveMachines(req, stages)
	if err != nil {
		return nil, err
	}

	jobs, err := buildJobs(req, machines, stages, scale)
	if err != nil {
		return nil, err
	}

	setup, err := resolveSetup(req, len(jobs), len(machines), scale)
	if err != nil {
		return nil, err
	}

	p := &engine.Problem{
		Kind:      req.Kind,
		Jobs:      jobs,
		Machines:  machines,
		Stages:    stages,
		Setup:     setup,
		TimeScale: scale,
	}
	p.Features = deriveFeatures(p)

	return p, nil
}

// resolveStages builds the stage layout of a hybrid shop from the explicit
// stage list, the machines-per-stage shorthand, or both when they agree.
// Non-hybrid kinds must not declare stages.
func resolveStages(req *Request) ([]engine.Stage, error) {
	declared := len(req.Stages) > 0 || len(req.MachinesPerStage) > 0

	if req.Kind != engine.KindHybrid {
		if declared {
			return nil, engine.NewValidationError(
				fmt.Sprintf("stages only apply to hybrid shops, not kind %q", req.Kind), nil).
				WithCode(engine.ErrCodeBadStage).
				WithOperation(string(engine.PhaseNormalize))
		}
		return nil, nil
	}

	if !declared {
		return nil, engine.NewValidationError("hybrid shop requires stages or machines_per_stage", nil).
			WithCode(engine.ErrCodeBadStage).
			WithOperation(string(engine.PhaseNormalize))
	}

	if len(req.Stages) > 0 && len(req.MachinesPerStage) > 0 {
		if len(req.Stages) != len(req.MachinesPerStage) {
			return nil, engine.NewValidationError(
				fmt.Sprintf("stages declares %d stages but machines_per_stage declares %d",
					len(req.Stages), len(req.MachinesPerStage)), nil).
				WithCode(engine.ErrCodeBadStage).
				WithOperation(string(engine.PhaseNormalize))
		}
		for i := range req.Stages {
			if len(req.Stages[i].Machines) != req.MachinesPerStage[i] {
				return nil, engine.NewValidationError(
					fmt.Sprintf("stage %d lists %d machines but machines_per_stage declares %d",
						i, len(req.Stages[i].Machines), req.MachinesPerStage[i]), nil).
					WithCode(engine.ErrCodeBadStage).
					WithOperation(string(engine.PhaseNormalize)).
					WithDetail("stage", i)
			}
		}
	}

	var stages []engine.Stage
	if len(req.Stages) > 0 {
		stages = make([]engine.Stage, len(req.Stages))
		for i, spec := range req.Stages {
			name := spec.Name
			if name == "" {
				name = fmt.Sprintf("Stage %d", i)
			}
			if len(spec.Machines) == 0 {
				return nil, engine.NewValidationError(fmt.Sprintf("stage %d has no machines", i), nil).
					WithCode(engine.ErrCodeBadStage).
					WithOperation(string(engine.PhaseNormalize)).
					WithDetail("stage", i)
			}
			stages[i] = engine.Stage{
				ID:       i,
				Name:     name,
				Machines: append([]int(nil), spec.Machines...),
			}
		}
	} else {
		stages = make([]engine.Stage, len(req.MachinesPerStage))
		next := 0
		for i, count := range req.MachinesPerStage {
			if count <= 0 {
				return nil, engine.NewValidationError(
					fmt.Sprintf("stage %d must have a positive machine count, got %d", i, count), nil).
					WithCode(engine.ErrCodeBadStage).
					WithOperation(string(engine.PhaseNormalize)).
					WithDetail("stage", i)
			}
			ids := make([]int, count)
			for k := range ids {
				ids[k] = next
				next++
			}
			stages[i] = engine.Stage{
				ID:       i,
				Name:     fmt.Sprintf("Stage %d", i),
				Machines: ids,
			}
		}
	}

	// Stage machine ids must partition a dense machine space: every id
	// 0..N-1 in exactly one stage.
	seen := make(map[int]int)
	total := 0
	for si := range stages {
		for _, m := range stages[si].Machines {
			if m < 0 {
				return nil, engine.NewValidationError(
					fmt.Sprintf("stage %d references negative machine %d", si, m), nil).
					WithCode(engine.ErrCodeBadStage).
					WithOperation(string(engine.PhaseNormalize)).
					WithDetail("stage", si)
			}
			if prev, dup := seen[m]; dup {
				return nil, engine.NewValidationError(
					fmt.Sprintf("machine %d belongs to both stage %d and stage %d", m, prev, si), nil).
					WithCode(engine.ErrCodeBadStage).
					WithOperation(string(engine.PhaseNormalize)).
					WithDetail("machine", m)
			}
			seen[m] = si
			total++
		}
	}
	for m := 0; m < total; m++ {
		if _, ok := seen[m]; !ok {
			return nil, engine.NewValidationError(
				fmt.Sprintf("stage machine ids must be dense, machine %d is missing", m), nil).
				WithCode(engine.ErrCodeBadStage).
				WithOperation(string(engine.PhaseNormalize)).
				WithDetail("machine", m)
		}
	}

	return stages, nil
}

// resolveMachines determines the machine space: from stages for hybrid
// shops, from the explicit machine list, or from the highest referenced
// machine index. Names default to "Machine N", priorities attach as weights.
func resolveMachines(req *Request, stages []engine.Stage) ([]engine.Machine, error) {
	size := 0
	switch {
	case len(stages) > 0:
		for si := range stages {
			size += len(stages[si].Machines)
		}
		if len(req.Machines) > 0 && len(req.Machines) != size {
			return nil, engine.NewValidationError(
				fmt.Sprintf("machine list declares %d machines but stages declare %d", len(req.Machines), size), nil).
				WithCode(engine.ErrCodeBadStage).
				WithOperation(string(engine.PhaseNormalize))
		}
	case len(req.Machines) > 0:
		size = len(req.Machines)
	default:
		for ji := range req.Jobs {
			for oi := range req.Jobs[ji].Operations {
				op := &req.Jobs[ji].Operations[oi]
				if op.Machine != nil && *op.Machine >= size {
					size = *op.Machine + 1
				}
				for ai := range op.Alternatives {
					if op.Alternatives[ai].Machine >= size {
						size = op.Alternatives[ai].Machine + 1
					}
				}
			}
		}
	}

	machines := make([]engine.Machine, size)
	for i := range machines {
		name := fmt.Sprintf("Machine %d", i)
		var weight int64
		if i < len(req.Machines) {
			if req.Machines[i].Name != "" {
				name = req.Machines[i].Name
			}
			if req.Machines[i].Priority < 0 {
				return nil, engine.NewValidationError(
					fmt.Sprintf("machine %d has negative priority %d", i, req.Machines[i].Priority), nil).
					WithCode(engine.ErrCodeBadMachine).
					WithOperation(string(engine.PhaseNormalize)).
					WithDetail("machine", i)
			}
			weight = req.Machines[i].Priority
		}
		machines[i] = engine.Machine{
			ID:     i,
			Name:   name,
			Stage:  -1,
			Weight: weight,
		}
	}
	for si := range stages {
		for _, m := range stages[si].Machines {
			machines[m].Stage = si
		}
	}

	return machines, nil
}

// buildJobs validates every operation form against the shop kind, expands
// stage operations into per-machine alternatives, and quantizes durations,
// due dates, and release times into ticks.
func buildJobs(req *Request, machines []engine.Machine, stages []engine.Stage, scale int64) ([]engine.Job, error) {
	jobs := make([]engine.Job, len(req.Jobs))

	for ji := range req.Jobs {
		spec := &req.Jobs[ji]
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("Job %d", ji)
		}
		due, err := quantizeField(req.DueDates[ji], scale)
		if err != nil || due <= 0 {
			return nil, engine.NewValidationError(
				fmt.Sprintf("job %d due date %v must stay positive at scale %d", ji, req.DueDates[ji], scale), err).
				WithCode(engine.ErrCodeBadDueDate).
				WithOperation(string(engine.PhaseNormalize)).
				WithDetail("job", ji)
		}

		var release int64
		if len(req.ReleaseTimes) > 0 {
			if req.ReleaseTimes[ji] < 0 {
				return nil, engine.NewValidationError(
					fmt.Sprintf("job %d has negative release time %v", ji, req.ReleaseTimes[ji]), nil).
					WithCode(engine.ErrCodeBadRelease).
					WithOperation(string(engine.PhaseNormalize)).
					WithDetail("job", ji)
			}
			release, err = quantizeField(req.ReleaseTimes[ji], scale)
			if err != nil {
				return nil, engine.NewValidationError(
					fmt.Sprintf("job %d release time %v is out of range at scale %d", ji, req.ReleaseTimes[ji], scale), err).
					WithCode(engine.ErrCodeBadRelease).
					WithOperation(string(engine.PhaseNormalize)).
					WithDetail("job", ji)
			}
		}

		ops := make([]engine.Operation, len(spec.Operations))
		for oi := range spec.Operations {
			alts, err := expandOperation(req.Kind, &spec.Operations[oi], ji, oi, machines, stages, scale)
			if err != nil {
				return nil, err
			}
			ops[oi] = engine.Operation{
				Job:          ji,
				Index:        oi,
				Alternatives: alts,
			}
		}

		jobs[ji] = engine.Job{
			ID:      ji,
			Name:    name,
			Release: release,
			Due:     due,
			Ops:     ops,
		}
	}

	if req.Kind.RequiresUniformOps() {
		want := len(jobs[0].Ops)
		for ji := 1; ji < len(jobs); ji++ {
			if len(jobs[ji].Ops) != want {
				return nil, engine.NewValidationError(
					fmt.Sprintf("%s shop requires a uniform operation count, job 0 has %d and job %d has %d",
						req.Kind, want, ji, len(jobs[ji].Ops)), nil).
					WithCode(engine.ErrCodeRaggedJobs).
					WithOperation(string(engine.PhaseNormalize)).
					WithDetail("job", ji)
			}
		}
	}

	return jobs, nil
}

// expandOperation resolves one operation spec into canonical alternatives.
// Exactly one form must be present and the form must suit the shop kind.
func expandOperation(kind engine.ShopKind, op *OperationSpec, ji, oi int, machines []engine.Machine, stages []engine.Stage, scale int64) ([]engine.Alternative, error) {
	fail := func(code, msg string, cause error) error {
		return engine.NewValidationError(msg, cause).
			WithCode(code).
			WithOperation(string(engine.PhaseNormalize)).
			WithResource(fmt.Sprintf("job %d op %d", ji, oi)).
			WithDetail("job", ji).
			WithDetail("op", oi)
	}

	forms := 0
	if op.Machine != nil {
		forms++
	}
	if op.Stage != nil {
		forms++
	}
	if len(op.Alternatives) > 0 {
		forms++
	}
	if forms != 1 {
		return nil, fail(engine.ErrCodeBadForm,
			fmt.Sprintf("job %d op %d must use exactly one of machine, stage, or alternatives", ji, oi), nil)
	}

	switch {
	case op.Machine != nil:
		m := *op.Machine
		if kind == engine.KindFlow && m != oi {
			return nil, fail(engine.ErrCodeBadMachine,
				fmt.Sprintf("flow shop job %d op %d must run on machine %d, got %d", ji, oi, oi, m), nil)
		}
		if m < 0 || m >= len(machines) {
			return nil, fail(engine.ErrCodeBadMachine,
				fmt.Sprintf("job %d op %d references machine %d outside the %d-machine space", ji, oi, m, len(machines)), nil)
		}
		if kind == engine.KindHybrid && machines[m].Stage != oi {
			return nil, fail(engine.ErrCodeBadStage,
				fmt.Sprintf("hybrid job %d op %d must run on a machine of stage %d, machine %d belongs to stage %d",
					ji, oi, oi, m, machines[m].Stage), nil)
		}
		d, err := quantizeDuration(op.Duration, scale)
		if err != nil {
			return nil, fail(engine.ErrCodeBadDuration,
				fmt.Sprintf("job %d op %d duration %v is invalid at scale %d", ji, oi, op.Duration, scale), err)
		}
		return []engine.Alternative{{Machine: m, Duration: d}}, nil

	case op.Stage != nil:
		if kind != engine.KindHybrid {
			return nil, fail(engine.ErrCodeBadForm,
				fmt.Sprintf("%s shop job %d op %d cannot use the stage form", kind, ji, oi), nil)
		}
		s := *op.Stage
		if s != oi {
			return nil, fail(engine.ErrCodeBadStage,
				fmt.Sprintf("hybrid job %d op %d must visit stage %d, got %d", ji, oi, oi, s), nil)
		}
		if s < 0 || s >= len(stages) {
			return nil, fail(engine.ErrCodeBadStage,
				fmt.Sprintf("job %d op %d references stage %d outside the %d-stage layout", ji, oi, s, len(stages)), nil)
		}
		d, err := quantizeDuration(op.Duration, scale)
		if err != nil {
			return nil, fail(engine.ErrCodeBadDuration,
				fmt.Sprintf("job %d op %d duration %v is invalid at scale %d", ji, oi, op.Duration, scale), err)
		}
		alts := make([]engine.Alternative, len(stages[s].Machines))
		for i, m := range stages[s].Machines {
			alts[i] = engine.Alternative{Machine: m, Duration: d}
		}
		return alts, nil

	default:
		if kind != engine.KindFlexible {
			return nil, fail(engine.ErrCodeBadForm,
				fmt.Sprintf("%s shop job %d op %d cannot use the alternatives form", kind, ji, oi), nil)
		}
		if op.Duration != 0 {
			return nil, fail(engine.ErrCodeBadForm,
				fmt.Sprintf("job %d op %d mixes a top-level duration with alternatives", ji, oi), nil)
		}
		alts := make([]engine.Alternative, len(op.Alternatives))
		seen := make(map[int]bool, len(op.Alternatives))
		for i, alt := range op.Alternatives {
			if alt.Machine < 0 || alt.Machine >= len(machines) {
				return nil, fail(engine.ErrCodeBadMachine,
					fmt.Sprintf("job %d op %d references machine %d outside the %d-machine space",
						ji, oi, alt.Machine, len(machines)), nil)
			}
			if seen[alt.Machine] {
				return nil, fail(engine.ErrCodeBadMachine,
					fmt.Sprintf("job %d op %d lists machine %d twice", ji, oi, alt.Machine), nil)
			}
			seen[alt.Machine] = true
			d, err := quantizeDuration(alt.Duration, scale)
			if err != nil {
				return nil, fail(engine.ErrCodeBadDuration,
					fmt.Sprintf("job %d op %d duration %v is invalid at scale %d", ji, oi, alt.Duration, scale), err)
			}
			alts[i] = engine.Alternative{Machine: alt.Machine, Duration: d}
		}
		return alts, nil
	}
}

// resolveSetup folds the request's setup list into a typed matrix, rejecting
// out-of-range references, negative durations, self-references, and
// duplicates. A configured zero stays a real entry.
func resolveSetup(req *Request, jobCount, machineCount int, scale int64) (*engine.SetupMatrix, error) {
	if len(req.SetupTimes) == 0 {
		return nil, nil
	}

	setup := engine.NewSetupMatrix()
	for i, spec := range req.SetupTimes {
		fail := func(msg string, cause error) error {
			return engine.NewValidationError(msg, cause).
				WithCode(engine.ErrCodeBadSetup).
				WithOperation(string(engine.PhaseNormalize)).
				WithDetail("entry", i)
		}

		if spec.Machine < 0 || spec.Machine >= machineCount {
			return nil, fail(fmt.Sprintf("setup entry %d references machine %d outside the %d-machine space",
				i, spec.Machine, machineCount), nil)
		}
		if spec.FromJob < 0 || spec.FromJob >= jobCount {
			return nil, fail(fmt.Sprintf("setup entry %d references unknown job %d", i, spec.FromJob), nil)
		}
		if spec.ToJob < 0 || spec.ToJob >= jobCount {
			return nil, fail(fmt.Sprintf("setup entry %d references unknown job %d", i, spec.ToJob), nil)
		}
		if spec.FromJob == spec.ToJob {
			return nil, fail(fmt.Sprintf("setup entry %d references job %d on both sides", i, spec.FromJob), nil)
		}
		if spec.Duration < 0 {
			return nil, fail(fmt.Sprintf("setup entry %d has negative duration %v", i, spec.Duration), nil)
		}

		d, err := quantizeField(spec.Duration, scale)
		if err != nil {
			return nil, fail(fmt.Sprintf("setup entry %d duration %v is out of range at scale %d",
				i, spec.Duration, scale), err)
		}
		if err := setup.Set(spec.Machine, spec.FromJob, spec.ToJob, d); err != nil {
			return nil, fail(fmt.Sprintf("setup entry %d is invalid", i), err)
		}
	}

	return setup, nil
}

// deriveFeatures inspects the canonical problem for the optional model
// features the builder branches on.
func deriveFeatures(p *engine.Problem) engine.Features {
	f := engine.Features{
		Setup: p.Setup.Len() > 0,
	}
	for ji := range p.Jobs {
		if p.Jobs[ji].Release > 0 {
			f.Release = true
		}
	}
	for mi := range p.Machines {
		if p.Machines[mi].Weight > 0 {
			f.Priorities = true
		}
	}
	if p.MaxAlternatives() > 1 {
		f.MultiMachine = true
	}
	return f
}

// quantizeDuration converts a strictly positive duration to ticks, rejecting
// non-positive inputs and values that round to zero or overflow.
func quantizeDuration(v float64, scale int64) (int64, error) {
	if v <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %v", v)
	}
	d, err := quantizeField(v, scale)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %v rounds to zero ticks at scale %d", v, scale)
	}
	return d, nil
}

// quantizeField converts an input time value to ticks, rounding half away
// from zero.
func quantizeField(v float64, scale int64) (int64, error) {
	scaled := v * float64(scale)
	if math.IsNaN(scaled) || math.Abs(scaled) >= math.Exp2(62) {
		return 0, fmt.Errorf("value %v exceeds the representable tick range at scale %d", v, scale)
	}
	if scaled >= 0 {
		return int64(math.Floor(scaled + 0.5)), nil
	}
	return int64(math.Ceil(scaled - 0.5)), nil
}
