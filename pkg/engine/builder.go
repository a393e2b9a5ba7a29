package engine

import (
	"fmt"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
)

// CompiledModel is a canonical problem compiled into a CP-SAT model, together
// with the variable handles the extractor needs to decode a solution.
type CompiledModel struct {
	// Problem is the canonical problem this model encodes.
	Problem *Problem

	// Proto is the constraint model in CP-SAT wire form, ready to solve.
	Proto *cmpb.CpModelProto

	// Stats describes the compiled model.
	Stats ModelStats

	starts    []cpmodel.IntVar
	ends      []cpmodel.IntVar
	presences [][]cpmodel.BoolVar
	makespan  cpmodel.IntVar
	offsets   []int
}

// opIndex returns the flat index of operation op of the given job.
func (cm *CompiledModel) opIndex(job, op int) int {
	return cm.offsets[job] + op
}

// candidate is one (operation, alternative) binding on a machine.
type candidate struct {
	op       int
	job      int
	presence cpmodel.BoolVar
	interval cpmodel.IntervalVar
}

// BuildModel compiles a normalized problem into a CP-SAT model.
//
// Every operation gets one start and one end variable over [0, horizon] and
// one optional interval per machine alternative, tied to a presence literal;
// exactly one alternative is present. Job chains are linked by precedence
// constraints, machines by no-overlap constraints over their candidate
// intervals. Optional features (release times, setup times, priority
// weights) each add their constraints independently; a problem without a
// feature pays nothing for it.
func BuildModel(p *Problem, opts SolveOptions) (*CompiledModel, error) {
	if p == nil || len(p.Jobs) == 0 {
		return nil, NewModelError("problem has no jobs", nil).
			WithCode(ErrCodeModelInvalid).
			WithOperation(string(PhaseBuild))
	}

	horizon, err := Horizon(p, opts.HorizonSlack)
	if err != nil {
		return nil, err
	}

	model := cpmodel.NewCpModelBuilder()
	domain := cpmodel.NewDomain(0, horizon)

	total := p.TotalOperations()
	cm := &CompiledModel{
		Problem:   p,
		starts:    make([]cpmodel.IntVar, total),
		ends:      make([]cpmodel.IntVar, total),
		presences: make([][]cpmodel.BoolVar, total),
		offsets:   make([]int, len(p.Jobs)),
	}
	byMachine := make(map[int][]candidate)

	flat := 0
	for ji := range p.Jobs {
		job := &p.Jobs[ji]
		cm.offsets[ji] = flat
		for oi := range job.Ops {
			op := &job.Ops[oi]
			if len(op.Alternatives) == 0 {
				return nil, NewModelError("operation has no machine alternatives", nil).
					WithCode(ErrCodeModelInvalid).
					WithResource(fmt.Sprintf("job %d op %d", ji, oi)).
					WithOperation(string(PhaseBuild))
			}

			start := model.NewIntVarFromDomain(domain)
			end := model.NewIntVarFromDomain(domain)
			cm.starts[flat] = start
			cm.ends[flat] = end

			pres := make([]cpmodel.BoolVar, len(op.Alternatives))
			for ai := range op.Alternatives {
				alt := &op.Alternatives[ai]
				var presence cpmodel.BoolVar
				if len(op.Alternatives) == 1 {
					presence = model.TrueVar()
				} else {
					presence = model.NewBoolVar()
				}
				interval := model.NewOptionalIntervalVar(start, cpmodel.NewConstant(alt.Duration), end, presence)
				pres[ai] = presence
				byMachine[alt.Machine] = append(byMachine[alt.Machine], candidate{
					op:       flat,
					job:      ji,
					presence: presence,
					interval: interval,
				})
				cm.Stats.Intervals++
			}
			if len(pres) > 1 {
				model.AddExactlyOne(pres...)
			}
			cm.presences[flat] = pres
			flat++
		}
	}

	// Job chains: operation k+1 starts no earlier than operation k ends,
	// and the first operation waits for the job's release.
	for ji := range p.Jobs {
		job := &p.Jobs[ji]
		base := cm.offsets[ji]
		for oi := 1; oi < len(job.Ops); oi++ {
			model.AddLessOrEqual(cm.ends[base+oi-1], cm.starts[base+oi])
		}
		if job.Release > 0 {
			model.AddLessOrEqual(cpmodel.NewConstant(job.Release), cm.starts[base])
		}
	}

	// Machine capacity: each machine hosts at most one task at a time.
	for m := 0; m < len(p.Machines); m++ {
		cands := byMachine[m]
		if len(cands) == 0 {
			continue
		}
		intervals := make([]cpmodel.IntervalVar, len(cands))
		for i := range cands {
			intervals[i] = cands[i].interval
		}
		model.AddNoOverlap(intervals...)
		cm.Stats.NoOverlaps++
	}

	// Sequence-dependent setups. For each machine pair of candidates from
	// different jobs with a configured changeover in either direction, an
	// ordering literal decides which of the two separation constraints
	// binds. An unconfigured reverse direction degrades to plain ordering
	// (gap 0); a configured zero is encoded exactly like any other value.
	if p.Features.Setup {
		for m := 0; m < len(p.Machines); m++ {
			if !p.Setup.HasMachine(m) {
				continue
			}
			cands := byMachine[m]
			for i := 0; i < len(cands); i++ {
				for j := i + 1; j < len(cands); j++ {
					a, b := cands[i], cands[j]
					if a.job == b.job {
						continue
					}
					sAB, okAB := p.Setup.Get(m, a.job, b.job)
					sBA, okBA := p.Setup.Get(m, b.job, a.job)
					if !okAB && !okBA {
						continue
					}
					prec := model.NewBoolVar()
					model.AddLessOrEqual(cpmodel.NewConstant(sAB).Add(cm.ends[a.op]), cm.starts[b.op]).
						OnlyEnforceIf(prec, a.presence, b.presence)
					model.AddLessOrEqual(cpmodel.NewConstant(sBA).Add(cm.ends[b.op]), cm.starts[a.op]).
						OnlyEnforceIf(prec.Not(), a.presence, b.presence)
					cm.Stats.SetupPairs++
				}
			}
		}
	}

	// Makespan dominates every job's last end.
	cm.makespan = model.NewIntVarFromDomain(domain)
	for ji := range p.Jobs {
		last := cm.offsets[ji] + len(p.Jobs[ji].Ops) - 1
		model.AddLessOrEqual(cm.ends[last], cm.makespan)
	}

	// Objective. With priority weights the makespan coefficient is chosen so
	// the weight term can never buy back a single tick of makespan: the sum
	// of the worst-case weights of all operations, plus one.
	scale := int64(1)
	if p.Features.Priorities {
		scale, err = objectiveScale(p)
		if err != nil {
			return nil, err
		}
		obj := cpmodel.NewLinearExpr().AddTerm(cm.makespan, scale)
		flat = 0
		for ji := range p.Jobs {
			for oi := range p.Jobs[ji].Ops {
				op := &p.Jobs[ji].Ops[oi]
				for ai := range op.Alternatives {
					if w := p.Machines[op.Alternatives[ai].Machine].Weight; w > 0 {
						obj.AddTerm(cm.presences[flat][ai], w)
					}
				}
				flat++
			}
		}
		model.Minimize(obj)
	} else {
		model.Minimize(cm.makespan)
	}
	cm.Stats.ObjectiveScale = scale

	proto, err := model.Model()
	if err != nil {
		return nil, NewModelError("failed to build model proto", err).
			WithCode(ErrCodeModelInvalid).
			WithOperation(string(PhaseBuild))
	}
	cm.Proto = proto
	cm.Stats.Variables = len(proto.GetVariables())
	cm.Stats.Constraints = len(proto.GetConstraints())
	cm.Stats.Horizon = horizon
	return cm, nil
}

// Horizon returns a feasible upper bound on schedule length: the latest
// release, plus every operation run on its slowest machine, plus one maximal
// setup ahead of each operation, widened by slack extra multiples.
func Horizon(p *Problem, slack int64) (int64, error) {
	overflow := func() error {
		return NewModelError("horizon exceeds the representable range", nil).
			WithCode(ErrCodeHorizonOverflow).
			WithOperation(string(PhaseBuild))
	}

	var maxRelease, sum int64
	for ji := range p.Jobs {
		job := &p.Jobs[ji]
		if job.Release > maxRelease {
			maxRelease = job.Release
		}
		for oi := range job.Ops {
			var maxDur int64
			for _, alt := range job.Ops[oi].Alternatives {
				if alt.Duration > maxDur {
					maxDur = alt.Duration
				}
			}
			var ok bool
			sum, ok = addChecked(sum, maxDur)
			if !ok {
				return 0, overflow()
			}
		}
	}

	if p.Setup != nil && p.Setup.Max() > 0 {
		setups, ok := mulChecked(int64(p.TotalOperations()), p.Setup.Max())
		if !ok {
			return 0, overflow()
		}
		sum, ok = addChecked(sum, setups)
		if !ok {
			return 0, overflow()
		}
	}

	h, ok := addChecked(maxRelease, sum)
	if !ok {
		return 0, overflow()
	}
	if slack > 0 {
		h, ok = mulChecked(h, 1+slack)
		if !ok {
			return 0, overflow()
		}
	}
	return h, nil
}

// objectiveScale returns the makespan coefficient for the layered objective:
// the sum over operations of their worst-case alternative weight, plus one.
func objectiveScale(p *Problem) (int64, error) {
	scale := int64(1)
	for ji := range p.Jobs {
		for oi := range p.Jobs[ji].Ops {
			var maxW int64
			for _, alt := range p.Jobs[ji].Ops[oi].Alternatives {
				if w := p.Machines[alt.Machine].Weight; w > maxW {
					maxW = w
				}
			}
			var ok bool
			scale, ok = addChecked(scale, maxW)
			if !ok {
				return 0, NewModelError("priority weights exceed the representable range", nil).
					WithCode(ErrCodeHorizonOverflow).
					WithOperation(string(PhaseBuild))
			}
		}
	}
	return scale, nil
}

func addChecked(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

func mulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}
