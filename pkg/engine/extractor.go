package engine

import (
	"fmt"
	"sort"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
)

// ExtractSchedule decodes a backend outcome into a schedule and verifies it
// against the problem's invariants. A schedule that fails verification is
// never returned partially; the engine reports an internal inconsistency
// instead.
func ExtractSchedule(cm *CompiledModel, out *Outcome) (*Schedule, error) {
	if out == nil || out.Response == nil || !out.Status.HasSolution() {
		return nil, NewInternalError("outcome carries no solution to extract", nil).
			WithCode(ErrCodeInconsistent).
			WithOperation(string(PhaseExtract))
	}

	p := cm.Problem
	tasks := make([]Task, 0, p.TotalOperations())
	for ji := range p.Jobs {
		job := &p.Jobs[ji]
		for oi := range job.Ops {
			flat := cm.opIndex(ji, oi)
			op := &job.Ops[oi]

			chosen := -1
			for ai := range op.Alternatives {
				if !cpmodel.SolutionBooleanValue(out.Response, cm.presences[flat][ai]) {
					continue
				}
				if chosen >= 0 {
					return nil, inconsistency(fmt.Sprintf("job %d op %d has multiple chosen alternatives", ji, oi))
				}
				chosen = ai
			}
			if chosen < 0 {
				return nil, inconsistency(fmt.Sprintf("job %d op %d has no chosen alternative", ji, oi))
			}

			alt := op.Alternatives[chosen]
			start := cpmodel.SolutionIntegerValue(out.Response, cm.starts[flat])
			end := cpmodel.SolutionIntegerValue(out.Response, cm.ends[flat])
			tasks = append(tasks, Task{
				Job:         ji,
				JobName:     job.Name,
				Op:          oi,
				Machine:     alt.Machine,
				MachineName: p.Machines[alt.Machine].Name,
				Start:       start,
				Duration:    alt.Duration,
				End:         end,
			})
		}
	}

	s := assembleSchedule(tasks)
	if err := VerifySchedule(p, s); err != nil {
		return nil, err
	}
	return s, nil
}

// assembleSchedule groups raw tasks into the canonical schedule shape:
// per-machine lists sorted by start, a global task list, and per-job
// completion times.
func assembleSchedule(tasks []Task) *Schedule {
	s := &Schedule{
		ByMachine:  make(map[int][]Task),
		Completion: make(map[int]int64),
		Tasks:      make([]Task, len(tasks)),
	}
	copy(s.Tasks, tasks)
	sortTasks(s.Tasks)

	for _, t := range s.Tasks {
		s.ByMachine[t.Machine] = append(s.ByMachine[t.Machine], t)
		if t.End > s.Completion[t.Job] {
			s.Completion[t.Job] = t.End
		}
	}
	return s
}

// VerifySchedule checks a schedule against the problem's invariants:
// completeness (every operation scheduled exactly once, on one of its
// declared machines, with that machine's duration), task arithmetic
// (end = start + duration, start >= 0), job precedence including release
// times, and machine exclusivity including configured setup separation.
//
// A violation is reported as an internal inconsistency: the solver and the
// extractor disagree about the model, which is an engine defect, not a
// property of the input.
func VerifySchedule(p *Problem, s *Schedule) error {
	if s == nil {
		return inconsistency("schedule is nil")
	}
	total := p.TotalOperations()
	if len(s.Tasks) != total {
		return inconsistency(fmt.Sprintf("schedule has %d tasks, problem has %d operations", len(s.Tasks), total))
	}

	type opKey struct{ job, op int }
	byOp := make(map[opKey]Task, total)
	for _, t := range s.Tasks {
		if t.Job < 0 || t.Job >= len(p.Jobs) {
			return inconsistency(fmt.Sprintf("task references unknown job %d", t.Job))
		}
		if t.Op < 0 || t.Op >= len(p.Jobs[t.Job].Ops) {
			return inconsistency(fmt.Sprintf("task references unknown op %d of job %d", t.Op, t.Job))
		}
		key := opKey{t.Job, t.Op}
		if _, dup := byOp[key]; dup {
			return inconsistency(fmt.Sprintf("job %d op %d is scheduled twice", t.Job, t.Op))
		}
		byOp[key] = t

		if t.Start < 0 {
			return inconsistency(fmt.Sprintf("job %d op %d starts at negative tick %d", t.Job, t.Op, t.Start))
		}
		if t.End != t.Start+t.Duration {
			return inconsistency(fmt.Sprintf("job %d op %d: end %d != start %d + duration %d", t.Job, t.Op, t.End, t.Start, t.Duration))
		}

		matched := false
		for _, alt := range p.Jobs[t.Job].Ops[t.Op].Alternatives {
			if alt.Machine == t.Machine && alt.Duration == t.Duration {
				matched = true
				break
			}
		}
		if !matched {
			return inconsistency(fmt.Sprintf("job %d op %d runs on machine %d for %d ticks, which is not a declared alternative", t.Job, t.Op, t.Machine, t.Duration))
		}
	}

	// Job precedence and release times.
	for ji := range p.Jobs {
		job := &p.Jobs[ji]
		if len(job.Ops) == 0 {
			continue
		}
		first := byOp[opKey{ji, 0}]
		if first.Start < job.Release {
			return inconsistency(fmt.Sprintf("job %d starts at %d before its release %d", ji, first.Start, job.Release))
		}
		for oi := 1; oi < len(job.Ops); oi++ {
			prev := byOp[opKey{ji, oi - 1}]
			cur := byOp[opKey{ji, oi}]
			if cur.Start < prev.End {
				return inconsistency(fmt.Sprintf("job %d op %d starts at %d before op %d ends at %d", ji, oi, cur.Start, oi-1, prev.End))
			}
		}
	}

	// Machine exclusivity and setup separation between consecutive tasks.
	for m, tasks := range s.ByMachine {
		ordered := make([]Task, len(tasks))
		copy(ordered, tasks)
		sort.Slice(ordered, func(i, j int) bool {
			if ordered[i].Start != ordered[j].Start {
				return ordered[i].Start < ordered[j].Start
			}
			return ordered[i].Job < ordered[j].Job
		})
		for i := 1; i < len(ordered); i++ {
			prev, cur := ordered[i-1], ordered[i]
			gap := int64(0)
			if prev.Job != cur.Job {
				gap, _ = p.Setup.Get(m, prev.Job, cur.Job)
			}
			if cur.Start < prev.End+gap {
				if gap > 0 {
					return inconsistency(fmt.Sprintf("machine %d: job %d op %d starts at %d inside the %d-tick setup after job %d op %d ending at %d",
						m, cur.Job, cur.Op, cur.Start, gap, prev.Job, prev.Op, prev.End))
				}
				return inconsistency(fmt.Sprintf("machine %d: job %d op %d starting at %d overlaps job %d op %d ending at %d",
					m, cur.Job, cur.Op, cur.Start, prev.Job, prev.Op, prev.End))
			}
		}
	}

	// Completion times match the tasks.
	for ji := range p.Jobs {
		var last int64
		for oi := range p.Jobs[ji].Ops {
			if t := byOp[opKey{ji, oi}]; t.End > last {
				last = t.End
			}
		}
		if s.Completion[ji] != last {
			return inconsistency(fmt.Sprintf("job %d completion %d does not match last task end %d", ji, s.Completion[ji], last))
		}
	}

	return nil
}

func inconsistency(msg string) *EngineError {
	return NewInternalError(msg, nil).
		WithCode(ErrCodeInconsistent).
		WithOperation(string(PhaseExtract))
}
