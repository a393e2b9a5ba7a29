package problem

import (
	"errors"
	"testing"

	"github.com/atelier-sched/atelier/pkg/engine"
)

func intp(v int) *int {
	return &v
}

func flowRequest() *Request {
	return &Request{
		Kind: engine.KindFlow,
		Jobs: []JobSpec{
			{Operations: []OperationSpec{{Machine: intp(0), Duration: 3}, {Machine: intp(1), Duration: 2}}},
			{Operations: []OperationSpec{{Machine: intp(0), Duration: 2}, {Machine: intp(1), Duration: 4}}},
		},
		DueDates: []float64{10, 8},
	}
}

func jobRequest() *Request {
	return &Request{
		Kind: engine.KindJob,
		Jobs: []JobSpec{
			{Name: "J1", Operations: []OperationSpec{{Machine: intp(0), Duration: 3}, {Machine: intp(1), Duration: 2}}},
			{Name: "J2", Operations: []OperationSpec{{Machine: intp(1), Duration: 2}, {Machine: intp(0), Duration: 4}}},
		},
		DueDates: []float64{10, 10},
	}
}

func hybridRequest() *Request {
	return &Request{
		Kind:   engine.KindHybrid,
		Stages: []StageSpec{{Machines: []int{0, 1}}, {Machines: []int{2}}},
		Jobs: []JobSpec{
			{Operations: []OperationSpec{{Stage: intp(0), Duration: 3}, {Stage: intp(1), Duration: 2}}},
			{Operations: []OperationSpec{{Stage: intp(0), Duration: 2}, {Stage: intp(1), Duration: 4}}},
		},
		DueDates: []float64{12, 12},
	}
}

func flexibleRequest() *Request {
	return &Request{
		Kind: engine.KindFlexible,
		Jobs: []JobSpec{
			{Operations: []OperationSpec{
				{Alternatives: []AlternativeSpec{{Machine: 0, Duration: 5}, {Machine: 1, Duration: 7}}},
				{Machine: intp(0), Duration: 1},
			}},
			{Operations: []OperationSpec{{Machine: intp(0), Duration: 2}}},
		},
		DueDates: []float64{9, 9},
	}
}

func TestNormalize_FlowShop(t *testing.T) {
	p, err := NewNormalizer().Normalize(flowRequest())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if p.Kind != engine.KindFlow {
		t.Errorf("Expected kind flow, got %q", p.Kind)
	}
	if len(p.Jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(p.Jobs))
	}
	if p.MachineCount() != 2 {
		t.Errorf("Expected machine space of 2, got %d", p.MachineCount())
	}
	if p.Jobs[0].Name != "Job 0" || p.Machines[1].Name != "Machine 1" {
		t.Errorf("Expected default names, got job %q machine %q", p.Jobs[0].Name, p.Machines[1].Name)
	}
	if p.Jobs[0].Due != 10 || p.Jobs[1].Due != 8 {
		t.Errorf("Expected due dates 10 and 8, got %d and %d", p.Jobs[0].Due, p.Jobs[1].Due)
	}

	wantDurations := [][]int64{{3, 2}, {2, 4}}
	for ji, job := range p.Jobs {
		for oi, op := range job.Ops {
			if len(op.Alternatives) != 1 {
				t.Fatalf("Expected a single alternative for job %d op %d, got %d", ji, oi, len(op.Alternatives))
			}
			alt := op.Alternatives[0]
			if alt.Machine != oi {
				t.Errorf("Expected job %d op %d on machine %d, got %d", ji, oi, oi, alt.Machine)
			}
			if alt.Duration != wantDurations[ji][oi] {
				t.Errorf("Expected job %d op %d duration %d, got %d", ji, oi, wantDurations[ji][oi], alt.Duration)
			}
		}
	}

	if p.TimeScale != 1 {
		t.Errorf("Expected default time scale 1, got %d", p.TimeScale)
	}
	if p.Setup != nil {
		t.Errorf("Expected no setup matrix, got %d entries", p.Setup.Len())
	}
	if p.Features != (engine.Features{}) {
		t.Errorf("Expected no features, got %+v", p.Features)
	}
}

func TestNormalize_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  func() *Request
		code string
	}{
		{"nil request", func() *Request { return nil }, engine.ErrCodeEmptyJobs},
		{"no jobs", func() *Request { r := jobRequest(); r.Jobs = nil; return r }, engine.ErrCodeEmptyJobs},
		{"unknown kind", func() *Request { r := jobRequest(); r.Kind = engine.ShopKind("batch"); return r }, engine.ErrCodeBadForm},
		{"no due dates", func() *Request { r := jobRequest(); r.DueDates = nil; return r }, engine.ErrCodeDueCountMismatch},
		{"due date count mismatch", func() *Request { r := jobRequest(); r.DueDates = []float64{10}; return r }, engine.ErrCodeDueCountMismatch},
		{"release count mismatch", func() *Request { r := jobRequest(); r.ReleaseTimes = []float64{1}; return r }, engine.ErrCodeReleaseMismatch},
		{"job without operations", func() *Request { r := jobRequest(); r.Jobs[0].Operations = nil; return r }, engine.ErrCodeBadForm},
		{"negative time scale", func() *Request { r := jobRequest(); r.TimeScale = -1; return r }, engine.ErrCodeBadScale},
		{"negative time limit", func() *Request { r := jobRequest(); r.TimeLimitSeconds = -1; return r }, engine.ErrCodeBadBudget},
		{"zero due date", func() *Request { r := jobRequest(); r.DueDates[0] = 0; return r }, engine.ErrCodeBadDueDate},
		{"negative due date", func() *Request { r := jobRequest(); r.DueDates[1] = -5; return r }, engine.ErrCodeBadDueDate},
		{"due date rounds to zero", func() *Request { r := jobRequest(); r.DueDates[0] = 0.2; return r }, engine.ErrCodeBadDueDate},
		{"negative release", func() *Request { r := jobRequest(); r.ReleaseTimes = []float64{-1, 0}; return r }, engine.ErrCodeBadRelease},
		{"zero duration", func() *Request { r := jobRequest(); r.Jobs[0].Operations[0].Duration = 0; return r }, engine.ErrCodeBadDuration},
		{"negative duration", func() *Request { r := jobRequest(); r.Jobs[0].Operations[1].Duration = -2; return r }, engine.ErrCodeBadDuration},
		{"duration rounds to zero", func() *Request { r := jobRequest(); r.Jobs[1].Operations[0].Duration = 0.3; return r }, engine.ErrCodeBadDuration},
		{"alternative with zero duration", func() *Request {
			r := flexibleRequest()
			r.Jobs[0].Operations[0].Alternatives[1].Duration = 0
			return r
		}, engine.ErrCodeBadDuration},
		{"machine outside declared space", func() *Request {
			r := jobRequest()
			r.Machines = []MachineSpec{{}, {}}
			r.Jobs[0].Operations[0].Machine = intp(5)
			return r
		}, engine.ErrCodeBadMachine},
		{"negative machine", func() *Request { r := jobRequest(); r.Jobs[0].Operations[0].Machine = intp(-1); return r }, engine.ErrCodeBadMachine},
		{"flow machine off the route", func() *Request { r := flowRequest(); r.Jobs[0].Operations[0].Machine = intp(1); return r }, engine.ErrCodeBadMachine},
		{"duplicate machine in alternatives", func() *Request {
			r := flexibleRequest()
			r.Jobs[0].Operations[0].Alternatives[1].Machine = 0
			return r
		}, engine.ErrCodeBadMachine},
		{"negative machine priority", func() *Request {
			r := jobRequest()
			r.Machines = []MachineSpec{{Priority: -3}, {}}
			return r
		}, engine.ErrCodeBadMachine},
		{"operation without a form", func() *Request {
			r := jobRequest()
			r.Jobs[0].Operations[0] = OperationSpec{Duration: 3}
			return r
		}, engine.ErrCodeBadForm},
		{"operation with two forms", func() *Request {
			r := flexibleRequest()
			r.Jobs[0].Operations[0].Machine = intp(0)
			return r
		}, engine.ErrCodeBadForm},
		{"stage form in a job shop", func() *Request {
			r := jobRequest()
			r.Jobs[0].Operations[0] = OperationSpec{Stage: intp(0), Duration: 3}
			return r
		}, engine.ErrCodeBadForm},
		{"alternatives form in a flow shop", func() *Request {
			r := flowRequest()
			r.Jobs[0].Operations[0] = OperationSpec{Alternatives: []AlternativeSpec{{Machine: 0, Duration: 3}}}
			return r
		}, engine.ErrCodeBadForm},
		{"alternatives with a top-level duration", func() *Request {
			r := flexibleRequest()
			r.Jobs[0].Operations[0].Duration = 3
			return r
		}, engine.ErrCodeBadForm},
		{"ragged job shop", func() *Request { r := jobRequest(); r.Jobs[1].Operations = r.Jobs[1].Operations[:1]; return r }, engine.ErrCodeRaggedJobs},
		{"stages on a job shop", func() *Request {
			r := jobRequest()
			r.Stages = []StageSpec{{Machines: []int{0, 1}}}
			return r
		}, engine.ErrCodeBadStage},
		{"hybrid without stages", func() *Request { r := hybridRequest(); r.Stages = nil; return r }, engine.ErrCodeBadStage},
		{"machines_per_stage with a zero count", func() *Request {
			r := hybridRequest()
			r.Stages = nil
			r.MachinesPerStage = []int{2, 0}
			return r
		}, engine.ErrCodeBadStage},
		{"stage layouts disagree", func() *Request { r := hybridRequest(); r.MachinesPerStage = []int{2, 2}; return r }, engine.ErrCodeBadStage},
		{"machine in two stages", func() *Request {
			r := hybridRequest()
			r.Stages = []StageSpec{{Machines: []int{0, 1}}, {Machines: []int{1}}}
			return r
		}, engine.ErrCodeBadStage},
		{"stage machine ids with a gap", func() *Request {
			r := hybridRequest()
			r.Stages = []StageSpec{{Machines: []int{0, 2}}, {Machines: []int{3}}}
			return r
		}, engine.ErrCodeBadStage},
		{"hybrid stage out of order", func() *Request { r := hybridRequest(); r.Jobs[0].Operations[1].Stage = intp(0); return r }, engine.ErrCodeBadStage},
		{"hybrid machine of the wrong stage", func() *Request {
			r := hybridRequest()
			r.Jobs[0].Operations[0] = OperationSpec{Machine: intp(2), Duration: 3}
			return r
		}, engine.ErrCodeBadStage},
		{"setup with unknown machine", func() *Request {
			r := jobRequest()
			r.SetupTimes = []SetupSpec{{Machine: 9, FromJob: 0, ToJob: 1, Duration: 1}}
			return r
		}, engine.ErrCodeBadSetup},
		{"setup with unknown job", func() *Request {
			r := jobRequest()
			r.SetupTimes = []SetupSpec{{Machine: 0, FromJob: 0, ToJob: 5, Duration: 1}}
			return r
		}, engine.ErrCodeBadSetup},
		{"setup from a job to itself", func() *Request {
			r := jobRequest()
			r.SetupTimes = []SetupSpec{{Machine: 0, FromJob: 1, ToJob: 1, Duration: 1}}
			return r
		}, engine.ErrCodeBadSetup},
		{"setup with negative duration", func() *Request {
			r := jobRequest()
			r.SetupTimes = []SetupSpec{{Machine: 0, FromJob: 0, ToJob: 1, Duration: -1}}
			return r
		}, engine.ErrCodeBadSetup},
		{"duplicate setup entry", func() *Request {
			r := jobRequest()
			r.SetupTimes = []SetupSpec{
				{Machine: 0, FromJob: 0, ToJob: 1, Duration: 1},
				{Machine: 0, FromJob: 0, ToJob: 1, Duration: 2},
			}
			return r
		}, engine.ErrCodeBadSetup},
	}

	n := NewNormalizer()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := n.Normalize(tc.req())
			if err == nil {
				t.Fatalf("Expected an error, got problem %+v", p)
			}
			if !engine.IsValidation(err) {
				t.Fatalf("Expected a validation error, got: %v", err)
			}
			var engineErr *engine.EngineError
			if !errors.As(err, &engineErr) {
				t.Fatalf("Expected an EngineError, got %T", err)
			}
			if engineErr.Code != tc.code {
				t.Errorf("Expected code %s, got %s: %v", tc.code, engineErr.Code, err)
			}
		})
	}
}

func TestNormalize_Quantization(t *testing.T) {
	req := jobRequest()
	req.TimeScale = 2
	req.Jobs[0].Operations[0].Duration = 1.5
	req.Jobs[0].Operations[1].Duration = 2.25
	req.DueDates = []float64{10.2, 10}
	req.ReleaseTimes = []float64{0.75, 0}

	p, err := NewNormalizer().Normalize(req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if p.TimeScale != 2 {
		t.Errorf("Expected time scale 2, got %d", p.TimeScale)
	}
	if got := p.Jobs[0].Ops[0].Alternatives[0].Duration; got != 3 {
		t.Errorf("Expected 1.5 to quantize to 3 ticks, got %d", got)
	}
	if got := p.Jobs[0].Ops[1].Alternatives[0].Duration; got != 5 {
		t.Errorf("Expected 2.25 to round half away from zero to 5 ticks, got %d", got)
	}
	if p.Jobs[0].Due != 20 {
		t.Errorf("Expected due date 10.2 to quantize to 20 ticks, got %d", p.Jobs[0].Due)
	}
	if p.Jobs[0].Release != 2 {
		t.Errorf("Expected release 0.75 to quantize to 2 ticks, got %d", p.Jobs[0].Release)
	}
	if !p.Features.Release {
		t.Error("Expected the release feature to be derived")
	}
}

func TestNormalize_ExplicitMachines(t *testing.T) {
	req := jobRequest()
	req.Machines = []MachineSpec{{Name: "Lathe", Priority: 3}, {}}

	p, err := NewNormalizer().Normalize(req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if p.Machines[0].Name != "Lathe" {
		t.Errorf("Expected declared machine name to win, got %q", p.Machines[0].Name)
	}
	if p.Machines[1].Name != "Machine 1" {
		t.Errorf("Expected default name for the unnamed machine, got %q", p.Machines[1].Name)
	}
	if p.Machines[0].Weight != 3 || p.Machines[1].Weight != 0 {
		t.Errorf("Expected weights 3 and 0, got %d and %d", p.Machines[0].Weight, p.Machines[1].Weight)
	}
	if !p.Features.Priorities {
		t.Error("Expected the priorities feature to be derived")
	}
	if p.Machines[0].Stage != -1 {
		t.Errorf("Expected no stage for a job shop machine, got %d", p.Machines[0].Stage)
	}
}

func TestNormalize_StageExpansion(t *testing.T) {
	p, err := NewNormalizer().Normalize(hybridRequest())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if p.MachineCount() != 3 {
		t.Fatalf("Expected 3 machines from the stage layout, got %d", p.MachineCount())
	}
	if len(p.Stages) != 2 {
		t.Fatalf("Expected 2 stages, got %d", len(p.Stages))
	}
	if p.Stages[0].Name != "Stage 0" {
		t.Errorf("Expected default stage name, got %q", p.Stages[0].Name)
	}

	first := p.Jobs[0].Ops[0].Alternatives
	if len(first) != 2 || first[0].Machine != 0 || first[1].Machine != 1 {
		t.Fatalf("Expected stage 0 to expand to machines 0 and 1, got %+v", first)
	}
	if first[0].Duration != 3 || first[1].Duration != 3 {
		t.Errorf("Expected the stage duration on every alternative, got %+v", first)
	}
	second := p.Jobs[0].Ops[1].Alternatives
	if len(second) != 1 || second[0].Machine != 2 {
		t.Fatalf("Expected stage 1 to expand to machine 2, got %+v", second)
	}

	if p.Machines[0].Stage != 0 || p.Machines[2].Stage != 1 {
		t.Errorf("Expected stage assignments 0 and 1, got %d and %d", p.Machines[0].Stage, p.Machines[2].Stage)
	}
	if !p.Features.MultiMachine {
		t.Error("Expected the multi-machine feature to be derived")
	}
}

func TestNormalize_MachinesPerStage(t *testing.T) {
	req := hybridRequest()
	req.Stages = nil
	req.MachinesPerStage = []int{2, 2}

	p, err := NewNormalizer().Normalize(req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if p.MachineCount() != 4 {
		t.Fatalf("Expected 4 machines, got %d", p.MachineCount())
	}
	if got := p.Stages[1].Machines; len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("Expected stage 1 to own machines 2 and 3, got %v", got)
	}
	second := p.Jobs[0].Ops[1].Alternatives
	if len(second) != 2 || second[0].Machine != 2 || second[1].Machine != 3 {
		t.Errorf("Expected op 1 alternatives on machines 2 and 3, got %+v", second)
	}
}

func TestNormalize_HybridPinnedMachine(t *testing.T) {
	req := hybridRequest()
	req.Jobs[1].Operations[0] = OperationSpec{Machine: intp(1), Duration: 2}

	p, err := NewNormalizer().Normalize(req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got := p.Jobs[1].Ops[0].Alternatives
	if len(got) != 1 || got[0].Machine != 1 || got[0].Duration != 2 {
		t.Errorf("Expected a pinned single alternative on machine 1, got %+v", got)
	}
}

func TestNormalize_FlexibleShorthand(t *testing.T) {
	p, err := NewNormalizer().Normalize(flexibleRequest())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(p.Jobs[0].Ops) != 2 || len(p.Jobs[1].Ops) != 1 {
		t.Fatalf("Expected ragged operation counts 2 and 1, got %d and %d", len(p.Jobs[0].Ops), len(p.Jobs[1].Ops))
	}
	shorthand := p.Jobs[1].Ops[0].Alternatives
	if len(shorthand) != 1 || shorthand[0].Machine != 0 || shorthand[0].Duration != 2 {
		t.Errorf("Expected the machine shorthand to become one alternative, got %+v", shorthand)
	}
	if p.MaxAlternatives() != 2 {
		t.Errorf("Expected 2 alternatives at most, got %d", p.MaxAlternatives())
	}
	if !p.Features.MultiMachine {
		t.Error("Expected the multi-machine feature to be derived")
	}
}

func TestNormalize_SetupMatrix(t *testing.T) {
	req := jobRequest()
	req.SetupTimes = []SetupSpec{
		{Machine: 0, FromJob: 0, ToJob: 1, Duration: 0},
		{Machine: 0, FromJob: 1, ToJob: 0, Duration: 1.5},
	}

	p, err := NewNormalizer().Normalize(req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if p.Setup == nil || p.Setup.Len() != 2 {
		t.Fatalf("Expected a setup matrix with 2 entries, got %+v", p.Setup)
	}
	if d, ok := p.Setup.Get(0, 0, 1); !ok || d != 0 {
		t.Errorf("Expected a configured zero to stay a real entry, got (%d, %v)", d, ok)
	}
	if d, ok := p.Setup.Get(0, 1, 0); !ok || d != 2 {
		t.Errorf("Expected 1.5 to quantize to 2 ticks, got (%d, %v)", d, ok)
	}
	if !p.Features.Setup {
		t.Error("Expected the setup feature to be derived")
	}
}

func TestNormalize_SingleJobSingleMachine(t *testing.T) {
	req := &Request{
		Kind:     engine.KindJob,
		Jobs:     []JobSpec{{Operations: []OperationSpec{{Machine: intp(0), Duration: 1}}}},
		DueDates: []float64{5},
	}

	p, err := NewNormalizer().Normalize(req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if p.MachineCount() != 1 || p.JobCount() != 1 || p.TotalOperations() != 1 {
		t.Errorf("Expected a 1x1 problem, got %d machines, %d jobs, %d ops",
			p.MachineCount(), p.JobCount(), p.TotalOperations())
	}
}
