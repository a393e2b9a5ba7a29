package cpsat

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"

	"github.com/atelier-sched/atelier/pkg/engine"
)

// flowShopProblem is a two-job, two-machine flow shop whose optimal makespan
// is 8: the second machine carries six ticks of work and cannot start before
// tick two.
func flowShopProblem() *engine.Problem {
	return &engine.Problem{
		Kind: engine.KindFlow,
		Jobs: []engine.Job{
			{ID: 0, Name: "J1", Due: 10, Ops: []engine.Operation{
				{Job: 0, Index: 0, Alternatives: []engine.Alternative{{Machine: 0, Duration: 3}}},
				{Job: 0, Index: 1, Alternatives: []engine.Alternative{{Machine: 1, Duration: 2}}},
			}},
			{ID: 1, Name: "J2", Due: 10, Ops: []engine.Operation{
				{Job: 1, Index: 0, Alternatives: []engine.Alternative{{Machine: 0, Duration: 2}}},
				{Job: 1, Index: 1, Alternatives: []engine.Alternative{{Machine: 1, Duration: 4}}},
			}},
		},
		Machines: []engine.Machine{
			{ID: 0, Name: "M0", Stage: -1},
			{ID: 1, Name: "M1", Stage: -1},
		},
		TimeScale: 1,
	}
}

// weightedChoiceProblem is a single flexible operation choosing between a
// fast machine with a heavy weight and a slower machine with a light one.
func weightedChoiceProblem(slowDuration int64) *engine.Problem {
	return &engine.Problem{
		Kind: engine.KindFlexible,
		Jobs: []engine.Job{
			{ID: 0, Name: "J1", Due: 20, Ops: []engine.Operation{
				{Job: 0, Index: 0, Alternatives: []engine.Alternative{
					{Machine: 0, Duration: 5},
					{Machine: 1, Duration: slowDuration},
				}},
			}},
		},
		Machines: []engine.Machine{
			{ID: 0, Name: "M0", Stage: -1, Weight: 3},
			{ID: 1, Name: "M1", Stage: -1, Weight: 1},
		},
		TimeScale: 1,
		Features:  engine.Features{Priorities: true, MultiMachine: true},
	}
}

// sharedMachineProblem is two single-operation jobs competing for machine 0.
func sharedMachineProblem(setup *engine.SetupMatrix) *engine.Problem {
	p := &engine.Problem{
		Kind: engine.KindJob,
		Jobs: []engine.Job{
			{ID: 0, Name: "J1", Due: 10, Ops: []engine.Operation{
				{Job: 0, Index: 0, Alternatives: []engine.Alternative{{Machine: 0, Duration: 3}}},
			}},
			{ID: 1, Name: "J2", Due: 10, Ops: []engine.Operation{
				{Job: 1, Index: 0, Alternatives: []engine.Alternative{{Machine: 0, Duration: 2}}},
			}},
		},
		Machines:  []engine.Machine{{ID: 0, Name: "M0", Stage: -1}},
		TimeScale: 1,
	}
	if setup != nil {
		p.Setup = setup
		p.Features.Setup = true
	}
	return p
}

func solveProblem(t *testing.T, p *engine.Problem) (*engine.CompiledModel, *engine.Outcome) {
	t.Helper()

	cm, err := engine.BuildModel(p, engine.SolveOptions{})
	if err != nil {
		t.Fatalf("Expected no build error, got: %v", err)
	}
	out, err := New().Solve(context.Background(), cm, engine.SolveOptions{
		TimeLimit: 10 * time.Second,
		Workers:   1,
	})
	if err != nil {
		t.Fatalf("Expected no solve error, got: %v", err)
	}
	return cm, out
}

func extractVerified(t *testing.T, p *engine.Problem, cm *engine.CompiledModel, out *engine.Outcome) *engine.Schedule {
	t.Helper()

	s, err := engine.ExtractSchedule(cm, out)
	if err != nil {
		t.Fatalf("Expected no extraction error, got: %v", err)
	}
	if err := engine.VerifySchedule(p, s); err != nil {
		t.Fatalf("Expected the schedule to verify, got: %v", err)
	}
	return s
}

func TestSolve_FlowShopOptimal(t *testing.T) {
	p := flowShopProblem()
	cm, out := solveProblem(t, p)

	if out.Status != engine.StatusOptimal {
		t.Fatalf("Expected status optimal, got %s", out.Status)
	}
	s := extractVerified(t, p, cm, out)

	m := engine.ComputeMetrics(p, s)
	if m.Makespan != 8 {
		t.Errorf("Expected optimal makespan 8, got %d", m.Makespan)
	}
	// An 8-tick schedule pins the second machine to [2,8): J2 completes at
	// 6, J1 at 8, whatever the first machine does with its slack.
	if m.MeanFlowTime != 7.0 {
		t.Errorf("Expected mean flow time 7.0, got %v", m.MeanFlowTime)
	}
	if m.TotalTardiness != 0 {
		t.Errorf("Expected no tardiness, got %d", m.TotalTardiness)
	}
}

func TestSolve_PriorityNeverTradesMakespan(t *testing.T) {
	p := weightedChoiceProblem(9)
	cm, out := solveProblem(t, p)

	if out.Status != engine.StatusOptimal {
		t.Fatalf("Expected status optimal, got %s", out.Status)
	}
	if cm.Stats.ObjectiveScale != 4 {
		t.Errorf("Expected objective scale 4, got %d", cm.Stats.ObjectiveScale)
	}

	s := extractVerified(t, p, cm, out)
	if len(s.Tasks) != 1 || s.Tasks[0].Machine != 0 {
		t.Fatalf("Expected the fast machine despite its weight, got %+v", s.Tasks)
	}
	if got := engine.Makespan(s); got != 5 {
		t.Errorf("Expected makespan 5, got %d", got)
	}
	// makespan*scale + weight of the chosen alternative.
	if out.Stats.Objective != 23 {
		t.Errorf("Expected objective 23, got %v", out.Stats.Objective)
	}
}

func TestSolve_PriorityBreaksTies(t *testing.T) {
	p := weightedChoiceProblem(5)
	cm, out := solveProblem(t, p)

	if out.Status != engine.StatusOptimal {
		t.Fatalf("Expected status optimal, got %s", out.Status)
	}
	s := extractVerified(t, p, cm, out)
	if len(s.Tasks) != 1 || s.Tasks[0].Machine != 1 {
		t.Fatalf("Expected the lighter machine to win the tie, got %+v", s.Tasks)
	}
	if out.Stats.Objective != 21 {
		t.Errorf("Expected objective 21, got %v", out.Stats.Objective)
	}
}

func TestSolve_ConfiguredZeroSetupMatchesAbsent(t *testing.T) {
	setup := engine.NewSetupMatrix()
	if err := setup.Set(0, 0, 1, 0); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := setup.Set(0, 1, 0, 0); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	withZero := sharedMachineProblem(setup)
	without := sharedMachineProblem(nil)

	cmZero, outZero := solveProblem(t, withZero)
	cmNone, outNone := solveProblem(t, without)

	if cmZero.Stats.SetupPairs != 1 {
		t.Errorf("Expected a configured zero to create a setup pair, got %d", cmZero.Stats.SetupPairs)
	}
	if cmNone.Stats.SetupPairs != 0 {
		t.Errorf("Expected no setup pairs without a matrix, got %d", cmNone.Stats.SetupPairs)
	}

	sZero := extractVerified(t, withZero, cmZero, outZero)
	sNone := extractVerified(t, without, cmNone, outNone)
	if engine.Makespan(sZero) != engine.Makespan(sNone) {
		t.Errorf("Expected a zero setup to cost nothing, got %d and %d",
			engine.Makespan(sZero), engine.Makespan(sNone))
	}
}

func TestSolve_SetupNeverImprovesMakespan(t *testing.T) {
	setup := engine.NewSetupMatrix()
	if err := setup.Set(0, 0, 1, 2); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := setup.Set(0, 1, 0, 2); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	with := sharedMachineProblem(setup)
	without := sharedMachineProblem(nil)

	cmWith, outWith := solveProblem(t, with)
	cmNone, outNone := solveProblem(t, without)

	sWith := extractVerified(t, with, cmWith, outWith)
	sNone := extractVerified(t, without, cmNone, outNone)

	if engine.Makespan(sNone) != 5 {
		t.Errorf("Expected base makespan 5, got %d", engine.Makespan(sNone))
	}
	if engine.Makespan(sWith) != 7 {
		t.Errorf("Expected a two-tick changeover in either order, got %d", engine.Makespan(sWith))
	}
}

func TestSolve_SingleOpStartsAtRelease(t *testing.T) {
	p := &engine.Problem{
		Kind: engine.KindJob,
		Jobs: []engine.Job{
			{ID: 0, Name: "J1", Release: 5, Due: 10, Ops: []engine.Operation{
				{Job: 0, Index: 0, Alternatives: []engine.Alternative{{Machine: 0, Duration: 3}}},
			}},
		},
		Machines:  []engine.Machine{{ID: 0, Name: "M0", Stage: -1}},
		TimeScale: 1,
		Features:  engine.Features{Release: true},
	}

	cm, out := solveProblem(t, p)
	if out.Status != engine.StatusOptimal {
		t.Fatalf("Expected status optimal, got %s", out.Status)
	}
	s := extractVerified(t, p, cm, out)
	if s.Tasks[0].Start != 5 {
		t.Errorf("Expected the task to start at its release, got %d", s.Tasks[0].Start)
	}
	if engine.Makespan(s) != 8 {
		t.Errorf("Expected makespan 8, got %d", engine.Makespan(s))
	}
}

func TestSolve_FixedSeedIsDeterministic(t *testing.T) {
	opts := engine.SolveOptions{
		TimeLimit: 10 * time.Second,
		Workers:   1,
		Seed:      11,
	}

	run := func() *engine.Schedule {
		p := flowShopProblem()
		cm, err := engine.BuildModel(p, engine.SolveOptions{})
		if err != nil {
			t.Fatalf("Expected no build error, got: %v", err)
		}
		out, err := New().Solve(context.Background(), cm, opts)
		if err != nil {
			t.Fatalf("Expected no solve error, got: %v", err)
		}
		return extractVerified(t, p, cm, out)
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first.Tasks, second.Tasks) {
		t.Errorf("Expected identical schedules for a fixed seed, got %+v and %+v", first.Tasks, second.Tasks)
	}
}

func TestSolve_NilModel(t *testing.T) {
	_, err := New().Solve(context.Background(), nil, engine.SolveOptions{})
	if err == nil {
		t.Fatal("Expected an error for a nil model")
	}
	if !engine.IsSolver(err) {
		t.Errorf("Expected a solver error, got: %v", err)
	}
}

func TestSolve_CanceledContext(t *testing.T) {
	cm, err := engine.BuildModel(flowShopProblem(), engine.SolveOptions{})
	if err != nil {
		t.Fatalf("Expected no build error, got: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = New().Solve(ctx, cm, engine.SolveOptions{TimeLimit: time.Second})
	if err == nil {
		t.Fatal("Expected an error for a canceled context")
	}
	var engineErr *engine.EngineError
	if !errors.As(err, &engineErr) || engineErr.Code != engine.ErrCodeCanceled {
		t.Errorf("Expected a %s error, got: %v", engine.ErrCodeCanceled, err)
	}
}

func TestParameters(t *testing.T) {
	params := parameters(engine.SolveOptions{
		TimeLimit:         2 * time.Second,
		Workers:           4,
		Seed:              7,
		LogSearchProgress: true,
	})

	if got := params.GetMaxTimeInSeconds(); got != 2.0 {
		t.Errorf("Expected a 2 second budget, got %v", got)
	}
	if got := params.GetNumWorkers(); got != 4 {
		t.Errorf("Expected 4 workers, got %d", got)
	}
	if got := params.GetRandomSeed(); got != 7 {
		t.Errorf("Expected seed 7, got %d", got)
	}
	if !params.GetLogSearchProgress() {
		t.Error("Expected search logging to be enabled")
	}
}

func TestParameters_ZeroOptions(t *testing.T) {
	params := parameters(engine.SolveOptions{})

	if params.MaxTimeInSeconds != nil {
		t.Errorf("Expected no time limit parameter, got %v", params.GetMaxTimeInSeconds())
	}
	if params.NumWorkers != nil {
		t.Errorf("Expected no worker parameter, got %d", params.GetNumWorkers())
	}
	if params.RandomSeed != nil {
		t.Errorf("Expected no seed parameter, got %d", params.GetRandomSeed())
	}
	if params.LogSearchProgress != nil {
		t.Error("Expected no logging parameter")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name         string
		response     *cmpb.CpSolverResponse
		wantStatus   engine.Status
		wantTimedOut bool
		wantSolution bool
	}{
		{
			name: "optimal",
			response: &cmpb.CpSolverResponse{
				Status:         cmpb.CpSolverStatus_OPTIMAL,
				ObjectiveValue: 8,
				WallTime:       0.25,
			},
			wantStatus:   engine.StatusOptimal,
			wantSolution: true,
		},
		{
			name: "feasible means the budget ran out",
			response: &cmpb.CpSolverResponse{
				Status:             cmpb.CpSolverStatus_FEASIBLE,
				ObjectiveValue:     9,
				BestObjectiveBound: 8,
			},
			wantStatus:   engine.StatusFeasible,
			wantTimedOut: true,
			wantSolution: true,
		},
		{
			name:       "infeasible",
			response:   &cmpb.CpSolverResponse{Status: cmpb.CpSolverStatus_INFEASIBLE},
			wantStatus: engine.StatusInfeasible,
		},
		{
			name:         "unknown means no solution in time",
			response:     &cmpb.CpSolverResponse{Status: cmpb.CpSolverStatus_UNKNOWN},
			wantStatus:   engine.StatusInfeasible,
			wantTimedOut: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := outcome(tc.response)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if out.Status != tc.wantStatus {
				t.Errorf("Expected status %s, got %s", tc.wantStatus, out.Status)
			}
			if out.Stats.TimedOut != tc.wantTimedOut {
				t.Errorf("Expected timed out %v, got %v", tc.wantTimedOut, out.Stats.TimedOut)
			}
			if (out.Response != nil) != tc.wantSolution {
				t.Errorf("Expected solution presence %v, got %v", tc.wantSolution, out.Response != nil)
			}
		})
	}
}

func TestOutcome_ModelInvalid(t *testing.T) {
	_, err := outcome(&cmpb.CpSolverResponse{Status: cmpb.CpSolverStatus_MODEL_INVALID})
	if err == nil {
		t.Fatal("Expected an error for an invalid model")
	}
	if !engine.IsSolver(err) {
		t.Errorf("Expected a solver error, got: %v", err)
	}
}
