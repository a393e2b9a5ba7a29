package engine

import (
	"fmt"
	"sort"
	"time"
)

// Problem is the canonical, fully normalized scheduling problem. All times
// are integer ticks. Normalization guarantees dense job and machine ids,
// non-empty alternative lists, and a resolved setup matrix; the model builder
// relies on those guarantees.
type Problem struct {
	// Kind is the scheduling family this problem was normalized from.
	Kind ShopKind `json:"kind"`

	// Jobs lists the jobs with ids matching their slice position.
	Jobs []Job `json:"jobs"`

	// Machines lists the machine space with ids matching their slice position.
	Machines []Machine `json:"machines"`

	// Stages lists the machine stages for hybrid problems, in processing order.
	Stages []Stage `json:"stages,omitempty"`

	// Setup holds sequence-dependent setup times, nil when none are configured.
	Setup *SetupMatrix `json:"-"`

	// TimeScale is the number of ticks per input time unit used during
	// quantization, for converting results back to input units.
	TimeScale int64 `json:"time_scale"`

	// Features records which optional model features this problem uses.
	Features Features `json:"features"`
}

// Job is a single job with an ordered chain of operations.
type Job struct {
	// ID is the dense job id, equal to the job's position in Problem.Jobs.
	ID int `json:"id"`

	// Name is the human-readable job name.
	Name string `json:"name"`

	// Release is the earliest tick at which the first operation may start.
	Release int64 `json:"release"`

	// Due is the tick by which the job should complete; lateness beyond it
	// counts as tardiness.
	Due int64 `json:"due"`

	// Ops is the ordered operation chain; operation k+1 may not start
	// before operation k ends.
	Ops []Operation `json:"operations"`
}

// Operation is one processing step of a job.
type Operation struct {
	// Job is the owning job id.
	Job int `json:"job"`

	// Index is the operation's position in the job's chain.
	Index int `json:"index"`

	// Alternatives lists the machines that can process this operation.
	// Exactly one is chosen in a schedule. Never empty after normalization.
	Alternatives []Alternative `json:"alternatives"`
}

// Alternative is one (machine, duration) choice for an operation.
type Alternative struct {
	// Machine is the machine id.
	Machine int `json:"machine"`

	// Duration is the processing time in ticks on this machine.
	Duration int64 `json:"duration"`
}

// Machine is a single capacity-one resource.
type Machine struct {
	// ID is the dense machine id, equal to the machine's position in
	// Problem.Machines.
	ID int `json:"id"`

	// Name is the human-readable machine name.
	Name string `json:"name"`

	// Stage is the stage this machine belongs to, or -1 when the problem
	// has no stages.
	Stage int `json:"stage"`

	// Weight is the priority weight for the secondary objective. Lower is
	// preferred; zero means the machine carries no preference.
	Weight int64 `json:"weight,omitempty"`
}

// Stage is an ordered group of interchangeable machines in a hybrid flow shop.
type Stage struct {
	// ID is the dense stage id, equal to the stage's position in
	// Problem.Stages.
	ID int `json:"id"`

	// Name is the human-readable stage name.
	Name string `json:"name"`

	// Machines lists the machine ids belonging to this stage.
	Machines []int `json:"machines"`
}

// Features enumerates the optional model features of a problem. Each feature
// independently adds constraints in the model builder; absent features add
// nothing.
type Features struct {
	// Setup is true when a setup matrix with at least one entry is configured.
	Setup bool `json:"setup"`

	// Release is true when at least one job has a non-zero release time.
	Release bool `json:"release"`

	// Priorities is true when at least one machine carries a priority weight.
	Priorities bool `json:"priorities"`

	// MultiMachine is true when at least one operation has more than one
	// machine alternative.
	MultiMachine bool `json:"multi_machine"`
}

// SetupKey identifies one sequence-dependent setup entry: the time needed on
// Machine between a task of FromJob and a directly following task of ToJob.
type SetupKey struct {
	// Machine is the machine id the setup applies to.
	Machine int `json:"machine"`

	// FromJob is the job id of the preceding task.
	FromJob int `json:"from_job"`

	// ToJob is the job id of the following task.
	ToJob int `json:"to_job"`
}

// SetupMatrix is a strongly typed map of sequence-dependent setup times,
// resolved once during normalization. A configured zero is a real entry:
// Get returns (0, true) for it, which is distinct from an absent pair.
type SetupMatrix struct {
	entries  map[SetupKey]int64
	machines map[int]struct{}
	max      int64
}

// NewSetupMatrix creates an empty setup matrix.
func NewSetupMatrix() *SetupMatrix {
	return &SetupMatrix{
		entries:  make(map[SetupKey]int64),
		machines: make(map[int]struct{}),
	}
}

// Set records a setup entry. Duplicate keys and negative durations are
// rejected.
func (m *SetupMatrix) Set(machine, from, to int, duration int64) error {
	if duration < 0 {
		return fmt.Errorf("negative setup time %d for machine %d, jobs %d->%d", duration, machine, from, to)
	}
	key := SetupKey{Machine: machine, FromJob: from, ToJob: to}
	if _, ok := m.entries[key]; ok {
		return fmt.Errorf("duplicate setup entry for machine %d, jobs %d->%d", machine, from, to)
	}
	m.entries[key] = duration
	m.machines[machine] = struct{}{}
	if duration > m.max {
		m.max = duration
	}
	return nil
}

// Get returns the setup time between jobs from and to on the given machine.
// The boolean reports whether the pair is configured at all.
func (m *SetupMatrix) Get(machine, from, to int) (int64, bool) {
	if m == nil {
		return 0, false
	}
	d, ok := m.entries[SetupKey{Machine: machine, FromJob: from, ToJob: to}]
	return d, ok
}

// HasMachine returns true if any setup entry is configured for the machine.
func (m *SetupMatrix) HasMachine(machine int) bool {
	if m == nil {
		return false
	}
	_, ok := m.machines[machine]
	return ok
}

// Len returns the number of configured setup entries.
func (m *SetupMatrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Max returns the largest configured setup time, 0 for an empty matrix.
func (m *SetupMatrix) Max() int64 {
	if m == nil {
		return 0
	}
	return m.max
}

// JobCount returns the number of jobs.
func (p *Problem) JobCount() int {
	return len(p.Jobs)
}

// MachineCount returns the size of the machine space.
func (p *Problem) MachineCount() int {
	return len(p.Machines)
}

// TotalOperations returns the number of operations across all jobs.
func (p *Problem) TotalOperations() int {
	n := 0
	for i := range p.Jobs {
		n += len(p.Jobs[i].Ops)
	}
	return n
}

// MaxAlternatives returns the largest alternative count of any operation.
func (p *Problem) MaxAlternatives() int {
	max := 0
	for i := range p.Jobs {
		for j := range p.Jobs[i].Ops {
			if n := len(p.Jobs[i].Ops[j].Alternatives); n > max {
				max = n
			}
		}
	}
	return max
}

// Task is one scheduled operation on its chosen machine.
type Task struct {
	// Job is the job id.
	Job int `json:"job"`

	// JobName is the human-readable job name.
	JobName string `json:"job_name,omitempty"`

	// Op is the operation index within the job.
	Op int `json:"op"`

	// Machine is the chosen machine id.
	Machine int `json:"machine"`

	// MachineName is the human-readable machine name.
	MachineName string `json:"machine_name,omitempty"`

	// Start is the start tick.
	Start int64 `json:"start"`

	// Duration is the processing time in ticks.
	Duration int64 `json:"duration"`

	// End is the end tick, always Start + Duration.
	End int64 `json:"end"`
}

// Schedule is a decoded, verified assignment of every operation to a machine
// and a start time.
type Schedule struct {
	// ByMachine groups tasks per machine id, each list sorted by start time
	// (ties broken by job id).
	ByMachine map[int][]Task `json:"machines"`

	// Completion maps each job id to the end time of its last operation.
	Completion map[int]int64 `json:"completion"`

	// Tasks lists every task sorted by (start, job, op).
	Tasks []Task `json:"-"`
}

// sortTasks establishes the canonical (start, job, op) order.
func sortTasks(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Job != b.Job {
			return a.Job < b.Job
		}
		return a.Op < b.Op
	})
}

// Metrics are the schedule KPIs.
type Metrics struct {
	// Makespan is the end time of the last task, in ticks.
	Makespan int64 `json:"makespan"`

	// MeanFlowTime is the mean completion time across all jobs.
	MeanFlowTime float64 `json:"mean_flow_time"`

	// TotalTardiness is the sum over jobs of max(0, completion - due).
	TotalTardiness int64 `json:"total_tardiness"`

	// Tardiness maps job id to its individual tardiness.
	Tardiness map[int]int64 `json:"tardiness,omitempty"`
}

// ModelStats describes the compiled constraint model.
type ModelStats struct {
	// Variables is the number of variables in the model proto.
	Variables int `json:"variables"`

	// Constraints is the number of constraints in the model proto.
	Constraints int `json:"constraints"`

	// Intervals is the number of interval variables created.
	Intervals int `json:"intervals"`

	// NoOverlaps is the number of machine exclusivity constraints.
	NoOverlaps int `json:"no_overlaps"`

	// SetupPairs is the number of ordered operation pairs carrying a setup
	// separation constraint. Configured-zero setups count; absent pairs do not.
	SetupPairs int `json:"setup_pairs"`

	// Horizon is the scheduling horizon upper bound in ticks.
	Horizon int64 `json:"horizon"`

	// ObjectiveScale is the makespan coefficient in the layered objective.
	// It is 1 when no priority weights are configured.
	ObjectiveScale int64 `json:"objective_scale"`
}

// SolveStats describes the backend solver run.
type SolveStats struct {
	// WallSeconds is the solver wall time in seconds.
	WallSeconds float64 `json:"wall_time_seconds"`

	// Branches is the number of search branches explored.
	Branches int64 `json:"branches"`

	// Conflicts is the number of conflicts encountered.
	Conflicts int64 `json:"conflicts"`

	// Objective is the objective value of the returned solution, when any.
	Objective float64 `json:"objective,omitempty"`

	// BestBound is the best proven objective bound.
	BestBound float64 `json:"best_bound,omitempty"`

	// TimedOut is true when the time budget expired before the solver
	// settled the problem.
	TimedOut bool `json:"timed_out"`
}

// SolveOptions control a single solve. The zero value is not useful; start
// from DefaultSolveOptions.
type SolveOptions struct {
	// TimeLimit is the solver time budget. It is the only mechanism that
	// interrupts a running solve.
	TimeLimit time.Duration `json:"time_limit"`

	// Workers is the number of solver worker threads. Zero lets the solver
	// decide; one gives deterministic search.
	Workers int `json:"workers"`

	// Seed is the solver random seed.
	Seed int64 `json:"seed"`

	// LogSearchProgress enables solver search logging to stdout.
	LogSearchProgress bool `json:"log_search_progress"`

	// HorizonSlack adds extra whole multiples of the computed horizon bound.
	// The default bound is already feasible; slack only widens domains.
	HorizonSlack int64 `json:"horizon_slack"`
}

// DefaultSolveOptions returns the default solve options.
func DefaultSolveOptions() SolveOptions {
	return SolveOptions{
		TimeLimit: 30 * time.Second,
	}
}

// Result is the complete outcome of one solve request.
type Result struct {
	// ID is the unique solve id.
	ID string `json:"id"`

	// Status is the solve outcome.
	Status Status `json:"status"`

	// Schedule is the verified schedule, nil unless Status has a solution.
	Schedule *Schedule `json:"schedule,omitempty"`

	// Metrics are the schedule KPIs, nil unless Status has a solution.
	Metrics *Metrics `json:"metrics,omitempty"`

	// Model describes the compiled model.
	Model ModelStats `json:"model"`

	// Solve describes the solver run.
	Solve SolveStats `json:"solve"`
}
