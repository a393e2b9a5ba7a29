// Package problem provides the external request schema for scheduling
// problems and the normalizer that turns a request into the engine's
// canonical form: loading, CUE schema validation, structural validation,
// machine-space resolution, stage expansion, and tick quantization.
package problem

import (
	"github.com/atelier-sched/atelier/pkg/engine"
)

// Request is a scheduling problem as submitted by a caller, before
// normalization. Durations and dates are in caller time units; the
// normalizer converts them to integer ticks.
type Request struct {
	// Kind selects the shop family and controls which operation forms are
	// accepted (flow, job, hybrid, flexible).
	Kind engine.ShopKind `json:"kind" yaml:"kind" validate:"required"`

	// Name is an optional label for the request, used in logs and reports.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// TimeScale is the number of ticks per input time unit. Zero means the
	// default of 1; negative values are rejected.
	TimeScale int64 `json:"time_scale,omitempty" yaml:"time_scale,omitempty"`

	// Jobs lists the jobs to schedule.
	Jobs []JobSpec `json:"jobs" yaml:"jobs" validate:"required,min=1,dive"`

	// DueDates holds one due date per job, in input time units, strictly
	// positive. Completion past the due date counts as tardiness.
	DueDates []float64 `json:"due_dates" yaml:"due_dates" validate:"required,min=1"`

	// ReleaseTimes optionally holds one release time per job, in input time
	// units. Omitted means every job is released at 0.
	ReleaseTimes []float64 `json:"release_times,omitempty" yaml:"release_times,omitempty"`

	// Machines optionally declares the machine space with names and priority
	// weights. When omitted the space is derived from the highest referenced
	// machine index (or from stages for hybrid shops).
	Machines []MachineSpec `json:"machines,omitempty" yaml:"machines,omitempty" validate:"omitempty,dive"`

	// Stages declares the stage layout of a hybrid flow shop: one entry per
	// stage with the machine ids belonging to it.
	Stages []StageSpec `json:"stages,omitempty" yaml:"stages,omitempty" validate:"omitempty,dive"`

	// MachinesPerStage is the hybrid shorthand for Stages: the machine count
	// of each stage, with machine ids assigned sequentially in stage order.
	MachinesPerStage []int `json:"machines_per_stage,omitempty" yaml:"machines_per_stage,omitempty"`

	// SetupTimes lists sequence-dependent setup entries. A duration of 0 is
	// a real entry and constrains the model, unlike an absent pair.
	SetupTimes []SetupSpec `json:"setup_times,omitempty" yaml:"setup_times,omitempty" validate:"omitempty,dive"`

	// TimeLimitSeconds is the solver budget for this request. Zero means the
	// engine default applies.
	TimeLimitSeconds float64 `json:"time_limit_seconds,omitempty" yaml:"time_limit_seconds,omitempty"`
}

// JobSpec is one job of a request.
type JobSpec struct {
	// Name is the optional human-readable job name. Defaults to "Job N".
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Operations is the ordered operation chain of the job.
	Operations []OperationSpec `json:"operations" yaml:"operations" validate:"required,min=1,dive"`
}

// OperationSpec is one processing step of a job. Exactly one form must be
// used: the machine form (Machine + Duration), the stage form (Stage +
// Duration, hybrid only), or the alternatives form (Alternatives, flexible
// only). The machine form doubles as a one-alternative shorthand for
// flexible shops.
type OperationSpec struct {
	// Machine pins the operation to a single machine id (machine form).
	Machine *int `json:"machine,omitempty" yaml:"machine,omitempty"`

	// Stage places the operation on a stage of interchangeable machines
	// (stage form); the normalizer expands it to one alternative per
	// machine of the stage.
	Stage *int `json:"stage,omitempty" yaml:"stage,omitempty"`

	// Duration is the processing time in input units, required by the
	// machine and stage forms, strictly positive.
	Duration float64 `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Alternatives lists explicit (machine, duration) choices (alternatives
	// form); exactly one is selected in the schedule.
	Alternatives []AlternativeSpec `json:"alternatives,omitempty" yaml:"alternatives,omitempty" validate:"omitempty,dive"`
}

// AlternativeSpec is one (machine, duration) choice of an operation.
type AlternativeSpec struct {
	// Machine is the machine id.
	Machine int `json:"machine" yaml:"machine"`

	// Duration is the processing time in input units on this machine,
	// strictly positive.
	Duration float64 `json:"duration" yaml:"duration"`
}

// MachineSpec declares one machine of the request's machine space.
type MachineSpec struct {
	// Name is the optional human-readable machine name. Defaults to
	// "Machine N".
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Priority is the preference weight for the secondary objective; lower
	// is preferred, zero carries no preference.
	Priority int64 `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// StageSpec declares one stage of a hybrid flow shop.
type StageSpec struct {
	// Name is the optional human-readable stage name. Defaults to "Stage N".
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Machines lists the machine ids belonging to this stage.
	Machines []int `json:"machines" yaml:"machines"`
}

// SetupSpec is one sequence-dependent setup entry of the request.
type SetupSpec struct {
	// Machine is the machine id the setup applies to.
	Machine int `json:"machine" yaml:"machine"`

	// FromJob is the job index of the preceding task.
	FromJob int `json:"from_job" yaml:"from_job"`

	// ToJob is the job index of the directly following task.
	ToJob int `json:"to_job" yaml:"to_job"`

	// Duration is the changeover time in input units, non-negative. Zero is
	// a real constraint, not a no-op.
	Duration float64 `json:"duration" yaml:"duration"`
}
