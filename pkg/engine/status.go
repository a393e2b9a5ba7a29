package engine

import (
	"encoding/json"
	"fmt"
)

// Status represents the outcome of a solve. Solver outcomes are data, not
// errors: a proven-infeasible problem is a successful solve with an
// infeasible status.
type Status string

const (
	// StatusOptimal indicates the solver proved the returned schedule optimal.
	StatusOptimal Status = "optimal"

	// StatusFeasible indicates the solver found a schedule but stopped
	// (time budget exhausted) before proving optimality.
	StatusFeasible Status = "feasible"

	// StatusInfeasible indicates no schedule exists, or none was found
	// within the time budget.
	StatusInfeasible Status = "infeasible"

	// StatusError indicates the solve did not produce an outcome at all.
	// It only appears in reports; the failure itself travels as an error.
	StatusError Status = "error"
)

// HasSolution returns true if the status carries a usable schedule.
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// IsProven returns true if the solver settled the question: the schedule is
// optimal, or no schedule exists.
func (s Status) IsProven() bool {
	return s == StatusOptimal || s == StatusInfeasible
}

// Validate checks if the status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusOptimal, StatusFeasible, StatusInfeasible, StatusError:
		return nil
	default:
		return fmt.Errorf("invalid solve status: %s", s)
	}
}

// ShopKind represents the scheduling problem family. The kind controls which
// request forms are accepted and which validation rules apply; after
// normalization every kind flows through the same model builder.
type ShopKind string

const (
	// KindFlow is a flow shop: every job visits machines in the same order.
	KindFlow ShopKind = "flow"

	// KindJob is a job shop: each job has its own machine routing.
	KindJob ShopKind = "job"

	// KindHybrid is a hybrid flow shop: stages in fixed order, each stage
	// holding one or more identical machines.
	KindHybrid ShopKind = "hybrid"

	// KindFlexible is a flexible job shop: each operation carries explicit
	// machine alternatives with per-machine durations.
	KindFlexible ShopKind = "flexible"
)

// RequiresUniformOps returns true if every job must have the same number of
// operations for this kind.
func (k ShopKind) RequiresUniformOps() bool {
	return k == KindFlow || k == KindJob || k == KindHybrid
}

// Validate checks if the shop kind is valid.
func (k ShopKind) Validate() error {
	switch k {
	case KindFlow, KindJob, KindHybrid, KindFlexible:
		return nil
	default:
		return fmt.Errorf("invalid shop kind: %s", k)
	}
}

// Phase identifies a stage of the solve pipeline, for logs, spans, metrics,
// and error context.
type Phase string

const (
	// PhaseAdmission is the policy admission check.
	PhaseAdmission Phase = "admission"

	// PhaseNormalize is request validation and canonicalization.
	PhaseNormalize Phase = "normalize"

	// PhaseBuild is constraint model construction.
	PhaseBuild Phase = "build"

	// PhaseSolve is the backend solver invocation.
	PhaseSolve Phase = "solve"

	// PhaseExtract is schedule decoding and verification.
	PhaseExtract Phase = "extract"

	// PhaseMetrics is KPI computation over the verified schedule.
	PhaseMetrics Phase = "metrics"
)

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = Status(str)
	return s.Validate()
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (k ShopKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(k))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (k *ShopKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*k = ShopKind(str)
	return k.Validate()
}
