package policy

import (
	"time"

	"github.com/atelier-sched/atelier/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but do not
	// block a solve.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that block a solve.
	SeverityError Severity = "error"

	// SeverityCritical is for findings that block a solve and require
	// operator attention.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation at this severity denies admission.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a Rego guardrail evaluated before a solve is admitted.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations that do not carry
	// their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single finding produced by a policy rule.
type Violation struct {
	// Policy is the name of the policy that produced the finding.
	Policy string `json:"policy"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Details contains any extra fields the rule attached.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Result represents the outcome of evaluating all enabled policies against
// one input document.
type Result struct {
	// Allowed indicates whether the solve may proceed. It is true exactly
	// when no blocking violations were found.
	Allowed bool `json:"allowed"`

	// Violations lists the blocking findings (error and critical severity).
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists the non-blocking findings (info and warning severity).
	Warnings []Violation `json:"warnings,omitempty"`

	// Evaluated lists the names of policies that ran, in evaluation order.
	Evaluated []string `json:"evaluated"`

	// EvaluatedAt is when the evaluation started.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document policies evaluate. It carries the shape of the
// problem and the requested solve budget, never the full instance: admission
// rules decide on sizes and budgets, not on individual jobs.
type Input struct {
	// Problem describes the instance shape.
	Problem ProblemShape `json:"problem"`

	// Budget describes the requested solver budget.
	Budget BudgetShape `json:"budget"`

	// Context provides additional evaluation context.
	Context EvalContext `json:"context"`
}

// ProblemShape summarizes a normalized problem for policy evaluation.
type ProblemShape struct {
	// Kind is the shop kind ("flow", "job", "hybrid", "flexible").
	Kind string `json:"kind"`

	// Jobs is the number of jobs.
	Jobs int `json:"jobs"`

	// Machines is the number of machines.
	Machines int `json:"machines"`

	// Stages is the number of stages. Zero outside hybrid shops.
	Stages int `json:"stages"`

	// Operations is the total operation count across all jobs.
	Operations int `json:"operations"`

	// MaxAlternatives is the largest alternative set on any operation.
	MaxAlternatives int `json:"max_alternatives"`

	// SetupEntries is the number of configured setup matrix entries.
	SetupEntries int `json:"setup_entries"`

	// Horizon is the scheduling horizon the model would use, in ticks.
	Horizon int64 `json:"horizon"`

	// TimeScale is the ticks-per-time-unit quantization factor.
	TimeScale int64 `json:"time_scale"`

	// Features flags the optional model features the instance uses.
	Features engine.Features `json:"features"`
}

// BudgetShape summarizes the requested solve options for policy evaluation.
type BudgetShape struct {
	// TimeLimitSeconds is the solver wall-clock budget in seconds.
	TimeLimitSeconds float64 `json:"time_limit_seconds"`

	// Workers is the requested parallel worker count.
	Workers int `json:"workers"`

	// Seed is the requested random seed.
	Seed int64 `json:"seed"`

	// LogSearchProgress indicates whether solver search logging was
	// requested.
	LogSearchProgress bool `json:"log_search_progress"`
}

// EvalContext provides context information for policy evaluation.
type EvalContext struct {
	// Operation is what the caller is about to do ("solve", "validate").
	Operation string `json:"operation"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// DryRun indicates the caller wants the verdict without a solve.
	DryRun bool `json:"dry_run"`
}

// Bundle represents a versioned collection of related policies loaded from a
// single file.
type Bundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies"`

	// CreatedAt is when the bundle was created.
	CreatedAt time.Time `json:"created_at"`
}
