package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		instanceLimitsPolicy(),
		budgetLimitsPolicy(),
		searchSpacePolicy(),
	}
}

// instanceLimitsPolicy caps the size of instances admitted for solving.
func instanceLimitsPolicy() Policy {
	return Policy{
		Name:        "instance-limits",
		Description: "Caps instance size (jobs, operations, machines, horizon) admitted for solving",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"limits", "capacity"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package atelier.policies.instance

import rego.v1

# Hard caps on instance size
max_jobs := 2000
max_operations := 20000
max_machines := 500
max_stages := 100
max_horizon := 100000000

deny contains violation if {
	input.problem
	shape := input.problem

	shape.jobs > max_jobs
	violation := {
		"message": sprintf("instance has %d jobs, above the limit of %d", [shape.jobs, max_jobs]),
		"severity": "error",
	}
}

deny contains violation if {
	input.problem
	shape := input.problem

	shape.operations > max_operations
	violation := {
		"message": sprintf("instance has %d operations, above the limit of %d", [shape.operations, max_operations]),
		"severity": "error",
	}
}

deny contains violation if {
	input.problem
	shape := input.problem

	shape.machines > max_machines
	violation := {
		"message": sprintf("instance has %d machines, above the limit of %d", [shape.machines, max_machines]),
		"severity": "error",
	}
}

deny contains violation if {
	input.problem
	shape := input.problem

	shape.stages > max_stages
	violation := {
		"message": sprintf("instance has %d stages, above the limit of %d", [shape.stages, max_stages]),
		"severity": "error",
	}
}

deny contains violation if {
	input.problem
	shape := input.problem

	# Horizon in ticks; a huge horizon usually means a mischosen time_scale
	shape.horizon > max_horizon
	violation := {
		"message": sprintf("scheduling horizon of %d ticks is above the limit of %d", [shape.horizon, max_horizon]),
		"severity": "error",
	}
}`,
	}
}

// budgetLimitsPolicy caps the solver budget a single request may claim.
func budgetLimitsPolicy() Policy {
	return Policy{
		Name:        "budget-limits",
		Description: "Caps the solver time budget and worker count a single solve may claim",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"limits", "budget"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package atelier.policies.budget

import rego.v1

max_time_limit_seconds := 3600
max_workers := 64

deny contains violation if {
	input.budget
	budget := input.budget

	budget.time_limit_seconds > max_time_limit_seconds
	violation := {
		"message": sprintf("time limit of %.0fs is above the limit of %ds", [budget.time_limit_seconds, max_time_limit_seconds]),
		"severity": "error",
	}
}

deny contains violation if {
	input.budget
	budget := input.budget

	budget.workers > max_workers
	violation := {
		"message": sprintf("%d workers requested, above the limit of %d", [budget.workers, max_workers]),
		"severity": "error",
	}
}

# Flag long budgets on tiny instances; usually a unit mistake
deny contains violation if {
	input.budget
	input.problem

	input.budget.time_limit_seconds > 600
	input.problem.operations < 50

	violation := {
		"message": sprintf("%.0fs budget for %d operations - a fraction of that usually proves optimality", [input.budget.time_limit_seconds, input.problem.operations]),
		"severity": "warning",
	}
}`,
	}
}

// searchSpacePolicy warns when the model's interval count or horizon suggests
// a hard search space ahead.
func searchSpacePolicy() Policy {
	return Policy{
		Name:        "search-space",
		Description: "Warns when alternative fan-out or horizon size suggests a slow solve",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"capacity", "performance"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package atelier.policies.search

import rego.v1

# Rough cap on optional intervals before solves get slow
max_intervals := 20000

deny contains violation if {
	input.problem
	shape := input.problem

	intervals := shape.operations * shape.max_alternatives
	intervals > max_intervals

	violation := {
		"message": sprintf("%d operations with up to %d alternatives each create %d intervals - expect a slow solve", [shape.operations, shape.max_alternatives, intervals]),
		"severity": "warning",
	}
}

# A vast horizon holding little work points at a mischosen time_scale
deny contains violation if {
	input.problem
	shape := input.problem

	shape.horizon > 1000000
	shape.operations < 100

	violation := {
		"message": sprintf("horizon of %d ticks for only %d operations - consider a coarser time_scale", [shape.horizon, shape.operations]),
		"severity": "warning",
	}
}`,
	}
}
