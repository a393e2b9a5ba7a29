// Package policy provides Open Policy Agent (OPA) admission control for
// Atelier solves.
//
// Before the engine builds a constraint model, the problem's shape and the
// requested solver budget pass through a set of Rego guardrail policies. A
// blocking violation stops the solve before any solver time is spent. The
// package includes built-in policies for common capacity limits and supports
// loading custom policies from files.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Admission - Adapts the engine to the scheduler's admission hook
//  3. Loader - Loads policies from files, directories, and bundles
//  4. Built-in Policies - Pre-defined capacity and budget guardrails
//
// # Usage
//
// Wiring admission control into a scheduler:
//
//	policyEngine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	scheduler, err := engine.NewScheduler(engine.SchedulerConfig{
//	    Backend:   backend,
//	    Admission: policy.NewAdmission(policyEngine, logger),
//	})
//
// A solve denied by policy fails with a policy-class error before the model
// is built:
//
//	result, err := scheduler.Solve(ctx, problem, opts)
//	if engine.IsPolicy(err) {
//	    // rejected by admission control; the error's Resource names the policy
//	}
//
// Loading custom policies:
//
//	err = policyEngine.LoadPolicies(ctx, []string{"/etc/atelier/policies"})
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. instance-limits - Caps jobs, operations, machines, stages, and horizon
//  2. budget-limits - Caps the solver time budget and worker count
//  3. search-space - Warns when alternative fan-out or horizon suggests a slow solve
//
// Deployments with different limits override a built-in by loading a custom
// policy under the same name.
//
// # Input Document
//
// Policies evaluate a summary of the problem, never the full instance:
//
//	input.problem.kind              shop kind ("flow", "job", "hybrid", "flexible")
//	input.problem.jobs              job count
//	input.problem.machines          machine count
//	input.problem.stages            stage count (hybrid shops)
//	input.problem.operations        total operation count
//	input.problem.max_alternatives  largest alternative set on any operation
//	input.problem.setup_entries     configured setup matrix entries
//	input.problem.horizon           scheduling horizon in ticks
//	input.problem.time_scale        ticks per time unit
//	input.problem.features          setup / release / priorities / multi_machine flags
//	input.budget.time_limit_seconds solver wall-clock budget
//	input.budget.workers            parallel worker count
//	input.context.operation         "solve" or "validate"
//
// # Custom Policies
//
// Custom policies are written in Rego and loaded from .rego files. Rules add
// violation objects to a deny set:
//
//	package custom.policies.capacity
//
//	import rego.v1
//
//	# Keep big instances from claiming the whole cluster
//	deny contains violation if {
//	    input.problem.operations > 5000
//	    input.budget.workers > 16
//
//	    violation := {
//	        "message": "large instances may use at most 16 workers",
//	        "severity": "error",
//	    }
//	}
//
// A rule may also emit a bare string, which inherits the policy's default
// severity.
//
// # Severity Levels
//
// Violations have four severity levels:
//
//   - info: informational findings
//   - warning: findings that are logged but do not block the solve
//   - error: findings that block the solve
//   - critical: findings that block the solve and demand operator attention
//
// # Hot Reload
//
// The loader supports watching policy files for changes and reloading
// automatically:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    if err := policyEngine.ReloadPolicies(ctx); err != nil {
//	        return err
//	    }
//	    return policyEngine.LoadPolicies(ctx, paths)
//	})
//
// # Performance
//
// Policies are parsed and prepared once; each evaluation reuses the prepared
// deny query with a fresh input document. Evaluating the built-in set costs
// microseconds next to any real solve.
package policy
