// Package problem provides request loading, validation, and normalization
// for the atelier scheduling engine.
//
// # Overview
//
// The problem package implements the intake phase of atelier, responsible
// for reading request documents, validating them against the CUE request
// schema, and normalizing them into the canonical form the model builder
// consumes. It also executes Starlark instance scripts for procedural
// problem generation.
//
// # Features
//
//   - Request parsing from YAML and JSON documents with strict field checking
//   - CUE schema validation with per-position violation reporting
//   - Normalization of flow, job, hybrid, and flexible shop requests into
//     one canonical form
//   - Stage expansion for hybrid shops, from explicit stage lists or the
//     machines_per_stage shorthand
//   - Tick quantization of fractional durations, due dates, release times,
//     and setups
//   - Starlark instance scripts with seeded, reproducible randomness
//
// # Components
//
// Loader: Reads and parses request documents. Every document passes CUE
// schema validation before it reaches the normalizer, so malformed requests
// fail with the exact positions that violate the schema.
//
// Normalizer: Converts a validated request into an engine.Problem. The
// normalizer resolves the machine space, enforces the per-kind operation
// form rules, expands stage operations into per-machine alternatives,
// quantizes all times into integer ticks, and derives the model features
// the builder branches on. Nothing malformed passes: every rejection is a
// classified validation error naming the offending job, operation, or
// machine.
//
// Generator: Executes Starlark instance scripts in a sandbox. Scripts build
// a request document procedurally and assign it to the request global; the
// produced document passes through the same schema validation as a loaded
// one.
//
// # Usage Example
//
//	loader, err := problem.NewLoader()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	req, err := loader.Load(ctx, "plan.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, err := problem.NewNormalizer().Normalize(req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Request Documents
//
// A request document names the shop kind, the jobs with their operations,
// and a due date per job:
//
//	kind: flexible
//	time_scale: 10
//	jobs:
//	  - name: housing
//	    operations:
//	      - alternatives:
//	          - {machine: 0, duration: 3.5}
//	          - {machine: 1, duration: 4}
//	      - machine: 2
//	        duration: 2
//	due_dates: [12.5]
//	machines:
//	  - {name: lathe, priority: 2}
//	  - {name: mill}
//	  - {name: drill}
//
// Each operation uses exactly one form: a fixed machine, a stage (hybrid
// shops), or a list of machine alternatives (flexible shops). A fixed
// machine in a flexible shop is shorthand for a single alternative.
//
// # Instance Scripts
//
// Starlark scripts generate instances procedurally, for benchmarks and
// load tests:
//
//	_n = params["jobs"]
//
//	request = {
//	    "kind": "job",
//	    "jobs": [
//	        {"operations": [{"machine": m, "duration": randint(1, 9)}
//	                        for m in range(3)]}
//	        for _ in range(_n)
//	    ],
//	    "due_dates": [uniform(20, 40) for _ in range(_n)],
//	}
//
// Scripts run without filesystem or network access, under a deadline, and
// with print suppressed. The uniform and randint builtins draw from a
// generator seeded by the caller, so a script, its parameters, and a seed
// identify one exact instance.
//
// # Validation Layers
//
// A document crosses three gates before it becomes a problem: the decoder
// rejects unknown fields, the CUE schema rejects structural violations with
// their positions, and the normalizer rejects semantic violations with
// classified error codes. Programmatic requests skip the first two and are
// still fully checked by the normalizer.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package problem
