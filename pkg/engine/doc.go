// Package engine provides the core types and the solve pipeline of the
// Atelier scheduling engine.
//
// # Overview
//
// Atelier solves disjunctive shop scheduling problems: flow shops, job shops,
// hybrid flow shops, and flexible job shops. Every family normalizes to the
// same canonical Problem, and a solve moves through a 5-phase pipeline:
//
//  1. Admission - Policy checks on the problem shape and budget (Admission)
//  2. Build - Compile the problem into a CP-SAT constraint model (BuildModel)
//  3. Solve - Run the backend solver within its time budget (Backend)
//  4. Extract - Decode and verify the schedule (ExtractSchedule)
//  5. Metrics - Compute schedule KPIs (ComputeMetrics)
//
// The Scheduler ties the phases together; each can also be called on its own.
//
// # Core Domain Types
//
// The package defines the types that represent the scheduling model:
//
//   - Problem: A fully normalized problem in integer ticks with dense ids
//   - Job: An ordered chain of operations with release and due times
//   - Operation: One processing step with its machine alternatives
//   - Machine: A capacity-one resource, optionally carrying a priority weight
//   - Stage: A group of interchangeable machines in a hybrid flow shop
//   - SetupMatrix: Sequence-dependent setup times between job pairs
//   - CompiledModel: The CP-SAT model proto with its statistics
//   - Outcome: The raw backend verdict before decoding
//   - Schedule: A decoded, verified task assignment per machine
//   - Metrics: Makespan, mean flow time, and total tardiness
//   - Result: The complete outcome of one solve request
//
// # Backend Interface
//
// Solver backends implement the Backend interface:
//
//	type Backend interface {
//	    Name() string
//	    Solve(ctx context.Context, model *CompiledModel, opts SolveOptions) (*Outcome, error)
//	}
//
// The built-in backend solves with CP-SAT; the solvers package maps backend
// names to implementations.
//
// # Solver Outcomes Are Data
//
// An infeasible problem or an exhausted time budget is a valid Result with
// the corresponding Status, not an error. The error return of Solve is
// reserved for faults: rejected problems, policy denials, solver failures,
// and inconsistent schedules. Status.HasSolution and Status.IsProven answer
// the two questions callers ask of an outcome.
//
// # Error Classification
//
// Errors are classified by who must act on them:
//
//   - Validation: The request is malformed; the caller fixes the document
//   - Model: The problem cannot be compiled (for example horizon overflow)
//   - Solver: The backend failed to run
//   - Policy: An admission policy denied the solve
//   - IO: Reading or writing an external resource failed
//   - Internal: An invariant broke; a bug, not a caller mistake
//
// Use the predicate helpers to branch on class:
//
//	if engine.IsUserError(err) {
//	    // Reject with the details; nothing to retry
//	}
//
// # Example Usage
//
// Basic workflow for solving a problem:
//
//	sched, err := engine.NewScheduler(engine.SchedulerConfig{
//	    Backend: backend,
//	})
//
//	result, err := sched.Solve(ctx, problem, engine.DefaultSolveOptions())
//	if err != nil {
//	    return err
//	}
//
//	if result.Status.HasSolution() {
//	    fmt.Println(result.Metrics.Makespan)
//	}
//
// # Thread Safety
//
// A Scheduler is safe for concurrent use. Every Solve call is self-contained:
// request-scoped state only, no sharing between concurrent solves. The only
// mechanism that interrupts a running backend solve is its time budget;
// context cancellation is honored between phases.
package engine
