package problem

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for request validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() (*SchemaRegistry, error) {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	if err := sr.RegisterSchema("request", builtinRequestSchema); err != nil {
		return nil, err
	}

	return sr, nil
}

// RegisterSchema registers a CUE schema with the given name. The schema
// source must contain a definition named like the schema with a leading
// capital, e.g. #Request for "request".
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// ValidateAgainstSchema validates data against a named schema by unifying
// the encoded data with the schema's definition.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName, definition string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	def := schema.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("definition %s not found in schema %s", definition, schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := def.Unify(dataVal)
	return unified.Validate(cue.Concrete(true))
}

// ValidateRequest validates a request against the request schema.
func (sr *SchemaRegistry) ValidateRequest(ctx context.Context, req *Request) error {
	return sr.ValidateAgainstSchema(ctx, "request", "#Request", req)
}

// builtinRequestSchema is the problem document schema. All definitions live
// in one source so references resolve when the schema compiles.
const builtinRequestSchema = `
// Request schema for Atelier problem documents
#Request: {
	// Kind selects the shop family
	kind: "flow" | "job" | "hybrid" | "flexible"

	// Name labels the request in logs and reports
	name?: string

	// TimeScale is the number of ticks per input time unit
	time_scale?: int & >0

	// Jobs lists the jobs to schedule
	jobs: [#Job, ...#Job]

	// DueDates holds one strictly positive due date per job
	due_dates: [number & >0, ...number & >0]

	// ReleaseTimes optionally holds one non-negative release time per job
	release_times?: [...number & >=0]

	// Machines optionally declares the machine space
	machines?: [...#Machine]

	// Stages declares the stage layout of a hybrid flow shop
	stages?: [...#Stage]

	// MachinesPerStage is the shorthand stage layout: machine counts per stage
	machines_per_stage?: [...int & >0]

	// SetupTimes lists sequence-dependent setup entries
	setup_times?: [...#Setup]

	// TimeLimitSeconds is the solver budget
	time_limit_seconds?: number & >=0
}

// Job is an ordered chain of operations. Exactly one operation form per
// operation: machine+duration, stage+duration, or alternatives.
#Job: {
	name?: string
	operations: [#Operation, ...#Operation]
}

#Operation: {
	machine?: int & >=0
	stage?: int & >=0
	duration?: number & >0
	alternatives?: [#Alternative, ...#Alternative]
}

#Alternative: {
	machine: int & >=0
	duration: number & >0
}

#Machine: {
	name?: string
	priority?: int & >=0
}

#Stage: {
	name?: string
	machines: [int & >=0, ...int & >=0]
}

// Setup is one changeover entry; a duration of 0 is a real constraint
#Setup: {
	machine: int & >=0
	from_job: int & >=0
	to_job: int & >=0
	duration: number & >=0
}
`
