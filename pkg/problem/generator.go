package problem

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/atelier-sched/atelier/pkg/engine"
)

// Generator executes Starlark instance scripts. A script builds a request
// document procedurally and assigns it to a global named "request"; the
// result passes through the same schema validation as a loaded document.
//
// Scripts run sandboxed: no filesystem or network access, print suppressed,
// and a deadline enforced through cooperative cancellation. Randomness comes
// from the seeded uniform() and randint() builtins, so the same script,
// parameters, and seed always produce the same instance.
type Generator struct {
	loader  *Loader
	timeout time.Duration
}

// NewGenerator creates a generator that validates produced instances with
// the given loader. A zero timeout defaults to 30 seconds.
func NewGenerator(loader *Loader, timeout time.Duration) *Generator {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Generator{
		loader:  loader,
		timeout: timeout,
	}
}

// Generate runs an instance script and returns the request it produced.
// params is exposed to the script as the "params" dict, seed drives the
// random builtins.
func (g *Generator) Generate(ctx context.Context, script string, params map[string]interface{}, seed int64) (*Request, error) {
	evalCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: "atelier",
		Print: func(_ *starlark.Thread, _ string) {
			// Suppressed, scripts communicate through the request global.
		},
	}

	type execResult struct {
		globals starlark.StringDict
		err     error
	}
	resultCh := make(chan execResult, 1)

	go func() {
		globals, err := g.execScript(thread, script, params, seed)
		resultCh <- execResult{globals: globals, err: err}
	}()

	var globals starlark.StringDict
	select {
	case <-evalCtx.Done():
		// Cooperative: the thread stops at the next loop head and the
		// goroutine drains through the buffered channel.
		thread.Cancel("deadline exceeded")
		return nil, engine.NewValidationError(
			fmt.Sprintf("instance script exceeded its %v budget", g.timeout), evalCtx.Err()).
			WithCode(engine.ErrCodeCanceled)
	case res := <-resultCh:
		if res.err != nil {
			return nil, engine.NewValidationError("instance script failed", res.err).
				WithCode(engine.ErrCodeParse)
		}
		globals = res.globals
	}

	val, ok := globals["request"]
	if !ok {
		return nil, engine.NewValidationError("instance script did not assign the request global", nil).
			WithCode(engine.ErrCodeParse)
	}

	doc, err := fromStarlarkValue(val)
	if err != nil {
		return nil, engine.NewValidationError("instance script produced an unconvertible request", err).
			WithCode(engine.ErrCodeParse)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, engine.NewValidationError("instance script produced an unencodable request", err).
			WithCode(engine.ErrCodeParse)
	}

	return g.loader.Parse(ctx, data, FormatJSON)
}

// execScript runs the script with the sandboxed predeclared environment.
func (g *Generator) execScript(thread *starlark.Thread, script string, params map[string]interface{}, seed int64) (starlark.StringDict, error) {
	rng := rand.New(rand.NewSource(seed))

	predeclared := starlark.StringDict{
		"struct":  starlarkstruct.Default,
		"uniform": starlark.NewBuiltin("uniform", builtinUniform(rng)),
		"randint": starlark.NewBuiltin("randint", builtinRandint(rng)),
	}

	paramsDict := starlark.NewDict(len(params))
	for key, val := range params {
		starlarkVal, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert parameter %s: %w", key, err)
		}
		if err := paramsDict.SetKey(starlark.String(key), starlarkVal); err != nil {
			return nil, err
		}
	}
	predeclared["params"] = paramsDict

	return starlark.ExecFile(thread, "instance.star", script, predeclared)
}

// builtinUniform returns a uniform(lo, hi) builtin drawing floats from
// [lo, hi).
func builtinUniform(rng *rand.Rand) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var lo, hi float64
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "lo", &lo, "hi", &hi); err != nil {
			return nil, err
		}
		if hi < lo {
			return nil, fmt.Errorf("uniform bounds are inverted: [%v, %v)", lo, hi)
		}
		return starlark.Float(lo + rng.Float64()*(hi-lo)), nil
	}
}

// builtinRandint returns a randint(lo, hi) builtin drawing integers from
// [lo, hi] inclusive.
func builtinRandint(rng *rand.Rand) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var lo, hi int64
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "lo", &lo, "hi", &hi); err != nil {
			return nil, err
		}
		if hi < lo {
			return nil, fmt.Errorf("randint bounds are inverted: [%d, %d]", lo, hi)
		}
		return starlark.MakeInt64(lo + rng.Int63n(hi-lo+1)), nil
	}
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			starlarkVal, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value that encodes
// as JSON.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]interface{}, len(val))
		for i, item := range val {
			converted, err := fromStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = converted
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{}, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be a string, got %s", item[0].Type())
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
