package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atelier-sched/atelier/pkg/engine"
	"github.com/atelier-sched/atelier/pkg/policy"
	"github.com/atelier-sched/atelier/pkg/problem"
	"github.com/atelier-sched/atelier/pkg/solvers"
	"github.com/atelier-sched/atelier/pkg/telemetry"
)

// solveFlags are the solve options shared by the solve and watch commands.
type solveFlags struct {
	timeLimit    time.Duration
	workers      int
	seed         int64
	horizonSlack int64
	backendName  string
	policyDirs   []string
	noPolicy     bool
	solverLog    bool
}

func (f *solveFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.timeLimit, "time-limit", 30*time.Second, "solver time budget")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "solver worker threads (0 lets the solver decide, 1 is deterministic)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "solver random seed")
	cmd.Flags().Int64Var(&f.horizonSlack, "horizon-slack", 0, "extra horizon multiples beyond the computed bound")
	cmd.Flags().StringVar(&f.backendName, "backend", solvers.DefaultBackend, "solver backend")
	cmd.Flags().StringSliceVar(&f.policyDirs, "policy-dir", nil, "directory of custom admission policies (repeatable)")
	cmd.Flags().BoolVar(&f.noPolicy, "no-policy", false, "disable admission policies")
	cmd.Flags().BoolVar(&f.solverLog, "solver-log", false, "log solver search progress to stdout")
}

func (f *solveFlags) options() engine.SolveOptions {
	return engine.SolveOptions{
		TimeLimit:         f.timeLimit,
		Workers:           f.workers,
		Seed:              f.seed,
		LogSearchProgress: f.solverLog,
		HorizonSlack:      f.horizonSlack,
	}
}

// loadProblem reads an instance file, validates it against the request
// schema, and normalizes it to canonical tick form.
func loadProblem(ctx context.Context, path string) (*engine.Problem, *problem.Request, error) {
	loader, err := problem.NewLoader()
	if err != nil {
		return nil, nil, err
	}

	req, err := loader.Load(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	p, err := problem.NewNormalizer().Normalize(req)
	if err != nil {
		return nil, nil, err
	}
	return p, req, nil
}

// newAdmission builds the admission guard: built-in policies plus any custom
// policy directories. A nil guard disables admission entirely.
func newAdmission(ctx context.Context, policyDirs []string, noPolicy bool) (*policy.Admission, error) {
	if noPolicy {
		return nil, nil
	}

	eng, err := policy.NewEngine(log.Logger)
	if err != nil {
		return nil, err
	}
	if len(policyDirs) > 0 {
		if err := eng.LoadPolicies(ctx, policyDirs); err != nil {
			return nil, err
		}
	}
	return policy.NewAdmission(eng, log.Logger), nil
}

// newTelemetry builds the CLI telemetry: console logs on stderr, with
// metrics and tracing off unless the global flags turn them on.
func newTelemetry() (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	if cliVersion != "" {
		cfg.ServiceVersion = cliVersion
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if metricsListen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = metricsListen
	}
	switch traceExporter {
	case "":
	case "stdout":
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = "stdout"
	default:
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = "otlp"
		cfg.Tracing.Endpoint = traceExporter
	}

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, err
	}
	// No-op unless metrics are enabled.
	if err := tel.StartMetricsServer(); err != nil {
		return nil, err
	}
	return tel, nil
}

// newScheduler assembles a scheduler around the named backend.
func newScheduler(backendName string, admission *policy.Admission) (*engine.Scheduler, *telemetry.Telemetry, error) {
	backend, err := solvers.DefaultRegistry().Open(backendName)
	if err != nil {
		return nil, nil, err
	}

	tel, err := newTelemetry()
	if err != nil {
		return nil, nil, err
	}

	cfg := engine.SchedulerConfig{
		Backend:   backend,
		Telemetry: tel,
		Defaults:  engine.DefaultSolveOptions(),
	}
	// A nil *Admission must stay a nil interface.
	if admission != nil {
		cfg.Admission = admission
	}

	sched, err := engine.NewScheduler(cfg)
	if err != nil {
		return nil, nil, err
	}
	return sched, tel, nil
}

// parseParams turns --set key=value pairs into script parameters, coercing
// each value to int, float, or bool where it parses as one.
func parseParams(pairs []string) (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		params[key] = coerceParam(raw)
	}
	return params, nil
}

func coerceParam(raw string) interface{} {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
