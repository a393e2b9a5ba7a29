package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose       bool
	jsonOutput    bool
	metricsListen string
	traceExporter string

	// cliVersion holds the build version for telemetry identification.
	cliVersion string
)

// ErrInfeasible reports a solve that finished without a schedule: the solver
// proved no schedule exists, or found none within its time budget. It is a
// completed run, not a fault, and maps to its own exit code so scripts can
// tell the two apart.
var ErrInfeasible = errors.New("no feasible schedule")

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	cliVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "atelier",
		Short: "Atelier - Shop Scheduling Engine",
		Long: `Atelier solves disjunctive shop scheduling problems: flow shops, job
shops, hybrid flow shops, and flexible job shops.

Features:
  - YAML/JSON instances validated via CUE schemas
  - Procedural instance generation via Starlark
  - CP-SAT constraint model compilation and solving
  - Sequence-dependent setups, release dates, machine priorities
  - Policy admission via OPA/Rego
  - Schedule KPIs: makespan, mean flow time, total tardiness`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address during the run")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace", "", "trace exporter: an OTLP endpoint, or \"stdout\"")

	// Add subcommands
	rootCmd.AddCommand(newSolveCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newBackendsCommand())

	return rootCmd
}
