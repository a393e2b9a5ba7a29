package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atelier-sched/atelier/pkg/engine"
)

func newSolveCommand() *cobra.Command {
	var (
		flags   solveFlags
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "solve <instance>",
		Short: "Solve a scheduling instance",
		Long: `Solve a scheduling instance and print the schedule.

The solve pipeline:
  - Loads and validates the instance against its shop kind's schema
  - Normalizes it to canonical integer-tick form
  - Evaluates admission policies against the instance shape and budget
  - Compiles a CP-SAT constraint model and solves it
  - Decodes, verifies, and reports the schedule with its KPIs

The exit code distinguishes outcomes: 0 for a schedule (optimal or
feasible), 2 when no feasible schedule was found, 1 for any failure.`,
		Example: `  # Solve a flow shop instance
  atelier solve instance.yaml

  # Solve with a five minute budget and deterministic search
  atelier solve instance.yaml --time-limit 5m --workers 1 --seed 7

  # Enforce custom admission policies
  atelier solve instance.yaml --policy-dir ./policies

  # Write the full result to a file as JSON
  atelier solve instance.yaml --json --out result.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log.Info().
				Str("instance", args[0]).
				Dur("time_limit", flags.timeLimit).
				Str("backend", flags.backendName).
				Msg("Solving instance")

			p, _, err := loadProblem(ctx, args[0])
			if err != nil {
				return err
			}

			admission, err := newAdmission(ctx, flags.policyDirs, flags.noPolicy)
			if err != nil {
				return err
			}

			sched, tel, err := newScheduler(flags.backendName, admission)
			if err != nil {
				return err
			}
			defer tel.Shutdown(context.Background())

			res, err := sched.Solve(ctx, p, flags.options())
			if err != nil {
				return err
			}

			if err := writeResult(res, outFile, jsonOutput); err != nil {
				return err
			}

			if res.Status == engine.StatusInfeasible {
				return fmt.Errorf("instance %s: %w", args[0], ErrInfeasible)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the result to a file instead of stdout")

	return cmd
}
