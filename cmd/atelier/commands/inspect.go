package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atelier-sched/atelier/pkg/engine"
)

// modelReport pairs an instance's shape with its compiled model statistics.
type modelReport struct {
	Instance *instanceSummary  `json:"instance"`
	Model    engine.ModelStats `json:"model"`
}

func newInspectCommand() *cobra.Command {
	var horizonSlack int64

	cmd := &cobra.Command{
		Use:   "inspect <instance>",
		Short: "Inspect the compiled constraint model",
		Long: `Compile the constraint model for an instance without solving it.

Reports the model size (variables, constraints, intervals), the horizon
bound, and the objective scale. Useful for judging whether an instance
fits a solve budget before spending it.`,
		Example: `  # Inspect an instance's model
  atelier inspect instance.yaml

  # Inspect with a widened horizon
  atelier inspect instance.yaml --horizon-slack 1

  # Model statistics as JSON
  atelier inspect instance.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log.Info().Str("instance", args[0]).Msg("Inspecting instance")

			p, req, err := loadProblem(ctx, args[0])
			if err != nil {
				return err
			}

			summary, err := summarize(p, req.Name)
			if err != nil {
				return err
			}

			compiled, err := engine.BuildModel(p, engine.SolveOptions{HorizonSlack: horizonSlack})
			if err != nil {
				return err
			}

			if jsonOutput {
				return encodeJSON(os.Stdout, &modelReport{
					Instance: summary,
					Model:    compiled.Stats,
				})
			}

			renderSummary(os.Stdout, summary)
			fmt.Println()
			renderModel(os.Stdout, compiled.Stats)
			return nil
		},
	}

	cmd.Flags().Int64Var(&horizonSlack, "horizon-slack", 0, "extra horizon multiples beyond the computed bound")

	return cmd
}
