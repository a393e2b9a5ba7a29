package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atelier-sched/atelier/pkg/engine"
	"github.com/atelier-sched/atelier/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	var (
		policyDirs []string
		noPolicy   bool
	)

	cmd := &cobra.Command{
		Use:   "validate <instance>",
		Short: "Validate a scheduling instance",
		Long: `Validate an instance file without solving it.

Validation:
  - Parses the YAML or JSON request document
  - Checks it against the CUE schema for its shop kind
  - Normalizes it to canonical integer-tick form
  - Dry-runs the admission policies against the normalized shape

A denied instance fails validation with the denying policy named, so a
rejected solve never comes as a surprise in a later run.`,
		Example: `  # Validate an instance
  atelier validate instance.yaml

  # Validate against custom admission policies
  atelier validate instance.yaml --policy-dir ./policies

  # Shape report as JSON
  atelier validate instance.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log.Info().Str("instance", args[0]).Msg("Validating instance")

			p, req, err := loadProblem(ctx, args[0])
			if err != nil {
				return err
			}

			summary, err := summarize(p, req.Name)
			if err != nil {
				return err
			}

			if !noPolicy {
				admission, err := newAdmission(ctx, policyDirs, false)
				if err != nil {
					return err
				}

				input, err := policy.NewInput(p, engine.DefaultSolveOptions())
				if err != nil {
					return err
				}
				input.Context.Operation = "validate"
				input.Context.DryRun = true

				result, err := admission.Engine().Evaluate(ctx, input)
				if err != nil {
					return err
				}
				for _, w := range result.Warnings {
					log.Warn().Str("policy", w.Policy).Msg(w.Message)
				}
				if !result.Allowed {
					for _, v := range result.Violations {
						log.Error().Str("policy", v.Policy).Msg(v.Message)
					}
					return fmt.Errorf("instance denied by policy %s", result.Violations[0].Policy)
				}
			}

			if jsonOutput {
				return encodeJSON(os.Stdout, summary)
			}
			renderSummary(os.Stdout, summary)
			log.Info().Msg("Instance is valid")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&policyDirs, "policy-dir", nil, "directory of custom admission policies (repeatable)")
	cmd.Flags().BoolVar(&noPolicy, "no-policy", false, "skip the admission policy dry-run")

	return cmd
}
