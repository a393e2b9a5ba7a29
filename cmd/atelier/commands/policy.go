package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atelier-sched/atelier/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Admission policy management",
		Long: `Inspect the admission policies that guard solves.

Built-in policies cap instance size, solver budgets, and search space
fan-out. Custom Rego policies can be loaded from directories, and a
custom policy loaded under a built-in's name overrides it.`,
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyShowCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	var policyDirs []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List admission policies",
		Long: `List the policies the admission guard would evaluate, built-ins
and custom ones alike.`,
		Example: `  # List the built-in policies
  atelier policy list

  # List built-ins plus a custom policy directory
  atelier policy list --policy-dir ./policies`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, err := policy.NewEngine(log.Logger)
			if err != nil {
				return err
			}
			if len(policyDirs) > 0 {
				if err := eng.LoadPolicies(ctx, policyDirs); err != nil {
					return err
				}
			}

			policies := eng.ListPolicies()
			if jsonOutput {
				return encodeJSON(os.Stdout, policies)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSEVERITY\tENABLED\tDESCRIPTION")
			for _, p := range policies {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.Name, p.Severity, p.Enabled, p.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&policyDirs, "policy-dir", nil, "directory of custom admission policies (repeatable)")

	return cmd
}

func newPolicyShowCommand() *cobra.Command {
	var policyDirs []string

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a policy's details and Rego source",
		Example: `  # Show a built-in policy
  atelier policy show instance-limits

  # Show a custom policy
  atelier policy show no-flexible --policy-dir ./policies`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, err := policy.NewEngine(log.Logger)
			if err != nil {
				return err
			}
			if len(policyDirs) > 0 {
				if err := eng.LoadPolicies(ctx, policyDirs); err != nil {
					return err
				}
			}

			pol, err := eng.GetPolicy(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return encodeJSON(os.Stdout, pol)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "name:\t%s\n", pol.Name)
			fmt.Fprintf(tw, "severity:\t%s\n", pol.Severity)
			fmt.Fprintf(tw, "enabled:\t%t\n", pol.Enabled)
			if pol.Description != "" {
				fmt.Fprintf(tw, "description:\t%s\n", pol.Description)
			}
			if source, ok := pol.Metadata["source"]; ok {
				fmt.Fprintf(tw, "source:\t%v\n", source)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Printf("\n%s\n", pol.Rego)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&policyDirs, "policy-dir", nil, "directory of custom admission policies (repeatable)")

	return cmd
}
