package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atelier-sched/atelier/pkg/solvers"
)

func newBackendsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List solver backends",
		Long:  `List the registered solver backends that can solve compiled models.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := solvers.DefaultRegistry().Names()
			if jsonOutput {
				return encodeJSON(os.Stdout, map[string]interface{}{
					"backends": names,
					"default":  solvers.DefaultBackend,
				})
			}

			for _, name := range names {
				if name == solvers.DefaultBackend {
					fmt.Printf("%s (default)\n", name)
					continue
				}
				fmt.Println(name)
			}
			return nil
		},
	}

	return cmd
}
