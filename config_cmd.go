package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/syncagent/syncagent/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with the auth token masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			if err := config.RenderEffective(cc.Holder.Config(), os.Stdout); err != nil {
				return withExitCode(exitInternalError, err)
			}

			return nil
		},
	}
}
