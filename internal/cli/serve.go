package cli

import (
	"adforge/internal/config"
	"adforge/internal/server"

	"github.com/spf13/cobra"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and workflow workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Port, "port", cfg.Port, "HTTP port (overrides PORT)")
	cmd.Flags().StringVar(&cfg.DispatchMode, "dispatch", cfg.DispatchMode, "dispatch mode: local or cloudtasks (overrides DISPATCH_MODE)")
	return cmd
}
