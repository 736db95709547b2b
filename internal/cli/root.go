package cli

import (
	"context"

	"adforge/internal/config"

	"github.com/spf13/cobra"
)

// newRootCmd はサブコマンドを束ねたルートコマンドを生成します。
func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "adforge",
		Short:         "Generate, critique and refine ad creatives",
		Long:          "adforge runs the generate-critique-refine workflow for posters and videos, either as an HTTP service or as a one-shot command.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(cfg))
	root.AddCommand(newRunCmd(cfg))
	return root
}

// Execute はコマンドラインを解釈して実行します。
func Execute(ctx context.Context, cfg *config.Config) error {
	return newRootCmd(cfg).ExecuteContext(ctx)
}
