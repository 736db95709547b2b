package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adforge/internal/builder"
	"adforge/internal/config"
	"adforge/internal/domain"
	"adforge/internal/workflow"

	"github.com/spf13/cobra"
)

// runStatusPollInterval は one-shot 実行時にランの終了を確認する間隔です。
const runStatusPollInterval = time.Second

type runOptions struct {
	kind        string
	prompt      string
	logoURL     string
	productURL  string
	colors      []string
	aspectRatio string
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one workflow in-process and print the final run as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			// one-shot 実行は常にプロセス内で処理します。
			cfg.DispatchMode = config.DispatchModeLocal
			return runOnce(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
		Example: `adforge run --kind poster --prompt "Summer sale on iced coffee" --color "#6f4e37" --max-iterations 3 --threshold 0.8`,
	}
	cmd.Flags().StringVar(&opts.kind, "kind", string(domain.ContentKindPoster), "content kind: poster or video")
	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "creative brief for the first generation (required)")
	cmd.Flags().StringVar(&opts.logoURL, "logo-url", "", "brand logo URL")
	cmd.Flags().StringVar(&opts.productURL, "product-url", "", "product image URL")
	cmd.Flags().StringSliceVar(&opts.colors, "color", nil, "brand color, repeatable (#rrggbb)")
	cmd.Flags().StringVar(&opts.aspectRatio, "aspect-ratio", "", "aspect ratio (default 1:1 for posters, 16:9 for video)")
	cmd.Flags().IntVar(&cfg.MaxIterations, "max-iterations", cfg.MaxIterations, "iteration budget (overrides MAX_WORKFLOW_ITERATIONS)")
	cmd.Flags().Float64Var(&cfg.ScoreThreshold, "threshold", cfg.ScoreThreshold, "acceptance threshold (overrides TARGET_SCORE_THRESHOLD)")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func runOnce(ctx context.Context, cfg *config.Config, opts runOptions, out io.Writer) error {
	if err := config.ValidateEssentialConfig(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := config.ValidateGatewayConfig(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	container, err := builder.BuildContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build application container: %w", err)
	}
	defer container.Close()

	svc := container.Workflow.Service
	run, err := svc.Create(ctx, workflow.StartRequest{
		ContentKind:     domain.ContentKind(opts.kind),
		Prompt:          opts.prompt,
		BrandLogoURL:    opts.logoURL,
		ProductImageURL: opts.productURL,
		BrandColors:     opts.colors,
		AspectRatio:     opts.aspectRatio,
	})
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	final, err := waitForRun(sigCtx, svc, run.ID)
	if errors.Is(err, context.Canceled) {
		// 中断時はランをキャンセル扱いで確定させてから終了します。
		slog.Warn("Interrupted, cancelling run", "run_id", run.ID)
		if _, cerr := svc.Cancel(context.WithoutCancel(ctx), run.ID); cerr != nil {
			slog.Error("Failed to cancel run", "run_id", run.ID, "error", cerr)
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		final, err = waitForRun(shutdownCtx, svc, run.ID)
	}
	if shutdownErr := container.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
		slog.Error("Worker pools did not stop cleanly", "error", shutdownErr)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(final); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if final.Status != domain.RunStatusCompleted {
		return fmt.Errorf("run %s finished as %s: %s", final.ID, final.Status, final.ErrorMessage)
	}
	return nil
}

// runReader はランの読み取りです。workflow.Service が満たします。
type runReader interface {
	Get(ctx context.Context, runID string) (*domain.WorkflowRun, error)
}

// waitForRun はランが終了状態になるまで待ちます。
func waitForRun(ctx context.Context, runs runReader, runID string) (*domain.WorkflowRun, error) {
	ticker := time.NewTicker(runStatusPollInterval)
	defer ticker.Stop()
	for {
		run, err := runs.Get(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run.Status.Terminal() {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
