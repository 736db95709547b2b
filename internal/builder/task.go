package builder

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"adforge/internal/app"
	"adforge/internal/config"
	"adforge/internal/dispatch"
	"adforge/internal/domain"
	"adforge/internal/workflow"

	"github.com/shouni/gcp-kit/tasks"
)

// workerPath は Cloud Tasks からランの実行指示を受けるエンドポイントです。
const workerPath = "/tasks/workflow"

// buildDispatcher は DISPATCH_MODE に応じてランの投入先を選びます。
func buildDispatcher(ctx context.Context, cfg *config.Config, c *app.Container, orchestrator *workflow.Orchestrator) (workflow.Dispatcher, error) {
	switch cfg.DispatchMode {
	case config.DispatchModeCloudTasks:
		enqueuer, err := buildTaskEnqueuer(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create task enqueuer: %w", err)
		}
		c.TaskEnqueuer = enqueuer
		slog.InfoContext(ctx, "Runs will be dispatched through Cloud Tasks", "queue", cfg.QueueID)
		return dispatch.NewCloudTasksDispatcher(enqueuer), nil
	default:
		slog.InfoContext(ctx, "Runs will be executed in-process", "concurrency", cfg.WorkerConcurrency)
		// 停止したインスタンスのリースは TTL の経過後に引き継げます。
		return dispatch.NewLocalDispatcher(c.Pools.Runs, orchestrator, cfg.RunLeaseTTL/2), nil
	}
}

// buildTaskEnqueuer は、Cloud Tasks エンキューアを初期化します。
func buildTaskEnqueuer(ctx context.Context, cfg *config.Config) (*tasks.Enqueuer[domain.WorkflowTaskPayload], error) {
	workerURL, err := url.JoinPath(cfg.ServiceURL, workerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build worker URL: %w", err)
	}

	taskCfg := tasks.Config{
		ProjectID:           cfg.ProjectID,
		LocationID:          cfg.LocationID,
		QueueID:             cfg.QueueID,
		WorkerURL:           workerURL,
		ServiceAccountEmail: cfg.ServiceAccountEmail,
		Audience:            cfg.TaskAudienceURL,
	}
	return tasks.NewEnqueuer[domain.WorkflowTaskPayload](ctx, taskCfg)
}
