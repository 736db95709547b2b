package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"adforge/internal/domain"
)

// RunExecutor はラン 1 件を同期的に最後まで進めます。
type RunExecutor interface {
	Execute(ctx context.Context, runID string) error
}

// TaskEnqueuer は Cloud Tasks へのタスク投入を抽象化します。
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, payload domain.WorkflowTaskPayload) error
}

// LocalDispatcher はプロセス内のワーカープールでランを実行します。
type LocalDispatcher struct {
	pool       *Pool
	executor   RunExecutor
	retryDelay time.Duration
}

// NewLocalDispatcher は LocalDispatcher を生成します。
// 他のインスタンスがリースを保持しているランは retryDelay ごとに再試行します。
func NewLocalDispatcher(pool *Pool, executor RunExecutor, retryDelay time.Duration) *LocalDispatcher {
	return &LocalDispatcher{pool: pool, executor: executor, retryDelay: retryDelay}
}

// Dispatch はランをプールへ投入します。
func (d *LocalDispatcher) Dispatch(_ context.Context, runID string) error {
	return d.pool.Go(func(ctx context.Context) {
		for {
			err := d.executor.Execute(ctx, runID)
			if err == nil {
				return
			}
			if !errors.Is(err, domain.ErrRunLeased) || d.retryDelay <= 0 {
				slog.ErrorContext(ctx, "Workflow execution returned an error", "run_id", runID, "error", err)
				return
			}
			slog.InfoContext(ctx, "Run is leased elsewhere, retrying later", "run_id", runID, "retry_in", d.retryDelay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.retryDelay):
			}
		}
	})
}

// CloudTasksDispatcher はランを Cloud Tasks のキューへ投入します。
// 実行は POST /tasks/workflow を受けたインスタンスが行います。
type CloudTasksDispatcher struct {
	enqueuer TaskEnqueuer
}

// NewCloudTasksDispatcher は CloudTasksDispatcher を生成します。
func NewCloudTasksDispatcher(enqueuer TaskEnqueuer) *CloudTasksDispatcher {
	return &CloudTasksDispatcher{enqueuer: enqueuer}
}

// Dispatch はランのタスクをエンキューします。
func (d *CloudTasksDispatcher) Dispatch(ctx context.Context, runID string) error {
	if err := d.enqueuer.Enqueue(ctx, domain.WorkflowTaskPayload{RunID: runID}); err != nil {
		return fmt.Errorf("failed to enqueue workflow task: %w", err)
	}
	slog.InfoContext(ctx, "Workflow task enqueued", "run_id", runID)
	return nil
}

// TaskExecutor は Cloud Tasks のペイロードを RunExecutor へ橋渡しします。
// gcp-kit の worker.Handler に渡されます。
type TaskExecutor struct {
	executor RunExecutor
}

// NewTaskExecutor は TaskExecutor を生成します。
func NewTaskExecutor(executor RunExecutor) *TaskExecutor {
	return &TaskExecutor{executor: executor}
}

// Execute はペイロードのランを同期実行します。
func (e *TaskExecutor) Execute(ctx context.Context, payload domain.WorkflowTaskPayload) error {
	if payload.RunID == "" {
		return fmt.Errorf("%w: run_id is required", domain.ErrInvalidRequest)
	}
	return e.executor.Execute(ctx, payload.RunID)
}
