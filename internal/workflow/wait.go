package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"adforge/internal/domain"
)

// waitForGeneration は GeneratedContent を PollInterval ごとに読み直し、
// completed になればメディア URL を返します。
// 上限 W を超えた場合は domain.ErrGenerationTimeout、failed になった場合は domain.ErrGenerationFailed を返します。
// 読み直しは待機の前に行うため、既に完了しているレコードは待たずに返ります。
func (e *runExecution) waitForGeneration(ctx context.Context, contentID string) (string, error) {
	o := e.orchestrator
	waitCtx, cancel := context.WithTimeoutCause(ctx, o.opts.GenerationTimeout, domain.ErrGenerationTimeout)
	defer cancel()

	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		polls++
		content, err := o.store.GetContent(waitCtx, contentID)
		switch {
		case err == nil:
			switch content.Status {
			case domain.ContentStatusCompleted:
				if content.MediaURL == "" {
					return "", fmt.Errorf("%w: content %s completed without a media URL", domain.ErrGenerationFailed, contentID)
				}
				slog.InfoContext(ctx, "Generation completed", "run_id", e.run.ID, "content_id", contentID, "polls", polls)
				return content.MediaURL, nil
			case domain.ContentStatusFailed:
				msg := content.ErrorMessage
				if msg == "" {
					msg = "no detail reported"
				}
				return "", fmt.Errorf("%w: content %s: %s", domain.ErrGenerationFailed, contentID, msg)
			}
		case errors.Is(err, domain.ErrNotFound):
			return "", fmt.Errorf("%w: content %s disappeared", domain.ErrGenerationFailed, contentID)
		case waitCtx.Err() == nil:
			// 一時的な読み取りエラーは次のポーリングで再試行します。
			slog.WarnContext(ctx, "Failed to poll content record", "content_id", contentID, "error", err)
		}

		// 次回の待機前に親のキャンセルを検知します。
		if err := e.pollCancelRequested(waitCtx); err != nil {
			return "", err
		}

		select {
		case <-waitCtx.Done():
			cause := context.Cause(waitCtx)
			if errors.Is(cause, domain.ErrGenerationTimeout) && ctx.Err() == nil {
				return "", fmt.Errorf("%w: content %s not ready after %s", domain.ErrGenerationTimeout, contentID, o.opts.GenerationTimeout)
			}
			return "", cause
		case <-ticker.C:
		}
	}
}

// pollCancelRequested は待機中に永続化されたキャンセル要求を確認します。
func (e *runExecution) pollCancelRequested(ctx context.Context) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	current, err := e.orchestrator.store.GetRun(ctx, e.run.ID)
	if err != nil {
		// 読み取り失敗は次回に持ち越します。
		return nil
	}
	if current.CancelRequested {
		return domain.ErrRunCancelled
	}
	return nil
}
