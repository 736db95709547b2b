package workflow

import (
	"context"
	"log/slog"
	"time"

	"adforge/internal/domain"
)

// keepLease は実行中のリースを TTL の 1/3 ごとに延長します。
// 延長できなかった場合は domain.ErrRunLeased を原因として実行を止め、ランを running のまま残します。
func (o *Orchestrator) keepLease(ctx context.Context, runID string, stop context.CancelCauseFunc) {
	ticker := time.NewTicker(max(o.opts.LeaseTTL/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ok, err := o.store.ClaimRun(ctx, runID, o.owner, o.opts.LeaseTTL)
		if err != nil {
			// 一時的な失敗は次の周期で再試行します。リースが切れれば claim が false を返します。
			if ctx.Err() == nil {
				slog.WarnContext(ctx, "Failed to renew run lease", "run_id", runID, "error", err)
			}
			continue
		}
		if ok {
			continue
		}
		// 終了状態へ遷移した直後は claim が一致しないので、実行側の終了を待ちます。
		if run, err := o.store.GetRun(ctx, runID); err == nil && run.Status.Terminal() {
			return
		}
		slog.WarnContext(ctx, "Run lease lost to another worker", "run_id", runID)
		stop(domain.ErrRunLeased)
		return
	}
}
