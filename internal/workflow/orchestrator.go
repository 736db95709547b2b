package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"adforge/internal/domain"

	"github.com/google/uuid"
)

// Options はオーケストレーターの予算設定です。
type Options struct {
	// GenerationTimeout は生成完了を待つ上限時間 (W) です。
	GenerationTimeout time.Duration
	// PollInterval は生成レコードを読み直す間隔です。
	PollInterval time.Duration
	// LeaseTTL は実行リースの有効期間です。0 の場合は defaultLeaseTTL を使います。
	LeaseTTL time.Duration
}

const defaultLeaseTTL = time.Minute

// OrchestratorArgs は Orchestrator の依存関係です。
type OrchestratorArgs struct {
	Store     RunStore
	Generator ContentGenerationGateway
	Critic    CritiqueGateway
	// Notifier は省略可能です。
	Notifier Notifier
	Options  Options
}

// Orchestrator は 1 つのランを running から終了状態まで進める状態機械です。
type Orchestrator struct {
	store     RunStore
	generator ContentGenerationGateway
	critic    CritiqueGateway
	notifier  Notifier
	opts      Options
	newID     func() string
	running   *cancelRegistry
	// owner はこのインスタンスがリースに書き込む識別子です。
	owner string
}

// NewOrchestrator は依存関係を検証して Orchestrator を生成します。
func NewOrchestrator(args OrchestratorArgs) (*Orchestrator, error) {
	if args.Store == nil || args.Generator == nil || args.Critic == nil {
		return nil, fmt.Errorf("orchestrator requires a store, a generator and a critic")
	}
	if args.Options.GenerationTimeout <= 0 || args.Options.PollInterval <= 0 {
		return nil, fmt.Errorf("generation timeout and poll interval must be positive")
	}
	if args.Options.LeaseTTL < 0 {
		return nil, fmt.Errorf("lease ttl must not be negative")
	}
	if args.Options.LeaseTTL == 0 {
		args.Options.LeaseTTL = defaultLeaseTTL
	}
	return &Orchestrator{
		store:     args.Store,
		generator: args.Generator,
		critic:    args.Critic,
		notifier:  args.Notifier,
		opts:      args.Options,
		newID:     func() string { return uuid.New().String() },
		running:   newCancelRegistry(),
		owner:     uuid.New().String(),
	}, nil
}

// Execute はランを同期的に実行します。ワーカー（ローカルプール、Cloud Tasks）から呼ばれます。
//
// ランが存在しない場合や既に終了している場合はログのみで nil を返します。
// フェーズ内のエラーはすべてランの failed として永続化され、戻り値にはなりません。
// 戻り値がエラーになるのは、終了状態を書き込めなかった場合と、
// プロセス停止などでランが中断され running のまま残った場合です（再開可能）。
// 他のインスタンスが有効なリースを保持している場合は domain.ErrRunLeased を返します。
func (o *Orchestrator) Execute(ctx context.Context, runID string) error {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.ErrorContext(ctx, "Workflow run not found", "run_id", runID)
			return nil
		}
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if run.Status.Terminal() {
		slog.InfoContext(ctx, "Workflow run already finished, skipping", "run_id", runID, "status", run.Status)
		return nil
	}

	runCtx, release, ok := o.running.register(ctx, runID)
	if !ok {
		slog.WarnContext(ctx, "Workflow run is already executing in this process", "run_id", runID)
		return nil
	}
	defer release()

	claimed, err := o.store.ClaimRun(ctx, runID, o.owner, o.opts.LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to claim run %s: %w", runID, err)
	}
	if !claimed {
		// 取得に失敗する間に他のインスタンスがランを終えている場合があります。
		if current, err := o.store.GetRun(ctx, runID); err == nil && current.Status.Terminal() {
			return nil
		}
		slog.WarnContext(ctx, "Workflow run is leased by another worker", "run_id", runID)
		return fmt.Errorf("run %s: %w", runID, domain.ErrRunLeased)
	}

	leaseCtx, stopLease := context.WithCancelCause(runCtx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.keepLease(leaseCtx, runID, stopLease)
	}()
	defer func() {
		stopLease(nil)
		wg.Wait()
		if err := o.store.ReleaseRun(context.WithoutCancel(ctx), runID, o.owner); err != nil {
			slog.WarnContext(ctx, "Failed to release run lease", "run_id", runID, "error", err)
		}
	}()

	// リース取得前に他のインスタンスが進めた状態から再開します。
	run, err = o.store.GetRun(leaseCtx, runID)
	if err != nil {
		return fmt.Errorf("failed to reload run %s: %w", runID, err)
	}
	if run.Status.Terminal() {
		return nil
	}

	exec := &runExecution{
		orchestrator: o,
		run:          run,
		startTime:    time.Now(),
	}
	return exec.execute(leaseCtx)
}

// Cancel はこのプロセスで実行中のランを停止させます。実行中でなければ false を返します。
// 他プロセスで実行中のランは、永続化されたキャンセル要求をフェーズ境界で検知して停止します。
func (o *Orchestrator) Cancel(runID string) bool {
	return o.running.cancel(runID)
}

// Active は実行中のラン数を返します。
func (o *Orchestrator) Active() int {
	return o.running.active()
}
