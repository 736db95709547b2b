package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed は停止処理に入ったプールへの投入で返されます。
var ErrPoolClosed = errors.New("worker pool is shut down")

// Pool は同時実行数を制限したバックグラウンドジョブの実行基盤です。
// ジョブはリクエストのコンテキストから切り離されたプール固有のコンテキストで動き、
// Shutdown でまとめてキャンセルされます。
type Pool struct {
	name string
	sem  *semaphore.Weighted

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool は size 件まで同時に実行するプールを生成します。
func NewPool(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		name:    name,
		sem:     semaphore.NewWeighted(int64(size)),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Go はジョブを投入してすぐに戻ります。空きがなければジョブは枠が空くまで待機します。
// ジョブ内の panic は回復され、ログに記録されます。
func (p *Pool) Go(job func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%s: %w", p.name, ErrPoolClosed)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.baseCtx, 1); err != nil {
			slog.Warn("Job dropped before start", "pool", p.name, "error", err)
			return
		}
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Recovered from panic in pool job", "pool", p.name, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		job(p.baseCtx)
	}()
	return nil
}

// Shutdown は新規投入を止め、実行中のジョブをキャンセルして終了を待ちます。
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped", "pool", p.name)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: jobs still running at shutdown deadline: %w", p.name, ctx.Err())
	}
}
