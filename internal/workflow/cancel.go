package workflow

import (
	"context"
	"sync"

	"adforge/internal/domain"
)

// cancelRegistry はこのプロセスで実行中のランのキャンセル関数を保持します。
type cancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelCauseFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{cancels: make(map[string]context.CancelCauseFunc)}
}

// register は runID 用のキャンセル可能なコンテキストを返します。
// 同じランが既に実行中の場合は ok=false を返します。
func (r *cancelRegistry) register(ctx context.Context, runID string) (context.Context, func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cancels[runID]; exists {
		return nil, nil, false
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	r.cancels[runID] = cancel

	release := func() {
		r.mu.Lock()
		delete(r.cancels, runID)
		r.mu.Unlock()
		cancel(nil)
	}
	return runCtx, release, true
}

// cancel は実行中のランを domain.ErrRunCancelled を原因として停止させます。
func (r *cancelRegistry) cancel(runID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[runID]
	r.mu.Unlock()

	if ok {
		cancel(domain.ErrRunCancelled)
	}
	return ok
}

func (r *cancelRegistry) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}
