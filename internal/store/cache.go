package store

import (
	"context"
	"time"

	"adforge/internal/domain"

	"github.com/patrickmn/go-cache"
)

const (
	defaultRunCacheTTL     = 10 * time.Minute
	defaultCleanupInterval = 20 * time.Minute
)

// CachedStore は終了済みランの読み取りをキャッシュする SQLiteStore のラッパーです。
// 終了済みのランは不変なので、キャッシュ内容が古くなることはありません。
type CachedStore struct {
	*SQLiteStore
	runs *cache.Cache
}

// NewCachedStore は SQLiteStore をキャッシュ付きでラップします。
func NewCachedStore(s *SQLiteStore) *CachedStore {
	return &CachedStore{
		SQLiteStore: s,
		runs:        cache.New(defaultRunCacheTTL, defaultCleanupInterval),
	}
}

// GetRun は終了済みのランをキャッシュから返し、それ以外はデータベースを参照します。
func (s *CachedStore) GetRun(ctx context.Context, id string) (*domain.WorkflowRun, error) {
	if v, ok := s.runs.Get(id); ok {
		return copyRun(v.(*domain.WorkflowRun)), nil
	}

	run, err := s.SQLiteStore.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		s.runs.SetDefault(id, copyRun(run))
	}
	return run, nil
}

// copyRun は呼び出し側の変更がキャッシュに波及しないようにコピーを作ります。
func copyRun(r *domain.WorkflowRun) *domain.WorkflowRun {
	c := *r
	c.Brand.Colors = append([]string(nil), r.Brand.Colors...)
	if r.FinalScores != nil {
		c.FinalScores = make(map[string]float64, len(r.FinalScores))
		for k, v := range r.FinalScores {
			c.FinalScores[k] = v
		}
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
