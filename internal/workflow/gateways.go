package workflow

import (
	"context"
	"time"

	"adforge/internal/domain"
)

// RunStore はオーケストレーターが必要とする永続化操作です。
type RunStore interface {
	GetRun(ctx context.Context, id string) (*domain.WorkflowRun, error)
	UpdateRun(ctx context.Context, run *domain.WorkflowRun) error
	CreateContent(ctx context.Context, c *domain.GeneratedContent) error
	GetContent(ctx context.Context, id string) (*domain.GeneratedContent, error)
	CreateCritique(ctx context.Context, c *domain.Critique) error
	// ClaimRun は実行リースを取得または延長します。他の有効なリースがあれば false を返します。
	ClaimRun(ctx context.Context, id, owner string, ttl time.Duration) (bool, error)
	ReleaseRun(ctx context.Context, id, owner string) error
}

// ContentGenerationGateway は生成処理を非同期に開始します。
// 完了はプッシュされず、オーケストレーターは GeneratedContent を読み直して検知します。
type ContentGenerationGateway interface {
	Generate(ctx context.Context, req domain.GenerationRequest) error
}

// CritiqueGateway は生成物を評価し、結果が揃うまでブロックします。
type CritiqueGateway interface {
	Critique(ctx context.Context, req domain.CritiqueRequest) (*domain.CritiqueResult, error)
}

// Notifier はランの終了を外部へ通知します。失敗してもランの結果には影響しません。
type Notifier interface {
	NotifyRunFinished(ctx context.Context, run *domain.WorkflowRun) error
}

// Dispatcher はランを独立した実行単位へ投入します。投入後すぐに戻ります。
type Dispatcher interface {
	Dispatch(ctx context.Context, runID string) error
}
