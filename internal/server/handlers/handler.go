package handlers

import (
	"context"
	"net/http"
	"time"

	"adforge/internal/domain"
	"adforge/internal/workflow"
)

// WorkflowService はハンドラーが利用するワークフロー操作です。workflow.Service が実装します。
type WorkflowService interface {
	Create(ctx context.Context, req workflow.StartRequest) (*domain.WorkflowRun, error)
	Get(ctx context.Context, runID string) (*domain.WorkflowRun, error)
	List(ctx context.Context, filter domain.RunFilter) ([]domain.WorkflowRun, int, error)
	Cancel(ctx context.Context, runID string) (*domain.WorkflowRun, error)
	GetContent(ctx context.Context, id string) (*domain.GeneratedContent, error)
	GetCritique(ctx context.Context, id string) (*domain.Critique, error)
	ListContents(ctx context.Context, runID string) ([]domain.GeneratedContent, error)

	Generate(ctx context.Context, req workflow.StartRequest) (*domain.GeneratedContent, error)
	ListGeneratedContents(ctx context.Context, filter domain.ContentFilter) ([]domain.GeneratedContent, int, error)
	Approve(ctx context.Context, contentID string) (*domain.GeneratedContent, error)
	Reject(ctx context.Context, contentID, reason string) (*domain.GeneratedContent, error)
	ApprovalHistory(ctx context.Context, contentID string) ([]domain.ApprovalRecord, error)
	Analyze(ctx context.Context, req workflow.AnalyzeRequest) (*domain.Critique, error)
	ListCritiques(ctx context.Context, limit, offset int) ([]domain.Critique, int, error)
}

// URLSigner は gs:// のメディアに一時的な閲覧用 URL を発行します。remoteio.URLSigner が満たします。
type URLSigner interface {
	GenerateSignedURL(ctx context.Context, path, method string, expires time.Duration) (string, error)
}

type Handler struct {
	service      WorkflowService
	signer       URLSigner
	signedExpiry time.Duration
}

// NewHandler は JSON API のハンドラーを生成します。signer が nil の場合、メディア URL は署名せずに返します。
func NewHandler(service WorkflowService, signer URLSigner, signedExpiry time.Duration) *Handler {
	return &Handler{
		service:      service,
		signer:       signer,
		signedExpiry: signedExpiry,
	}
}

// Health は稼働確認用のエンドポイントです。
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
