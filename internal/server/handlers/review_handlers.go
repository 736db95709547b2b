package handlers

import (
	"log/slog"
	"net/http"

	"adforge/internal/domain"
	"adforge/internal/workflow"

	"github.com/go-chi/chi/v5"
)

type listContentsResponse struct {
	Contents []contentResponse `json:"contents"`
	Total    int               `json:"total"`
	Offset   int               `json:"offset"`
}

type rejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

type listCritiquesResponse struct {
	Critiques []domain.Critique `json:"critiques"`
	Total     int               `json:"total"`
	Offset    int               `json:"offset"`
}

// GenerateContent はランを作らずに 1 回だけ生成を開始します。完了は GET /api/contents/{id} で確認します。
func (h *Handler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req workflow.StartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(ctx, w, err, "リクエストの解析に失敗しました")
		return
	}

	content, err := h.service.Generate(ctx, req)
	if err != nil {
		handleError(ctx, w, err, "生成の開始に失敗しました")
		return
	}

	slog.InfoContext(ctx, "単発生成を受け付けました", "content_id", content.ID)
	w.Header().Set("Location", "/api/contents/"+content.ID)
	writeJSON(w, http.StatusAccepted, h.withSignedURL(ctx, *content))
}

// ListContents は生成レコードを新しい順に返します。
// kind、approval_status、standalone=true で絞り込めます。
func (h *Handler) ListContents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset, err := pageParams(r)
	if err != nil {
		handleError(ctx, w, err, "不正なクエリパラメータです")
		return
	}
	q := r.URL.Query()
	filter := domain.ContentFilter{
		Kind:           domain.ContentKind(q.Get("kind")),
		ApprovalStatus: domain.ApprovalStatus(q.Get("approval_status")),
		Standalone:     q.Get("standalone") == "true",
		Limit:          limit,
		Offset:         offset,
	}

	contents, total, err := h.service.ListGeneratedContents(ctx, filter)
	if err != nil {
		handleError(ctx, w, err, "生成物一覧の取得に失敗しました")
		return
	}
	out := make([]contentResponse, 0, len(contents))
	for _, c := range contents {
		out = append(out, h.withSignedURL(ctx, c))
	}
	writeJSON(w, http.StatusOK, listContentsResponse{Contents: out, Total: total, Offset: offset})
}

// ApproveContent は生成物を承認します。
func (h *Handler) ApproveContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	content, err := h.service.Approve(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(ctx, w, err, "承認に失敗しました")
		return
	}
	writeJSON(w, http.StatusOK, h.withSignedURL(ctx, *content))
}

// RejectContent は理由を添えて生成物を却下します。
func (h *Handler) RejectContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req rejectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(ctx, w, err, "リクエストの解析に失敗しました")
		return
	}
	content, err := h.service.Reject(ctx, chi.URLParam(r, "id"), req.RejectionReason)
	if err != nil {
		handleError(ctx, w, err, "却下に失敗しました")
		return
	}
	writeJSON(w, http.StatusOK, h.withSignedURL(ctx, *content))
}

// ListApprovals は生成物のレビュー履歴を返します。
func (h *Handler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.ApprovalHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(r.Context(), w, err, "レビュー履歴の取得に失敗しました")
		return
	}
	if history == nil {
		history = []domain.ApprovalRecord{}
	}
	writeJSON(w, http.StatusOK, history)
}

// AnalyzeMedia は既存のメディアを評価して結果を保存します。
func (h *Handler) AnalyzeMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req workflow.AnalyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(ctx, w, err, "リクエストの解析に失敗しました")
		return
	}
	critique, err := h.service.Analyze(ctx, req)
	if err != nil {
		handleError(ctx, w, err, "評価に失敗しました")
		return
	}
	w.Header().Set("Location", "/api/critiques/"+critique.ID)
	writeJSON(w, http.StatusCreated, critique)
}

// ListCritiques は評価レコードを新しい順に返します。
func (h *Handler) ListCritiques(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset, err := pageParams(r)
	if err != nil {
		handleError(ctx, w, err, "不正なクエリパラメータです")
		return
	}
	critiques, total, err := h.service.ListCritiques(ctx, limit, offset)
	if err != nil {
		handleError(ctx, w, err, "評価一覧の取得に失敗しました")
		return
	}
	if critiques == nil {
		critiques = []domain.Critique{}
	}
	writeJSON(w, http.StatusOK, listCritiquesResponse{Critiques: critiques, Total: total, Offset: offset})
}
