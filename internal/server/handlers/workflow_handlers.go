package handlers

import (
	"log/slog"
	"net/http"

	"adforge/internal/domain"
	"adforge/internal/workflow"

	"github.com/go-chi/chi/v5"
)

type createRunResponse struct {
	ID     string           `json:"id"`
	Status domain.RunStatus `json:"status"`
}

type listRunsResponse struct {
	Runs   []domain.WorkflowRun `json:"runs"`
	Total  int                  `json:"total"`
	Offset int                  `json:"offset"`
}

// CreateRun はランを作成し、実行を投入して ID をすぐに返します。
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req workflow.StartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(ctx, w, err, "リクエストの解析に失敗しました")
		return
	}

	run, err := h.service.Create(ctx, req)
	if err != nil {
		handleError(ctx, w, err, "ワークフローの開始に失敗しました")
		return
	}

	slog.InfoContext(ctx, "ワークフローを受け付けました", "run_id", run.ID)
	w.Header().Set("Location", "/api/workflows/"+run.ID)
	writeJSON(w, http.StatusCreated, createRunResponse{ID: run.ID, Status: run.Status})
}

// GetRun はランの現在の状態を返します。
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(r.Context(), w, err, "ワークフローの取得に失敗しました")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListRuns はランを新しい順に返します。
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset, err := pageParams(r)
	if err != nil {
		handleError(ctx, w, err, "不正なクエリパラメータです")
		return
	}
	filter := domain.RunFilter{
		Status: domain.RunStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}

	runs, total, err := h.service.List(ctx, filter)
	if err != nil {
		handleError(ctx, w, err, "ワークフロー一覧の取得に失敗しました")
		return
	}
	if runs == nil {
		runs = []domain.WorkflowRun{}
	}
	writeJSON(w, http.StatusOK, listRunsResponse{Runs: runs, Total: total, Offset: offset})
}

// CancelRun は実行中のランを停止させます。終了済みのランには 409 を返します。
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(r.Context(), w, err, "キャンセルに失敗しました")
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}
