package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"adforge/internal/domain"

	"github.com/go-chi/chi/v5"
)

// contentResponse は生成レコードに閲覧用 URL を添えたものです。
type contentResponse struct {
	domain.GeneratedContent
	SignedURL string `json:"signed_url,omitempty"`
}

// GetContent は生成レコードを返します。
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	content, err := h.service.GetContent(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(ctx, w, err, "生成物の取得に失敗しました")
		return
	}
	writeJSON(w, http.StatusOK, h.withSignedURL(ctx, *content))
}

// ListRunContents はランの生成履歴を返します。
func (h *Handler) ListRunContents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contents, err := h.service.ListContents(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(ctx, w, err, "生成履歴の取得に失敗しました")
		return
	}

	out := make([]contentResponse, 0, len(contents))
	for _, c := range contents {
		out = append(out, h.withSignedURL(ctx, c))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCritique は評価レコードを返します。
func (h *Handler) GetCritique(w http.ResponseWriter, r *http.Request) {
	critique, err := h.service.GetCritique(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(r.Context(), w, err, "評価結果の取得に失敗しました")
		return
	}
	writeJSON(w, http.StatusOK, critique)
}

// withSignedURL は gs:// のメディアに署名付き URL を付与します。署名に失敗しても本体は返します。
func (h *Handler) withSignedURL(ctx context.Context, c domain.GeneratedContent) contentResponse {
	resp := contentResponse{GeneratedContent: c}
	if h.signer == nil || !strings.HasPrefix(c.MediaURL, "gs://") {
		return resp
	}
	u, err := h.signer.GenerateSignedURL(ctx, c.MediaURL, http.MethodGet, h.signedExpiry)
	if err != nil {
		slog.WarnContext(ctx, "署名付きURLの生成に失敗しました", "content_id", c.ID, "error", err)
		return resp
	}
	resp.SignedURL = u
	return resp
}
