package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"adforge/internal/domain"
)

// maxRequestBodyBytes はリクエストボディの上限です。
const maxRequestBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON はステータスコードと共に JSON を書き込みます。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", "error", err)
	}
}

// handleError はドメインエラーを HTTP ステータスへ変換します。
func handleError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrInvalidRequest):
		slog.WarnContext(ctx, "不正なリクエストです", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrRunFinished), errors.Is(err, domain.ErrContentNotReviewable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrGenerationFailed), errors.Is(err, domain.ErrCritiqueGateway):
		slog.ErrorContext(ctx, msg, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: msg})
	default:
		slog.ErrorContext(ctx, msg, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msg})
	}
}

// decodeJSON はボディを厳密にデコードします。未知のフィールドは拒否します。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Join(domain.ErrInvalidRequest, err)
	}
	return nil
}

// pageParams は limit と offset のクエリパラメータを読み取ります。
func pageParams(r *http.Request) (int, int, error) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// queryInt は整数のクエリパラメータを読み取ります。空なら fallback を返します。
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Join(domain.ErrInvalidRequest, errors.New(key+" must be a non-negative integer"))
	}
	return n, nil
}
