package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/idtoken"
)

// TokenValidator は ID トークンを検証します。idtoken.Validate と同じシグネチャです。
type TokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// TaskVerifier は Cloud Tasks から届くリクエストの OIDC トークンを検証します。
type TaskVerifier struct {
	audience string
	validate TokenValidator
}

// NewTaskVerifier は Google の公開鍵で ID トークンを検証する TaskVerifier を生成します。
func NewTaskVerifier(audience string) *TaskVerifier {
	return NewTaskVerifierWithValidator(audience, idtoken.Validate)
}

// NewTaskVerifierWithValidator は検証処理を差し替えた TaskVerifier を生成します。
func NewTaskVerifierWithValidator(audience string, validate TokenValidator) *TaskVerifier {
	return &TaskVerifier{audience: audience, validate: validate}
}

// TaskOIDCVerificationMiddleware は「Cloud Tasks」の OIDC トークンを検証するミドルウェアです
func (v *TaskVerifier) TaskOIDCVerificationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			slog.WarnContext(r.Context(), "認証ヘッダーが欠落しています")
			http.Error(w, "Unauthorized: OIDC token required", http.StatusUnauthorized)
			return
		}

		// Audience が空の場合はすべてのリクエストを拒否する
		if v.audience == "" {
			slog.ErrorContext(r.Context(), "Critical Config Error: TASK_AUDIENCE_URL is not configured. Rejecting all task requests.")
			http.Error(w, "Internal Server Configuration Error", http.StatusInternalServerError)
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		payload, err := v.validate(r.Context(), token, v.audience)
		if err != nil {
			slog.WarnContext(r.Context(), "IDトークンの検証に失敗しました", "error", err, "audience", v.audience)
			http.Error(w, "Invalid OIDC token", http.StatusForbidden)
			return
		}

		slog.DebugContext(r.Context(), "Cloud Tasks 認証成功", "sub", payload.Subject)
		next.ServeHTTP(w, r)
	})
}
