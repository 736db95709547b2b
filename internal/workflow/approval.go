package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"adforge/internal/domain"

	"github.com/google/uuid"
)

// Approve は completed の生成レコードを承認します。
func (s *Service) Approve(ctx context.Context, contentID string) (*domain.GeneratedContent, error) {
	return s.review(ctx, contentID, domain.ApprovalApproved, "")
}

// Reject は completed の生成レコードを却下します。理由は必須です。
func (s *Service) Reject(ctx context.Context, contentID, reason string) (*domain.GeneratedContent, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection_reason is required", domain.ErrInvalidRequest)
	}
	return s.review(ctx, contentID, domain.ApprovalRejected, reason)
}

func (s *Service) review(ctx context.Context, contentID string, action domain.ApprovalStatus, reason string) (*domain.GeneratedContent, error) {
	rec := &domain.ApprovalRecord{
		ID:        uuid.New().String(),
		ContentID: contentID,
		Action:    action,
		Reason:    reason,
	}
	content, err := s.store.ReviewContent(ctx, rec)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Content reviewed", "content_id", contentID, "action", action, "previous", rec.PreviousStatus)
	return content, nil
}

// ApprovalHistory は生成レコードのレビュー履歴を古い順に返します。
func (s *Service) ApprovalHistory(ctx context.Context, contentID string) ([]domain.ApprovalRecord, error) {
	if _, err := s.store.GetContent(ctx, contentID); err != nil {
		return nil, err
	}
	return s.store.ListApprovalHistory(ctx, contentID)
}
