package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"adforge/internal/domain"

	"github.com/google/uuid"
)

// AnalyzeRequest はランに属さない単発評価の入力です。
type AnalyzeRequest struct {
	MediaURL    string             `json:"media_url"`
	ContentKind domain.ContentKind `json:"content_kind"`
	BrandColors []string           `json:"brand_colors,omitempty"`
	Caption     string             `json:"caption,omitempty"`
}

func (r AnalyzeRequest) validate() error {
	if !r.ContentKind.Valid() {
		return fmt.Errorf("%w: content_kind must be poster or video, got %q", domain.ErrInvalidRequest, r.ContentKind)
	}
	if !strings.HasPrefix(r.MediaURL, "gs://") || len(r.MediaURL) <= len("gs://") {
		return fmt.Errorf("%w: media_url must be a gs:// URL", domain.ErrInvalidRequest)
	}
	return nil
}

// Generate はランを作らずに 1 回だけ生成を開始し、pending の生成レコードを返します。
// 完了は GetContent で生成レコードを読み直して確認します。評価と改善は行いません。
func (s *Service) Generate(ctx context.Context, req StartRequest) (*domain.GeneratedContent, error) {
	prompt, brand, err := req.normalize()
	if err != nil {
		return nil, err
	}

	content := &domain.GeneratedContent{
		ID:     uuid.New().String(),
		Kind:   req.ContentKind,
		Prompt: prompt,
		Status: domain.ContentStatusPending,
		Brand:  brand,
	}
	if err := s.store.CreateContent(ctx, content); err != nil {
		return nil, fmt.Errorf("failed to create content record: %w", err)
	}

	err = s.generator.Generate(ctx, domain.GenerationRequest{
		ContentID: content.ID,
		Kind:      content.Kind,
		Prompt:    prompt,
		Brand:     brand,
	})
	if err != nil {
		if cerr := s.store.CompleteContent(context.WithoutCancel(ctx), content.ID, domain.ContentStatusFailed, "", err.Error()); cerr != nil {
			slog.ErrorContext(ctx, "Failed to record generation rejection", "content_id", content.ID, "error", cerr)
		}
		return nil, fmt.Errorf("%w: gateway rejected content %s: %w", domain.ErrGenerationFailed, content.ID, err)
	}

	slog.InfoContext(ctx, "Standalone generation requested", "content_id", content.ID, "content_kind", content.Kind)
	return content, nil
}

// ListGeneratedContents は生成レコードを新しい順に返します。
func (s *Service) ListGeneratedContents(ctx context.Context, filter domain.ContentFilter) ([]domain.GeneratedContent, int, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown content_kind %q", domain.ErrInvalidRequest, filter.Kind)
	}
	switch filter.ApprovalStatus {
	case "", domain.ApprovalApproved, domain.ApprovalRejected:
	default:
		return nil, 0, fmt.Errorf("%w: unknown approval_status %q", domain.ErrInvalidRequest, filter.ApprovalStatus)
	}
	filter.Limit, filter.Offset = pageBounds(filter.Limit, filter.Offset)
	return s.store.ListContents(ctx, filter)
}

// Analyze は既存のメディアを評価し、ランに属さない評価レコードとして保存します。
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*domain.Critique, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	colors := NormalizeColors(req.BrandColors)
	caption := strings.TrimSpace(req.Caption)

	result, err := s.critic.Critique(ctx, domain.CritiqueRequest{
		MediaURL:    req.MediaURL,
		Kind:        req.ContentKind,
		BrandColors: colors,
		Caption:     caption,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCritiqueGateway, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty critique result", domain.ErrCritiqueGateway)
	}
	if err := result.Scores.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCritiqueGateway, err)
	}

	critique := &domain.Critique{
		ID:             uuid.New().String(),
		MediaURL:       req.MediaURL,
		ContentKind:    req.ContentKind,
		Caption:        caption,
		BrandColors:    colors,
		CritiqueResult: *result,
	}
	if err := s.store.CreateCritique(ctx, critique); err != nil {
		return nil, fmt.Errorf("failed to persist critique: %w", err)
	}
	slog.InfoContext(ctx, "Standalone critique recorded", "critique_id", critique.ID, "mean_score", critique.Scores.Mean())
	return critique, nil
}

// ListCritiques は評価レコードを新しい順に返します。
func (s *Service) ListCritiques(ctx context.Context, limit, offset int) ([]domain.Critique, int, error) {
	limit, offset = pageBounds(limit, offset)
	return s.store.ListCritiques(ctx, limit, offset)
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return min(limit, maxListLimit), max(offset, 0)
}
