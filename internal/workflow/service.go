package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"adforge/internal/domain"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ServiceStore はサービス層が利用する永続化操作です。
type ServiceStore interface {
	RunStore
	CreateRun(ctx context.Context, run *domain.WorkflowRun) error
	ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.WorkflowRun, int, error)
	RequestCancel(ctx context.Context, id string) (*domain.WorkflowRun, error)
	ListContentsByRun(ctx context.Context, runID string) ([]domain.GeneratedContent, error)
	ListContents(ctx context.Context, filter domain.ContentFilter) ([]domain.GeneratedContent, int, error)
	CompleteContent(ctx context.Context, id string, status domain.ContentStatus, mediaURL, errMsg string) error
	ReviewContent(ctx context.Context, rec *domain.ApprovalRecord) (*domain.GeneratedContent, error)
	ListApprovalHistory(ctx context.Context, contentID string) ([]domain.ApprovalRecord, error)
	GetCritique(ctx context.Context, id string) (*domain.Critique, error)
	ListCritiques(ctx context.Context, limit, offset int) ([]domain.Critique, int, error)
}

// ServiceArgs は Service の依存関係です。
type ServiceArgs struct {
	Store        ServiceStore
	Orchestrator *Orchestrator
	Dispatcher   Dispatcher
	// Generator と Critic はランに属さない単発の生成・評価で使います。
	Generator ContentGenerationGateway
	Critic    CritiqueGateway
	// MaxIterations (M) と ScoreThreshold (T) は作成時にランへ書き込まれます。
	MaxIterations  int
	ScoreThreshold float64
}

// Service はランの作成、参照、キャンセル、再開と、単発の生成・評価、生成物のレビューを提供します。
type Service struct {
	store          ServiceStore
	orchestrator   *Orchestrator
	dispatcher     Dispatcher
	generator      ContentGenerationGateway
	critic         CritiqueGateway
	maxIterations  int
	scoreThreshold float64
}

// NewService は Service を生成します。
func NewService(args ServiceArgs) (*Service, error) {
	if args.Store == nil || args.Orchestrator == nil || args.Dispatcher == nil {
		return nil, fmt.Errorf("service requires a store, an orchestrator and a dispatcher")
	}
	if args.Generator == nil || args.Critic == nil {
		return nil, fmt.Errorf("service requires a generator and a critic")
	}
	if args.MaxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be at least 1, got %d", args.MaxIterations)
	}
	if args.ScoreThreshold < 0 || args.ScoreThreshold > 1 {
		return nil, fmt.Errorf("score threshold must be within [0,1], got %v", args.ScoreThreshold)
	}
	return &Service{
		store:          args.Store,
		orchestrator:   args.Orchestrator,
		dispatcher:     args.Dispatcher,
		generator:      args.Generator,
		critic:         args.Critic,
		maxIterations:  args.MaxIterations,
		scoreThreshold: args.ScoreThreshold,
	}, nil
}

// Create はリクエストを検証してランを永続化し、実行を投入してすぐに戻ります。
// 投入に失敗したランは failed として記録されます。
func (s *Service) Create(ctx context.Context, req StartRequest) (*domain.WorkflowRun, error) {
	prompt, brand, err := req.normalize()
	if err != nil {
		return nil, err
	}

	run := &domain.WorkflowRun{
		ID:             uuid.New().String(),
		ContentKind:    req.ContentKind,
		InitialPrompt:  prompt,
		Prompt:         prompt,
		Brand:          brand,
		Status:         domain.RunStatusRunning,
		CurrentStep:    domain.StepInitializing,
		MaxIterations:  s.maxIterations,
		ScoreThreshold: s.scoreThreshold,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, run.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to dispatch workflow run", "run_id", run.ID, "error", err)
		run.Status = domain.RunStatusFailed
		run.ErrorMessage = fmt.Sprintf("dispatch failed: %v", err)
		if uerr := s.store.UpdateRun(context.WithoutCancel(ctx), run); uerr != nil {
			slog.ErrorContext(ctx, "Failed to record dispatch failure", "run_id", run.ID, "error", uerr)
		}
		return nil, fmt.Errorf("failed to dispatch run %s: %w", run.ID, err)
	}

	slog.InfoContext(ctx, "Workflow run created", "run_id", run.ID, "content_kind", run.ContentKind, "max_iterations", run.MaxIterations)
	return run, nil
}

// Start は既存のランを投入します。終了済みのランは何もしません。
func (s *Service) Start(ctx context.Context, runID string) error {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.ErrorContext(ctx, "Cannot start unknown run", "run_id", runID)
			return nil
		}
		return err
	}
	if run.Status.Terminal() {
		return nil
	}
	return s.dispatcher.Dispatch(ctx, runID)
}

// Get はランを返します。
func (s *Service) Get(ctx context.Context, runID string) (*domain.WorkflowRun, error) {
	return s.store.GetRun(ctx, runID)
}

// List はランを新しい順に返します。
func (s *Service) List(ctx context.Context, filter domain.RunFilter) ([]domain.WorkflowRun, int, error) {
	if filter.Status != "" {
		switch filter.Status {
		case domain.RunStatusRunning, domain.RunStatusCompleted, domain.RunStatusFailed, domain.RunStatusCancelled:
		default:
			return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, filter.Status)
		}
	}
	filter.Limit, filter.Offset = pageBounds(filter.Limit, filter.Offset)
	return s.store.ListRuns(ctx, filter)
}

// Cancel はキャンセル要求を記録し、このプロセスで実行中であれば即座に停止させます。
// 既に終了しているランには domain.ErrRunFinished を返します。
func (s *Service) Cancel(ctx context.Context, runID string) (*domain.WorkflowRun, error) {
	run, err := s.store.RequestCancel(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return run, fmt.Errorf("%w: run %s is %s", domain.ErrRunFinished, run.ID, run.Status)
	}

	local := s.orchestrator.Cancel(runID)
	slog.InfoContext(ctx, "Workflow cancellation requested", "run_id", runID, "local", local)
	return run, nil
}

// ResumePending は running のまま残ったランをすべて再投入し、その件数を返します。
// 他のインスタンスが実行中のランも投入されますが、実行リースを取得できないため二重には実行されません。
func (s *Service) ResumePending(ctx context.Context) (int, error) {
	// 投入したランは途中で終了し得るため、先に一覧を確定させてから投入します。
	var pending []domain.WorkflowRun
	for {
		runs, _, err := s.store.ListRuns(ctx, domain.RunFilter{Status: domain.RunStatusRunning, Limit: maxListLimit, Offset: len(pending)})
		if err != nil {
			return 0, fmt.Errorf("failed to list pending runs: %w", err)
		}
		pending = append(pending, runs...)
		if len(runs) < maxListLimit {
			break
		}
	}

	for i, run := range pending {
		if err := s.dispatcher.Dispatch(ctx, run.ID); err != nil {
			return i, fmt.Errorf("failed to resume run %s: %w", run.ID, err)
		}
		slog.InfoContext(ctx, "Workflow run resumed", "run_id", run.ID, "step", run.CurrentStep, "iteration", run.IterationCount)
	}
	return len(pending), nil
}

// GetContent は生成レコードを返します。
func (s *Service) GetContent(ctx context.Context, id string) (*domain.GeneratedContent, error) {
	return s.store.GetContent(ctx, id)
}

// GetCritique は評価レコードを返します。
func (s *Service) GetCritique(ctx context.Context, id string) (*domain.Critique, error) {
	return s.store.GetCritique(ctx, id)
}

// ListContents はランの生成履歴を古い順に返します。
func (s *Service) ListContents(ctx context.Context, runID string) ([]domain.GeneratedContent, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.ListContentsByRun(ctx, runID)
}
