package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"adforge/internal/domain"
)

// runExecution は 1 回の Execute 呼び出しに関する状態を保持します。
type runExecution struct {
	orchestrator *Orchestrator
	run          *domain.WorkflowRun
	startTime    time.Time

	// 直近のイテレーションで得られた参照とスコア
	content  *domain.GeneratedContent
	critique *domain.Critique
}

// execute は状態機械を駆動し、致命的なエラーをランの終了状態へ変換します。
func (e *runExecution) execute(ctx context.Context) (err error) {
	run := e.run
	slog.InfoContext(ctx, "Workflow execution started",
		"run_id", run.ID,
		"content_kind", run.ContentKind,
		"resume_step", run.CurrentStep,
		"resume_iteration", run.IterationCount,
	)

	loopErr := e.loop(ctx)
	if loopErr == nil {
		return nil
	}

	// プロセス停止による中断はランを running のまま残し、再開に委ねます。
	if ctx.Err() != nil && !errors.Is(context.Cause(ctx), domain.ErrRunCancelled) && !errors.Is(loopErr, domain.ErrRunCancelled) {
		slog.WarnContext(ctx, "Workflow execution interrupted, run left resumable",
			"run_id", run.ID, "step", run.CurrentStep, "iteration", run.IterationCount, "error", loopErr)
		return fmt.Errorf("run %s interrupted: %w", run.ID, loopErr)
	}

	if errors.Is(context.Cause(ctx), domain.ErrRunCancelled) {
		loopErr = domain.ErrRunCancelled
	}
	return e.fail(ctx, loopErr)
}

// loop は initializing → generating → critiquing → {refining → generating | completed} を進めます。
func (e *runExecution) loop(ctx context.Context) error {
	run := e.run
	maxIterations := run.MaxIterations
	if maxIterations < 1 {
		return fmt.Errorf("run %s has an invalid iteration budget: %d", run.ID, maxIterations)
	}

	iteration := e.resumeIteration()
	if iteration >= maxIterations {
		return fmt.Errorf("run %s cannot resume: iteration budget exhausted before a critique was recorded", run.ID)
	}

	for ; iteration < maxIterations; iteration++ {
		slog.InfoContext(ctx, "Workflow iteration started", "run_id", run.ID, "iteration", iteration+1, "max_iterations", maxIterations)

		if err := e.checkpoint(ctx); err != nil {
			return err
		}

		// --- generating ---
		content, err := e.generate(ctx, iteration)
		if err != nil {
			return err
		}

		// --- wait-for-generation ---
		mediaURL, err := e.waitForGeneration(ctx, content.ID)
		if err != nil {
			return err
		}

		if err := e.checkpoint(ctx); err != nil {
			return err
		}

		// --- critiquing ---
		critique, err := e.critiqueContent(ctx, iteration, content, mediaURL)
		if err != nil {
			return err
		}

		// --- scoring & acceptance ---
		mean, accepted := Accept(critique.Scores, run.ScoreThreshold)
		slog.InfoContext(ctx, "Critique scored",
			"run_id", run.ID,
			"iteration", iteration+1,
			"mean_score", mean,
			"threshold", run.ScoreThreshold,
			"accepted", accepted,
		)
		if accepted {
			return e.complete(ctx, iteration+1, true)
		}

		// --- refining ---
		if iteration < maxIterations-1 && critique.RefinementSuggestion != "" {
			if err := e.refine(ctx, iteration, critique.RefinementSuggestion); err != nil {
				return err
			}
		}
	}

	// 予算を使い切った場合も、最後の結果で completed とします（ベストエフォート）。
	slog.InfoContext(ctx, "Iteration budget exhausted without meeting threshold", "run_id", run.ID, "iterations", iteration)
	return e.complete(ctx, iteration, false)
}

// resumeIteration は永続化された状態から再開するイテレーションを決めます。
func (e *runExecution) resumeIteration() int {
	switch e.run.CurrentStep {
	case "", domain.StepInitializing:
		return 0
	case domain.StepRefining:
		// プロンプトは既に差し替え済みなので、次のイテレーションから再開します。
		return e.run.IterationCount + 1
	default:
		return e.run.IterationCount
	}
}

// checkpoint はフェーズ境界でキャンセルを検知します。
func (e *runExecution) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}
	current, err := e.orchestrator.store.GetRun(ctx, e.run.ID)
	if err != nil {
		return fmt.Errorf("failed to re-read run: %w", err)
	}
	if current.CancelRequested {
		return domain.ErrRunCancelled
	}
	return nil
}

func (e *runExecution) generate(ctx context.Context, iteration int) (*domain.GeneratedContent, error) {
	o := e.orchestrator
	run := e.run

	content := &domain.GeneratedContent{
		ID:        o.newID(),
		RunID:     run.ID,
		Iteration: iteration,
		Kind:      run.ContentKind,
		Prompt:    run.Prompt,
		Status:    domain.ContentStatusPending,
		Brand:     run.Brand,
	}
	if err := o.store.CreateContent(ctx, content); err != nil {
		return nil, fmt.Errorf("failed to create content record: %w", err)
	}

	run.CurrentStep = domain.StepGenerating
	run.IterationCount = iteration
	run.GeneratedContentID = content.ID
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist generating step: %w", err)
	}

	err := o.generator.Generate(ctx, domain.GenerationRequest{
		ContentID: content.ID,
		Kind:      run.ContentKind,
		Prompt:    run.Prompt,
		Brand:     run.Brand,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, fmt.Errorf("%w: gateway rejected content %s: %w", domain.ErrGenerationFailed, content.ID, err)
	}

	slog.InfoContext(ctx, "Generation requested", "run_id", run.ID, "content_id", content.ID, "iteration", iteration+1)
	e.content = content
	return content, nil
}

func (e *runExecution) critiqueContent(ctx context.Context, iteration int, content *domain.GeneratedContent, mediaURL string) (*domain.Critique, error) {
	o := e.orchestrator
	run := e.run

	run.CurrentStep = domain.StepCritiquing
	run.IterationCount = iteration
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist critiquing step: %w", err)
	}

	result, err := o.critic.Critique(ctx, domain.CritiqueRequest{
		MediaURL:    mediaURL,
		Kind:        run.ContentKind,
		BrandColors: run.Brand.Colors,
		Caption:     run.Prompt,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrCritiqueGateway, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty critique result", domain.ErrCritiqueGateway)
	}
	if err := result.Scores.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCritiqueGateway, err)
	}

	critique := &domain.Critique{
		ID:             o.newID(),
		RunID:          run.ID,
		ContentID:      content.ID,
		MediaURL:       mediaURL,
		ContentKind:    run.ContentKind,
		Caption:        run.Prompt,
		BrandColors:    run.Brand.Colors,
		CritiqueResult: *result,
	}
	if err := o.store.CreateCritique(ctx, critique); err != nil {
		return nil, fmt.Errorf("failed to persist critique: %w", err)
	}

	run.CritiqueID = critique.ID
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist critique reference: %w", err)
	}

	e.critique = critique
	return critique, nil
}

func (e *runExecution) refine(ctx context.Context, iteration int, suggestion string) error {
	run := e.run
	run.Prompt = suggestion
	run.CurrentStep = domain.StepRefining
	run.IterationCount = iteration
	if err := e.orchestrator.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to persist refining step: %w", err)
	}
	slog.InfoContext(ctx, "Prompt refined from critique", "run_id", run.ID, "iteration", iteration+1)
	return nil
}

// complete はランを completed で確定します。iterationCount は受理時 iteration+1、予算切れ時 iteration です。
func (e *runExecution) complete(ctx context.Context, iterationCount int, thresholdMet bool) error {
	run := e.run
	if e.critique == nil || e.content == nil {
		return fmt.Errorf("run %s has no critique to finalize with", run.ID)
	}
	if err := run.CheckTransition(domain.RunStatusCompleted); err != nil {
		return err
	}

	run.Status = domain.RunStatusCompleted
	run.CurrentStep = domain.StepCompleted
	run.IterationCount = iterationCount
	run.GeneratedContentID = e.content.ID
	run.CritiqueID = e.critique.ID
	run.FinalScores = e.critique.Scores.Map()
	run.ThresholdMet = thresholdMet
	run.ErrorMessage = ""

	if err := e.orchestrator.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}

	slog.InfoContext(ctx, "Workflow completed",
		"run_id", run.ID,
		"iterations", iterationCount,
		"threshold_met", thresholdMet,
		"mean_score", e.critique.Scores.Mean(),
		"elapsed", time.Since(e.startTime).String(),
	)
	e.notify(ctx)
	return nil
}

// fail はランを failed（キャンセル時は cancelled）で確定します。
// 実行コンテキストが既に終わっている場合でも書き込めるよう、キャンセルを切り離します。
func (e *runExecution) fail(ctx context.Context, cause error) error {
	o := e.orchestrator
	writeCtx := context.WithoutCancel(ctx)

	// 他のワーカーが先に終了させている可能性があるため最新状態を読み直します。
	current, err := o.store.GetRun(writeCtx, e.run.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to reload run before marking failure", "run_id", e.run.ID, "error", err)
		return fmt.Errorf("failed to reload run %s: %w", e.run.ID, err)
	}
	if current.Status.Terminal() {
		slog.WarnContext(ctx, "Run already finished, not overwriting", "run_id", current.ID, "status", current.Status)
		return nil
	}

	status := domain.RunStatusFailed
	if errors.Is(cause, domain.ErrRunCancelled) {
		status = domain.RunStatusCancelled
	}

	current.Status = status
	current.FinalScores = nil
	current.ThresholdMet = false
	current.ErrorMessage = cause.Error()
	if err := o.store.UpdateRun(writeCtx, current); err != nil {
		slog.ErrorContext(ctx, "Failed to persist run failure", "run_id", current.ID, "error", err, "cause", cause)
		return fmt.Errorf("failed to persist failure of run %s: %w", current.ID, err)
	}
	e.run = current

	slog.ErrorContext(ctx, "Workflow finished without result",
		"run_id", current.ID,
		"status", status,
		"step", current.CurrentStep,
		"iteration", current.IterationCount,
		"error", cause,
	)
	e.notify(writeCtx)
	return nil
}

func (e *runExecution) notify(ctx context.Context) {
	if e.orchestrator.notifier == nil {
		return
	}
	if err := e.orchestrator.notifier.NotifyRunFinished(ctx, e.run); err != nil {
		slog.ErrorContext(ctx, "Notification failed", "run_id", e.run.ID, "error", err)
	}
}
