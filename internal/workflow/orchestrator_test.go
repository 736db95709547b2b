package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"adforge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertFiveScores(t *testing.T, scores map[string]float64) {
	t.Helper()
	require.Len(t, scores, 5)
	for _, key := range []string{domain.ScoreBrandFit, domain.ScoreVisualQuality, domain.ScoreMessageClarity, domain.ScoreToneOfVoice, domain.ScoreSafety} {
		v, ok := scores[key]
		require.True(t, ok, key)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestExecute_AcceptedOnFirstIteration(t *testing.T) {
	h := newHarness(t, generateCompleted, critiqueStep{scores: uniform(0.85), suggestion: "unused"})
	h.createRun(t, "run-a", 3, 0.8)

	require.NoError(t, h.orch.Execute(context.Background(), "run-a"))

	run := h.mustGetRun(t, "run-a")
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, domain.StepCompleted, run.CurrentStep)
	assert.Equal(t, 1, run.IterationCount)
	assert.True(t, run.ThresholdMet)
	assert.Empty(t, run.ErrorMessage)
	assert.NotNil(t, run.CompletedAt)
	assertFiveScores(t, run.FinalScores)
	assert.InDelta(t, 0.85, run.FinalScores[domain.ScoreSafety], 1e-9)

	assert.Equal(t, 1, h.generator.calls(), "no further generation after acceptance")
	assert.Equal(t, 1, h.critic.calls())
	assert.Equal(t, 1, h.notifier.count())

	content, err := h.store.GetContent(context.Background(), run.GeneratedContentID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentStatusCompleted, content.Status)
	assert.Equal(t, "run-a", content.RunID)

	critique, err := h.store.GetCritique(context.Background(), run.CritiqueID)
	require.NoError(t, err)
	assert.Equal(t, content.ID, critique.ContentID)
	assert.Equal(t, content.MediaURL, critique.MediaURL)
}

func TestExecute_ThresholdIsInclusive(t *testing.T) {
	h := newHarness(t, generateCompleted, critiqueStep{scores: domain.Scores{BrandFit: 0.3, VisualQuality: 1, MessageClarity: 1, ToneOfVoice: 0.8, Safety: 0.9}})
	h.createRun(t, "run-eq", 3, 0.8)

	require.NoError(t, h.orch.Execute(context.Background(), "run-eq"))

	run := h.mustGetRun(t, "run-eq")
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.True(t, run.ThresholdMet)
	assert.Equal(t, 1, run.IterationCount)
}

func TestExecute_ExhaustsBudgetWithBestEffort(t *testing.T) {
	h := newHarness(t, generateCompleted,
		critiqueStep{scores: uniform(0.5), suggestion: "add more contrast"},
		critiqueStep{scores: uniform(0.6), suggestion: "show the product larger"},
		critiqueStep{scores: uniform(0.7), suggestion: "never used"},
	)
	h.createRun(t, "run-b", 3, 0.8)

	require.NoError(t, h.orch.Execute(context.Background(), "run-b"))

	run := h.mustGetRun(t, "run-b")
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.IterationCount)
	assert.LessOrEqual(t, run.IterationCount, run.MaxIterations)
	assert.False(t, run.ThresholdMet)
	assertFiveScores(t, run.FinalScores)
	assert.InDelta(t, 0.7, run.FinalScores[domain.ScoreBrandFit], 1e-9)
	assert.Equal(t, "show the product larger", run.Prompt)

	assert.Equal(t, []string{
		"summer sale poster with beach",
		"add more contrast",
		"show the product larger",
	}, h.generator.prompts())

	contents, err := h.store.ListContentsByRun(context.Background(), "run-b")
	require.NoError(t, err)
	require.Len(t, contents, 3)
	for i, c := range contents {
		assert.Equal(t, i, c.Iteration)
	}
	assert.Equal(t, contents[2].ID, run.GeneratedContentID)
}

func TestExecute_EmptySuggestionKeepsPrompt(t *testing.T) {
	h := newHarness(t, generateCompleted, critiqueStep{scores: uniform(0.4)})
	h.createRun(t, "run-same", 2, 0.8)

	require.NoError(t, h.orch.Execute(context.Background(), "run-same"))

	run := h.mustGetRun(t, "run-same")
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.IterationCount)
	assert.Equal(t, []string{"summer sale poster with beach", "summer sale poster with beach"}, h.generator.prompts())
}

func TestExecute_GenerationTimeout(t *testing.T) {
	h := newHarness(t, generatePending, critiqueStep{scores: uniform(0.9)})
	h.createRun(t, "run-c", 3, 0.8)

	require.NoError(t, h.orch.Execute(context.Background(), "run-c"))

	run := h.mustGetRun(t, "run-c")
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "timed out")
	assert.Nil(t, run.FinalScores)
	assert.False(t, run.ThresholdMet)
	assert.Equal(t, 0, h.critic.calls())
	assert.Equal(t, 1, h.notifier.count())
}

func TestExecute_GenerationFailed(t *testing.T) {
	h := newHarness(t, generateFailed, critiqueStep{scores: uniform(0.9)})
	h.createRun(t, "run-gf", 3, 0.8)

	require.NoError(t, h.orch.Execute(context.Background(), "run-gf"))

	run := h.mustGetRun(t, "run-gf")
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "generation failed")
	assert.Contains(t, run.ErrorMessage, "model refused the prompt")
	assert.Equal(t, 1, h.generator.calls(), "a failed generation is not retried")
}

func TestExecute_GeneratorRejects(t *testing.T) {
	h := newHarness(t, generateRejected, critiqueStep{scores: uniform(0.9)})
	h.createRun(t, "run-rej", 3, 0.8)

	require.NoError(t, h.orch.Execute(context.Background(), "run-rej"))

	run := h.mustGetRun(t, "run-rej")
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "quota exceeded")
}

func TestExecute_CritiqueErrorOnSecondIteration(t *testing.T) {
	h := newHarness(t, generateCompleted,
		critiqueStep{scores: uniform(0.5), suggestion: "brighter colours"},
		critiqueStep{err: errors.New("connection reset by peer")},
	)
	h.createRun(t, "run-d", 3, 0.8)

	require.NoError(t, h.orch.Execute(context.Background(), "run-d"))

	run := h.mustGetRun(t, "run-d")
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "critique gateway error")
	assert.Contains(t, run.ErrorMessage, "connection reset by peer")
	assert.Nil(t, run.FinalScores)

	contents, err := h.store.ListContentsByRun(context.Background(), "run-d")
	require.NoError(t, err)
	require.Len(t, contents, 2)
	assert.Equal(t, domain.ContentStatusCompleted, contents[0].Status)
	assert.NotEmpty(t, contents[0].MediaURL)
	assert.Equal(t, "summer sale poster with beach", contents[0].Prompt)
}

func TestExecute_RejectsOutOfRangeScores(t *testing.T) {
	h := newHarness(t, generateCompleted, critiqueStep{scores: domain.Scores{BrandFit: 1.5, VisualQuality: 0.9, MessageClarity: 0.9, ToneOfVoice: 0.9, Safety: 0.9}})
	h.createRun(t, "run-range", 3, 0.8)

	require.NoError(t, h.orch.Execute(context.Background(), "run-range"))

	run := h.mustGetRun(t, "run-range")
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "brand_fit_score")
}

func TestExecute_UnknownRunIsIgnored(t *testing.T) {
	h := newHarness(t, generateCompleted, critiqueStep{scores: uniform(0.9)})

	assert.NoError(t, h.orch.Execute(context.Background(), "missing"))
	assert.Equal(t, 0, h.generator.calls())
}

func TestExecute_TerminalRunIsNotReexecuted(t *testing.T) {
	h := newHarness(t, generateCompleted, critiqueStep{scores: uniform(0.9)})
	h.createRun(t, "run-t", 3, 0.8)
	require.NoError(t, h.orch.Execute(context.Background(), "run-t"))
	first := h.mustGetRun(t, "run-t")

	require.NoError(t, h.orch.Execute(context.Background(), "run-t"))
	for range 3 {
		again := h.mustGetRun(t, "run-t")
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 1, h.generator.calls())
	assert.Equal(t, 1, h.notifier.count())
}

func TestExecute_CancelWhileWaiting(t *testing.T) {
	h := newHarness(t, generatePending, critiqueStep{scores: uniform(0.9)})
	h.orch.opts.GenerationTimeout = 10 * time.Second
	h.createRun(t, "run-x", 3, 0.8)

	done := make(chan error, 1)
	go func() { done <- h.orch.Execute(context.Background(), "run-x") }()

	require.Eventually(t, func() bool { return h.generator.calls() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.orch.Active())
	assert.True(t, h.orch.Cancel("run-x"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("execution did not stop after cancel")
	}

	run := h.mustGetRun(t, "run-x")
	assert.Equal(t, domain.RunStatusCancelled, run.Status)
	assert.Equal(t, "run cancelled", run.ErrorMessage)
	assert.Nil(t, run.FinalScores)
	assert.Equal(t, 0, h.orch.Active())
	assert.False(t, h.orch.Cancel("run-x"))

	// 生成レコードはキャンセル後も参照可能なまま残ります。
	_, err := h.store.GetContent(context.Background(), run.GeneratedContentID)
	assert.NoError(t, err)
}

func TestExecute_PersistedCancelRequest(t *testing.T) {
	h := newHarness(t, generateCompleted, critiqueStep{scores: uniform(0.9)})
	h.createRun(t, "run-pc", 3, 0.8)
	_, err := h.store.RequestCancel(context.Background(), "run-pc")
	require.NoError(t, err)

	require.NoError(t, h.orch.Execute(context.Background(), "run-pc"))

	run := h.mustGetRun(t, "run-pc")
	assert.Equal(t, domain.RunStatusCancelled, run.Status)
	assert.Equal(t, 0, h.generator.calls())
}

func TestExecute_ShutdownLeavesRunResumable(t *testing.T) {
	h := newHarness(t, generatePending, critiqueStep{scores: uniform(0.9)})
	h.orch.opts.GenerationTimeout = 10 * time.Second
	h.createRun(t, "run-s", 3, 0.8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Execute(ctx, "run-s") }()

	require.Eventually(t, func() bool { return h.generator.calls() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("execution did not stop on shutdown")
	}

	run := h.mustGetRun(t, "run-s")
	assert.Equal(t, domain.RunStatusRunning, run.Status)
	assert.Equal(t, domain.StepGenerating, run.CurrentStep)
	assert.Equal(t, 0, h.notifier.count())
}

func TestExecute_ResumesAfterRefinement(t *testing.T) {
	h := newHarness(t, generateCompleted, critiqueStep{scores: uniform(0.5), suggestion: "third attempt"})
	run := h.createRun(t, "run-r", 3, 0.8)

	// 1 回目のリファイン直後に停止したランを再現します。
	run.CurrentStep = domain.StepRefining
	run.IterationCount = 0
	run.Prompt = "second attempt"
	require.NoError(t, h.store.UpdateRun(context.Background(), run))

	require.NoError(t, h.orch.Execute(context.Background(), "run-r"))

	got := h.mustGetRun(t, "run-r")
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Equal(t, 3, got.IterationCount)
	assert.Equal(t, []string{"second attempt", "third attempt"}, h.generator.prompts())
}

func TestExecute_ResumeRegeneratesInterruptedIteration(t *testing.T) {
	h := newHarness(t, generateCompleted, critiqueStep{scores: uniform(0.9)})
	run := h.createRun(t, "run-g", 3, 0.8)

	run.CurrentStep = domain.StepCritiquing
	run.IterationCount = 1
	run.Prompt = "refined once"
	require.NoError(t, h.store.UpdateRun(context.Background(), run))

	require.NoError(t, h.orch.Execute(context.Background(), "run-g"))

	got := h.mustGetRun(t, "run-g")
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.IterationCount)
	assert.Equal(t, []string{"refined once"}, h.generator.prompts())
}

func TestExecute_ResumeBeyondBudgetFails(t *testing.T) {
	h := newHarness(t, generateCompleted, critiqueStep{scores: uniform(0.9)})
	run := h.createRun(t, "run-over", 2, 0.8)

	run.CurrentStep = domain.StepRefining
	run.IterationCount = 1
	require.NoError(t, h.store.UpdateRun(context.Background(), run))

	require.NoError(t, h.orch.Execute(context.Background(), "run-over"))

	got := h.mustGetRun(t, "run-over")
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "budget")
	assert.Equal(t, 0, h.generator.calls())
}

func TestNewOrchestrator_Validation(t *testing.T) {
	_, err := NewOrchestrator(OrchestratorArgs{})
	assert.Error(t, err)

	h := newHarness(t, generateCompleted, critiqueStep{})
	_, err = NewOrchestrator(OrchestratorArgs{Store: h.store, Generator: h.generator, Critic: h.critic})
	assert.Error(t, err, "zero timeout must be rejected")
}
