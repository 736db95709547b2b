package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adforge/internal/domain"
	"adforge/internal/store"

	"github.com/stretchr/testify/require"
)

type generationMode int

const (
	generateCompleted generationMode = iota
	generateFailed
	generatePending
	generateRejected
)

// fakeGenerator は生成レコードを即座に（または永久に）終了させます。
type fakeGenerator struct {
	store *store.SQLiteStore
	mode  generationMode

	mu       sync.Mutex
	requests []domain.GenerationRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req domain.GenerationRequest) error {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	switch g.mode {
	case generateCompleted:
		return g.store.CompleteContent(ctx, req.ContentID, domain.ContentStatusCompleted, "gs://media/"+req.ContentID+".png", "")
	case generateFailed:
		return g.store.CompleteContent(ctx, req.ContentID, domain.ContentStatusFailed, "", "model refused the prompt")
	case generateRejected:
		return errors.New("quota exceeded")
	}
	return nil
}

func (g *fakeGenerator) prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.requests))
	for _, r := range g.requests {
		out = append(out, r.Prompt)
	}
	return out
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type critiqueStep struct {
	scores     domain.Scores
	suggestion string
	err        error
}

// fakeCritic は呼び出し順に用意した結果を返します。足りなくなれば最後の結果を繰り返します。
type fakeCritic struct {
	steps []critiqueStep

	mu       sync.Mutex
	requests []domain.CritiqueRequest
}

func (c *fakeCritic) Critique(_ context.Context, req domain.CritiqueRequest) (*domain.CritiqueResult, error) {
	c.mu.Lock()
	n := len(c.requests)
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	step := c.steps[min(n, len(c.steps)-1)]
	if step.err != nil {
		return nil, step.err
	}
	return &domain.CritiqueResult{
		Scores:               step.scores,
		Summary:              "summary",
		RefinementSuggestion: step.suggestion,
		BrandValidation:      domain.BrandValidation{ColorMatchPercentage: 80, LogoPresent: true, LogoCorrect: true, OverallConsistency: 0.9},
	}, nil
}

func (c *fakeCritic) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type fakeNotifier struct {
	mu   sync.Mutex
	runs []domain.WorkflowRun
}

func (n *fakeNotifier) NotifyRunFinished(_ context.Context, run *domain.WorkflowRun) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.runs = append(n.runs, *run)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.runs)
}

type fakeDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, runID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, runID)
	return nil
}

func uniform(v float64) domain.Scores {
	return domain.Scores{BrandFit: v, VisualQuality: v, MessageClarity: v, ToneOfVoice: v, Safety: v}
}

type harness struct {
	store     *store.SQLiteStore
	generator *fakeGenerator
	critic    *fakeCritic
	notifier  *fakeNotifier
	orch      *Orchestrator
}

func newHarness(t *testing.T, mode generationMode, steps ...critiqueStep) *harness {
	t.Helper()
	s, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	h := &harness{
		store:     s,
		generator: &fakeGenerator{store: s, mode: mode},
		critic:    &fakeCritic{steps: steps},
		notifier:  &fakeNotifier{},
	}
	h.orch, err = NewOrchestrator(OrchestratorArgs{
		Store:     s,
		Generator: h.generator,
		Critic:    h.critic,
		Notifier:  h.notifier,
		Options: Options{
			GenerationTimeout: 200 * time.Millisecond,
			PollInterval:      5 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	return h
}

func (h *harness) createRun(t *testing.T, id string, maxIterations int, threshold float64) *domain.WorkflowRun {
	t.Helper()
	run := &domain.WorkflowRun{
		ID:            id,
		ContentKind:   domain.ContentKindPoster,
		InitialPrompt: "summer sale poster with beach",
		Prompt:        "summer sale poster with beach",
		Brand: domain.BrandAssets{
			LogoURL:     "https://example.com/logo.png",
			Colors:      []string{"#ff6600"},
			AspectRatio: "1:1",
		},
		Status:         domain.RunStatusRunning,
		CurrentStep:    domain.StepInitializing,
		MaxIterations:  maxIterations,
		ScoreThreshold: threshold,
	}
	require.NoError(t, h.store.CreateRun(context.Background(), run))
	return run
}

func (h *harness) mustGetRun(t *testing.T, id string) *domain.WorkflowRun {
	t.Helper()
	run, err := h.store.GetRun(context.Background(), id)
	require.NoError(t, err)
	return run
}
