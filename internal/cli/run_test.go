package cli

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adforge/internal/config"
	"adforge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRuns struct {
	mu       sync.Mutex
	statuses []domain.RunStatus
	calls    int
	err      error
}

func (s *scriptedRuns) Get(_ context.Context, runID string) (*domain.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	s.calls++
	return &domain.WorkflowRun{ID: runID, Status: s.statuses[idx]}, nil
}

func TestWaitForRun_ReturnsImmediatelyWhenTerminal(t *testing.T) {
	runs := &scriptedRuns{statuses: []domain.RunStatus{domain.RunStatusCompleted}}

	run, err := waitForRun(context.Background(), runs, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, runs.calls)
}

func TestWaitForRun_StopsOnContextCancel(t *testing.T) {
	runs := &scriptedRuns{statuses: []domain.RunStatus{domain.RunStatusRunning}}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := waitForRun(ctx, runs, "run-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForRun_PropagatesLookupError(t *testing.T) {
	runs := &scriptedRuns{err: domain.ErrNotFound}

	_, err := waitForRun(context.Background(), runs, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRunCmd_RequiresPrompt(t *testing.T) {
	cmd := newRootCmd(&config.Config{})
	cmd.SetArgs([]string{"run"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt")
}
