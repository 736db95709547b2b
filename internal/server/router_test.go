package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adforge/internal/builder"
	"adforge/internal/dispatch"
	"adforge/internal/domain"
	"adforge/internal/server/auth"
	"adforge/internal/server/handlers"
	"adforge/internal/workflow"

	"github.com/shouni/gcp-kit/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

type fakeService struct {
	runs      map[string]*domain.WorkflowRun
	contents  map[string]*domain.GeneratedContent
	critiques map[string]*domain.Critique
	created   []workflow.StartRequest
	filter    domain.RunFilter

	contentFilter domain.ContentFilter
	generated     []workflow.StartRequest
	analyzed      []workflow.AnalyzeRequest
	reviews       []domain.ApprovalRecord
}

func newFakeService() *fakeService {
	return &fakeService{
		runs:      map[string]*domain.WorkflowRun{},
		contents:  map[string]*domain.GeneratedContent{},
		critiques: map[string]*domain.Critique{},
	}
}

func (f *fakeService) Create(_ context.Context, req workflow.StartRequest) (*domain.WorkflowRun, error) {
	if len(req.Prompt) < 10 {
		return nil, fmt.Errorf("%w: prompt too short", domain.ErrInvalidRequest)
	}
	f.created = append(f.created, req)
	run := &domain.WorkflowRun{ID: "run-new", Status: domain.RunStatusRunning}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeService) Get(_ context.Context, id string) (*domain.WorkflowRun, error) {
	if r, ok := f.runs[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
}

func (f *fakeService) List(_ context.Context, filter domain.RunFilter) ([]domain.WorkflowRun, int, error) {
	f.filter = filter
	var out []domain.WorkflowRun
	for _, r := range f.runs {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (f *fakeService) Cancel(ctx context.Context, id string) (*domain.WorkflowRun, error) {
	run, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return run, fmt.Errorf("%w: %s", domain.ErrRunFinished, id)
	}
	run.CancelRequested = true
	return run, nil
}

func (f *fakeService) GetContent(_ context.Context, id string) (*domain.GeneratedContent, error) {
	if c, ok := f.contents[id]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeService) GetCritique(_ context.Context, id string) (*domain.Critique, error) {
	if c, ok := f.critiques[id]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeService) ListContents(ctx context.Context, runID string) ([]domain.GeneratedContent, error) {
	if _, err := f.Get(ctx, runID); err != nil {
		return nil, err
	}
	var out []domain.GeneratedContent
	for _, c := range f.contents {
		if c.RunID == runID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeService) Generate(_ context.Context, req workflow.StartRequest) (*domain.GeneratedContent, error) {
	if len(req.Prompt) < 10 {
		return nil, fmt.Errorf("%w: prompt too short", domain.ErrInvalidRequest)
	}
	if req.Prompt == "quota exhausted prompt" {
		return nil, fmt.Errorf("%w: quota exceeded", domain.ErrGenerationFailed)
	}
	f.generated = append(f.generated, req)
	c := &domain.GeneratedContent{ID: "c-new", Kind: req.ContentKind, Prompt: req.Prompt, Status: domain.ContentStatusPending}
	f.contents[c.ID] = c
	return c, nil
}

func (f *fakeService) ListGeneratedContents(_ context.Context, filter domain.ContentFilter) ([]domain.GeneratedContent, int, error) {
	f.contentFilter = filter
	var out []domain.GeneratedContent
	for _, c := range f.contents {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeService) review(id string, action domain.ApprovalStatus, reason string) (*domain.GeneratedContent, error) {
	c, ok := f.contents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.Status != domain.ContentStatusCompleted {
		return nil, fmt.Errorf("%w: %s", domain.ErrContentNotReviewable, id)
	}
	f.reviews = append(f.reviews, domain.ApprovalRecord{ContentID: id, Action: action, Reason: reason, PreviousStatus: c.ApprovalStatus})
	c.ApprovalStatus = action
	c.RejectionReason = reason
	return c, nil
}

func (f *fakeService) Approve(_ context.Context, id string) (*domain.GeneratedContent, error) {
	return f.review(id, domain.ApprovalApproved, "")
}

func (f *fakeService) Reject(_ context.Context, id, reason string) (*domain.GeneratedContent, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection_reason is required", domain.ErrInvalidRequest)
	}
	return f.review(id, domain.ApprovalRejected, reason)
}

func (f *fakeService) ApprovalHistory(_ context.Context, id string) ([]domain.ApprovalRecord, error) {
	if _, ok := f.contents[id]; !ok {
		return nil, domain.ErrNotFound
	}
	var out []domain.ApprovalRecord
	for _, r := range f.reviews {
		if r.ContentID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeService) Analyze(_ context.Context, req workflow.AnalyzeRequest) (*domain.Critique, error) {
	if !strings.HasPrefix(req.MediaURL, "gs://") {
		return nil, fmt.Errorf("%w: media_url must be a gs:// URL", domain.ErrInvalidRequest)
	}
	f.analyzed = append(f.analyzed, req)
	c := &domain.Critique{ID: "k-new", MediaURL: req.MediaURL, ContentKind: req.ContentKind, CritiqueResult: domain.CritiqueResult{Summary: "fine"}}
	f.critiques[c.ID] = c
	return c, nil
}

func (f *fakeService) ListCritiques(_ context.Context, limit, offset int) ([]domain.Critique, int, error) {
	var out []domain.Critique
	for _, c := range f.critiques {
		out = append(out, *c)
	}
	return out, len(out), nil
}

type fakeSigner struct{}

func (fakeSigner) GenerateSignedURL(_ context.Context, path, method string, expires time.Duration) (string, error) {
	return "https://signed.example.com/" + strings.TrimPrefix(path, "gs://") + "?method=" + method + "&ttl=" + expires.String(), nil
}

func newTestRouter(svc *fakeService) http.Handler {
	return NewRouter(&builder.AppHandlers{API: handlers.NewHandler(svc, fakeSigner{}, time.Minute)})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateRun(t *testing.T) {
	svc := newFakeService()
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/api/workflows", `{"content_kind":"poster","prompt":"a calm spa weekend offer","brand_colors":["#00aacc"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/workflows/run-new", rec.Header().Get("Location"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-new", body["id"])
	assert.Equal(t, "running", body["status"])
	require.Len(t, svc.created, 1)
	assert.Equal(t, domain.ContentKindPoster, svc.created[0].ContentKind)
	assert.Equal(t, []string{"#00aacc"}, svc.created[0].BrandColors)
}

func TestCreateRun_BadRequests(t *testing.T) {
	router := newTestRouter(newFakeService())

	for name, body := range map[string]string{
		"malformed":     `{"content_kind":`,
		"unknown field": `{"content_kind":"poster","prompt":"long enough prompt","extra":1}`,
		"validation":    `{"content_kind":"poster","prompt":"short"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/workflows", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetRun(t *testing.T) {
	svc := newFakeService()
	svc.runs["run-1"] = &domain.WorkflowRun{
		ID:             "run-1",
		Status:         domain.RunStatusCompleted,
		IterationCount: 2,
		ThresholdMet:   true,
		FinalScores:    map[string]float64{domain.ScoreSafety: 0.9},
	}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/workflows/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run domain.WorkflowRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, 2, run.IterationCount)
	assert.True(t, run.ThresholdMet)
	assert.Equal(t, 0.9, run.FinalScores[domain.ScoreSafety])

	rec = do(t, router, http.MethodGet, "/api/workflows/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	svc := newFakeService()
	svc.runs["run-1"] = &domain.WorkflowRun{ID: "run-1", Status: domain.RunStatusRunning}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/workflows?status=running&limit=10&offset=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RunFilter{Status: domain.RunStatusRunning, Limit: 10, Offset: 5}, svc.filter)

	var body struct {
		Runs  []domain.WorkflowRun `json:"runs"`
		Total int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Len(t, body.Runs, 1)

	rec = do(t, router, http.MethodGet, "/api/workflows?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelRun(t *testing.T) {
	svc := newFakeService()
	svc.runs["run-1"] = &domain.WorkflowRun{ID: "run-1", Status: domain.RunStatusRunning}
	svc.runs["run-2"] = &domain.WorkflowRun{ID: "run-2", Status: domain.RunStatusCompleted}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/api/workflows/run-1/cancel", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, svc.runs["run-1"].CancelRequested)

	rec = do(t, router, http.MethodPost, "/api/workflows/run-2/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/workflows/nope/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContentAndCritique(t *testing.T) {
	svc := newFakeService()
	svc.runs["run-1"] = &domain.WorkflowRun{ID: "run-1", Status: domain.RunStatusRunning}
	svc.contents["c-1"] = &domain.GeneratedContent{ID: "c-1", RunID: "run-1", Status: domain.ContentStatusCompleted, MediaURL: "gs://bucket/output/images/c-1.png"}
	svc.critiques["k-1"] = &domain.Critique{ID: "k-1", ContentID: "c-1", CritiqueResult: domain.CritiqueResult{Summary: "good"}}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/contents/c-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var content map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &content))
	assert.Equal(t, "gs://bucket/output/images/c-1.png", content["media_url"])
	assert.Equal(t, "https://signed.example.com/bucket/output/images/c-1.png?method=GET&ttl=1m0s", content["signed_url"])

	rec = do(t, router, http.MethodGet, "/api/workflows/run-1/contents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(t, router, http.MethodGet, "/api/critiques/k-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"summary":"good"`)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/contents/none", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/critiques/none", "").Code)
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(newFakeService()), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGenerateContent(t *testing.T) {
	svc := newFakeService()
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/api/contents", `{"content_kind":"poster","prompt":"a calm spa weekend offer"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/contents/c-new", rec.Header().Get("Location"))
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	require.Len(t, svc.generated, 1)

	rec = do(t, router, http.MethodPost, "/api/contents", `{"content_kind":"poster","prompt":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/contents", `{"content_kind":"poster","prompt":"quota exhausted prompt"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListContents(t *testing.T) {
	svc := newFakeService()
	svc.contents["c-1"] = &domain.GeneratedContent{ID: "c-1", Status: domain.ContentStatusCompleted, MediaURL: "gs://bucket/output/images/c-1.png"}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/contents?kind=poster&approval_status=approved&standalone=true&limit=5&offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ContentFilter{
		Kind:           domain.ContentKindPoster,
		ApprovalStatus: domain.ApprovalApproved,
		Standalone:     true,
		Limit:          5,
		Offset:         1,
	}, svc.contentFilter)

	var body struct {
		Contents []map[string]any `json:"contents"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Contents, 1)
	assert.NotEmpty(t, body.Contents[0]["signed_url"])

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/contents?offset=-1", "").Code)
}

func TestReviewContent(t *testing.T) {
	svc := newFakeService()
	svc.contents["c-1"] = &domain.GeneratedContent{ID: "c-1", Status: domain.ContentStatusCompleted, MediaURL: "gs://bucket/c-1.png"}
	svc.contents["c-2"] = &domain.GeneratedContent{ID: "c-2", Status: domain.ContentStatusPending}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/api/contents/c-1/reject", `{"rejection_reason":"logo is cropped"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"approval_status":"rejected"`)
	assert.Contains(t, rec.Body.String(), `"rejection_reason":"logo is cropped"`)

	rec = do(t, router, http.MethodPost, "/api/contents/c-1/approve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"approval_status":"approved"`)

	rec = do(t, router, http.MethodGet, "/api/contents/c-1/approvals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []domain.ApprovalRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, domain.ApprovalRejected, history[0].Action)
	assert.Equal(t, domain.ApprovalRejected, history[1].PreviousStatus)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/contents/c-1/reject", `{"rejection_reason":""}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, router, http.MethodPost, "/api/contents/c-2/approve", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodPost, "/api/contents/none/approve", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/contents/none/approvals", "").Code)
}

func TestAnalyzeAndListCritiques(t *testing.T) {
	svc := newFakeService()
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/api/critiques/analyze", `{"media_url":"gs://bucket/ad.png","content_kind":"poster","brand_colors":["#112233"],"caption":"Summer sale"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/critiques/k-new", rec.Header().Get("Location"))
	require.Len(t, svc.analyzed, 1)
	assert.Equal(t, "Summer sale", svc.analyzed[0].Caption)

	rec = do(t, router, http.MethodPost, "/api/critiques/analyze", `{"media_url":"https://elsewhere.example.com/ad.png","content_kind":"poster"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/critiques?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Critiques []domain.Critique `json:"critiques"`
		Total     int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)

	rec = do(t, router, http.MethodGet, "/api/critiques/k-new", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

type countingExecutor struct {
	calls int
}

func (e *countingExecutor) Execute(_ context.Context, _ string) error {
	e.calls++
	return nil
}

func TestWorkerRouteRequiresOIDCToken(t *testing.T) {
	exec := &countingExecutor{}
	validate := func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		if token != "good-token" || audience != "https://adforge.example.com" {
			return nil, errors.New("invalid token")
		}
		return &idtoken.Payload{Subject: "tasks"}, nil
	}
	router := NewRouter(&builder.AppHandlers{
		API:      handlers.NewHandler(newFakeService(), nil, time.Minute),
		Worker:   worker.NewHandler[domain.WorkflowTaskPayload](dispatch.NewTaskExecutor(exec)),
		TaskAuth: auth.NewTaskVerifierWithValidator("https://adforge.example.com", validate),
	})

	send := func(header string) int {
		req := httptest.NewRequest(http.MethodPost, "/tasks/workflow", strings.NewReader(`{"run_id":"run-1"}`))
		req.Header.Set("Content-Type", "application/json")
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusForbidden, send("Bearer forged"))
	assert.Equal(t, 0, exec.calls)

	code := send("Bearer good-token")
	assert.NotEqual(t, http.StatusUnauthorized, code)
	assert.NotEqual(t, http.StatusForbidden, code)
}
