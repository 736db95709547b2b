package domain

import (
	"fmt"
	"time"
)

// ContentKind は生成するクリエイティブの種別です。
type ContentKind string

const (
	ContentKindPoster ContentKind = "poster"
	ContentKindVideo  ContentKind = "video"
)

// Valid は既知の種別かどうかを返します。
func (k ContentKind) Valid() bool {
	return k == ContentKindPoster || k == ContentKindVideo
}

// RunStatus はワークフロー全体の状態です。running からのみ遷移し、逆戻りはしません。
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal は終了状態かどうかを返します。
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// RunStep は直近に進入したフェーズです。
type RunStep string

const (
	StepInitializing RunStep = "initializing"
	StepGenerating   RunStep = "generating"
	StepCritiquing   RunStep = "critiquing"
	StepRefining     RunStep = "refining"
	StepCompleted    RunStep = "completed"
)

// BrandAssets はラン全体で不変のブランド制約です。
type BrandAssets struct {
	LogoURL         string   `json:"brand_logo_url,omitempty"`
	ProductImageURL string   `json:"product_image_url,omitempty"`
	Colors          []string `json:"brand_colors"`
	AspectRatio     string   `json:"aspect_ratio"`
}

// WorkflowRun は generate-critique-refine ループ 1 回分の実行状態です。
// 変更は Orchestrator のみが行い、Status が running を離れた後は不変です。
type WorkflowRun struct {
	ID            string      `json:"id"`
	ContentKind   ContentKind `json:"content_kind"`
	InitialPrompt string      `json:"initial_prompt"`
	// Prompt はリファインのたびに差し替えられる現在のプロンプトです。
	Prompt string      `json:"prompt"`
	Brand  BrandAssets `json:"brand"`

	Status      RunStatus `json:"status"`
	CurrentStep RunStep   `json:"current_step"`
	// IterationCount は進行中は 0 始まりのインデックス、受理時は iteration+1、上限到達時は iteration そのものです。
	IterationCount int `json:"iteration_count"`

	MaxIterations  int     `json:"max_iterations"`
	ScoreThreshold float64 `json:"score_threshold"`

	GeneratedContentID string             `json:"generated_content_id,omitempty"`
	CritiqueID         string             `json:"critique_id,omitempty"`
	FinalScores        map[string]float64 `json:"final_scores,omitempty"`
	ThresholdMet       bool               `json:"threshold_met"`
	ErrorMessage       string             `json:"error_message,omitempty"`

	CancelRequested bool `json:"cancel_requested"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CheckTransition は status の前進のみを許可します。
func (r *WorkflowRun) CheckTransition(next RunStatus) error {
	if r.Status == next {
		return nil
	}
	if r.Status.Terminal() {
		return fmt.Errorf("run %s is already %s: cannot move to %s", r.ID, r.Status, next)
	}
	return nil
}

// RunFilter はラン一覧取得の条件です。
type RunFilter struct {
	Status RunStatus
	Limit  int
	Offset int
}
