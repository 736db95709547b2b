package domain

import "time"

// ContentStatus は生成レコードの状態です。pending を離れた後は不変です。
type ContentStatus string

const (
	ContentStatusPending   ContentStatus = "pending"
	ContentStatusCompleted ContentStatus = "completed"
	ContentStatusFailed    ContentStatus = "failed"
)

// GeneratedContent は 1 回の生成試行の記録です（ポスターまたは動画）。
type GeneratedContent struct {
	ID        string        `json:"id"`
	RunID     string        `json:"run_id,omitempty"`
	Iteration int           `json:"iteration"`
	Kind      ContentKind   `json:"content_kind"`
	Prompt    string        `json:"prompt"`
	MediaURL  string        `json:"media_url,omitempty"`
	Status    ContentStatus `json:"status"`
	Brand     BrandAssets   `json:"brand"`
	// ErrorMessage はゲートウェイが失敗を報告した場合のみ設定されます。
	ErrorMessage string `json:"error_message,omitempty"`

	ApprovalStatus  ApprovalStatus `json:"approval_status,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ready は生成が完了し、メディア URL が利用可能かを返します。
func (c *GeneratedContent) Ready() bool {
	return c.Status == ContentStatusCompleted && c.MediaURL != ""
}

// ApprovalStatus は人手によるレビュー結果です。未レビューは空文字です。
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalRecord は承認・却下の履歴 1 件です。
type ApprovalRecord struct {
	ID             string         `json:"id"`
	ContentID      string         `json:"content_id"`
	ContentKind    ContentKind    `json:"content_kind"`
	Action         ApprovalStatus `json:"action"`
	Reason         string         `json:"reason,omitempty"`
	PreviousStatus ApprovalStatus `json:"previous_status,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ContentFilter は生成レコード一覧の条件です。
type ContentFilter struct {
	Kind           ContentKind
	ApprovalStatus ApprovalStatus
	// Standalone が true の場合、ランに属さない単発生成のみを返します。
	Standalone bool
	Limit      int
	Offset     int
}
