package domain

const CategoryNotAvailable = "N/A"

// NotificationRequest は Slack 等の通知コンポーネントで共有されるデータ構造です。
// 終了したワークフローのメタデータを通知先に伝えるために使用します。
type NotificationRequest struct {
	// RunID は通知対象のワークフロー ID です。
	RunID string `json:"run_id"`

	// ContentKind は生成物の種別です。(例: "poster", "video")
	ContentKind string `json:"content_kind"`

	// Prompt は最後に使用されたプロンプトです。
	Prompt string `json:"prompt"`

	// Status は終了ステータスです。
	Status string `json:"status"`

	// MeanScore は最終スコアの平均値です。
	MeanScore float64 `json:"mean_score"`

	// ThresholdMet は閾値を満たして終了したかどうかを示します。
	ThresholdMet bool `json:"threshold_met"`

	// IterationCount は永続化されたイテレーション数です。
	IterationCount int `json:"iteration_count"`

	// MediaURL は最終的な生成物の URL です。
	MediaURL string `json:"media_url"`

	// ErrorMessage は failed / cancelled の場合の理由です。
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewNotificationRequest は終了したランから通知内容を組み立てます。
func NewNotificationRequest(run *WorkflowRun, mediaURL string) NotificationRequest {
	var mean float64
	if len(run.FinalScores) > 0 {
		for _, v := range run.FinalScores {
			mean += v
		}
		mean /= float64(len(run.FinalScores))
	}
	if mediaURL == "" {
		mediaURL = CategoryNotAvailable
	}
	return NotificationRequest{
		RunID:          run.ID,
		ContentKind:    string(run.ContentKind),
		Prompt:         run.Prompt,
		Status:         string(run.Status),
		MeanScore:      mean,
		ThresholdMet:   run.ThresholdMet,
		IterationCount: run.IterationCount,
		MediaURL:       mediaURL,
		ErrorMessage:   run.ErrorMessage,
	}
}
