package domain

// WorkflowTaskPayload は、Cloud Tasks 経由でワーカーに渡される実行指示を表します。
type WorkflowTaskPayload struct {
	// RunID は実行対象の WorkflowRun の ID です。
	RunID string `json:"run_id"`
}
