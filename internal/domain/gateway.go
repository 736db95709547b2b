package domain

// GenerationRequest は ContentGenerationGateway への生成依頼です。
// ContentID は呼び出し側が事前に作成した pending レコードの ID で、ゲートウェイは完了時にこれを更新します。
type GenerationRequest struct {
	ContentID string
	Kind      ContentKind
	Prompt    string
	Brand     BrandAssets
}

// CritiqueRequest は CritiqueGateway への評価依頼です。
type CritiqueRequest struct {
	MediaURL    string
	Kind        ContentKind
	BrandColors []string
	Caption     string
}
