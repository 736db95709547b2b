package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"adforge/internal/domain"
)

// maxCritiqueMediaBytes はインライン添付できるメディアの上限です。
const maxCritiqueMediaBytes = 20 << 20

// MediaEvaluator はメディアを添付したプロンプトを評価モデルへ送ります。GeminiModels が実装します。
type MediaEvaluator interface {
	Evaluate(ctx context.Context, prompt string, media []byte, mimeType string) (string, error)
}

// MediaReader は gs:// URL などからメディアを読み出します。remoteio.InputReader が満たします。
type MediaReader interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// CritiqueGateway は生成物を評価モデルで採点します。
type CritiqueGateway struct {
	evaluator MediaEvaluator
	reader    MediaReader
}

// NewCritiqueGateway は CritiqueGateway を生成します。
func NewCritiqueGateway(evaluator MediaEvaluator, reader MediaReader) *CritiqueGateway {
	return &CritiqueGateway{evaluator: evaluator, reader: reader}
}

// Critique はメディアを読み込み、評価結果を返します。スコアは [0,1] に丸められます。
func (g *CritiqueGateway) Critique(ctx context.Context, req domain.CritiqueRequest) (*domain.CritiqueResult, error) {
	media, err := g.readMedia(ctx, req.MediaURL)
	if err != nil {
		return nil, err
	}

	text, err := g.evaluator.Evaluate(ctx, buildCritiquePrompt(req.BrandColors, req.Caption), media, mimeTypeFor(req.MediaURL, req.Kind))
	if err != nil {
		return nil, err
	}

	result, err := parseCritique(text)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Critique completed", "media_url", req.MediaURL, "mean_score", result.Scores.Mean())
	return result, nil
}

// mimeTypeFor はメディア URL の拡張子から MIME タイプを決めます。不明な拡張子は種別の既定値に倒します。
func mimeTypeFor(mediaURL string, kind domain.ContentKind) string {
	switch strings.ToLower(path.Ext(mediaURL)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".png":
		return "image/png"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	}
	if kind == domain.ContentKindVideo {
		return "video/mp4"
	}
	return "image/png"
}

func (g *CritiqueGateway) readMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	rc, err := g.reader.Open(ctx, mediaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open media %s: %w", mediaURL, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxCritiqueMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read media %s: %w", mediaURL, err)
	}
	if len(data) > maxCritiqueMediaBytes {
		return nil, fmt.Errorf("media %s exceeds %d bytes", mediaURL, maxCritiqueMediaBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("media %s is empty", mediaURL)
	}
	return data, nil
}

// critiqueResponse は評価モデルの JSON 応答です。
type critiqueResponse struct {
	BrandFit        *float64 `json:"BrandFit_Score"`
	VisualQuality   *float64 `json:"VisualQuality_Score"`
	MessageClarity  *float64 `json:"MessageClarity_Score"`
	ToneOfVoice     *float64 `json:"ToneOfVoice_Score"`
	Safety          *float64 `json:"Safety_Score"`
	BrandValidation struct {
		ColorMatchPercentage float64 `json:"color_match_percentage"`
		LogoPresent          bool    `json:"logo_present"`
		LogoCorrect          bool    `json:"logo_correct"`
		OverallConsistency   float64 `json:"overall_consistency"`
	} `json:"BrandValidation"`
	SafetyBreakdown struct {
		HarmfulContent   float64 `json:"harmful_content"`
		Stereotypes      float64 `json:"stereotypes"`
		MisleadingClaims float64 `json:"misleading_claims"`
	} `json:"SafetyBreakdown"`
	Summary    string `json:"Critique_Summary"`
	Suggestion string `json:"Refinement_Prompt_Suggestion"`
}

// parseCritique はコードフェンスを取り除いて応答を解釈します。5 つのスコアはすべて必須です。
func parseCritique(text string) (*domain.CritiqueResult, error) {
	cleaned := stripCodeFence(text)

	var resp critiqueResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse critique response: %w", err)
	}

	fields := []struct {
		name  string
		value *float64
	}{
		{"BrandFit_Score", resp.BrandFit},
		{"VisualQuality_Score", resp.VisualQuality},
		{"MessageClarity_Score", resp.MessageClarity},
		{"ToneOfVoice_Score", resp.ToneOfVoice},
		{"Safety_Score", resp.Safety},
	}
	for _, f := range fields {
		if f.value == nil {
			return nil, fmt.Errorf("critique response is missing %s", f.name)
		}
	}

	scores := domain.Scores{
		BrandFit:       *resp.BrandFit,
		VisualQuality:  *resp.VisualQuality,
		MessageClarity: *resp.MessageClarity,
		ToneOfVoice:    *resp.ToneOfVoice,
		Safety:         *resp.Safety,
	}.Clamp()

	return &domain.CritiqueResult{
		Scores: scores,
		BrandValidation: domain.BrandValidation{
			ColorMatchPercentage: resp.BrandValidation.ColorMatchPercentage,
			LogoPresent:          resp.BrandValidation.LogoPresent,
			LogoCorrect:          resp.BrandValidation.LogoCorrect,
			OverallConsistency:   resp.BrandValidation.OverallConsistency,
		},
		SafetyBreakdown: domain.SafetyBreakdown{
			HarmfulContent:   resp.SafetyBreakdown.HarmfulContent,
			Stereotypes:      resp.SafetyBreakdown.Stereotypes,
			MisleadingClaims: resp.SafetyBreakdown.MisleadingClaims,
		},
		Summary:              strings.TrimSpace(resp.Summary),
		RefinementSuggestion: strings.TrimSpace(resp.Suggestion),
	}, nil
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
