package domain

import (
	"fmt"
	"time"
)

// 最終スコアのキー名です。
const (
	ScoreBrandFit       = "brand_fit_score"
	ScoreVisualQuality  = "visual_quality_score"
	ScoreMessageClarity = "message_clarity_score"
	ScoreToneOfVoice    = "tone_of_voice_score"
	ScoreSafety         = "safety_score"
)

// Scores は 5 つの評価軸のスコアで、いずれも [0,1] の範囲です。
type Scores struct {
	BrandFit       float64 `json:"brand_fit"`
	VisualQuality  float64 `json:"visual_quality"`
	MessageClarity float64 `json:"message_clarity"`
	ToneOfVoice    float64 `json:"tone_of_voice"`
	Safety         float64 `json:"safety"`
}

func (s Scores) values() [5]float64 {
	return [5]float64{s.BrandFit, s.VisualQuality, s.MessageClarity, s.ToneOfVoice, s.Safety}
}

// Mean は重み付けなしの単純平均です。
func (s Scores) Mean() float64 {
	var sum float64
	v := s.values()
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// Validate は全スコアが [0,1] に収まっているかを検証します。
func (s Scores) Validate() error {
	names := [5]string{ScoreBrandFit, ScoreVisualQuality, ScoreMessageClarity, ScoreToneOfVoice, ScoreSafety}
	for i, x := range s.values() {
		if x < 0 || x > 1 || x != x {
			return fmt.Errorf("%s out of range: %v", names[i], x)
		}
	}
	return nil
}

// Clamp は各スコアを [0,1] に丸めたコピーを返します。
func (s Scores) Clamp() Scores {
	return Scores{
		BrandFit:       clamp01(s.BrandFit),
		VisualQuality:  clamp01(s.VisualQuality),
		MessageClarity: clamp01(s.MessageClarity),
		ToneOfVoice:    clamp01(s.ToneOfVoice),
		Safety:         clamp01(s.Safety),
	}
}

// Map は WorkflowRun.FinalScores 用のマップに変換します。
func (s Scores) Map() map[string]float64 {
	return map[string]float64{
		ScoreBrandFit:       s.BrandFit,
		ScoreVisualQuality:  s.VisualQuality,
		ScoreMessageClarity: s.MessageClarity,
		ScoreToneOfVoice:    s.ToneOfVoice,
		ScoreSafety:         s.Safety,
	}
}

func clamp01(x float64) float64 {
	switch {
	case x != x, x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// BrandValidation は生成物とブランドアセットの照合結果です。
type BrandValidation struct {
	ColorMatchPercentage float64 `json:"color_match_percentage"`
	LogoPresent          bool    `json:"logo_present"`
	LogoCorrect          bool    `json:"logo_correct"`
	OverallConsistency   float64 `json:"overall_consistency"`
}

// SafetyBreakdown は安全性の内訳です。
type SafetyBreakdown struct {
	HarmfulContent   float64 `json:"harmful_content"`
	Stereotypes      float64 `json:"stereotypes"`
	MisleadingClaims float64 `json:"misleading_claims"`
}

// CritiqueResult は CritiqueGateway の戻り値です。
type CritiqueResult struct {
	Scores               Scores          `json:"scores"`
	BrandValidation      BrandValidation `json:"brand_validation"`
	SafetyBreakdown      SafetyBreakdown `json:"safety_breakdown"`
	Summary              string          `json:"summary"`
	RefinementSuggestion string          `json:"refinement_suggestion"`
}

// Critique は永続化された評価レコードです。作成後は不変です。
type Critique struct {
	ID          string      `json:"id"`
	RunID       string      `json:"run_id,omitempty"`
	ContentID   string      `json:"content_id,omitempty"`
	MediaURL    string      `json:"media_url"`
	ContentKind ContentKind `json:"content_kind"`
	Caption     string      `json:"caption"`
	BrandColors []string    `json:"brand_colors"`
	CritiqueResult
	CreatedAt time.Time `json:"created_at"`
}
