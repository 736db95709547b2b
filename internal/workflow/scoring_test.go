package workflow

import (
	"testing"

	"adforge/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestAccept(t *testing.T) {
	tests := []struct {
		name      string
		scores    domain.Scores
		threshold float64
		wantMean  float64
		wantOK    bool
	}{
		{name: "above", scores: uniform(0.85), threshold: 0.8, wantMean: 0.85, wantOK: true},
		{name: "below", scores: uniform(0.5), threshold: 0.8, wantMean: 0.5, wantOK: false},
		{name: "equal after rounding", scores: domain.Scores{BrandFit: 0.7, VisualQuality: 0.9, MessageClarity: 0.8, ToneOfVoice: 0.8, Safety: 0.8}, threshold: 0.8, wantMean: 0.8, wantOK: true},
		{name: "unweighted mean", scores: domain.Scores{BrandFit: 1, VisualQuality: 0, MessageClarity: 1, ToneOfVoice: 0, Safety: 1}, threshold: 0.6, wantMean: 0.6, wantOK: true},
		{name: "binary rounding below threshold", scores: domain.Scores{BrandFit: 0.3, VisualQuality: 1, MessageClarity: 1, ToneOfVoice: 0.8, Safety: 0.9}, threshold: 0.8, wantMean: 0.8, wantOK: true},
		{name: "just below", scores: uniform(0.7999999995), threshold: 0.8, wantMean: 0.7999999995, wantOK: false},
		{name: "1e-11 below", scores: uniform(0.79999999999), threshold: 0.8, wantMean: 0.79999999999, wantOK: false},
		{name: "zero threshold", scores: uniform(0), threshold: 0, wantMean: 0, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, ok := Accept(tt.scores, tt.threshold)
			assert.InDelta(t, tt.wantMean, mean, 1e-9)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
