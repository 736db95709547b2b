package adapters

import (
	"fmt"
	"strings"

	"adforge/internal/domain"
)

// buildGenerationPrompt はユーザーのプロンプトにブランド制約を付け加えた生成用プロンプトを組み立てます。
func buildGenerationPrompt(kind domain.ContentKind, prompt string, brand domain.BrandAssets) string {
	noun, style := "poster", "Modern, professional, eye-catching"
	if kind == domain.ContentKindVideo {
		noun, style = "video", "Modern, professional, engaging"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a professional advertising %s with these requirements:\n\n%s\n\nCRITICAL REQUIREMENTS:\n", noun, prompt)
	if len(brand.Colors) > 0 {
		fmt.Fprintf(&sb, "- PRIMARY REQUIREMENT: Use ONLY these exact brand colors: %s\n", strings.Join(brand.Colors, ", "))
	}
	if brand.LogoURL != "" {
		fmt.Fprintf(&sb, "- CRITICAL: Incorporate the brand logo from this URL: %s\n", brand.LogoURL)
	}
	if brand.ProductImageURL != "" {
		fmt.Fprintf(&sb, "- CRITICAL: Feature the product from this URL as the focal point: %s\n", brand.ProductImageURL)
	}

	sb.WriteString("\nDesign specifications:\n")
	fmt.Fprintf(&sb, "- Aspect ratio: %s\n", brand.AspectRatio)
	fmt.Fprintf(&sb, "- Style: %s\n", style)
	if kind == domain.ContentKindVideo {
		sb.WriteString("- Duration: 15-30 seconds\n")
	} else {
		sb.WriteString("- Quality: High-resolution, suitable for advertising\n")
	}
	return sb.String()
}

// buildCritiquePrompt は評価モデルへの指示を組み立てます。応答キーは parseCritique と対応しています。
func buildCritiquePrompt(brandColors []string, caption string) string {
	colors := "Not specified"
	if len(brandColors) > 0 {
		colors = strings.Join(brandColors, ", ")
	}

	return fmt.Sprintf(`You are an expert brand and creative director evaluating AI-generated ads.
Analyze the provided ad creative and provide a comprehensive critique based on these brand guidelines:

Brand Colors: %[1]s
Caption/Message: %[2]s

Evaluate the following aspects with precision:

1. BRAND ALIGNMENT (0-1): How well does the visual content match the provided brand colors? Does it use the correct logo? Is the overall aesthetic on-brand?
2. VISUAL QUALITY (0-1): Assess composition, clarity, professionalism, absence of artifacts, watermarks, or blurriness.
3. MESSAGE CLARITY (0-1): Is the product or service obvious? Is the caption clear and correct?
4. TONE OF VOICE (0-1): Does the messaging style match the expected brand voice and target audience?
5. SAFETY & ETHICS (0-1): Check for harmful content, stereotypes, misleading claims, or any unsafe elements.
6. BRAND VALIDATION: percentage of the brand colors present in the ad, whether a logo is visible and correct, overall brand consistency.
7. SAFETY BREAKDOWN: harmful content, stereotypes and misleading claims, each 0-1 where 1 is safe.

Return ONLY a JSON object with this exact structure:
{
  "BrandFit_Score": 0.85,
  "VisualQuality_Score": 0.92,
  "MessageClarity_Score": 0.88,
  "ToneOfVoice_Score": 0.90,
  "Safety_Score": 0.95,
  "BrandValidation": {
    "color_match_percentage": 75,
    "logo_present": true,
    "logo_correct": true,
    "overall_consistency": 0.82
  },
  "SafetyBreakdown": {
    "harmful_content": 1.0,
    "stereotypes": 1.0,
    "misleading_claims": 0.9
  },
  "Critique_Summary": "Detailed explanation covering all dimensions",
  "Refinement_Prompt_Suggestion": "A complete, improved generation prompt that fixes the issues and explicitly mentions the brand colors: %[1]s"
}`, colors, caption)
}
