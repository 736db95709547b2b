package workflow

import (
	"fmt"
	"strings"

	"adforge/internal/domain"

	"github.com/shouni/netarmor/securenet"
)

const (
	minPromptLength = 10
	maxPromptLength = 10000
)

var allowedAspectRatios = map[string]bool{
	"1:1":  true,
	"3:4":  true,
	"4:3":  true,
	"9:16": true,
	"16:9": true,
}

// StartRequest はラン作成の入力です。
type StartRequest struct {
	ContentKind     domain.ContentKind `json:"content_kind"`
	Prompt          string             `json:"prompt"`
	BrandLogoURL    string             `json:"brand_logo_url,omitempty"`
	ProductImageURL string             `json:"product_image_url,omitempty"`
	BrandColors     []string           `json:"brand_colors,omitempty"`
	AspectRatio     string             `json:"aspect_ratio,omitempty"`
}

// normalize は入力を検証し、既定値を補ったブランド情報を返します。
// 検証エラーは domain.ErrInvalidRequest をラップします。
func (r StartRequest) normalize() (string, domain.BrandAssets, error) {
	var brand domain.BrandAssets

	if !r.ContentKind.Valid() {
		return "", brand, fmt.Errorf("%w: content_kind must be poster or video, got %q", domain.ErrInvalidRequest, r.ContentKind)
	}

	prompt := strings.TrimSpace(r.Prompt)
	if n := len([]rune(prompt)); n < minPromptLength || n > maxPromptLength {
		return "", brand, fmt.Errorf("%w: prompt must be between %d and %d characters", domain.ErrInvalidRequest, minPromptLength, maxPromptLength)
	}

	for field, raw := range map[string]string{"brand_logo_url": r.BrandLogoURL, "product_image_url": r.ProductImageURL} {
		if raw == "" {
			continue
		}
		if !securenet.IsSecureServiceURL(raw) {
			return "", brand, fmt.Errorf("%w: %s must be an https URL", domain.ErrInvalidRequest, field)
		}
	}

	aspect := strings.TrimSpace(r.AspectRatio)
	if aspect == "" {
		aspect = "1:1"
		if r.ContentKind == domain.ContentKindVideo {
			aspect = "16:9"
		}
	}
	if !allowedAspectRatios[aspect] {
		return "", brand, fmt.Errorf("%w: unsupported aspect_ratio %q", domain.ErrInvalidRequest, aspect)
	}

	brand = domain.BrandAssets{
		LogoURL:         r.BrandLogoURL,
		ProductImageURL: r.ProductImageURL,
		Colors:          NormalizeColors(r.BrandColors),
		AspectRatio:     aspect,
	}
	return prompt, brand, nil
}

// NormalizeColors は色指定を #rrggbb 形式に揃え、解釈できないものを捨てます。
// "#abc" のような短縮形は展開します。
func NormalizeColors(colors []string) []string {
	out := make([]string, 0, len(colors))
	for _, c := range colors {
		c = strings.ToLower(strings.TrimSpace(c))
		c = strings.TrimPrefix(c, "#")
		if len(c) == 3 {
			c = string([]byte{c[0], c[0], c[1], c[1], c[2], c[2]})
		}
		if len(c) != 6 || !isHex(c) {
			continue
		}
		out = append(out, "#"+c)
	}
	return out
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return false
		}
	}
	return true
}
