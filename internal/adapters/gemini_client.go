package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"adforge/internal/config"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	defaultImageMIMEType = "image/png"
	defaultVideoMIMEType = "video/mp4"
	// videoOperationPollInterval は Veo の長時間オペレーションを確認する間隔です。
	videoOperationPollInterval = 10 * time.Second
	critiqueMaxOutputTokens    = 2048
)

// GeminiModels は Imagen / Veo / Gemini の呼び出しをまとめたクライアントです。
// 全呼び出しで 1 つのレートリミッターを共有します。
type GeminiModels struct {
	client        *genai.Client
	imageModel    string
	videoModel    string
	critiqueModel string
	limiter       *rate.Limiter
	videoPoll     time.Duration
}

// NewGeminiModels は API キーで Gemini クライアントを初期化します。
func NewGeminiModels(ctx context.Context, cfg *config.Config) (*GeminiModels, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiModels{
		client:        client,
		imageModel:    cfg.ImageModel,
		videoModel:    cfg.VideoModel,
		critiqueModel: cfg.CritiqueModel,
		limiter:       newModelLimiter(cfg.RateInterval),
		videoPoll:     videoOperationPollInterval,
	}, nil
}

func newModelLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// GenerateImage は Imagen で 1 枚の画像を生成し、バイト列と MIME タイプを返します。
func (g *GeminiModels) GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    aspectRatio,
		OutputMIMEType: defaultImageMIMEType,
	})
	if err != nil {
		return nil, "", fmt.Errorf("image generation request failed: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, "", fmt.Errorf("image model returned no image")
	}

	img := resp.GeneratedImages[0].Image
	if len(img.ImageBytes) == 0 {
		return nil, "", fmt.Errorf("image model returned empty image data")
	}
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = defaultImageMIMEType
	}
	return img.ImageBytes, mimeType, nil
}

// GenerateVideo は Veo のオペレーションを開始し、完了まで待ってから動画をダウンロードします。
func (g *GeminiModels) GenerateVideo(ctx context.Context, prompt, aspectRatio string) ([]byte, string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limiter: %w", err)
	}

	op, err := g.client.Models.GenerateVideos(ctx, g.videoModel, prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    aspectRatio,
	})
	if err != nil {
		return nil, "", fmt.Errorf("video generation request failed: %w", err)
	}

	ticker := time.NewTicker(g.videoPoll)
	defer ticker.Stop()
	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-ticker.C:
		}
		op, err = g.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, "", fmt.Errorf("failed to poll video operation: %w", err)
		}
		slog.DebugContext(ctx, "Video operation polled", "operation", op.Name, "done", op.Done)
	}

	if op.Error != nil {
		return nil, "", fmt.Errorf("video operation failed: %v", op.Error)
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return nil, "", fmt.Errorf("video model returned no video")
	}

	generated := op.Response.GeneratedVideos[0]
	data := generated.Video.VideoBytes
	if len(data) == 0 {
		data, err = g.client.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(generated), nil)
		if err != nil {
			return nil, "", fmt.Errorf("failed to download generated video: %w", err)
		}
	}
	mimeType := generated.Video.MIMEType
	if mimeType == "" {
		mimeType = defaultVideoMIMEType
	}
	return data, mimeType, nil
}

// Evaluate はメディアをインラインで添付して評価プロンプトを送り、JSON テキストを返します。
func (g *GeminiModels) Evaluate(ctx context.Context, prompt string, media []byte, mimeType string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: media}},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.critiqueModel, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.4),
		MaxOutputTokens:  critiqueMaxOutputTokens,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("critique model request failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("critique model returned an empty response")
	}
	return text, nil
}
