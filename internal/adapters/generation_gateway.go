package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"adforge/internal/domain"
)

// MediaGenerator は画像・動画モデルの呼び出しです。GeminiModels が実装します。
type MediaGenerator interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, string, error)
	GenerateVideo(ctx context.Context, prompt, aspectRatio string) ([]byte, string, error)
}

// MediaWriter は生成物をオブジェクトストレージへ書き込みます。remoteio.OutputWriter が満たします。
type MediaWriter interface {
	Write(ctx context.Context, path string, r io.Reader, contentType string) error
}

// ContentCompleter は生成レコードの終了状態を書き込みます。
type ContentCompleter interface {
	CompleteContent(ctx context.Context, id string, status domain.ContentStatus, mediaURL, errMsg string) error
}

// JobRunner はバックグラウンドジョブの投入先です。dispatch.Pool が実装します。
type JobRunner interface {
	Go(job func(ctx context.Context)) error
}

// MediaLocator はオブジェクトパスと gs:// URL を組み立てます。config.Config が実装します。
type MediaLocator interface {
	GetMediaPath(subDir, fileName string) string
	GetGCSObjectURL(path string) string
}

// GenerationGatewayArgs は GenerationGateway の依存関係です。
type GenerationGatewayArgs struct {
	Models    MediaGenerator
	Writer    MediaWriter
	Contents  ContentCompleter
	Jobs      JobRunner
	Locator   MediaLocator
	// Timeout は 1 件の生成ジョブ全体の上限です。0 なら無制限です。
	Timeout time.Duration
}

// GenerationGateway はモデル呼び出しとアップロードをバックグラウンドで行い、
// 結果を生成レコードへ書き戻します。
type GenerationGateway struct {
	models   MediaGenerator
	writer   MediaWriter
	contents ContentCompleter
	jobs     JobRunner
	locator  MediaLocator
	timeout  time.Duration
}

// NewGenerationGateway は GenerationGateway を生成します。
func NewGenerationGateway(args GenerationGatewayArgs) (*GenerationGateway, error) {
	if args.Models == nil || args.Writer == nil || args.Contents == nil || args.Jobs == nil || args.Locator == nil {
		return nil, fmt.Errorf("generation gateway requires models, writer, contents, jobs and locator")
	}
	return &GenerationGateway{
		models:   args.Models,
		writer:   args.Writer,
		contents: args.Contents,
		jobs:     args.Jobs,
		locator:  args.Locator,
		timeout:  args.Timeout,
	}, nil
}

// Generate は生成ジョブを投入してすぐに戻ります。
func (g *GenerationGateway) Generate(ctx context.Context, req domain.GenerationRequest) error {
	if req.ContentID == "" || !req.Kind.Valid() {
		return fmt.Errorf("%w: content id and a valid kind are required", domain.ErrInvalidRequest)
	}
	return g.jobs.Go(func(jobCtx context.Context) {
		g.run(jobCtx, req)
	})
}

func (g *GenerationGateway) run(ctx context.Context, req domain.GenerationRequest) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	mediaURL, err := g.produce(ctx, req)

	// 結果の書き戻しはジョブのキャンセルに巻き込まれないようにします。
	writeCtx := context.WithoutCancel(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Content generation failed", "content_id", req.ContentID, "kind", req.Kind, "error", err)
		if cerr := g.contents.CompleteContent(writeCtx, req.ContentID, domain.ContentStatusFailed, "", err.Error()); cerr != nil {
			slog.ErrorContext(ctx, "Failed to record generation failure", "content_id", req.ContentID, "error", cerr)
		}
		return
	}

	if err := g.contents.CompleteContent(writeCtx, req.ContentID, domain.ContentStatusCompleted, mediaURL, ""); err != nil {
		slog.ErrorContext(ctx, "Failed to record generated content", "content_id", req.ContentID, "error", err)
		return
	}
	slog.InfoContext(ctx, "Content generated", "content_id", req.ContentID, "media_url", mediaURL, "elapsed", time.Since(start).String())
}

// produce はモデルを呼び出し、結果をアップロードして gs:// URL を返します。
func (g *GenerationGateway) produce(ctx context.Context, req domain.GenerationRequest) (string, error) {
	prompt := buildGenerationPrompt(req.Kind, req.Prompt, req.Brand)

	var (
		data     []byte
		mimeType string
		err      error
		subDir   string
		ext      string
	)
	switch req.Kind {
	case domain.ContentKindVideo:
		data, mimeType, err = g.models.GenerateVideo(ctx, prompt, req.Brand.AspectRatio)
		subDir, ext = "videos", ".mp4"
	default:
		data, mimeType, err = g.models.GenerateImage(ctx, prompt, req.Brand.AspectRatio)
		subDir, ext = "images", extensionFor(mimeType)
	}
	if err != nil {
		return "", err
	}

	objectPath := g.locator.GetGCSObjectURL(g.locator.GetMediaPath(subDir, req.ContentID+ext))
	if err := g.writer.Write(ctx, objectPath, bytes.NewReader(data), mimeType); err != nil {
		return "", fmt.Errorf("failed to upload media to %s: %w", objectPath, err)
	}
	return objectPath, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return ".png"
}
