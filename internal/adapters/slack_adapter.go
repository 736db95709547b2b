package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"adforge/internal/domain"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-notifier/pkg/factory"
	"github.com/shouni/go-notifier/pkg/slack"
)

// --- インターフェース定義 ---

type SlackNotifier interface {
	Notify(ctx context.Context, publicURL string, req domain.NotificationRequest) error
	NotifyError(ctx context.Context, req domain.NotificationRequest) error
}

// ContentLookup は通知に含める生成物の URL を解決します。
type ContentLookup interface {
	GetContent(ctx context.Context, id string) (*domain.GeneratedContent, error)
}

// --- 具象アダプター ---

type SlackAdapter struct {
	webhookURL  string
	serviceURL  string
	slackClient *slack.Client
	contents    ContentLookup
}

func NewSlackAdapter(httpClient httpkit.ClientInterface, webhookURL, serviceURL string, contents ContentLookup) (*SlackAdapter, error) {
	if webhookURL == "" {
		return &SlackAdapter{webhookURL: webhookURL, serviceURL: serviceURL, contents: contents}, nil
	}
	client, err := factory.GetSlackClient(httpClient)
	if err != nil {
		return nil, fmt.Errorf("Slackクライアントの初期化に失敗しました: %w", err)
	}

	return &SlackAdapter{
		webhookURL:  webhookURL,
		serviceURL:  serviceURL,
		slackClient: client,
		contents:    contents,
	}, nil
}

// NotifyRunFinished はランの終了状態に応じて完了通知かエラー通知を送ります。
func (a *SlackAdapter) NotifyRunFinished(ctx context.Context, run *domain.WorkflowRun) error {
	var mediaURL string
	if a.contents != nil && run.GeneratedContentID != "" {
		if c, err := a.contents.GetContent(ctx, run.GeneratedContentID); err == nil {
			mediaURL = c.MediaURL
		}
	}
	req := domain.NewNotificationRequest(run, mediaURL)

	if run.Status == domain.RunStatusCompleted {
		return a.Notify(ctx, a.runURL(run.ID), req)
	}
	return a.NotifyError(ctx, req)
}

// Notify 完了したランのスコアと生成物の情報を Slack に送信します。
func (a *SlackAdapter) Notify(ctx context.Context, publicURL string, req domain.NotificationRequest) error {
	if a.slackClient == nil {
		slog.Info("Slackクライアントが初期化されていないため、通知をスキップします。", "run_id", req.RunID)
		return nil
	}

	icon := "🖼️"
	if req.ContentKind == string(domain.ContentKindVideo) {
		icon = "🎬"
	}

	title := fmt.Sprintf("%s 広告クリエイティブの生成が完了しました", icon)
	if !req.ThresholdMet {
		title = fmt.Sprintf("%s 広告クリエイティブの生成が完了しました（閾値未達）", icon)
	}
	content := a.buildSlackContent(publicURL, req)

	if err := a.slackClient.SendTextWithHeader(ctx, title, content); err != nil {
		return fmt.Errorf("Slackへの投稿に失敗しました: %w", err)
	}

	slog.Info("Slack に完了通知を送信しました。", "run_id", req.RunID)
	return nil
}

// NotifyError 失敗またはキャンセルされたランの情報を Slack に送信します。
func (a *SlackAdapter) NotifyError(ctx context.Context, req domain.NotificationRequest) error {
	if a.slackClient == nil {
		slog.Info("Slackクライアントが初期化されていないため、エラー通知をスキップします。", "run_id", req.RunID, "error", req.ErrorMessage)
		return nil
	}

	// Slackのmrkdwn形式では、アスタリスク(*)でテキストを囲むと太字として解釈されます。
	title := "❌ ワークフローが失敗しました"
	if req.Status == string(domain.RunStatusCancelled) {
		title = "⏹️ ワークフローがキャンセルされました"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*ラン ID:* `%s`\n", req.RunID))
	sb.WriteString(fmt.Sprintf("*種別:* `%s`\n", req.ContentKind))
	sb.WriteString(fmt.Sprintf("*イテレーション:* %d\n\n", req.IterationCount))

	// エラー詳細をコードブロックで囲むことで、スタックトレースなどの可読性を向上させます。
	sb.WriteString("*エラー内容:*\n")
	sb.WriteString(fmt.Sprintf("```\n%s\n```\n", req.ErrorMessage))

	if req.MediaURL != "" && req.MediaURL != domain.CategoryNotAvailable {
		sb.WriteString(fmt.Sprintf("\n📍 *直近の生成物:* `%s`", req.MediaURL))
	}

	if err := a.slackClient.SendTextWithHeader(ctx, title, sb.String()); err != nil {
		return fmt.Errorf("Slackへのエラー通知に失敗しました: %w", err)
	}

	slog.Info("Slack にエラー通知を送信しました。", "run_id", req.RunID)
	return nil
}

// buildSlackContent 完了通知の本文を生成します。
func (a *SlackAdapter) buildSlackContent(publicURL string, req domain.NotificationRequest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**ラン ID:** `%s`\n", req.RunID))
	sb.WriteString(fmt.Sprintf("**種別:** `%s`\n", req.ContentKind))
	sb.WriteString(fmt.Sprintf("**平均スコア:** %.2f (閾値達成: %t)\n", req.MeanScore, req.ThresholdMet))
	sb.WriteString(fmt.Sprintf("**イテレーション:** %d\n\n", req.IterationCount))

	if publicURL != "" {
		sb.WriteString(fmt.Sprintf("🌐 **詳細(API):** <%s|ここから確認>\n", publicURL))
	}

	if strings.HasPrefix(req.MediaURL, "gs://") {
		consoleURL := "https://console.cloud.google.com/storage/browser/" + strings.TrimPrefix(req.MediaURL, "gs://")
		sb.WriteString(fmt.Sprintf("📂 **管理者(Console):** <%s|GCSで直接見る>\n", consoleURL))
	}
	sb.WriteString(fmt.Sprintf("📍 **保存場所(URI):** `%s`\n\n", req.MediaURL))
	sb.WriteString(fmt.Sprintf("_最終プロンプト:_ %s", req.Prompt))

	return sb.String()
}

func (a *SlackAdapter) runURL(runID string) string {
	if a.serviceURL == "" {
		return ""
	}
	u, err := url.JoinPath(a.serviceURL, "/api/workflows", runID)
	if err != nil {
		return ""
	}
	return u
}
