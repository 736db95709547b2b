package builder

import (
	"context"
	"fmt"

	"adforge/internal/adapters"
	"adforge/internal/app"
	"adforge/internal/config"
	"adforge/internal/dispatch"
	"adforge/internal/workflow"

	"github.com/shouni/go-http-kit/pkg/httpkit"
)

// BuildContainer は外部サービスとの接続を確立し、依存関係を組み立てます。
// 失敗した場合は途中まで確保したリソースを解放してからエラーを返します。
func BuildContainer(ctx context.Context, cfg *config.Config) (_ *app.Container, err error) {
	c := &app.Container{Config: cfg}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// 1. 永続化
	c.Store, err = buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. 基盤クライアントと I/O インフラ (GCS等) の初期化
	c.HTTPClient = httpkit.New(config.DefaultHTTPTimeout)
	c.RemoteIO, err = buildRemoteIO(ctx)
	if err != nil {
		return nil, err
	}

	// 3. アダプターの初期化
	c.SlackNotifier, err = adapters.NewSlackAdapter(c.HTTPClient, cfg.SlackWebhookURL, cfg.ServiceURL, c.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Slack adapter: %w", err)
	}

	models, err := adapters.NewGeminiModels(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini models: %w", err)
	}

	// 4. ワーカープールとゲートウェイ
	c.Pools = &app.Pools{
		Runs:       dispatch.NewPool("runs", cfg.WorkerConcurrency),
		Generation: dispatch.NewPool("generation", cfg.WorkerConcurrency),
	}

	generator, err := adapters.NewGenerationGateway(adapters.GenerationGatewayArgs{
		Models:   models,
		Writer:   c.RemoteIO.Writer,
		Contents: c.Store,
		Jobs:     c.Pools.Generation,
		Locator:  cfg,
		Timeout:  cfg.GenerationTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation gateway: %w", err)
	}
	critic := adapters.NewCritiqueGateway(models, c.RemoteIO.Reader)

	// 5. ワークフロー
	orchestrator, err := workflow.NewOrchestrator(workflow.OrchestratorArgs{
		Store:     c.Store,
		Generator: generator,
		Critic:    critic,
		Notifier:  c.SlackNotifier,
		Options: workflow.Options{
			GenerationTimeout: cfg.GenerationTimeout,
			PollInterval:      cfg.PollInterval,
			LeaseTTL:          cfg.RunLeaseTTL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	dispatcher, err := buildDispatcher(ctx, cfg, c, orchestrator)
	if err != nil {
		return nil, err
	}

	service, err := workflow.NewService(workflow.ServiceArgs{
		Store:          c.Store,
		Orchestrator:   orchestrator,
		Dispatcher:     dispatcher,
		Generator:      generator,
		Critic:         critic,
		MaxIterations:  cfg.MaxIterations,
		ScoreThreshold: cfg.ScoreThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow service: %w", err)
	}

	c.Workflow = &app.Workflow{
		Orchestrator: orchestrator,
		Service:      service,
		Dispatcher:   dispatcher,
	}
	return c, nil
}
