package builder

import (
	"adforge/internal/app"
	"adforge/internal/config"
	"adforge/internal/dispatch"
	"adforge/internal/domain"
	"adforge/internal/server/auth"
	"adforge/internal/server/handlers"

	"github.com/shouni/gcp-kit/worker"
)

// AppHandlers は生成されたすべての HTTP ハンドラーを保持する構造体です。
// server パッケージはこの構造体を受け取ってルーティングを行います。
type AppHandlers struct {
	API    *handlers.Handler
	Worker *worker.Handler[domain.WorkflowTaskPayload]
	// TaskAuth は Worker へのリクエストの OIDC トークンを検証します。Worker と同時に設定されます。
	TaskAuth *auth.TaskVerifier
}

// BuildHandlers は各ハンドラーの依存関係をすべて組み立て、AppHandlers 構造体を返します。
func BuildHandlers(c *app.Container) *AppHandlers {
	// 1. JSON API 用Handlerの初期化
	apiHandler := handlers.NewHandler(c.Workflow.Service, c.RemoteIO.Signer, c.Config.SignedURLExpiration)

	h := &AppHandlers{API: apiHandler}

	// 2. 非同期ワーカー用Handlerの初期化 (Cloud Tasks からの実行指示)
	if c.Config.DispatchMode == config.DispatchModeCloudTasks {
		h.Worker = worker.NewHandler[domain.WorkflowTaskPayload](dispatch.NewTaskExecutor(c.Workflow.Orchestrator))
		h.TaskAuth = auth.NewTaskVerifier(c.Config.TaskAudienceURL)
	}
	return h
}
