package app

import (
	"context"
	"errors"
	"log/slog"

	"adforge/internal/adapters"
	"adforge/internal/config"
	"adforge/internal/dispatch"
	"adforge/internal/domain"
	"adforge/internal/store"
	"adforge/internal/workflow"

	"github.com/shouni/gcp-kit/tasks"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// Container はアプリケーションの依存関係（DIコンテナ）を保持します。
type Container struct {
	Config *config.Config

	// Persistence
	Store *store.CachedStore

	// I/O and Storage
	RemoteIO *RemoteIO

	// Asynchronous Task
	TaskEnqueuer *tasks.Enqueuer[domain.WorkflowTaskPayload]
	Pools        *Pools

	// Business Logic
	Workflow *Workflow

	// External Adapters
	HTTPClient    httpkit.ClientInterface
	SlackNotifier *adapters.SlackAdapter
}

type RemoteIO struct {
	Factory remoteio.IOFactory
	Reader  remoteio.InputReader
	Writer  remoteio.OutputWriter
	Signer  remoteio.URLSigner
}

// Pools はランの実行と生成ジョブを別々に制限します。
// 同じプールを共有すると、生成待ちのランが生成ジョブの枠を塞いでしまいます。
type Pools struct {
	Runs       *dispatch.Pool
	Generation *dispatch.Pool
}

type Workflow struct {
	Orchestrator *workflow.Orchestrator
	Service      *workflow.Service
	Dispatcher   workflow.Dispatcher
}

// Shutdown はワーカープールを停止します。実行中のランは running のまま残り、次回起動時に再開されます。
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Pools == nil {
		return nil
	}
	var errs []error
	if c.Pools.Runs != nil {
		errs = append(errs, c.Pools.Runs.Shutdown(ctx))
	}
	if c.Pools.Generation != nil {
		errs = append(errs, c.Pools.Generation.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Close は、Container が保持するすべての外部接続リソースを安全に解放します。
func (c *Container) Close() {
	if c.RemoteIO != nil && c.RemoteIO.Factory != nil {
		if err := c.RemoteIO.Factory.Close(); err != nil {
			slog.Error("failed to close IOFactory", "error", err)
		}
	}
	if c.TaskEnqueuer != nil {
		if err := c.TaskEnqueuer.Close(); err != nil {
			slog.Error("failed to close task enqueuer", "error", err)
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}
}
