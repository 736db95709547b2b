package builder

import (
	"context"
	"fmt"

	"adforge/internal/app"
	"adforge/internal/config"
	"adforge/internal/store"

	"github.com/shouni/go-remote-io/pkg/gcsfactory"
)

// buildStore は SQLite ストアを開き、終了済みランの読み取りキャッシュで包みます。
func buildStore(ctx context.Context, cfg *config.Config) (*store.CachedStore, error) {
	s, err := store.NewSQLiteStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", cfg.DatabasePath, err)
	}
	return store.NewCachedStore(s), nil
}

// buildRemoteIO は、生成メディアの読み書きと署名付き URL 発行に使う GCS コンポーネントを初期化します。
func buildRemoteIO(ctx context.Context) (*app.RemoteIO, error) {
	factory, err := gcsfactory.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS factory: %w", err)
	}
	rio := &app.RemoteIO{Factory: factory}

	if rio.Reader, err = factory.InputReader(); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to create input reader: %w", err)
	}
	if rio.Writer, err = factory.OutputWriter(); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to create output writer: %w", err)
	}
	if rio.Signer, err = factory.URLSigner(); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to create URL signer: %w", err)
	}
	return rio, nil
}
