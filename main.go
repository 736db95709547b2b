package main

import (
	"context"
	"log/slog"
	"os"

	"adforge/internal/cli"
	"adforge/internal/config"

	_ "go.uber.org/automaxprocs"
)

func main() {
	cfg := config.LoadConfig()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if err := cli.Execute(context.Background(), cfg); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}
