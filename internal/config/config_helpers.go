package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shouni/netarmor/securenet"
)

// GetMediaPath は生成メディアのオブジェクトパスを返します。
// 例: "output/images/<id>.png", "output/videos/<id>.mp4"
func (c Config) GetMediaPath(subDir, fileName string) string {
	return path.Join(c.BaseOutputDir, subDir, fileName)
}

// GetGCSObjectURL は、指定されたパスから完全なGCSオブジェクトURL ("gs://...") を組み立てます。
// pathが既に "gs://" プレフィックスを持つ場合は、そのままpathを返します。
// c.GCSBucketが空文字列の場合、この関数は引数で与えられたpathをそのまま返します。
func (c Config) GetGCSObjectURL(path string) string {
	if strings.HasPrefix(path, "gs://") {
		return path
	}
	if c.GCSBucket != "" {
		return fmt.Sprintf("gs://%s/%s", c.GCSBucket, path)
	}

	return path
}

// --- バリデーション ---

// ValidateEssentialConfig はアプリケーション実行に不可欠な設定を検証します。
func ValidateEssentialConfig(cfg *Config) error {
	if !IsSecureURL(cfg.ServiceURL) {
		return fmt.Errorf("security error: SERVICE_URL ('%s') must be HTTPS in production", cfg.ServiceURL)
	}

	if cfg.MaxIterations < 1 {
		return fmt.Errorf("configuration error: MAX_WORKFLOW_ITERATIONS must be >= 1 (got %d)", cfg.MaxIterations)
	}

	if cfg.ScoreThreshold < 0 || cfg.ScoreThreshold > 1 {
		return fmt.Errorf("configuration error: TARGET_SCORE_THRESHOLD must be within [0,1] (got %v)", cfg.ScoreThreshold)
	}

	if cfg.GenerationTimeout <= 0 || cfg.PollInterval <= 0 {
		return fmt.Errorf("configuration error: generation timeout and poll interval must be positive")
	}

	if cfg.WorkerConcurrency < 1 {
		return fmt.Errorf("configuration error: WORKER_CONCURRENCY must be >= 1")
	}

	if cfg.RunLeaseTTL <= 0 {
		return fmt.Errorf("configuration error: RUN_LEASE_SECONDS must be positive")
	}

	switch cfg.DispatchMode {
	case DispatchModeLocal:
	case DispatchModeCloudTasks:
		if cfg.ProjectID == "" || cfg.QueueID == "" {
			return fmt.Errorf("configuration error: Cloud Tasks settings are missing")
		}
	default:
		return fmt.Errorf("configuration error: unknown DISPATCH_MODE %q", cfg.DispatchMode)
	}

	return nil
}

// ValidateGatewayConfig は Gemini ゲートウェイを使う場合に必要な設定を検証します。
func ValidateGatewayConfig(cfg *Config) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("configuration error: GEMINI_API_KEY is not set")
	}
	if cfg.GCSBucket == "" {
		return fmt.Errorf("configuration error: GCS_MEDIA_BUCKET is not set")
	}
	return nil
}

// IsSecureURL は指定された URL が HTTPS または localhost であるか判定します。
func IsSecureURL(rawURL string) bool {
	return securenet.IsSecureServiceURL(rawURL)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("Invalid number in environment, using default", "key", key, "value", v)
		return fallback
	}
	return f
}

// getEnvSeconds は秒数 (小数可) を time.Duration として読み込みます。
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		slog.Warn("Invalid seconds in environment, using default", "key", key, "value", v)
		return fallback
	}
	return time.Duration(f * float64(time.Second))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
