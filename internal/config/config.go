package config

import (
	"log/slog"
	"time"
)

const (
	// SignedURLExpiration は API レスポンスに含めるメディア URL の有効期限です。
	SignedURLExpiration = 15 * time.Minute

	DefaultImageModel    = "imagen-3.0-generate-002"
	DefaultVideoModel    = "veo-2.0-generate-001"
	DefaultCritiqueModel = "gemini-2.0-flash"

	DefaultMaxIterations     = 3
	DefaultScoreThreshold    = 0.8
	DefaultGenerationTimeout = 120 * time.Second
	// DefaultPollInterval は生成完了待ちのポーリング間隔です。
	DefaultPollInterval = 3 * time.Second
	// DefaultRateLimit はモデル呼び出し同士の最小間隔です。
	DefaultRateLimit         = 5 * time.Second
	DefaultHTTPTimeout       = 60 * time.Second
	DefaultWorkerConcurrency = 8
	DefaultShutdownTimeout   = 15 * time.Second

	// DefaultRunLeaseTTL はランの実行リースの有効期間です。保持者は TTL の 1/3 ごとに延長します。
	DefaultRunLeaseTTL = time.Minute

	DispatchModeLocal      = "local"
	DispatchModeCloudTasks = "cloudtasks"
)

// Config は環境変数から読み込まれたアプリケーションの全設定を保持します。
type Config struct {
	ServiceURL      string
	Port            string
	LogLevel        slog.Level
	DatabasePath    string
	ShutdownTimeout time.Duration

	// Workflow
	MaxIterations     int
	ScoreThreshold    float64
	GenerationTimeout time.Duration
	PollInterval      time.Duration
	WorkerConcurrency int
	RunLeaseTTL       time.Duration

	// Dispatch
	DispatchMode        string
	ProjectID           string
	LocationID          string
	QueueID             string
	TaskAudienceURL     string // OIDC トークンの検証に使用する Audience URL
	ServiceAccountEmail string

	// Storage
	GCSBucket           string // 生成メディアを保存するバケット
	BaseOutputDir       string // GCS内のベースルート (例: "output")
	SignedURLExpiration time.Duration

	// Models
	GeminiAPIKey  string
	ImageModel    string
	VideoModel    string
	CritiqueModel string
	RateInterval  time.Duration

	SlackWebhookURL string
}

// LoadConfig は環境変数から設定を読み込み、Config 構造体を生成します。
func LoadConfig() *Config {
	serviceURL := getEnv("SERVICE_URL", "http://localhost:8080")

	return &Config{
		ServiceURL:      serviceURL,
		Port:            getEnv("PORT", "8080"),
		LogLevel:        parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DatabasePath:    getEnv("DATABASE_PATH", "adforge.db"),
		ShutdownTimeout: getEnvSeconds("SHUTDOWN_TIMEOUT_SECONDS", DefaultShutdownTimeout),

		MaxIterations:     getEnvInt("MAX_WORKFLOW_ITERATIONS", DefaultMaxIterations),
		ScoreThreshold:    getEnvFloat("TARGET_SCORE_THRESHOLD", DefaultScoreThreshold),
		GenerationTimeout: getEnvSeconds("GENERATION_TIMEOUT_SECONDS", DefaultGenerationTimeout),
		PollInterval:      getEnvSeconds("GENERATION_POLL_INTERVAL_SECONDS", DefaultPollInterval),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", DefaultWorkerConcurrency),
		RunLeaseTTL:       getEnvSeconds("RUN_LEASE_SECONDS", DefaultRunLeaseTTL),

		DispatchMode:        getEnv("DISPATCH_MODE", DispatchModeLocal),
		ProjectID:           getEnv("GCP_PROJECT_ID", "your-gcp-project"),
		LocationID:          getEnv("GCP_LOCATION_ID", "asia-northeast1"),
		QueueID:             getEnv("CLOUD_TASKS_QUEUE_ID", "adforge-queue"),
		TaskAudienceURL:     getEnv("TASK_AUDIENCE_URL", serviceURL),
		ServiceAccountEmail: getEnv("SERVICE_ACCOUNT_EMAIL", ""),

		GCSBucket:           getEnv("GCS_MEDIA_BUCKET", ""),
		BaseOutputDir:       getEnv("BASE_OUTPUT_DIR", "output"),
		SignedURLExpiration: SignedURLExpiration,

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		ImageModel:    getEnv("IMAGE_MODEL", DefaultImageModel),
		VideoModel:    getEnv("VIDEO_MODEL", DefaultVideoModel),
		CritiqueModel: getEnv("CRITIQUE_MODEL", DefaultCritiqueModel),
		RateInterval:  getEnvSeconds("MODEL_RATE_INTERVAL_SECONDS", DefaultRateLimit),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
	}
}
