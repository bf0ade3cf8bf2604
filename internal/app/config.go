package app

import (
	"time"

	"github.com/ckguru/orchestrator/internal/platform/logger"
	"github.com/ckguru/orchestrator/internal/utils"
)

// Config centralises every env-driven setting into one struct loaded
// once at startup.
type Config struct {
	// RunServer/RunWorker are read from RUN_SERVER/RUN_WORKER; New builds
	// the Temporal worker runner only when RunWorker is true. cmd/main.go
	// reads the same env vars itself to decide what to start.
	RunServer bool
	RunWorker bool

	HTTPPort int

	// WorkerConcurrency bounds how many Job Handlers this process runs
	// concurrently.
	WorkerConcurrency int

	// RedisAddr backs the cancelbus secondary cancellation signal;
	// required whenever RunWorker is true.
	RedisAddr          string
	RedisCancelChannel string

	// CommitAnalysisBaseURL/Timeout configure the HTTP client the
	// commit_ingestion Handler uses to reach the source-analysis
	// service (internal/jobs/commitanalysis.HTTPAnalyzer).
	CommitAnalysisBaseURL string
	CommitAnalysisTimeout time.Duration

	// WorkerOwnerID identifies this worker instance to the Capability
	// Registry Sync protocol's mark-down-unless-still-advertised rule.
	WorkerOwnerID string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		RunServer: utils.GetEnvAsBool("RUN_SERVER", true, log),
		RunWorker: utils.GetEnvAsBool("RUN_WORKER", true, log),

		HTTPPort: utils.GetEnvAsInt("HTTP_PORT", 8080, log),

		WorkerConcurrency: utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, log),

		RedisAddr:          utils.GetEnv("REDIS_ADDR", "", log),
		RedisCancelChannel: utils.GetEnv("REDIS_CANCEL_CHANNEL", "job_cancellations", log),

		CommitAnalysisBaseURL: utils.GetEnv("COMMIT_ANALYSIS_BASE_URL", "http://localhost:9100", log),
		CommitAnalysisTimeout: time.Duration(utils.GetEnvAsInt("COMMIT_ANALYSIS_TIMEOUT_SECONDS", 25, log)) * time.Second,

		WorkerOwnerID: utils.GetEnv("WORKER_OWNER_ID", "orchestrator-worker", log),
	}
}
