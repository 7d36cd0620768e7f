package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from environment variables.
type Config struct {
	// Mode selects the runtime mode: "api" (serves the optional RPC shim plus
	// the scheduler), "worker" (scheduler only), or "cli" (one-shot command).
	Mode string `env:"AETERNA_MODE" envDefault:"api"`

	// Server (optional RPC shim)
	Host string `env:"AETERNA_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"AETERNA_PORT" envDefault:"8080"`

	// Embedded store
	StorePath string `env:"AETERNA_STORE_PATH" envDefault:"aeterna.db"`

	// Redis backs the distributed lock & job-dedup service (C3). It is a
	// genuine external coordination point — unlike the embedded graph store,
	// locking across scheduler instances cannot be done in-process.
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Telemetry
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	// Migrations
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	// CORS (RPC shim only)
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Deployment mode gates which scheduler jobs run locally (spec.md §4.4):
	// "local", "hybrid", or "remote".
	DeploymentMode string `env:"AETERNA_DEPLOYMENT_MODE" envDefault:"local"`

	// Scheduler tick intervals.
	QuickScanInterval    time.Duration `env:"AETERNA_QUICK_SCAN_INTERVAL" envDefault:"5m"`
	SemanticScanInterval time.Duration `env:"AETERNA_SEMANTIC_SCAN_INTERVAL" envDefault:"24h"`
	ReportInterval       time.Duration `env:"AETERNA_REPORT_INTERVAL" envDefault:"168h"`
	DLQInterval          time.Duration `env:"AETERNA_DLQ_INTERVAL" envDefault:"5m"`

	// Job coordination defaults (spec.md §4.3/§4.4).
	LockTTLSeconds             int `env:"AETERNA_LOCK_TTL_SECONDS" envDefault:"120"`
	JobTimeoutSeconds          int `env:"AETERNA_JOB_TIMEOUT_SECONDS" envDefault:"600"`
	DeduplicationWindowSeconds int `env:"AETERNA_DEDUP_WINDOW_SECONDS" envDefault:"3600"`

	// Optional Anthropic-backed semantic drift analysis (pkg/llmhook). When
	// empty, semantic_analysis jobs run against llmhook.NoopHook, which
	// reports every project as valid.
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the RPC shim should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
