package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Guardrails    GuardrailsConfig
	Model         ModelConfig
	Audit         AuditConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds the credential store configuration.
// Backend selects where key records live: "memory" or "redis".
type AuthConfig struct {
	Backend          string
	RedisURL         string
	BootstrapKey     string
	BootstrapEnabled bool
}

// RateLimitConfig holds the sliding-window throttle configuration.
// Backend "redis" shares the window across instances; "memory" is per-process.
type RateLimitConfig struct {
	Backend  string
	RedisURL string
	Window   time.Duration
	Requests int
}

// GuardrailsConfig holds the request/response size and toxicity limits
type GuardrailsConfig struct {
	MaxInputChars     int
	MaxOutputChars    int
	ToxicityThreshold float64
}

// ModelConfig holds model routing and backend configuration.
// An empty Endpoint selects the built-in simulator.
type ModelConfig struct {
	Default      string
	Allowed      []string
	ForceDefault bool
	Endpoint     string
	Timeout      time.Duration
	MaxRetries   int
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	MaxEntries int
	LogPath    string // empty disables the JSONL file sink
	RedactPII  bool
}

// ArchiveConfig holds the secondary durability sink configuration
type ArchiveConfig struct {
	Enabled   bool
	DSN       string
	QueueSize int
	Workers   int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			Backend:          getEnv("AUTH_BACKEND", "memory"),
			RedisURL:         getEnv("AUTH_REDIS_URL", "redis://localhost:6379/0"),
			BootstrapKey:     getEnv("AUTH_BOOTSTRAP_KEY", ""),
			BootstrapEnabled: getEnvAsBool("AUTH_BOOTSTRAP_ENABLED", false),
		},
		RateLimit: RateLimitConfig{
			Backend:  getEnv("RATE_LIMIT_BACKEND", "memory"),
			RedisURL: getEnv("RATE_LIMIT_REDIS_URL", "redis://localhost:6379/1"),
			Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		},
		Guardrails: GuardrailsConfig{
			MaxInputChars:     getEnvAsInt("MAX_INPUT_CHARS", 1000),
			MaxOutputChars:    getEnvAsInt("MAX_OUTPUT_CHARS", 2000),
			ToxicityThreshold: getEnvAsFloat("TOXICITY_THRESHOLD", 0.7),
		},
		Model: ModelConfig{
			Default:      getEnv("MODEL_DEFAULT", "standard-v1"),
			Allowed:      getEnvAsSlice("MODEL_ALLOWED", []string{"standard-v1"}),
			ForceDefault: getEnvAsBool("MODEL_FORCE_DEFAULT", false),
			Endpoint:     getEnv("MODEL_ENDPOINT", ""),
			Timeout:      getEnvAsDuration("MODEL_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvAsInt("MODEL_MAX_RETRIES", 2),
		},
		Audit: AuditConfig{
			MaxEntries: getEnvAsInt("AUDIT_MAX_ENTRIES", 1000),
			LogPath:    getEnv("AUDIT_LOG_PATH", ""),
			RedactPII:  getEnvAsBool("AUDIT_REDACT_PII", true),
		},
		Archive: ArchiveConfig{
			Enabled:   getEnvAsBool("ARCHIVE_ENABLED", false),
			DSN:       getEnv("ARCHIVE_DATABASE_URL", ""),
			QueueSize: getEnvAsInt("ARCHIVE_QUEUE_SIZE", 256),
			Workers:   getEnvAsInt("ARCHIVE_WORKERS", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Auth.Backend != "memory" && c.Auth.Backend != "redis" {
		return fmt.Errorf("auth backend must be memory or redis, got %q", c.Auth.Backend)
	}
	if c.Auth.Backend == "redis" && c.Auth.RedisURL == "" {
		return fmt.Errorf("auth redis URL is required for the redis backend")
	}
	if c.Auth.BootstrapEnabled {
		if c.Auth.BootstrapKey == "" {
			return fmt.Errorf("bootstrap key is required when bootstrap auth is enabled")
		}
		if c.IsProduction() {
			return fmt.Errorf("bootstrap auth must not be enabled in production")
		}
	}

	if c.RateLimit.Backend != "memory" && c.RateLimit.Backend != "redis" {
		return fmt.Errorf("rate limit backend must be memory or redis, got %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("rate limit request budget must not be negative")
	}

	if c.Guardrails.MaxInputChars <= 0 {
		return fmt.Errorf("max input chars must be positive")
	}
	if c.Guardrails.MaxOutputChars <= 0 {
		return fmt.Errorf("max output chars must be positive")
	}
	if c.Guardrails.ToxicityThreshold < 0 || c.Guardrails.ToxicityThreshold > 1 {
		return fmt.Errorf("toxicity threshold must be between 0 and 1")
	}

	if c.Model.Default == "" {
		return fmt.Errorf("default model is required")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("model timeout must be positive")
	}

	if c.Audit.MaxEntries <= 0 {
		return fmt.Errorf("audit max entries must be positive")
	}

	if c.Archive.Enabled && c.Archive.DSN == "" {
		return fmt.Errorf("archive database URL is required when archiving is enabled")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
