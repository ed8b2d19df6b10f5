package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "memory", cfg.Auth.Backend)
				assert.False(t, cfg.Auth.BootstrapEnabled)
				assert.Equal(t, time.Minute, cfg.RateLimit.Window)
				assert.Equal(t, 100, cfg.RateLimit.Requests)
				assert.Equal(t, 1000, cfg.Guardrails.MaxInputChars)
				assert.Equal(t, 2000, cfg.Guardrails.MaxOutputChars)
				assert.Equal(t, 0.7, cfg.Guardrails.ToxicityThreshold)
				assert.Equal(t, "standard-v1", cfg.Model.Default)
				assert.Equal(t, 5*time.Second, cfg.Model.Timeout)
				assert.Equal(t, 1000, cfg.Audit.MaxEntries)
				assert.True(t, cfg.Audit.RedactPII)
				assert.False(t, cfg.Archive.Enabled)
			},
		},
		{
			name: "redis backends",
			envVars: map[string]string{
				"ENVIRONMENT":          "development",
				"AUTH_BACKEND":         "redis",
				"AUTH_REDIS_URL":       "redis://cache:6379/0",
				"RATE_LIMIT_BACKEND":   "redis",
				"RATE_LIMIT_REDIS_URL": "redis://cache:6379/1",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "redis", cfg.Auth.Backend)
				assert.Equal(t, "redis://cache:6379/0", cfg.Auth.RedisURL)
				assert.Equal(t, "redis", cfg.RateLimit.Backend)
			},
		},
		{
			name: "model allow list parsed from csv",
			envVars: map[string]string{
				"ENVIRONMENT":   "development",
				"MODEL_DEFAULT": "standard-v1",
				"MODEL_ALLOWED": "standard-v1, compact-v1 ,large-v2",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"standard-v1", "compact-v1", "large-v2"}, cfg.Model.Allowed)
			},
		},
		{
			name: "custom timeouts",
			envVars: map[string]string{
				"SERVER_READ_TIMEOUT":  "60s",
				"SERVER_WRITE_TIMEOUT": "90s",
				"MODEL_TIMEOUT":        "2s",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 2*time.Second, cfg.Model.Timeout)
			},
		},
		{
			name: "observability configuration",
			envVars: map[string]string{
				"LOG_LEVEL":       "debug",
				"LOG_FORMAT":      "text",
				"METRICS_ENABLED": "false",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Observability.LogLevel)
				assert.Equal(t, "text", cfg.Observability.LogFormat)
				assert.False(t, cfg.Observability.MetricsEnabled)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT default",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
				"PORT":        "9443",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "SERVER_PORT env var when PORT not set",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
				"SERVER_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
			},
		},
		{
			name: "bootstrap enabled without a key",
			envVars: map[string]string{
				"ENVIRONMENT":            "development",
				"AUTH_BOOTSTRAP_ENABLED": "true",
			},
			wantErr: true,
		},
		{
			name: "bootstrap enabled in production",
			envVars: map[string]string{
				"ENVIRONMENT":            "production",
				"AUTH_BOOTSTRAP_ENABLED": "true",
				"AUTH_BOOTSTRAP_KEY":     "dev-key",
			},
			wantErr: true,
		},
		{
			name: "archive enabled without DSN",
			envVars: map[string]string{
				"ENVIRONMENT":     "development",
				"ARCHIVE_ENABLED": "true",
			},
			wantErr: true,
		},
		{
			name: "unknown auth backend",
			envVars: map[string]string{
				"ENVIRONMENT":  "development",
				"AUTH_BACKEND": "dynamo",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			// Create config
			cfg, err := New()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment: "development",
			Auth:        AuthConfig{Backend: "memory"},
			RateLimit:   RateLimitConfig{Backend: "memory", Window: time.Minute, Requests: 100},
			Guardrails:  GuardrailsConfig{MaxInputChars: 1000, MaxOutputChars: 2000, ToxicityThreshold: 0.7},
			Model:       ModelConfig{Default: "standard-v1", Timeout: 5 * time.Second},
			Audit:       AuditConfig{MaxEntries: 1000},
			Observability: ObservabilityConfig{
				LogLevel: "info",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid development config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "non-positive rate limit window",
			mutate:  func(c *Config) { c.RateLimit.Window = 0 },
			wantErr: true,
			errMsg:  "rate limit window",
		},
		{
			name:    "negative request budget",
			mutate:  func(c *Config) { c.RateLimit.Requests = -1 },
			wantErr: true,
			errMsg:  "request budget",
		},
		{
			name:    "zero request budget is allowed",
			mutate:  func(c *Config) { c.RateLimit.Requests = 0 },
			wantErr: false,
		},
		{
			name:    "non-positive max input chars",
			mutate:  func(c *Config) { c.Guardrails.MaxInputChars = 0 },
			wantErr: true,
			errMsg:  "max input chars",
		},
		{
			name:    "toxicity threshold out of range",
			mutate:  func(c *Config) { c.Guardrails.ToxicityThreshold = 1.5 },
			wantErr: true,
			errMsg:  "toxicity threshold",
		},
		{
			name:    "missing default model",
			mutate:  func(c *Config) { c.Model.Default = "" },
			wantErr: true,
			errMsg:  "default model",
		},
		{
			name:    "non-positive audit capacity",
			mutate:  func(c *Config) { c.Audit.MaxEntries = 0 },
			wantErr: true,
			errMsg:  "audit max entries",
		},
		{
			name: "bootstrap in production",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.Auth.BootstrapEnabled = true
				c.Auth.BootstrapKey = "dev-key"
			},
			wantErr: true,
			errMsg:  "production",
		},
		{
			name:    "missing log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "" },
			wantErr: true,
			errMsg:  "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"dev", "dev", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "0.0.0.0",
		Port: 8080,
	}

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue int
		want         int
	}{
		{"valid int", "TEST_INT", "42", 10, 42},
		{"empty value", "TEST_INT", "", 10, 10},
		{"invalid int", "TEST_INT", "not-a-number", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsInt(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "TEST_BOOL", "true", false, true},
		{"false", "TEST_BOOL", "false", true, false},
		{"empty value", "TEST_BOOL", "", true, true},
		{"invalid bool", "TEST_BOOL", "not-a-bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsBool(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"valid duration", "TEST_DURATION", "30s", 10 * time.Second, 30 * time.Second},
		{"empty value", "TEST_DURATION", "", 10 * time.Second, 10 * time.Second},
		{"invalid duration", "TEST_DURATION", "not-a-duration", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsDuration(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue []string
		want         []string
	}{
		{"csv", "a,b,c", []string{"x"}, []string{"a", "b", "c"}},
		{"whitespace trimmed", " a , b ", []string{"x"}, []string{"a", "b"}},
		{"empty value", "", []string{"x"}, []string{"x"}},
		{"only separators", ",,", []string{"x"}, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv("TEST_SLICE", tt.value)
			}
			got := getEnvAsSlice("TEST_SLICE", tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}
