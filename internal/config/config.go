// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.parley/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model selection, temperature, max tokens
//   - Server: listen address, CORS origins
//   - Retry: attempt budget and backoff window for model calls
//   - Breaker: circuit breaker failure threshold and recovery timeout
//   - Latency: per-request and per-chunk timeout budgets
//   - Observability: optional OTLP trace export
//
// Validation: range checks in validation.go, fail-fast at load time.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidPort indicates the server port is out of range.
	ErrInvalidPort = errors.New("invalid server port")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidModelRPS indicates the outbound request rate is negative.
	ErrInvalidModelRPS = errors.New("invalid model requests per second")

	// ErrInvalidRetry indicates a retry parameter is out of range.
	ErrInvalidRetry = errors.New("invalid retry configuration")

	// ErrInvalidBreaker indicates a circuit breaker parameter is out of range.
	ErrInvalidBreaker = errors.New("invalid breaker configuration")

	// ErrInvalidLatency indicates a latency budget is out of range.
	ErrInvalidLatency = errors.New("invalid latency configuration")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// RetryConfig bounds the retry loop around model calls.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first failure.
	MaxRetries int `mapstructure:"max_retries" json:"max_retries"`

	// InitialInterval is the backoff delay before the first retry.
	InitialInterval time.Duration `mapstructure:"initial_interval" json:"initial_interval"`

	// MaxInterval caps the exponential backoff delay.
	MaxInterval time.Duration `mapstructure:"max_interval" json:"max_interval"`
}

// BreakerConfig tunes the circuit breaker guarding the model provider.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count that opens the circuit.
	FailureThreshold int `mapstructure:"failure_threshold" json:"failure_threshold"`

	// RecoveryTimeout is how long an open circuit waits before allowing a probe.
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout" json:"recovery_timeout"`
}

// LatencyConfig sets the timeout budgets for model calls.
type LatencyConfig struct {
	// RequestTimeout bounds a single non-streaming model call.
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`

	// StreamIdleTimeout bounds the gap between consecutive stream chunks.
	StreamIdleTimeout time.Duration `mapstructure:"stream_idle_timeout" json:"stream_idle_timeout"`

	// MaxResponseTime bounds an entire turn, streaming included.
	MaxResponseTime time.Duration `mapstructure:"max_response_time" json:"max_response_time"`
}

// ObservabilityConfig controls optional OTLP trace export.
type ObservabilityConfig struct {
	// Endpoint is the OTLP/HTTP collector address ("host:port"). Empty disables export.
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "llama3.3", "gpt-4o"
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// ModelRPS throttles outbound model attempts per second. Zero disables
	// throttling.
	ModelRPS float64 `mapstructure:"model_rps" json:"model_rps"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Server configuration
	Host        string   `mapstructure:"host" json:"host"`
	Port        int      `mapstructure:"port" json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Conversation history cap per turn, in messages loaded as model context
	MaxHistoryMessages int `mapstructure:"max_history_messages" json:"max_history_messages"`

	// Resilience configuration
	Retry   RetryConfig   `mapstructure:"retry" json:"retry"`
	Breaker BreakerConfig `mapstructure:"breaker" json:"breaker"`
	Latency LatencyConfig `mapstructure:"latency" json:"latency"`

	// Observability configuration
	Observability ObservabilityConfig `mapstructure:"observability" json:"observability"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".parley")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Fail-fast: a bad config never reaches the server loop.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("model_rps", 0.0)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Server defaults
	viper.SetDefault("host", "0.0.0.0")
	viper.SetDefault("port", 8000)
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})

	// History defaults
	viper.SetDefault("max_history_messages", 100)

	// Retry defaults
	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.initial_interval", "500ms")
	viper.SetDefault("retry.max_interval", "10s")

	// Breaker defaults
	viper.SetDefault("breaker.failure_threshold", 5)
	viper.SetDefault("breaker.recovery_timeout", "60s")

	// Latency defaults
	viper.SetDefault("latency.request_timeout", "30s")
	viper.SetDefault("latency.stream_idle_timeout", "5s")
	viper.SetDefault("latency.max_response_time", "45s")

	// Observability defaults (export disabled until an endpoint is set)
	viper.SetDefault("observability.endpoint", "")
	viper.SetDefault("observability.service_name", "parley")
	viper.SetDefault("observability.environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
//
// NOTE: GEMINI_API_KEY and OPENAI_API_KEY are read directly by the Genkit
// plugins, not via Viper.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "PARLEY_PROVIDER")
	mustBind("model_name", "PARLEY_MODEL_NAME")
	mustBind("ollama_host", "PARLEY_OLLAMA_HOST")
	mustBind("model_rps", "PARLEY_MODEL_RPS")

	mustBind("host", "PARLEY_HOST")
	mustBind("port", "PARLEY_PORT")
	mustBind("cors_origins", "PARLEY_CORS_ORIGINS")

	mustBind("retry.max_retries", "PARLEY_MAX_RETRIES")
	mustBind("breaker.failure_threshold", "PARLEY_BREAKER_THRESHOLD")
	mustBind("breaker.recovery_timeout", "PARLEY_BREAKER_RECOVERY")
	mustBind("latency.request_timeout", "PARLEY_REQUEST_TIMEOUT")

	mustBind("observability.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	mustBind("observability.environment", "PARLEY_ENVIRONMENT")
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// Addr returns the server listen address ("host:port").
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String renders the configuration as JSON for startup logging.
func (c Config) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
