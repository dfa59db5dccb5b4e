package config

import (
	"fmt"
	"strings"
)

// Validation bounds.
const (
	minTemperature = 0.0
	maxTemperature = 2.0

	minMaxTokens = 1
	maxMaxTokens = 1 << 20

	maxRetryAttempts = 10
)

// Validate checks the configuration for out-of-range values.
// Returns the first error found, wrapped around a sentinel for errors.Is.
func (c *Config) Validate() error {
	if err := c.validateAI(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateBreaker(); err != nil {
		return err
	}
	return c.validateLatency()
}

func (c *Config) validateAI() error {
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI, ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (supported: gemini, googleai, ollama, openai)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}

	if c.Temperature < minTemperature || c.Temperature > maxTemperature {
		return fmt.Errorf("%w: %v (must be %v-%v)", ErrInvalidTemperature, c.Temperature, minTemperature, maxTemperature)
	}

	if c.MaxTokens < minMaxTokens || c.MaxTokens > maxMaxTokens {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidMaxTokens, c.MaxTokens, minMaxTokens, maxMaxTokens)
	}

	if c.ModelRPS < 0 {
		return fmt.Errorf("%w: %v (must not be negative)", ErrInvalidModelRPS, c.ModelRPS)
	}

	if c.Provider == ProviderOllama && !strings.HasPrefix(c.OllamaHost, "http://") && !strings.HasPrefix(c.OllamaHost, "https://") {
		return fmt.Errorf("%w: %q (must start with http:// or https://)", ErrInvalidOllamaHost, c.OllamaHost)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPort, c.Port)
	}
	return nil
}

func (c *Config) validateRetry() error {
	r := c.Retry
	if r.MaxRetries < 0 || r.MaxRetries > maxRetryAttempts {
		return fmt.Errorf("%w: max_retries %d (must be 0-%d)", ErrInvalidRetry, r.MaxRetries, maxRetryAttempts)
	}
	if r.InitialInterval <= 0 {
		return fmt.Errorf("%w: initial_interval %v (must be positive)", ErrInvalidRetry, r.InitialInterval)
	}
	if r.MaxInterval < r.InitialInterval {
		return fmt.Errorf("%w: max_interval %v is below initial_interval %v", ErrInvalidRetry, r.MaxInterval, r.InitialInterval)
	}
	return nil
}

func (c *Config) validateBreaker() error {
	b := c.Breaker
	if b.FailureThreshold < 1 {
		return fmt.Errorf("%w: failure_threshold %d (must be at least 1)", ErrInvalidBreaker, b.FailureThreshold)
	}
	if b.RecoveryTimeout <= 0 {
		return fmt.Errorf("%w: recovery_timeout %v (must be positive)", ErrInvalidBreaker, b.RecoveryTimeout)
	}
	return nil
}

func (c *Config) validateLatency() error {
	l := c.Latency
	if l.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout %v (must be positive)", ErrInvalidLatency, l.RequestTimeout)
	}
	if l.StreamIdleTimeout <= 0 {
		return fmt.Errorf("%w: stream_idle_timeout %v (must be positive)", ErrInvalidLatency, l.StreamIdleTimeout)
	}
	if l.MaxResponseTime < l.RequestTimeout {
		return fmt.Errorf("%w: max_response_time %v is below request_timeout %v", ErrInvalidLatency, l.MaxResponseTime, l.RequestTimeout)
	}
	return nil
}
