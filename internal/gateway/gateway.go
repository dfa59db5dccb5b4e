// Package gateway mediates every model call behind retry, timeout, and
// circuit breaker policies.
//
// All outbound traffic to the model provider flows through one Gateway, so
// the circuit breaker sees every outcome and the latency stats cover every
// call. Callers never talk to the provider directly.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/hchen2020/parley/internal/conversation"
	"github.com/hchen2020/parley/internal/log"
)

// Config configures a Gateway. Zero-value durations fall back to defaults
// in New.
type Config struct {
	// Model is the provider-qualified model name, e.g. "googleai/gemini-2.5-flash".
	Model string

	// Temperature and MaxTokens are forwarded to the provider.
	Temperature float32
	MaxTokens   int

	Retry   RetryConfig
	Breaker CircuitBreakerConfig

	// RequestTimeout bounds a non-streaming call and the wait for the first
	// stream chunk.
	RequestTimeout time.Duration

	// StreamIdleTimeout bounds the gap between consecutive stream chunks.
	StreamIdleTimeout time.Duration

	// MaxResponseTime bounds an entire streaming call.
	MaxResponseTime time.Duration

	// RequestsPerSecond throttles outbound attempts. Zero disables throttling.
	RequestsPerSecond float64
}

func (c *Config) applyDefaults() {
	if c.Retry.MaxRetries == 0 && c.Retry.InitialInterval == 0 {
		c.Retry = DefaultRetryConfig()
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.StreamIdleTimeout <= 0 {
		c.StreamIdleTimeout = 5 * time.Second
	}
	if c.MaxResponseTime <= 0 {
		c.MaxResponseTime = 45 * time.Second
	}
}

// caller performs a single model invocation. Production uses genkitCaller;
// tests substitute fakes.
type caller interface {
	generate(ctx context.Context, system string, msgs []*ai.Message) (string, error)
	generateStream(ctx context.Context, system string, msgs []*ai.Message, emit func(chunk string) error) (string, error)
}

// Gateway is the single entry point for model calls.
//
// The zero value is NOT useful - use New() to create instances.
type Gateway struct {
	caller  caller
	breaker *CircuitBreaker
	limiter *rate.Limiter
	stats   *latencyStats
	cfg     Config
	logger  log.Logger
}

// New creates a Gateway backed by a Genkit instance.
func New(g *genkit.Genkit, cfg Config, logger log.Logger) *Gateway {
	cfg.applyDefaults()

	gw := &Gateway{
		caller: &genkitCaller{
			g:           g,
			model:       cfg.Model,
			temperature: cfg.Temperature,
			maxTokens:   cfg.MaxTokens,
		},
		breaker: NewCircuitBreaker(cfg.Breaker),
		stats:   newLatencyStats(cfg.MaxResponseTime),
		cfg:     cfg,
		logger:  logger,
	}
	if cfg.RequestsPerSecond > 0 {
		gw.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return gw
}

// Generate performs a non-streaming model call with retry and returns the
// full response text. Every call consults the circuit breaker first, and
// its final outcome, after retries, feeds back into the breaker.
func (gw *Gateway) Generate(ctx context.Context, system string, msgs []conversation.Message) (string, error) {
	if err := gw.breaker.Allow(); err != nil {
		gw.logger.Warn("model call rejected", "circuit", gw.breaker.State().String())
		return "", err
	}

	modelMsgs := toModelMessages(msgs)
	start := time.Now()

	text, err := gw.withRetry(ctx, "generate", func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, gw.cfg.RequestTimeout)
		defer cancel()
		return gw.caller.generate(callCtx, system, modelMsgs)
	})
	if err != nil {
		gw.breaker.Failure()
		gw.stats.recordFailure()
		return "", err
	}

	gw.breaker.Success()
	gw.stats.recordSuccess(time.Since(start))
	return text, nil
}

// GenerateStream performs a streaming model call, forwarding each text
// chunk to emit, and returns the accumulated response text.
//
// Retries happen only while nothing has been emitted: once a fragment has
// reached the consumer, a retry would duplicate delivered text, so any
// later failure is final. An error from emit aborts the call.
func (gw *Gateway) GenerateStream(ctx context.Context, system string, msgs []conversation.Message, emit func(chunk string) error) (string, error) {
	if err := gw.breaker.Allow(); err != nil {
		gw.logger.Warn("stream rejected", "circuit", gw.breaker.State().String())
		return "", err
	}

	modelMsgs := toModelMessages(msgs)
	start := time.Now()

	var lastErr error
	delay := gw.cfg.Retry.InitialInterval

	for attempt := 0; attempt <= gw.cfg.Retry.MaxRetries; attempt++ {
		if err := gw.wait(ctx); err != nil {
			gw.breaker.Failure()
			gw.stats.recordFailure()
			return "", err
		}

		text, emitted, aborted, err := gw.streamOnce(ctx, system, modelMsgs, emit)
		if err == nil {
			gw.breaker.Success()
			gw.stats.recordSuccess(time.Since(start))
			gw.logger.Debug("stream completed",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return text, nil
		}

		// The consumer stopped or failed; the provider is not at fault, so
		// the breaker records no outcome and the stats see nothing. If this
		// call held the half-open probe slot, release it so the next caller
		// can probe.
		if aborted {
			gw.breaker.Cancel()
			return "", err
		}

		err = gw.normalizeTimeout(ctx, err)
		lastErr = err

		if emitted || !retryableError(err) || attempt == gw.cfg.Retry.MaxRetries {
			gw.breaker.Failure()
			gw.stats.recordFailure()
			return "", &ProviderError{Op: "stream", Attempts: attempt + 1, Transient: retryableError(err), Err: err}
		}

		gw.logger.Debug("retrying stream",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			gw.breaker.Failure()
			gw.stats.recordFailure()
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(jitter(delay)):
			delay = min(delay*2, gw.cfg.Retry.MaxInterval)
		}
	}

	gw.breaker.Failure()
	gw.stats.recordFailure()
	return "", &ProviderError{Op: "stream", Attempts: gw.cfg.Retry.MaxRetries + 1, Transient: true, Err: lastErr}
}

// streamOnce runs a single streaming attempt under the total response
// budget plus an idle watchdog between chunks. The watchdog starts at the
// request timeout (time to first chunk) and tightens to the idle timeout
// once chunks are flowing. aborted reports that the error came from the
// emit callback rather than the provider.
func (gw *Gateway) streamOnce(ctx context.Context, system string, msgs []*ai.Message, emit func(string) error) (text string, emittedAny, aborted bool, err error) {
	callCtx, cancel := context.WithTimeout(ctx, gw.cfg.MaxResponseTime)
	defer cancel()

	watchCtx, cancelWatch := context.WithCancelCause(callCtx)
	defer cancelWatch(nil)

	watchdog := time.AfterFunc(gw.cfg.RequestTimeout, func() {
		cancelWatch(ErrTimeout)
	})
	defer watchdog.Stop()

	var emitted atomic.Bool
	var emitErr error
	text, err = gw.caller.generateStream(watchCtx, system, msgs, func(chunk string) error {
		watchdog.Reset(gw.cfg.StreamIdleTimeout)
		if chunk == "" {
			return nil
		}
		emitted.Store(true)
		if err := emit(chunk); err != nil {
			emitErr = err
			return err
		}
		return nil
	})
	if err != nil {
		if emitErr != nil {
			return "", emitted.Load(), true, emitErr
		}
		if cause := context.Cause(watchCtx); cause != nil && errors.Is(cause, ErrTimeout) {
			err = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", emitted.Load(), false, err
	}
	return text, emitted.Load(), false, nil
}

// withRetry executes call with exponential backoff retry.
// Rate limits each attempt, including the first.
func (gw *Gateway) withRetry(ctx context.Context, op string, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	delay := gw.cfg.Retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= gw.cfg.Retry.MaxRetries; attempt++ {
		if err := gw.wait(ctx); err != nil {
			return "", err
		}

		text, err := call(ctx)
		if err == nil {
			gw.logger.Debug("model call succeeded",
				"op", op,
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return text, nil
		}

		err = gw.normalizeTimeout(ctx, err)
		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableError(err) {
			return "", &ProviderError{Op: op, Attempts: attempt + 1, Transient: false, Err: err}
		}

		// Last attempt - don't sleep
		if attempt == gw.cfg.Retry.MaxRetries {
			break
		}

		gw.logger.Debug("retrying model call",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"elapsed", time.Since(start),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(jitter(delay)):
			delay = min(delay*2, gw.cfg.Retry.MaxInterval)
		}
	}

	return "", &ProviderError{Op: op, Attempts: gw.cfg.Retry.MaxRetries + 1, Transient: true, Err: lastErr}
}

func (gw *Gateway) wait(ctx context.Context) error {
	if gw.limiter == nil {
		return nil
	}
	if err := gw.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// normalizeTimeout maps a per-attempt deadline hit to ErrTimeout. A dead
// parent context means the caller gave up; that is not a timeout.
func (gw *Gateway) normalizeTimeout(parent context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// Health is a point-in-time view of the gateway's resilience state.
type Health struct {
	CircuitState string `json:"circuit_state"`
	Failures     int    `json:"consecutive_failures"`
	Stats        Stats  `json:"stats"`
}

// Health reports the circuit state and latency statistics.
func (gw *Gateway) Health() Health {
	return Health{
		CircuitState: gw.breaker.State().String(),
		Failures:     gw.breaker.Failures(),
		Stats:        gw.stats.snapshot(),
	}
}

// toModelMessages converts stored conversation messages to model messages.
// The system prompt travels separately via ai.WithSystem, so only user and
// assistant turns appear here.
func toModelMessages(msgs []conversation.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	return out
}

// genkitCaller invokes the model through Genkit.
type genkitCaller struct {
	g           *genkit.Genkit
	model       string
	temperature float32
	maxTokens   int
}

func (c *genkitCaller) options(system string, msgs []*ai.Message) []ai.GenerateOption {
	opts := []ai.GenerateOption{
		ai.WithModelName(c.model),
		ai.WithMessages(msgs...),
		ai.WithConfig(map[string]any{
			"temperature":     c.temperature,
			"maxOutputTokens": c.maxTokens,
		}),
	}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}
	return opts
}

func (c *genkitCaller) generate(ctx context.Context, system string, msgs []*ai.Message) (string, error) {
	resp, err := genkit.Generate(ctx, c.g, c.options(system, msgs)...)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (c *genkitCaller) generateStream(ctx context.Context, system string, msgs []*ai.Message, emit func(string) error) (string, error) {
	opts := append(c.options(system, msgs),
		ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return emit(chunk.Text())
		}),
	)
	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
