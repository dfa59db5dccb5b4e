package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()

	if cfg.MaxRetries <= 0 {
		t.Errorf("MaxRetries should be positive, got %d", cfg.MaxRetries)
	}
	if cfg.InitialInterval <= 0 {
		t.Errorf("InitialInterval should be positive, got %v", cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		t.Error("MaxInterval should be >= InitialInterval")
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "rate limit error", err: errors.New("rate limit exceeded"), want: true},
		{name: "quota exceeded error", err: errors.New("quota exceeded for project"), want: true},
		{name: "429 status code", err: errors.New("HTTP 429: Too Many Requests"), want: true},
		{name: "500 server error", err: errors.New("HTTP 500 Internal Server Error"), want: true},
		{name: "503 unavailable", err: errors.New("503 Service Unavailable"), want: true},
		{name: "connection reset", err: errors.New("connection reset by peer"), want: true},
		{name: "temporary error", err: errors.New("temporary failure"), want: true},
		{name: "case insensitive rate limit", err: errors.New("RATE LIMIT reached"), want: true},
		{name: "timeout sentinel", err: fmt.Errorf("%w: attempt exceeded 30s", ErrTimeout), want: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "context canceled never retries", err: context.Canceled, want: false},
		{name: "wrapped cancellation never retries", err: fmt.Errorf("call: %w", context.Canceled), want: false},
		{name: "invalid API key", err: errors.New("invalid API key"), want: false},
		{name: "400 bad request", err: errors.New("HTTP 400 Bad Request"), want: false},
		{name: "401 unauthorized", err: errors.New("HTTP 401 Unauthorized"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := retryableError(tt.err)
			if got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		s       string
		substrs []string
		want    bool
	}{
		{name: "empty string", s: "", substrs: []string{"foo"}, want: false},
		{name: "empty substrs", s: "foo bar", substrs: []string{}, want: false},
		{name: "contains first substr", s: "foo bar baz", substrs: []string{"foo", "qux"}, want: true},
		{name: "contains last substr", s: "foo bar baz", substrs: []string{"qux", "baz"}, want: true},
		{name: "case insensitive match", s: "FOO BAR BAZ", substrs: []string{"foo"}, want: true},
		{name: "no match", s: "foo bar baz", substrs: []string{"qux", "quux"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := containsAny(tt.s, tt.substrs...)
			if got != tt.want {
				t.Errorf("containsAny(%q, %v) = %v, want %v", tt.s, tt.substrs, got, tt.want)
			}
		})
	}
}

func TestJitter(t *testing.T) {
	t.Parallel()

	// Jittered delays stay within +/-25% of the base and never drop below
	// the backoff floor.
	base := time.Second
	for range 100 {
		d := jitter(base)
		if d < 750*time.Millisecond || d > 1250*time.Millisecond {
			t.Fatalf("jitter(%v) = %v, outside +/-25%% band", base, d)
		}
	}

	if d := jitter(time.Millisecond); d < minBackoff {
		t.Errorf("jitter(1ms) = %v, want at least %v", d, minBackoff)
	}
}
