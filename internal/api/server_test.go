package api

import (
	"net/http"
	"testing"

	"github.com/hchen2020/parley/internal/conversation"
	"github.com/hchen2020/parley/internal/gateway"
	"github.com/hchen2020/parley/internal/log"
	"github.com/hchen2020/parley/internal/prompt"
	"github.com/hchen2020/parley/internal/thread"
	"github.com/hchen2020/parley/internal/turn"
)

func TestNewServer_MissingDependencies(t *testing.T) {
	t.Parallel()

	logger := log.NewNop()
	store := conversation.NewStore()
	threads := thread.NewRegistry()
	prompts := prompt.NewRegistry()
	gw := gateway.New(nil, gateway.Config{Model: "test/model"}, logger)
	exec, err := turn.New(turn.Config{
		Store:     store,
		Threads:   threads,
		Prompts:   prompts,
		Generator: &fakeGenerator{},
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("turn.New() error = %v", err)
	}

	valid := func() ServerConfig {
		return ServerConfig{
			Logger:   logger,
			Executor: exec,
			Gateway:  gw,
			Store:    store,
			Threads:  threads,
			Prompts:  prompts,
		}
	}

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"nil executor", func(c *ServerConfig) { c.Executor = nil }},
		{"nil gateway", func(c *ServerConfig) { c.Gateway = nil }},
		{"nil store", func(c *ServerConfig) { c.Store = nil }},
		{"nil threads", func(c *ServerConfig) { c.Threads = nil }},
		{"nil prompts", func(c *ServerConfig) { c.Prompts = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(&cfg)
			if _, err := NewServer(cfg); err == nil {
				t.Error("NewServer() error = nil, want error")
			}
		})
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeGenerator{text: "ok"})

	if rec := env.do(http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeGenerator{text: "ok"})

	if rec := env.do(http.MethodGet, "/chat", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestServer_NilLoggerDefaults(t *testing.T) {
	t.Parallel()

	store := conversation.NewStore()
	threads := thread.NewRegistry()
	prompts := prompt.NewRegistry()
	exec, err := turn.New(turn.Config{
		Store:     store,
		Threads:   threads,
		Prompts:   prompts,
		Generator: &fakeGenerator{text: "ok"},
		Logger:    log.NewNop(),
	})
	if err != nil {
		t.Fatalf("turn.New() error = %v", err)
	}

	if _, err := NewServer(ServerConfig{
		Executor: exec,
		Gateway:  gateway.New(nil, gateway.Config{Model: "test/model"}, log.NewNop()),
		Store:    store,
		Threads:  threads,
		Prompts:  prompts,
	}); err != nil {
		t.Errorf("NewServer() with nil logger error = %v", err)
	}
}
