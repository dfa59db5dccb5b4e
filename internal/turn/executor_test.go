package turn

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hchen2020/parley/internal/conversation"
	"github.com/hchen2020/parley/internal/log"
	"github.com/hchen2020/parley/internal/prompt"
	"github.com/hchen2020/parley/internal/thread"
)

// fakeGenerator scripts model responses for a single test.
type fakeGenerator struct {
	text       string
	err        error
	chunks     []string
	lastSystem string
	lastMsgs   []conversation.Message
}

func (f *fakeGenerator) Generate(_ context.Context, system string, msgs []conversation.Message) (string, error) {
	f.lastSystem = system
	f.lastMsgs = msgs
	return f.text, f.err
}

func (f *fakeGenerator) GenerateStream(_ context.Context, system string, msgs []conversation.Message, emit func(string) error) (string, error) {
	f.lastSystem = system
	f.lastMsgs = msgs
	for _, c := range f.chunks {
		if err := emit(c); err != nil {
			return "", err
		}
	}
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return strings.Join(f.chunks, ""), nil
}

func newTestExecutor(t *testing.T, gen Generator, maxHistory int) (*Executor, *conversation.Store) {
	t.Helper()

	store := conversation.NewStore()
	exec, err := New(Config{
		Store:              store,
		Threads:            thread.NewRegistry(),
		Prompts:            prompt.NewRegistry(),
		Generator:          gen,
		Logger:             log.NewNop(),
		MaxHistoryMessages: maxHistory,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return exec, store
}

func TestNew_MissingDependencies(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Store:     conversation.NewStore(),
			Threads:   thread.NewRegistry(),
			Prompts:   prompt.NewRegistry(),
			Generator: &fakeGenerator{},
			Logger:    log.NewNop(),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil store", func(c *Config) { c.Store = nil }},
		{"nil threads", func(c *Config) { c.Threads = nil }},
		{"nil prompts", func(c *Config) { c.Prompts = nil }},
		{"nil generator", func(c *Config) { c.Generator = nil }},
		{"nil logger", func(c *Config) { c.Logger = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{text: "Hello! How can I help?"}
	exec, store := newTestExecutor(t, gen, 0)

	res, err := exec.Execute(context.Background(), Request{Message: "Hi there", UserID: "alice"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Response != "Hello! How can I help?" {
		t.Errorf("Response = %q", res.Response)
	}
	if res.ThreadID == "" {
		t.Error("ThreadID is empty, want minted thread")
	}
	if res.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", res.UserID)
	}

	history, ok := store.History(res.ThreadID)
	if !ok {
		t.Fatal("History() thread not found after commit")
	}
	if len(history) != 2 {
		t.Fatalf("History() len = %d, want 2", len(history))
	}
	if history[0].Role != conversation.RoleUser || history[0].Content != "Hi there" {
		t.Errorf("history[0] = %+v, want user message", history[0])
	}
	if history[1].Role != conversation.RoleAssistant || history[1].Content != res.Response {
		t.Errorf("history[1] = %+v, want assistant message", history[1])
	}
	if history[0].Sequence != 0 || history[1].Sequence != 1 {
		t.Errorf("sequences = %d,%d, want 0,1", history[0].Sequence, history[1].Sequence)
	}
	if got := store.UserID(res.ThreadID); got != "alice" {
		t.Errorf("UserID() = %q, want alice", got)
	}
}

func TestExecutor_Execute_FailureCommitsNothing(t *testing.T) {
	t.Parallel()

	genErr := errors.New("provider down")
	gen := &fakeGenerator{err: genErr}
	exec, store := newTestExecutor(t, gen, 0)

	_, err := exec.Execute(context.Background(), Request{Message: "Hi"})
	if !errors.Is(err, genErr) {
		t.Fatalf("Execute() error = %v, want provider error", err)
	}
	if store.ThreadCount() != 1 {
		t.Fatalf("ThreadCount() = %d, want 1 (thread exists, empty)", store.ThreadCount())
	}
}

func TestExecutor_Execute_FailedTurnLeavesThreadEmpty(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: errors.New("boom")}
	exec, store := newTestExecutor(t, gen, 0)

	tid, err := exec.threads.Ensure("")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if _, err := exec.Execute(context.Background(), Request{Message: "Hi", ThreadID: tid}); err == nil {
		t.Fatal("Execute() error = nil, want error")
	}
	if n := store.Count(tid); n != 0 {
		t.Errorf("Count() = %d, want 0 after failed turn", n)
	}
}

func TestExecutor_Execute_EmptyResponseFallsBack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "  \n\t "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := &fakeGenerator{text: tt.text}
			exec, store := newTestExecutor(t, gen, 0)

			res, err := exec.Execute(context.Background(), Request{Message: "Hi"})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if res.Response != fallbackResponse {
				t.Errorf("Response = %q, want fallback", res.Response)
			}

			history, _ := store.History(res.ThreadID)
			if len(history) != 2 || history[1].Content != fallbackResponse {
				t.Errorf("history = %+v, want committed fallback", history)
			}
		})
	}
}

func TestExecutor_Execute_EmptyMessage(t *testing.T) {
	t.Parallel()

	exec, _ := newTestExecutor(t, &fakeGenerator{text: "ok"}, 0)

	for _, msg := range []string{"", "   ", "\n\t"} {
		if _, err := exec.Execute(context.Background(), Request{Message: msg}); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Execute(%q) error = %v, want ErrEmptyMessage", msg, err)
		}
	}
}

func TestExecutor_Execute_InvalidThreadID(t *testing.T) {
	t.Parallel()

	exec, _ := newTestExecutor(t, &fakeGenerator{text: "ok"}, 0)

	_, err := exec.Execute(context.Background(), Request{Message: "Hi", ThreadID: "not-a-uuid"})
	if !errors.Is(err, thread.ErrInvalidID) {
		t.Errorf("Execute() error = %v, want ErrInvalidID", err)
	}
}

func TestExecutor_Execute_PromptSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		promptType string
		wantSame   string
	}{
		{"explicit technical", prompt.TypeTechnical, prompt.TypeTechnical},
		{"empty falls back to default", "", prompt.TypeDefault},
		{"unknown falls back to default", "nonsense", prompt.TypeDefault},
	}

	reg := prompt.NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := &fakeGenerator{text: "ok"}
			exec, _ := newTestExecutor(t, gen, 0)

			if _, err := exec.Execute(context.Background(), Request{Message: "Hi", PromptType: tt.promptType}); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if gen.lastSystem != reg.Get(tt.wantSame) {
				t.Errorf("system prompt mismatch for %q", tt.promptType)
			}
		})
	}
}

func TestExecutor_Execute_ContextAccumulates(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{text: "reply"}
	exec, _ := newTestExecutor(t, gen, 0)

	res, err := exec.Execute(context.Background(), Request{Message: "first"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(gen.lastMsgs) != 1 {
		t.Fatalf("first turn context len = %d, want 1", len(gen.lastMsgs))
	}

	if _, err := exec.Execute(context.Background(), Request{Message: "second", ThreadID: res.ThreadID}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(gen.lastMsgs) != 3 {
		t.Fatalf("second turn context len = %d, want 3 (history pair + new user)", len(gen.lastMsgs))
	}
	if gen.lastMsgs[2].Role != conversation.RoleUser || gen.lastMsgs[2].Content != "second" {
		t.Errorf("last context message = %+v, want new user message", gen.lastMsgs[2])
	}
}

func TestExecutor_Execute_HistoryCap(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{text: "reply"}
	exec, store := newTestExecutor(t, gen, 4)

	tid, _ := exec.threads.Ensure("")
	for i := 0; i < 5; i++ {
		if _, err := exec.Execute(context.Background(), Request{Message: "turn", ThreadID: tid}); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}

	// Ten messages stored, but only the four most recent plus the new user
	// message reach the model.
	if n := store.Count(tid); n != 10 {
		t.Fatalf("Count() = %d, want 10", n)
	}
	if len(gen.lastMsgs) != 5 {
		t.Errorf("context len = %d, want 5", len(gen.lastMsgs))
	}
	if gen.lastMsgs[0].Sequence != 4 {
		t.Errorf("oldest context message sequence = %d, want 4", gen.lastMsgs[0].Sequence)
	}
}

func TestExecutor_Execute_ThreadIsolation(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{text: "reply"}
	exec, store := newTestExecutor(t, gen, 0)

	a, err := exec.Execute(context.Background(), Request{Message: "in A"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	b, err := exec.Execute(context.Background(), Request{Message: "in B"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if a.ThreadID == b.ThreadID {
		t.Fatal("separate turns without thread IDs shared a thread")
	}
	if len(gen.lastMsgs) != 1 {
		t.Errorf("second thread context len = %d, want 1", len(gen.lastMsgs))
	}

	na := store.Count(a.ThreadID)
	nb := store.Count(b.ThreadID)
	if na != 2 || nb != 2 {
		t.Errorf("counts = %d,%d, want 2,2", na, nb)
	}
}
