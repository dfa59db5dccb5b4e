// Package turn executes chat turns: it loads conversation context, calls
// the model through the gateway, and commits the exchange to the store.
//
// Commit rules differ by mode. A non-streaming turn commits the user and
// assistant messages together, atomically, only after generation succeeds.
// A streaming turn commits the user message as soon as the first fragment
// reaches the consumer (the exchange is now observable) and the assistant
// message only when the stream completes; a turn that fails mid-stream
// leaves the user message committed and the assistant message absent.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hchen2020/parley/internal/conversation"
	"github.com/hchen2020/parley/internal/log"
	"github.com/hchen2020/parley/internal/prompt"
	"github.com/hchen2020/parley/internal/thread"
)

// fallbackResponse is returned when the model produces an empty response.
const fallbackResponse = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// ErrEmptyMessage indicates the turn request carried no message text.
var ErrEmptyMessage = errors.New("message is empty")

// Generator produces model responses. Implemented by gateway.Gateway.
type Generator interface {
	Generate(ctx context.Context, system string, msgs []conversation.Message) (string, error)
	GenerateStream(ctx context.Context, system string, msgs []conversation.Message, emit func(chunk string) error) (string, error)
}

// Config contains all required parameters for the Executor.
type Config struct {
	Store     *conversation.Store
	Threads   *thread.Registry
	Prompts   *prompt.Registry
	Generator Generator
	Logger    log.Logger

	// MaxHistoryMessages caps how many stored messages are loaded as model
	// context per turn. Zero means no cap.
	MaxHistoryMessages int
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Store == nil {
		return errors.New("conversation store is required")
	}
	if cfg.Threads == nil {
		return errors.New("thread registry is required")
	}
	if cfg.Prompts == nil {
		return errors.New("prompt registry is required")
	}
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Request describes one chat turn.
type Request struct {
	Message    string
	ThreadID   string // empty mints a new thread
	UserID     string // opaque tag, informational only
	PromptType string // resolved by the prompt registry, unknown falls back to default
}

// Result is the outcome of a committed turn.
type Result struct {
	Response string
	ThreadID string
	UserID   string
}

// Executor runs chat turns. Stateless across turns; all conversation state
// lives in the store.
//
// The zero value is NOT useful - use New() to create instances.
type Executor struct {
	store      *conversation.Store
	threads    *thread.Registry
	prompts    *prompt.Registry
	gen        Generator
	logger     log.Logger
	maxHistory int
}

// New creates an Executor with required configuration.
func New(cfg Config) (*Executor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Executor{
		store:      cfg.Store,
		threads:    cfg.Threads,
		prompts:    cfg.Prompts,
		gen:        cfg.Generator,
		logger:     cfg.Logger,
		maxHistory: cfg.MaxHistoryMessages,
	}, nil
}

// prepare validates the request and resolves the turn's thread, context
// messages, and system prompt.
func (e *Executor) prepare(req Request) (threadID, system string, msgs []conversation.Message, err error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", "", nil, ErrEmptyMessage
	}

	threadID, err = e.threads.Ensure(req.ThreadID)
	if err != nil {
		return "", "", nil, fmt.Errorf("resolving thread: %w", err)
	}

	// The store entry exists from the moment a turn references the thread,
	// even if the turn later fails without committing a message.
	if err := e.store.Touch(threadID); err != nil {
		return "", "", nil, fmt.Errorf("materializing thread: %w", err)
	}

	if req.UserID != "" {
		if err := e.store.Tag(threadID, req.UserID); err != nil {
			e.logger.Warn("tagging thread", "thread_id", threadID, "error", err)
		}
	}

	history, _ := e.store.History(threadID)
	if e.maxHistory > 0 && len(history) > e.maxHistory {
		history = history[len(history)-e.maxHistory:]
	}

	msgs = append(history, conversation.Message{Role: conversation.RoleUser, Content: req.Message})
	return threadID, e.prompts.Get(req.PromptType), msgs, nil
}

// Execute runs a non-streaming turn. The user and assistant messages are
// appended together only after generation succeeds; a failed turn leaves
// the thread untouched.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	threadID, system, msgs, err := e.prepare(req)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("executing turn", "thread_id", threadID, "prompt_type", req.PromptType)

	text, err := e.gen.Generate(ctx, system, msgs)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("model returned empty response", "thread_id", threadID)
		text = fallbackResponse
	}

	if _, err := e.store.Append(threadID,
		conversation.Message{Role: conversation.RoleUser, Content: req.Message},
		conversation.Message{Role: conversation.RoleAssistant, Content: text},
	); err != nil {
		return nil, fmt.Errorf("committing turn: %w", err)
	}

	return &Result{Response: text, ThreadID: threadID, UserID: req.UserID}, nil
}

// executeStream runs a streaming turn, forwarding chunks to emit.
func (e *Executor) executeStream(ctx context.Context, req Request, emit func(chunk string) error) (*Result, error) {
	threadID, system, msgs, err := e.prepare(req)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("executing streaming turn", "thread_id", threadID, "prompt_type", req.PromptType)

	// The user message becomes durable the moment any output reaches the
	// consumer; before that, a failed attempt leaves no trace.
	userCommitted := false
	commitUser := func() {
		if userCommitted {
			return
		}
		userCommitted = true
		if _, err := e.store.Append(threadID, conversation.Message{Role: conversation.RoleUser, Content: req.Message}); err != nil {
			e.logger.Warn("committing user message", "thread_id", threadID, "error", err)
		}
	}

	text, err := e.gen.GenerateStream(ctx, system, msgs, func(chunk string) error {
		commitUser()
		return emit(chunk)
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("model returned empty streamed response", "thread_id", threadID)
		text = fallbackResponse
	}

	assistant := conversation.Message{Role: conversation.RoleAssistant, Content: text}
	if userCommitted {
		_, err = e.store.Append(threadID, assistant)
	} else {
		// Nothing was streamed (e.g. the fallback text): commit the pair
		// atomically, as in the non-streaming path.
		_, err = e.store.Append(threadID,
			conversation.Message{Role: conversation.RoleUser, Content: req.Message},
			assistant,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("committing turn: %w", err)
	}

	return &Result{Response: text, ThreadID: threadID, UserID: req.UserID}, nil
}
