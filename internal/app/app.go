// Package app wires the application together: configuration, Genkit
// provider initialization, the model gateway, and the turn executor.
package app

import (
	"context"

	"github.com/firebase/genkit/go/genkit"

	"github.com/hchen2020/parley/internal/config"
	"github.com/hchen2020/parley/internal/conversation"
	"github.com/hchen2020/parley/internal/gateway"
	"github.com/hchen2020/parley/internal/log"
	"github.com/hchen2020/parley/internal/prompt"
	"github.com/hchen2020/parley/internal/thread"
	"github.com/hchen2020/parley/internal/turn"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Gateway  *gateway.Gateway
	Store    *conversation.Store
	Threads  *thread.Registry
	Prompts  *prompt.Registry
	Executor *turn.Executor

	otelCleanup func()
	cancel      context.CancelFunc
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
