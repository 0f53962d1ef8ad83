package app

import (
	"github.com/vidfetch/vidfetch/internal/infra/config"
	"github.com/vidfetch/vidfetch/internal/infra/logger"
	"github.com/vidfetch/vidfetch/internal/notify"
	"github.com/vidfetch/vidfetch/internal/store"
)

// Context holds the core environment and shared resources for vidfetch.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Store    *store.TaskStore
	Notifier *notify.Notifier

	// History is the sqlite ledger of finished transfers. Nil disables it.
	History *store.HistoryStore

	// FFmpegPath is resolved once at startup. Empty means the tool was not
	// found: the process-driven strategy and post-processing are disabled.
	FFmpegPath string
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config:   cfg,
		Logger:   log,
		Store:    store.NewTaskStore(),
		Notifier: notify.NewNotifier(),
	}
}
