package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/avezina/parley/internal/chat"
	"github.com/avezina/parley/internal/sessioncache"
	"github.com/avezina/parley/internal/transcribe"
)

// Deps is everything a connection needs, assembled once at startup.
type Deps struct {
	Log          *slog.Logger
	Provider     transcribe.Provider
	Orchestrator *chat.Orchestrator
	Cache        *sessioncache.Cache

	MemoryMaxTurns  int
	Reconnect       transcribe.Config
	SideCallTimeout time.Duration

	Warnings func() []string
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.SideCallTimeout <= 0 {
		d.SideCallTimeout = 30 * time.Second
	}
	return d
}

func Handler(deps Deps) http.Handler {
	deps = deps.withDefaults()

	mux := http.NewServeMux()
	registerWSRoute(mux, deps)
	registerAPIRoutes(mux, deps)
	return mux
}
