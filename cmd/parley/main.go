package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/avezina/parley/internal/chat"
	"github.com/avezina/parley/internal/config"
	"github.com/avezina/parley/internal/llm"
	"github.com/avezina/parley/internal/server"
	"github.com/avezina/parley/internal/sessioncache"
	"github.com/avezina/parley/internal/storage"
	"github.com/avezina/parley/internal/transcribe"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	log.Info("parley: starting")

	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "parley.yaml"
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		log.Warn("config: " + w)
	}

	store, err := storage.NewSessionStore(cfg.DBPath)
	if err != nil {
		log.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	cache := sessioncache.New(store)

	provider, model, err := llm.ParseModel(cfg.Model)
	if err != nil {
		log.Error("invalid model config", "model", cfg.Model, "error", err)
		os.Exit(1)
	}
	client, err := llm.NewClient(provider, cfg.GenerationAPIKey(provider), model)
	if err != nil {
		log.Error("llm client init failed", "error", err)
		os.Exit(1)
	}

	orch := chat.NewOrchestrator(client, cache, log, chat.Settings{
		MaxTokens:          cfg.MaxTokens,
		SummarizeThreshold: cfg.Memory.SummarizeThreshold,
		RecentKeep:         cfg.Memory.RecentKeep,
		RecentWindow:       cfg.Memory.RecentWindow,
		StreamTimeout:      cfg.ParsedStreamTimeout(),
		SideCallTimeout:    cfg.ParsedSideCallTimeout(),
	})

	listen.Init(listen.InitLib{LogLevel: listen.LogLevelDefault})
	dgProvider := transcribe.NewDeepgramProvider(cfg.DeepgramAPIKey, cfg.Deepgram)

	handler := server.Handler(server.Deps{
		Log:            log,
		Provider:       dgProvider,
		Orchestrator:   orch,
		Cache:          cache,
		MemoryMaxTurns: cfg.Memory.MaxTurns,
		Reconnect: transcribe.Config{
			ReconnectBase: cfg.Deepgram.ParsedReconnectBase(),
			ReconnectMax:  cfg.Deepgram.ParsedReconnectMax(),
		},
		SideCallTimeout: cfg.ParsedSideCallTimeout(),
		Warnings:        func() []string { return warnings },
	})

	httpServer := &http.Server{Addr: cfg.Addr, Handler: handler}
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("parley: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
}
