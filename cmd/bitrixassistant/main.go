package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Iceeze/BitrixAssistant/internal/adapter/bitrix"
	relayhttp "github.com/Iceeze/BitrixAssistant/internal/adapter/http"
	"github.com/Iceeze/BitrixAssistant/internal/adapter/otel"
	"github.com/Iceeze/BitrixAssistant/internal/adapter/postgres"
	"github.com/Iceeze/BitrixAssistant/internal/adapter/ristretto"
	"github.com/Iceeze/BitrixAssistant/internal/adapter/telegram"
	"github.com/Iceeze/BitrixAssistant/internal/config"
	"github.com/Iceeze/BitrixAssistant/internal/domain/dialog"
	"github.com/Iceeze/BitrixAssistant/internal/logger"
	"github.com/Iceeze/BitrixAssistant/internal/middleware"
	"github.com/Iceeze/BitrixAssistant/internal/resilience"
	"github.com/Iceeze/BitrixAssistant/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	log.Info("config loaded",
		"port", cfg.Server.Port,
		"home_domain", cfg.Bitrix.Domain,
		"log_level", cfg.Logging.Level,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	shutdownTracer := otel.InitTracer(cfg.Logging.Service)
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error("tracer shutdown failed", "error", err)
		}
	}()

	// --- Adapters ---

	portal := bitrix.NewClient(
		cfg.Bitrix.ClientID,
		cfg.Bitrix.ClientSecret,
		cfg.Bitrix.RedirectURI,
		cfg.Bitrix.OAuthHost,
	)
	portal.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	bot := telegram.NewClient(cfg.Telegram.Token)

	// --- Services ---

	store := postgres.NewStore(pool)
	registry := service.NewRegistry(store, log)
	tokens := service.NewTokenManager(store, portal, bot, log)
	prefs := service.NewPreferences(store, cache, cfg.Cache.TTL, log)
	registration := service.NewRegistration(portal, cfg.Bitrix.WebhookBase, log)
	oauth := service.NewOAuth(portal, registry, registration, bot,
		cfg.Bitrix.ClientID, cfg.Bitrix.Domain, cfg.Bitrix.RedirectURI, log)
	engine := service.NewEngine(dialog.NewStore(), portal, registry, bot, cfg.Bitrix.Domain, log)
	chatSvc := service.NewChat(registry, oauth, prefs, engine, portal, bot, log)
	router := service.NewRouter(registry, tokens, prefs, portal, bot,
		metrics, cfg.Bitrix.Domain, cfg.Fanout.MaxParallel, log)

	// --- Telegram long polling ---

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	poller := telegram.NewPoller(bot, chatSvc, int(cfg.Telegram.PollTimeout.Seconds()), log)
	go func() {
		if err := poller.Run(pollCtx); err != nil && pollCtx.Err() == nil {
			log.Error("poller stopped", "error", err)
		}
	}()

	// --- HTTP ---

	handlers := relayhttp.NewHandlers(oauth, router, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	relayhttp.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	<-done
	log.Info("shutting down")
	stopPolling()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
