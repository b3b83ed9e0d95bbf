package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"wahook/internal/api"
	"wahook/internal/auth"
	"wahook/internal/buildinfo"
	"wahook/internal/config"
	"wahook/internal/events"
	"wahook/internal/logger"
	"wahook/internal/metrics"
	"wahook/internal/store"
	"wahook/internal/webhooks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.Log)
	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if cfg.SessionsFile != "" {
		sessions, err := store.LoadSeedFile(cfg.SessionsFile)
		if err != nil {
			return err
		}
		n, err := store.Seed(ctx, st, sessions)
		if err != nil {
			return err
		}
		log.Info().Str("file", cfg.SessionsFile).Int("created", n).Int("total", len(sessions)).Msg("sessions seeded")
	}

	broker := openBroker(ctx, cfg)
	defer func() { _ = broker.Close() }()

	verifier, err := auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.HMACSecret)
	if err != nil {
		return err
	}

	wc := cfg.Webhook
	svc := webhooks.NewService(st,
		webhooks.WithLogger(log.Logger),
		webhooks.WithWorkers(wc.Workers),
		webhooks.WithMaxQueueDepth(wc.MaxQueueDepth),
		webhooks.WithPollInterval(wc.PollInterval),
		webhooks.WithDefaults(webhooks.Defaults{
			Retry: webhooks.RetryConfig{
				MaxAttempts: wc.MaxAttempts,
				BaseDelay:   wc.BaseDelay,
				MaxDelay:    wc.MaxDelay,
				Jitter:      wc.Jitter,
			},
			Timeout: wc.Timeout,
		}),
		webhooks.WithRateLimit(wc.RateRPS, wc.RateBurst),
		webhooks.WithPublisher(broker),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}

	srvDeps := &api.Server{
		Store:    st,
		Webhooks: svc,
		Auth:     verifier,
		Broker:   broker,
		Config:   cfg,
		Log:      log.Logger.With().Str("component", "http").Logger(),
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srvDeps.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", buildinfo.Version).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("webhook shutdown")
	}
	return nil
}

// openStore uses Postgres when DATABASE_URL is set, memory otherwise.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set; sessions are kept in memory")
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DBMigrate {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}
	return pg, nil
}

// openBroker falls back to the in-process broker when Redis is unreachable.
func openBroker(ctx context.Context, cfg config.Config) events.Broker {
	if cfg.RedisURL == "" {
		return events.NewMemory()
	}
	rb, err := events.NewRedis(ctx, cfg.RedisURL, log.Logger)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable; using in-memory event broker")
		return events.NewMemory()
	}
	return rb
}

