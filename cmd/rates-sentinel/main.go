package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mfarias/rates-sentinel/internal/config"
	"github.com/mfarias/rates-sentinel/internal/fetch"
	"github.com/mfarias/rates-sentinel/internal/healthcheck"
	"github.com/mfarias/rates-sentinel/internal/indicator"
	"github.com/mfarias/rates-sentinel/internal/logging"
	"github.com/mfarias/rates-sentinel/internal/metrics"
	"github.com/mfarias/rates-sentinel/internal/notify"
	"github.com/mfarias/rates-sentinel/internal/scheduler"
	"github.com/mfarias/rates-sentinel/internal/server"
	"github.com/mfarias/rates-sentinel/internal/state"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrapLogger := logging.New("")
		bootstrapLogger.Fatal().Err(err).Msg("configuration invalid")
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info().
		Dur("refresh_interval", cfg.RefreshInterval).
		Str("state_path", cfg.StatePath).
		Int("http_port", cfg.HTTPPort).
		Msg("rates-sentinel starting")

	sources, err := config.LoadSourcesFile(cfg.SourcesFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.SourcesFile).Msg("sources file invalid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()

	store := state.NewFileStore(cfg.StatePath, logger)
	cache := state.NewCache(store, logger, collector)
	cache.Load(ctx)

	client, err := fetch.NewClient(cfg.RequestTimeout, 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("http client setup failed")
	}

	fetchers := []indicator.Fetcher{
		indicator.NewFX(sources.RateFX.Sources, client, cache, logger, collector),
		indicator.NewWallets(sources.WalletYields.Providers, sources.WalletYields.Label, sources.WalletYields.Window, client, cache, logger, collector),
		indicator.NewRepoRates(sources.RepoRates, client, cache, logger, collector),
		indicator.NewTermDeposits(sources.TermDeposits, client, cache, logger, collector),
	}

	tracker := healthcheck.NewTracker()
	notifier := buildNotifier(logger, cfg)

	sched := scheduler.New(logger, cfg.RefreshInterval, fetchers, cache,
		scheduler.WithMetrics(collector),
		scheduler.WithTracker(tracker),
		scheduler.WithNotifier(notifier),
	)

	handler := server.Handler(logger, cfg.RefreshInterval, cache, sched, tracker, collector)
	server.Start(ctx, logger, handler, cfg.HTTPPort)

	if err := sched.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("scheduler failed")
	}

	logger.Info().Msg("rates-sentinel stopped")
}

func buildNotifier(logger zerolog.Logger, cfg config.Config) notify.Notifier {
	var notifiers []notify.Notifier

	slackNotifier := notify.NewSlackNotifier(logger, cfg.SlackWebhookURL)
	if _, isNoop := slackNotifier.(*notify.NoopNotifier); !isNoop {
		notifiers = append(notifiers, slackNotifier)
	}

	webhookNotifier, err := notify.NewWebhookNotifier(logger, cfg.WebhookURL, "")
	if err != nil {
		logger.Fatal().Err(err).Msg("webhook notifier setup failed")
	}
	if webhookNotifier != nil {
		notifiers = append(notifiers, webhookNotifier)
	}

	switch len(notifiers) {
	case 0:
		return notify.NewNoop(logger, "no notification destinations configured")
	case 1:
		return notifiers[0]
	default:
		return notify.NewMultiNotifier(notifiers...)
	}
}
