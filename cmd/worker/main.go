package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/relayops/dispatch-api/internal/config"
	"github.com/relayops/dispatch-api/internal/platform/hubspot"
	"github.com/relayops/dispatch-api/internal/platform/slack"
	"github.com/relayops/dispatch-api/internal/repository/postgres"
	"github.com/relayops/dispatch-api/internal/service/credential"
	"github.com/relayops/dispatch-api/internal/service/dispatch"
	"github.com/relayops/dispatch-api/internal/service/history"
	"github.com/relayops/dispatch-api/internal/service/recipient"
	ruleService "github.com/relayops/dispatch-api/internal/service/rule"
	"github.com/relayops/dispatch-api/internal/service/scheduler"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/messaging/redis"
	"github.com/relayops/dispatch-api/pkg/metrics"
	"github.com/relayops/dispatch-api/pkg/security"
	"github.com/relayops/dispatch-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(nil)
	m := metrics.NewMetrics("dispatch", "worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	encryptor, err := security.NewAESEncryptor([]byte(cfg.Security.EncryptionKey))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token encryptor")
	}

	base := postgres.NewBaseRepository(db)
	workspaceRepo := postgres.NewWorkspaceRepository(base, encryptor)
	tokenRepo := postgres.NewTokenRepository(base, encryptor)
	messageRepo := postgres.NewMessageRepository(base)
	historyRepo := postgres.NewHistoryRepository(base)
	ruleRepo := postgres.NewRuleRepository(base)
	templateRepo := postgres.NewTemplateRepository(base)

	zl := log.Logger
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	slackClient := slack.NewClient(slack.Config{
		APITimeout: cfg.Slack.APITimeout,
		RatePerSec: cfg.Slack.RatePerSec,
		RateBurst:  cfg.Slack.RateBurst,
	}, lg)
	hubspotClient := hubspot.NewClient(hubspot.Config{
		BaseURL:    cfg.Hubspot.BaseURL,
		Token:      cfg.Hubspot.Token,
		APITimeout: cfg.Hubspot.APITimeout,
	}, lg)

	recorder := history.NewService(historyRepo, broker, lg, m)
	dispatcher := dispatch.NewDispatcher(slackClient, lg, m)
	recipients := recipient.NewResolver(slackClient, cfg.Slack.LookupTTL, lg, m)
	sendSvc := dispatch.NewService(workspaceRepo, tokenRepo, credential.NewResolver(),
		recipients, dispatcher, recorder, lg)
	engine := ruleService.NewEngine(ruleRepo, templateRepo, hubspotClient, sendSvc, broker, lg, m)
	sched := scheduler.NewScheduler(messageRepo, sendSvc,
		scheduler.Config{BatchSize: cfg.Scheduler.BatchSize}, lg, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics endpoint for scraping; the worker has no other HTTP surface.
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	poller := worker.NewPoller(worker.PollerConfig{Spec: cfg.Scheduler.CronSpec}, func(ctx context.Context, now time.Time) error {
		if _, err := sched.RunPollCycle(ctx, now); err != nil {
			return err
		}
		return engine.EvaluateAll(ctx, now)
	}, lg)

	if err := poller.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("poller failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server forced to shutdown")
	}

	log.Info().Msg("worker exited properly")
}
