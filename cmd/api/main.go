package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/relayops/dispatch-api/internal/config"
	"github.com/relayops/dispatch-api/internal/handler"
	authHandler "github.com/relayops/dispatch-api/internal/handler/auth"
	messageHandler "github.com/relayops/dispatch-api/internal/handler/message"
	ruleHandler "github.com/relayops/dispatch-api/internal/handler/rule"
	templateHandler "github.com/relayops/dispatch-api/internal/handler/template"
	workspaceHandler "github.com/relayops/dispatch-api/internal/handler/workspace"
	"github.com/relayops/dispatch-api/internal/middleware"
	"github.com/relayops/dispatch-api/internal/platform/hubspot"
	"github.com/relayops/dispatch-api/internal/platform/slack"
	"github.com/relayops/dispatch-api/internal/repository/postgres"
	"github.com/relayops/dispatch-api/internal/router"
	authService "github.com/relayops/dispatch-api/internal/service/auth"
	"github.com/relayops/dispatch-api/internal/service/credential"
	"github.com/relayops/dispatch-api/internal/service/dispatch"
	"github.com/relayops/dispatch-api/internal/service/history"
	"github.com/relayops/dispatch-api/internal/service/recipient"
	ruleService "github.com/relayops/dispatch-api/internal/service/rule"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/messaging/redis"
	"github.com/relayops/dispatch-api/pkg/metrics"
	"github.com/relayops/dispatch-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(nil)
	m := metrics.NewMetrics("dispatch", "api")

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
	actorRepo := postgres.NewActorRepository(base)

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
	authSvc := authService.NewService(actorRepo, security.NewBcryptHasher(12), cfg.JWT, lg)

	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	r := router.NewRouter(
		authMiddleware,
		authHandler.NewHandler(authSvc),
		messageHandler.NewHandler(sendSvc, messageRepo, historyRepo),
		workspaceHandler.NewHandler(workspaceRepo, tokenRepo),
		ruleHandler.NewHandler(ruleRepo, engine),
		templateHandler.NewHandler(templateRepo),
		handler.NewHealthHandler(db),
		router.Config{
			RateLimit: rate.Limit(cfg.Slack.RatePerSec * 10),
			RateBurst: cfg.Slack.RateBurst * 10,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("api listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
