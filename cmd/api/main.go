package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/dentallab-api/internal/config"
	"github.com/jwalitptl/dentallab-api/internal/email"
	accountHandler "github.com/jwalitptl/dentallab-api/internal/handler/account"
	catalogHandler "github.com/jwalitptl/dentallab-api/internal/handler/catalog"
	"github.com/jwalitptl/dentallab-api/internal/handler/health"
	jobHandler "github.com/jwalitptl/dentallab-api/internal/handler/job"
	notificationHandler "github.com/jwalitptl/dentallab-api/internal/handler/notification"
	partnershipHandler "github.com/jwalitptl/dentallab-api/internal/handler/partnership"
	"github.com/jwalitptl/dentallab-api/internal/handler/prometheus"
	"github.com/jwalitptl/dentallab-api/internal/middleware"
	"github.com/jwalitptl/dentallab-api/internal/push"
	"github.com/jwalitptl/dentallab-api/internal/repository/postgres"
	"github.com/jwalitptl/dentallab-api/internal/router"
	accountService "github.com/jwalitptl/dentallab-api/internal/service/account"
	"github.com/jwalitptl/dentallab-api/internal/service/audit"
	catalogService "github.com/jwalitptl/dentallab-api/internal/service/catalog"
	jobService "github.com/jwalitptl/dentallab-api/internal/service/job"
	notificationService "github.com/jwalitptl/dentallab-api/internal/service/notification"
	partnershipService "github.com/jwalitptl/dentallab-api/internal/service/partnership"
	"github.com/jwalitptl/dentallab-api/internal/service/pricing"
	"github.com/jwalitptl/dentallab-api/internal/storage"
	"github.com/jwalitptl/dentallab-api/pkg/auth"
	"github.com/jwalitptl/dentallab-api/pkg/logger"
	"github.com/jwalitptl/dentallab-api/pkg/messaging/redis"
	"github.com/jwalitptl/dentallab-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.App.LogLevel),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     !cfg.IsProduction(),
	})
	log.Logger = *appLog.Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	registry := prom.NewRegistry()
	metricsHandler := prometheus.New(registry)
	m := metrics.NewMetrics("dentallab", registry)

	auditor, err := audit.NewProduction()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build audit logger")
	}
	defer auditor.Sync()

	repos := postgres.NewRepositories(db)
	healthHandler := health.NewHandler(db)

	// Real-time push: sessions live in the local hub; with redis every
	// instance relays the shared channel into its own hub.
	hub := push.NewHub(appLog, cfg.CORS.AllowedOrigins)
	defer hub.Close()

	var pusher notificationService.Pusher = hub
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, *appLog.With("broker").Zerolog(), m)
	if err != nil {
		appLog.Warn(err, "redis unavailable, delivering pushes to local sessions only")
	} else {
		defer broker.Close()
		relay := push.NewRelay(broker, push.DefaultChannel, hub, appLog)
		if err := relay.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to subscribe to push channel")
		}
		pusher = push.NewBrokerChannel(broker, push.DefaultChannel)
		healthHandler.WithCheck("redis", broker)
	}

	// Attachment storage
	var blobs jobService.BlobStore
	store, err := storage.NewMinioStore(cfg.Minio)
	if err != nil {
		appLog.Warn(err, "object storage unavailable, attachments disabled")
	} else if err := store.EnsureBucket(ctx); err != nil {
		appLog.Warn(err, "failed to prepare attachment bucket, attachments disabled")
	} else {
		blobs = store
		healthHandler.WithCheck("storage", store)
	}

	// Initialize services
	notifier := notificationService.NewService(repos.Notifications, pusher, appLog.With("notification"), m)
	accountSvc := accountService.NewService(repos.Labs, repos.Clinics, auditor, 0)
	catalogSvc := catalogService.NewService(repos.Tx, repos.Catalog, repos.PriceTables, repos.Links, auditor, m)
	partnershipSvc := partnershipService.NewService(partnershipService.Dependencies{
		Tx:          repos.Tx,
		Labs:        repos.Labs,
		Clinics:     repos.Clinics,
		Links:       repos.Links,
		Invites:     repos.Invites,
		PriceTables: repos.PriceTables,
		Jobs:        repos.Jobs,
		Notifier:    notifier,
		Mailer:      email.New(cfg.SMTP),
		Auditor:     auditor,
		Logger:      appLog.With("partnership"),
		Metrics:     m,
		InviteTTL:   cfg.Invite.TTL,
		BaseURL:     cfg.App.BaseURL,
	})
	jobSvc := jobService.NewService(jobService.Dependencies{
		Tx:          repos.Tx,
		Jobs:        repos.Jobs,
		Attachments: repos.Attachments,
		Messages:    repos.Messages,
		Labs:        repos.Labs,
		Clinics:     repos.Clinics,
		Links:       repos.Links,
		Pricer:      pricing.NewResolver(repos.Catalog, repos.Links, repos.PriceTables),
		Notifier:    notifier,
		Blobs:       blobs,
		Auditor:     auditor,
		Logger:      appLog.With("job"),
		Metrics:     m,
	})

	// Initialize middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer), accountSvc)

	sizeLimit := middleware.DefaultSizeLimitConfig()
	sizeLimit.MaxUploadSize = cfg.Server.MaxUploadBytes

	r := router.NewRouter(authMiddleware, router.Handlers{
		Account:      accountHandler.NewHandler(accountSvc),
		Partnership:  partnershipHandler.NewHandler(partnershipSvc),
		Catalog:      catalogHandler.NewHandler(catalogSvc),
		Job:          jobHandler.NewHandler(jobSvc, cfg.Server.MaxUploadBytes),
		Notification: notificationHandler.NewHandler(notifier, hub),
		Health:       healthHandler,
		Metrics:      metricsHandler,
	}, router.RouterConfig{
		RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:      cfg.RateLimit.Burst,
		CORSConfig:     middleware.NewCORSConfig(cfg.CORS.AllowedOrigins),
		Security:       middleware.NewSecurityConfig(cfg.IsProduction()),
		RequestTimeout: cfg.Server.RequestTimeout,
		SizeLimit:      sizeLimit,
		ReleaseMode:    cfg.IsProduction(),
	})
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
