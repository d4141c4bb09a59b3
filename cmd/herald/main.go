package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	heraldconfig "herald/internal/config"
	"herald/internal/copygen"
	"herald/internal/handlers"
	"herald/internal/linkedin"
	"herald/internal/normalize"
	"herald/internal/notify"
	"herald/internal/pipeline"
	"herald/internal/store"
	"herald/pkg/cache"
	"herald/pkg/config"
	fieldcrypt "herald/pkg/crypto"
	"herald/pkg/database"
	"herald/pkg/kafka"
	"herald/pkg/llm"
	"herald/pkg/logging"
	"herald/pkg/middleware"
	"herald/pkg/monitoring"
	"herald/pkg/server"
	"herald/pkg/version"
)

const (
	serviceName          = "herald"
	defaultPort          = "18030"
	contentCacheEntries  = 512
	publishRequestBudget = 140 * time.Second
)

func main() {
	logger := logging.NewLoggerWithService(serviceName)
	config.LoadEnv(logger)

	cfg, err := heraldconfig.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(ctx, dbConfig, logger)
	defer db.Close()

	if cfg.RunMigrations {
		if err := store.Migrate(db, logger); err != nil {
			logger.WithError(err).Fatal("Failed to apply migrations")
		}
	}

	encryptor, err := fieldcrypt.DeriveFieldEncryptor([]byte(cfg.FieldEncryptionKey), "social_integrations.access_token")
	if err != nil {
		logger.WithError(err).Fatal("Failed to derive field encryptor")
	}

	healthChecker := monitoring.NewHealthChecker(serviceName, version.Version)
	metricsCollector := monitoring.NewMetricsCollector(serviceName, version.Version, version.GitCommit, nil)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(cfg.RequiredSettings()))

	publications := store.NewPublicationStore(db)
	integrations := store.NewIntegrationStore(db, encryptor)

	var content pipeline.ContentRepository = store.NewContentStore(db, cfg.SiteBaseURL)
	if cfg.ContentCacheTTL > 0 {
		lookups := metricsCollector.NewCounter("content_cache_lookups_total", "Content cache lookups by result", []string{"result"})
		content = store.NewCachedContent(content, cfg.ContentCacheTTL, contentCacheEntries, cache.MetricsHooks{
			OnHit:   func(string) { lookups.WithLabelValues("hit").Inc() },
			OnMiss:  func(string) { lookups.WithLabelValues("miss").Inc() },
			OnError: func(string) { lookups.WithLabelValues("error").Inc() },
		})
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure LLM provider")
	}

	var notifier pipeline.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewKafkaProducer(cfg.KafkaBrokers, serviceName, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(producer.GetClient()))
		notifier = notify.NewKafkaNotifier(producer, cfg.KafkaTopic, cfg.OrganizationID, logger)
	} else {
		logger.Info("KAFKA_BROKERS not set, publication events disabled")
	}

	publishPipeline, err := pipeline.New(pipeline.Config{
		Channel:        cfg.Channel,
		OrganizationID: cfg.OrganizationID,
		Ledger:         publications,
		Content:        content,
		Integrations:   integrations,
		Generator: copygen.New(copygen.Config{
			LLM:          provider,
			BrandHashtag: cfg.BrandHashtag,
			Logger:       logger,
		}),
		Normalizer: normalize.New(),
		Publisher: linkedin.NewClient(linkedin.Config{
			BaseURL: cfg.LinkedInAPIURL,
			Version: cfg.LinkedInVersion,
			Logger:  logger,
		}),
		Notifier: notifier,
		Metrics:  pipeline.NewMetrics(metricsCollector),
		Policy: normalize.Policy{
			BrandHashtag:     cfg.BrandHashtag,
			MaxEmoji:         cfg.MaxEmoji,
			MinHashtags:      cfg.MinHashtags,
			FallbackHashtags: cfg.FallbackHashtags,
		},
		ClaimLease: cfg.ClaimLease,
		Logger:     logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to build publish pipeline")
	}

	app := server.SetupServiceRouter(logger, serviceName, healthChecker, metricsCollector)

	api := app.Group("/api")
	if cfg.ServiceToken != "" {
		api.Use(middleware.ServiceAuthMiddleware(cfg.ServiceToken, cfg.PreviousServiceToken))
	} else {
		logger.Warn("SERVICE_TOKEN not set, API is unauthenticated")
	}
	api.Use(middleware.DeadlineMiddleware(publishRequestBudget))

	publicationHandler := handlers.NewPublicationHandler(publishPipeline, publications, cfg.Channel, logger)
	api.POST("/publications", publicationHandler.Publish)
	api.GET("/publications/:content_item_id", publicationHandler.Get)
	api.PUT("/integration", handlers.NewIntegrationHandler(integrations, cfg.OrganizationID, cfg.Channel, logger).Put)

	build := version.GetInfo()
	logger.WithFields(logging.Fields{
		"channel":       cfg.Channel,
		"organization":  cfg.OrganizationID,
		"llm_provider":  cfg.LLM.Provider,
		"health_checks": healthChecker.CheckNames(),
		"version":       build.Version,
		"commit":        version.GetShortCommit(),
		"build_date":    build.BuildDate,
	}).Info("Herald configured")

	serverConfig := server.DefaultConfig(serviceName, defaultPort)
	serverConfig.Port = cfg.Port
	if err := server.Start(ctx, serverConfig, app, logger); err != nil {
		logger.WithError(err).Fatal("Server exited")
	}
}
