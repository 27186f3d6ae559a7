package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Prathaban-G/ecommerce/internal/domain"
	"github.com/Prathaban-G/ecommerce/internal/handlers"
	"github.com/Prathaban-G/ecommerce/internal/platform/config"
	pfirestore "github.com/Prathaban-G/ecommerce/internal/platform/firestore"
	"github.com/Prathaban-G/ecommerce/internal/platform/jobs"
	"github.com/Prathaban-G/ecommerce/internal/platform/observability"
	"github.com/Prathaban-G/ecommerce/internal/platform/secrets"
	"github.com/Prathaban-G/ecommerce/internal/repositories"
	"github.com/Prathaban-G/ecommerce/internal/repositories/cache"
	firestoreRepo "github.com/Prathaban-G/ecommerce/internal/repositories/firestore"
	"github.com/Prathaban-G/ecommerce/internal/services"
)

const (
	categoriesCollection = "categories"
	redisKeyPrefix       = "storefront"
	shutdownTimeout      = 15 * time.Second
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues[config.LogLevelKey])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(config.WhatsAppNumberSecret),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	meter := otel.GetMeterProvider().Meter("github.com/Prathaban-G/ecommerce/storefront")

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	checks := []repositories.DependencyCheck{{
		Name: "firestore",
		Check: func(ctx context.Context) error {
			return firestoreProvider.Ping(ctx, categoriesCollection)
		},
	}}

	var categoryCache repositories.CategoryCache = cache.NewMemoryCategoryCache(nil)
	if cfg.Cache.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(cfg.Cache.RedisURL)
		if err != nil {
			logger.Fatal("failed to initialise redis client", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
		redisCache, err := cache.NewRedisCategoryCache(redisClient, redisKeyPrefix)
		if err != nil {
			logger.Fatal("failed to initialise redis category cache", zap.Error(err))
		}
		categoryCache = redisCache
		checks = append(checks, repositories.DependencyCheck{
			Name:     "redis",
			Optional: true,
			Check:    redisCache.Ping,
		})
	}

	contacts, publisher, pubsubClient := newContactSink(ctx, logger, cfg)
	if publisher != nil {
		defer publisher.Stop()
	}
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic := pubsubClient.Topic(cfg.Events.ContactTopic)
		checks = append(checks, repositories.DependencyCheck{
			Name:     "pubsub",
			Optional: true,
			Check: func(ctx context.Context) error {
				exists, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %q not found", cfg.Events.ContactTopic)
				}
				return nil
			},
		})
	}

	healthRepo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}
	registry, err := firestoreRepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	categoryService, err := services.NewCategoryService(services.CategoryServiceDeps{
		Categories: registry.Categories(),
		Cache:      categoryCache,
		CacheTTL:   cfg.Cache.CategoryTTL,
		Logger:     observability.EventLogger(logger, "categories"),
	})
	if err != nil {
		logger.Fatal("failed to initialise category service", zap.Error(err))
	}

	links, err := services.NewDeepLinkComposer(services.DeepLinkConfig{
		BaseURL:        cfg.Contact.BaseURL,
		Number:         cfg.Contact.WhatsAppNumber,
		CurrencySymbol: cfg.Contact.CurrencySymbol,
		MailAddress:    cfg.Contact.MailAddress,
	})
	if err != nil {
		logger.Fatal("failed to initialise deep link composer", zap.Error(err))
	}

	filters := services.NewFilterEngine(domain.PriceBounds{
		Min: cfg.Catalog.DefaultMinPrice,
		Max: cfg.Catalog.DefaultMaxPrice,
	})

	viewLogger := observability.EventLogger(logger, "catalog")
	sessions, err := services.NewSessionRegistry(services.SessionRegistryDeps{
		Factory: func(sessionID string) (*services.CatalogViewModel, error) {
			return services.NewCatalogViewModel(services.CatalogViewModelDeps{
				SessionID:   sessionID,
				Items:       registry.Items(),
				Categories:  categoryService,
				Filters:     filters,
				Links:       links,
				Contacts:    contacts,
				RevealDelay: cfg.Catalog.RevealDelay,
				Logger:      viewLogger,
				Meter:       meter,
			})
		},
		IdleTTL:     cfg.Sessions.IdleTTL,
		MaxSessions: cfg.Sessions.Max,
		Logger:      observability.EventLogger(logger, "sessions"),
	})
	if err != nil {
		logger.Fatal("failed to initialise session registry", zap.Error(err))
	}

	systemService, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: registry.Health(),
		Sessions:         sessions,
		Build:            buildInfo,
	})
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	if cfg.Sessions.SweepInterval > 0 {
		sweepTicker := time.NewTicker(cfg.Sessions.SweepInterval)
		sweepWG.Add(1)
		go func() {
			defer sweepWG.Done()
			defer sweepTicker.Stop()
			sweepLogger := logger.Named("sessions")
			for {
				select {
				case <-sweepTicker.C:
					if evicted := sessions.Sweep(sweepCtx); len(evicted) > 0 {
						sweepLogger.Info("idle sessions evicted", zap.Int("count", len(evicted)))
					}
				case <-sweepCtx.Done():
					return
				}
			}
		}()
	}

	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(buildInfo)}
	if systemService != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(systemService))
	}

	publicHandlers := handlers.NewPublicHandlers(
		handlers.WithPublicCategoryService(categoryService),
		handlers.WithPublicDeepLinks(links),
	)
	sessionHandlers := handlers.NewSessionHandlers(
		handlers.WithSessionStore(sessions),
		handlers.WithSessionCategoryService(categoryService),
		handlers.WithSessionRateLimits(cfg.RateLimits.SessionsPerMinute, cfg.RateLimits.ContactsPerMinute),
		handlers.WithSessionTimeout(cfg.Server.WriteTimeout),
		handlers.WithSessionAllowedOrigins(cfg.Server.AllowedOrigins...),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithPublicRoutes(publicHandlers.Routes),
		handlers.WithSessionRoutes(sessionHandlers.Routes),
		handlers.WithRequestTimeout(cfg.Server.WriteTimeout),
	)

	// Streams are long-lived; the write deadline applies to plain requests
	// through the router timeout instead of the server.
	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront listening", zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	sig := <-shutdown
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	sweepCancel()
	sweepWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Closing sessions ends their streams so Shutdown does not wait on hijacked connections.
	sessions.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env[config.EnvPrefix+"BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   strings.TrimSpace(env[config.EnvPrefix+"BUILD_COMMIT_SHA"]),
		Environment: cfg.Environment,
		StartedAt:   started,
	}
}

// newSecretFetcher runs before config.Load, so it reads its settings from the
// raw environment map.
func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[config.EnvPrefix+key])
	}

	project := lookup("SECRETS_PROJECT_ID")
	if project == "" {
		project = lookup("FIRESTORE_PROJECT_ID")
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithCacheTTL(10 * time.Minute),
	}
	if project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	if path := lookup("SECRETS_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// newContactSink publishes contact interest to Pub/Sub when a topic is
// configured and only logs it otherwise.
func newContactSink(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.ContactSink, *jobs.PubSubContactPublisher, *pubsub.Client) {
	events := observability.EventLogger(logger, "contacts")
	logOnly := services.ContactSinkFunc(func(ctx context.Context, req services.ContactRequest) error {
		events(ctx, "contact_requested", map[string]any{
			"categoryId": req.CategoryID,
			"itemId":     req.Item.ID,
		})
		return nil
	})

	topicID := strings.TrimSpace(cfg.Events.ContactTopic)
	if topicID == "" {
		return logOnly, nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		logger.Warn("pubsub client unavailable; contact events will only be logged", zap.Error(err))
		return logOnly, nil, nil
	}
	publisher, err := jobs.NewPubSubContactPublisher(client.Topic(topicID))
	if err != nil {
		_ = client.Close()
		logger.Warn("contact publisher unavailable; contact events will only be logged", zap.Error(err))
		return logOnly, nil, nil
	}
	return publisher, publisher, client
}
