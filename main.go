// File: disambiguator/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"disambiguator/config"
	"disambiguator/cron"
	"disambiguator/database"
	"disambiguator/database/kvstore"
	catalogRepo "disambiguator/database/repository/catalog"
	"disambiguator/handlers"
	"disambiguator/routes"
	"disambiguator/services/admin"
	"disambiguator/services/disambiguation"
	"disambiguator/services/session"
	"disambiguator/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("main: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("main: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	rules, err := disambiguation.NewRulesStore(cfg.RulesPath, logger)
	if err != nil {
		logger.Fatal("main: failed to load disambiguation rules", zap.Error(err))
	}

	catalog, closeCatalog, err := openCatalog(cfg, logger)
	if err != nil {
		logger.Fatal("main: failed to open catalog store", zap.String("driver", cfg.CatalogDriver), zap.Error(err))
	}
	defer closeCatalog()

	redisOpts := func(db int) utils.RedisOptions {
		return utils.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: db}
	}
	cacheClient, err := utils.NewRedisClient(redisOpts(cfg.RedisCacheDB))
	if err != nil {
		logger.Fatal("main: candidate cache unavailable", zap.Error(err))
	}
	defer cacheClient.Close()
	sessionClient, err := utils.NewRedisClient(redisOpts(cfg.RedisSessionDB))
	if err != nil {
		logger.Fatal("main: session store unavailable", zap.Error(err))
	}
	defer sessionClient.Close()

	cache := kvstore.NewRedisKVStore(cacheClient)
	sessions := kvstore.NewRedisKVStore(sessionClient)

	// services.
	metrics := disambiguation.NewPrometheusMetrics(prometheus.DefaultRegisterer)
	retriever := disambiguation.NewRetriever(catalog, cache, logger)
	orchestrator := disambiguation.NewOrchestrator(rules, retriever, metrics, logger)
	flowService := session.NewFlowService(orchestrator, session.NewKVSessionStore(sessions), logger)
	adminService := admin.NewAdminService(rules, orchestrator, retriever, catalog, cache, sessions, logger)

	// background cache warming.
	queueOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisQueueDB}
	enqueuer := cron.NewEnqueuer(queueOpt)
	defer enqueuer.Close()
	worker := cron.StartCacheWarmWorker(queueOpt, adminService, logger)
	defer worker.Shutdown()
	if cfg.CacheWarmCron != "" {
		scheduler, err := cron.StartScheduler(queueOpt, cfg.CacheWarmCron, logger)
		if err != nil {
			logger.Error("main: cache warm schedule disabled", zap.Error(err))
		} else {
			defer scheduler.Shutdown()
		}
	}

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	monitor := utils.NewHealthMonitor(60*time.Second, map[string]utils.HealthCheck{
		"redisCache":    cache.Ping,
		"redisSessions": sessions.Ping,
		"catalog":       catalog.Ping,
	})
	monitor.Start(monitorCtx)

	// Assemble the handler bundle.
	handlerBundle := handlers.NewHandlerBundle(
		handlers.NewDisambiguationHandler(flowService),
		handlers.NewAdminHandler(adminService, enqueuer),
		handlers.HealthHandler(monitor),
		gin.WrapH(promhttp.Handler()),
	)
	handlerBundle.AdminJWTSecret = []byte(cfg.AdminJWTSecret)
	handlerBundle.MaxRequestsPerMin = cfg.MaxRequestsPerMin

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	routes.RegisterRoutes(router, handlerBundle, logger)

	// Start the HTTP server.
	srv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.AppPort,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
		return
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

// openCatalog connects the configured catalog backend and prepares its
// indexes or schema.
func openCatalog(cfg *config.Config, logger *zap.Logger) (catalogRepo.CatalogRepository, func(), error) {
	switch cfg.CatalogDriver {
	case config.DriverMongo:
		client, err := database.ConnectMongo(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		repo, err := catalogRepo.NewMongoCatalogRepo(client.Database(cfg.MongoDatabase))
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		logger.Info("catalog store: MongoDB", zap.String("database", cfg.MongoDatabase))
		return repo, closeFn, nil

	case config.DriverPostgres:
		db, err := database.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = db.Close() }
		repo := catalogRepo.NewPostgresCatalogRepo(db)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repo.EnsureSchema(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		logger.Info("catalog store: PostgreSQL")
		return repo, closeFn, nil

	default:
		logger.Warn("catalog store: in-memory, empty until seeded")
		return catalogRepo.NewMemoryCatalogRepo(), func() {}, nil
	}
}
