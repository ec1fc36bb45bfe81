package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RepoChat/backend/go/internal/config"
	dbmongo "RepoChat/backend/go/internal/database/mongo"
	dbredis "RepoChat/backend/go/internal/database/redis"
	"RepoChat/backend/go/internal/discovery/etcd"
	"RepoChat/backend/go/internal/ingest_service/api"
	"RepoChat/backend/go/internal/ingest_service/service"
	"RepoChat/backend/go/internal/ingest_service/store"
	"RepoChat/backend/go/internal/ingestion/bootstrap"
	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/pkg/circuitbreaker"
	pkghttp "RepoChat/backend/go/pkg/http"
	"RepoChat/backend/go/pkg/logger"
	"RepoChat/backend/go/pkg/ratelimiter"
	"github.com/gin-gonic/gin"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	// Load configuration
	path := os.Getenv("REPOCHAT_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	serviceLogger := logger.New("IngestService", "")

	if err := cfg.ValidateServer(); err != nil {
		serviceLogger.WithError(err).Fatal("Invalid server configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg, serviceLogger)
	if err != nil {
		serviceLogger.WithError(err).Fatal("Failed to build ingestion components")
	}
	defer components.Close()

	runStore, closeStore, err := openRunStore(ctx, cfg)
	if err != nil {
		serviceLogger.WithError(err).Fatal("Failed to open run store")
	}
	defer closeStore()
	serviceLogger.WithField("run_store", cfg.Server.RunStore).Info("Run store ready")

	factory := func(log *logger.Logger, reporters ...interfaces.ProgressReporter) (service.Runner, error) {
		return components.Pipeline(log, reporters...)
	}
	ingestService := service.NewIngestService(runStore, service.NewConnectionManager(), factory, components.Index.Name(), serviceLogger)

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	var breaker circuitbreaker.CircuitBreaker
	if cb := cfg.CircuitBreaker; cb.Enabled {
		timeout, err := time.ParseDuration(cb.Timeout)
		if err != nil {
			serviceLogger.WithError(err).Fatal("Invalid circuit breaker timeout")
		}
		breaker = circuitbreaker.New(cb.FailureThreshold, cb.SuccessThreshold, timeout)
	}
	limiter := ratelimiter.NewTokenBucket(cfg.Server.RateLimit.Rate, cfg.Server.RateLimit.Capacity)
	router := api.NewRouter(api.NewAPI(ingestService, serviceLogger), serviceLogger, limiter, breaker)

	registry := registerService(ctx, cfg, serviceLogger)

	srv := pkghttp.NewServer(router, pkghttp.WithAddress(cfg.Server.Address), pkghttp.WithLogger(serviceLogger))
	if err := srv.Run(ctx, 5*time.Second); err != nil {
		serviceLogger.WithError(err).Error("HTTP server failed")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if registry != nil {
		if err := registry.Deregister(shutdownCtx); err != nil {
			serviceLogger.WithError(err).Warn("Failed to deregister from etcd")
		}
		_ = registry.Close()
	}
	if err := ingestService.Close(shutdownCtx); err != nil {
		serviceLogger.WithError(err).Warn("Active runs did not finish before shutdown")
	}
	serviceLogger.Info("Server gracefully stopped")
}

func openRunStore(ctx context.Context, cfg *config.AppConfig) (store.RunStore, func(), error) {
	switch cfg.Server.RunStore {
	case "mongo":
		client, err := dbmongo.NewClient(ctx, cfg.Databases.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.Databases.MongoDB.Database)
		return store.NewMongoRunStore(db, cfg.Databases.MongoDB.Collection), func() { _ = client.Disconnect(context.Background()) }, nil
	case "redis":
		rdb, err := dbredis.NewClient(ctx, cfg.Databases.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisRunStore(rdb), func() { _ = rdb.Close() }, nil
	default:
		return store.NewMemoryRunStore(), func() {}, nil
	}
}

// registerService 在配置了 etcd 时注册本实例，失败只记录警告。
func registerService(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) *etcd.ServiceRegistry {
	d := cfg.Discovery
	if len(d.Endpoints) == 0 {
		return nil
	}
	addr := d.AdvertiseAddr
	if addr == "" {
		addr = cfg.Server.Address
	}
	registry, err := etcd.NewServiceRegistry(d, log)
	if err != nil {
		log.WithError(err).Warn("Service discovery disabled")
		return nil
	}
	if err := registry.Register(ctx, d.ServiceName, addr, d.TTL); err != nil {
		log.WithError(err).Warn("Service discovery disabled")
		_ = registry.Close()
		return nil
	}
	return registry
}
