package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aperture-ai/gateway/cmd"
	"github.com/aperture-ai/gateway/internal/cache"
	"github.com/aperture-ai/gateway/internal/config"
	"github.com/aperture-ai/gateway/internal/configstore"
	"github.com/aperture-ai/gateway/internal/configstore/sqlite"
	"github.com/aperture-ai/gateway/internal/logger"
	"github.com/aperture-ai/gateway/internal/modeladapter"
	"github.com/aperture-ai/gateway/internal/otel"
	"github.com/aperture-ai/gateway/internal/pipeline"
	"github.com/aperture-ai/gateway/internal/provideradapter"
	"github.com/aperture-ai/gateway/internal/resolver"
	"github.com/aperture-ai/gateway/internal/secrets"
	"github.com/aperture-ai/gateway/internal/server"
)

func main() {
	logger.Initialize(logger.DefaultConfig())
	defer logger.Sync()

	cmd.CheckForUpdates()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	shutdownTracer, err := otel.InitTracer("gateway", logger.Get(), os.Stdout)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	store, err := openConfigStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open config store", zap.Error(err))
	}

	resolutionCache := openResolutionCache(cfg)

	registry := modeladapter.NewRegistry()
	factory := provideradapter.NewFactory(store, secrets.NewEnv(), cfg)
	res := resolver.New(store, resolutionCache, cfg.Cache.ResolutionTTL)
	pipe := pipeline.New(res, registry, factory)

	srv := server.New(cfg, logger.Get(), pipe, registry)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("Gateway listening",
			zap.String("port", cfg.Server.Port),
			zap.String("base_path", cfg.Server.BasePath),
			zap.String("env", cfg.Server.Env),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
	if err := shutdownTracer(ctx); err != nil {
		logger.Error("Tracer shutdown failed", zap.Error(err))
	}
}

func openConfigStore(cfg *config.Config) (configstore.Store, error) {
	if cfg.ConfigStore.Kind == "http" {
		logger.Info("Using HTTP config store", zap.String("base_url", cfg.ConfigStore.BaseURL))
		return configstore.NewHTTPStore(cfg.ConfigStore.BaseURL, cfg.ConfigStore.Token), nil
	}

	logger.Info("Using sqlite config store", zap.String("path", cfg.ConfigStore.Path))
	return sqlite.Open(cfg.ConfigStore.Path)
}

func openResolutionCache(cfg *config.Config) cache.Cache {
	if !cfg.Redis.Enabled {
		return cache.NewMemory()
	}

	redisCache := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("Redis unreachable, falling back to in-memory cache", zap.Error(err))
		return cache.NewMemory()
	}

	logger.Info("Using redis resolution cache", zap.String("addr", cfg.Redis.Addr))
	return redisCache
}
