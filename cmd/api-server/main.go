package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cinehub/database"
	"cinehub/internal/cache"
	"cinehub/internal/config"
	"cinehub/internal/gateway"
	"cinehub/internal/microservices/http-api/handler"
	"cinehub/internal/microservices/http-api/middleware"
	"cinehub/internal/microservices/http-api/service"
	"cinehub/internal/microservices/websocket"
	"cinehub/internal/session"
	"cinehub/internal/titlesync"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw, closeGateway, err := openGateway(cfg, logger)
	if err != nil {
		logger.Error("gateway_open_failed", "error", err)
		os.Exit(1)
	}
	defer closeGateway()

	storeOpts := []titlesync.Option{
		titlesync.WithLogger(logger),
		titlesync.WithReconnect(cfg.ResyncInterval),
		titlesync.WithLoadTimeout(cfg.LoadTimeout),
	}
	if cfg.RedisURL != "" {
		snapshots, err := cache.NewRedisSnapshot(cache.Options{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			TTL:      cfg.SnapshotCacheTTL,
		})
		if err != nil {
			// the store still works without a fallback snapshot
			logger.Warn("snapshot_cache_unavailable", "error", err)
		} else {
			defer snapshots.Close()
			storeOpts = append(storeOpts, titlesync.WithSnapshotCache(snapshots))
		}
	}

	store := titlesync.NewStore(gw, storeOpts...)
	defer store.Close()

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)
	unlisten := store.AddListener(hub.Publish)
	defer unlisten()

	if err := store.SubscribeToChanges(ctx); err != nil {
		// with reconnect enabled the store keeps retrying in the background
		logger.Error("change_feed_subscribe_failed", "error", err)
	}
	if err := store.Initialize(ctx); err != nil {
		// keep serving: the reconnect loop and POST /api/sync/resync retry
		logger.Error("initial_load_failed", "error", err)
	}

	router := handler.NewRouter(handler.RouterDeps{
		Store:     store,
		Ratings:   service.NewRatingService(gw, logger),
		Watchlist: service.NewWatchlistService(gw, logger),
		Lists:     service.NewListService(gw, logger),
		Stats:     service.NewStatsService(gw),
		Authority: session.NewAuthority(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry),
		Hub:       hub,
		Metrics:   promhttp.Handler(),
		Origins:   cfg.CORSOrigins,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: middleware.Chain(router,
			middleware.CORS(cfg.CORSOrigins),
			middleware.RateLimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http_server_starting", "addr", srv.Addr, "gateway", cfg.GatewayDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		logger.Error("http_server_error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_failed", "error", err)
	}
	cancel()
	logger.Info("server_stopped_gracefully")
}

// openGateway builds the configured backend, wrapped in a circuit breaker
// when enabled. The returned func releases it.
func openGateway(cfg *config.Config, logger *slog.Logger) (gateway.Gateway, func(), error) {
	var (
		gw      gateway.Gateway
		release func()
	)

	switch cfg.GatewayDriver {
	case config.DriverMemory:
		mem := gateway.NewMemory()
		gw = mem
		release = func() { mem.Close() }
		logger.Warn("using_in_memory_gateway", "note", "data is lost on restart")

	default:
		db, err := database.Connect(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		feed := gateway.NewListener(cfg.DatabaseURL, cfg.ChangeChannel, logger)
		pg := gateway.NewPostgres(db, feed, logger)
		// truncated notifications are completed with a direct read
		feed.SetHydrator(pg.GetOne)
		gw = pg
		release = func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
	}

	if cfg.BreakerEnabled {
		st := gateway.DefaultBreakerSettings()
		st.MinRequests = uint32(cfg.BreakerMinRequests)
		st.FailureRate = cfg.BreakerFailureRate
		st.Timeout = cfg.BreakerTimeout
		gw = gateway.NewBreaker(gw, st, logger)
	}
	return gw, release, nil
}
