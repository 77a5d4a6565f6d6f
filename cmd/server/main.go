package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fa-sharp/tinistream/internal/auth"
	"github.com/fa-sharp/tinistream/internal/config"
	"github.com/fa-sharp/tinistream/internal/httpapi"
	"github.com/fa-sharp/tinistream/internal/pool"
)

// commandTimeout applies to connection setup and every static-pool command.
const commandTimeout = 6 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	cipher, err := auth.NewCipher(cfg.SecretKey)
	if err != nil {
		logger.Fatal("Invalid secret key: must be a 64-character hex string", zap.Error(err))
	}

	// Static pool of multiplexed connections for short commands
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisOpts.PoolSize = cfg.RedisPool
	redisOpts.DialTimeout = commandTimeout
	redisOpts.ReadTimeout = commandTimeout
	redisOpts.WriteTimeout = commandTimeout
	rdb := redis.NewClient(redisOpts)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), commandTimeout)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	cancelPing()

	// Bounded pool of exclusive connections for blocking reads and ingest
	excl := pool.NewExclusive(rdb, cfg.MaxClients, logger)

	server := httpapi.NewServer(cfg, rdb, excl, cipher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + envOrDefault("PORT", "8000")
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
		// Request contexts derive from ctx so blocking tails exit on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", addr), zap.String("url", cfg.ServerAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown incomplete", zap.Error(err))
	}

	excl.Close()
	if err := rdb.Close(); err != nil {
		logger.Warn("Failed to close Redis client", zap.Error(err))
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
