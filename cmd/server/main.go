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

	"github.com/redis/go-redis/v9"

	"github.com/shobande-femi/OrderBook/api"
	"github.com/shobande-femi/OrderBook/config"
	"github.com/shobande-femi/OrderBook/exchange"
	"github.com/shobande-femi/OrderBook/logging"
	"github.com/shobande-femi/OrderBook/profiling"
	"github.com/shobande-femi/OrderBook/settlement"
)

func main() {
	log := logging.InitLogger()
	cfg := config.LoadFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := connectRedis(cfg)

	var transfers settlement.TransferService
	if cfg.Settlement.TransferURL != "" {
		transfers = settlement.NewHTTPTransferService(cfg.Settlement.TransferURL)
	} else {
		transfers = settlement.NewLoggingTransferService()
	}
	dispatcher := settlement.NewDispatcher(transfers)

	registry := exchange.NewRegistry(ctx)
	service := exchange.NewService(registry, dispatcher)

	var profiler *profiling.Profiler
	if cfg.Server.PprofPort > 0 {
		profiler = profiling.NewProfiler()
		if cfg.Server.PprofContention {
			profiler.EnableContentionProfiling()
		}
		profiler.Start(cfg.Server.PprofPort)
	}

	router := api.NewRouter(service, redisClient, api.Config{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitTokens: cfg.RateLimit.MaxTokens,
		RateLimitRefill: cfg.RateLimit.RefillRate,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.LogServerStarted(cfg.Server.Port, map[string]interface{}{
			"redis":        redisClient != nil,
			"transfer_url": cfg.Settlement.TransferURL != "",
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}

	cancel()
	registry.Shutdown()
	dispatcher.Stop()

	if profiler != nil {
		_ = profiler.Stop()
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}

	log.WithField("event", logging.EventServerStopped).Info("Exchange server stopped")
}

// connectRedis returns nil when Redis is unreachable; idempotency and
// distributed rate limiting degrade to per-instance behavior
func connectRedis(cfg config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelPing()

	if err := client.Ping(ctx).Err(); err != nil {
		logging.GetLogger().WithError(err).Warn("Redis unavailable, continuing without it")
		_ = client.Close()
		return nil
	}

	return client
}
