package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrublog-systems/scrublog/internal/config"
	"github.com/scrublog-systems/scrublog/internal/envelope"
	"github.com/scrublog-systems/scrublog/internal/gateway"
	"github.com/scrublog-systems/scrublog/internal/queue"
	"github.com/scrublog-systems/scrublog/internal/ratelimit"
	"github.com/scrublog-systems/scrublog/pkg/logging"

	natsclient "github.com/scrublog-systems/scrublog/pkg/messaging/nats"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("gateway"))
	logging.SetDefault(logger)

	slog.Info("Starting intake gateway",
		slog.Int("port", cfg.Gateway.Port),
		slog.String("nats_url", cfg.NATS.URL),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Rate limiter
	var rateLimiter ratelimit.RateLimiter
	if cfg.Redis.Enabled && cfg.Ingestion.RateLimitEnabled {
		limiter, err := ratelimit.NewRedisRateLimiter(
			cfg.Redis.URL,
			cfg.Ingestion.RateLimitRequests,
			cfg.Ingestion.RateLimitWindow,
		)
		if err != nil {
			slog.Warn("Failed to initialize Redis rate limiter, continuing without rate limiting",
				slog.String("error", err.Error()))
			rateLimiter = &ratelimit.NoOpRateLimiter{}
		} else {
			rateLimiter = limiter
			slog.Info("Rate limiting enabled",
				slog.Int("requests", cfg.Ingestion.RateLimitRequests),
				slog.String("window", cfg.Ingestion.RateLimitWindow.String()))
		}
	} else {
		rateLimiter = &ratelimit.NoOpRateLimiter{}
	}
	defer rateLimiter.Close()

	// Queue channel
	jsClient, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:           cfg.NATS.URL,
		Name:          "scrublog-gateway",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer jsClient.Close()

	queueOpts := queueOptions(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := queue.EnsureStreams(ctx, jsClient, queueOpts); err != nil {
		log.Fatalf("Failed to ensure streams: %v", err)
	}
	cancel()

	publisher := queue.NewPublisher(jsClient, queueOpts)
	service := gateway.NewService(envelope.NewBuilder(), publisher, logger)
	handler := gateway.NewHandler(service, rateLimiter, cfg.Ingestion.MaxBodySize)
	router := gateway.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler:      router,
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
		IdleTimeout:  cfg.Gateway.IdleTimeout,
	}

	go func() {
		slog.Info("Gateway listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down gateway")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Gateway.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("Gateway stopped")
}

func queueOptions(cfg *config.Config) queue.Options {
	return queue.Options{
		Stream:        cfg.Queue.Stream,
		SubjectPrefix: cfg.Queue.SubjectPrefix,
		DLQStream:     cfg.Queue.DLQStream,
		DLQSubject:    cfg.Queue.DLQSubject,
		Consumer:      cfg.Queue.Consumer,
		MaxDeliver:    cfg.Queue.MaxDeliver,
		AckWait:       cfg.Queue.AckWait,
		NakDelay:      cfg.Queue.NakDelay,
		MaxAckPending: cfg.Queue.MaxAckPending,
	}
}
