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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrublog-systems/scrublog/internal/config"
	"github.com/scrublog-systems/scrublog/internal/processor"
	"github.com/scrublog-systems/scrublog/internal/queue"
	"github.com/scrublog-systems/scrublog/internal/redactor"
	"github.com/scrublog-systems/scrublog/internal/store"
	"github.com/scrublog-systems/scrublog/pkg/httputil"
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
	).With(logging.Service("worker"))
	logging.SetDefault(logger)

	slog.Info("Starting worker",
		slog.Int("port", cfg.Worker.Port),
		slog.String("nats_url", cfg.NATS.URL),
		slog.Int("max_deliver", cfg.Queue.MaxDeliver),
	)

	// Schema migrations, then the store
	if err := store.Migrate(cfg.Postgres.URL); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pgStore, err := store.NewPostgresStore(ctx, cfg.Postgres.URL)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgStore.Close()

	// Queue channel
	jsClient, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:           cfg.NATS.URL,
		Name:          "scrublog-worker",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer jsClient.Close()

	queueOpts := queue.Options{
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

	setupCtx, setupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := queue.EnsureStreams(setupCtx, jsClient, queueOpts); err != nil {
		log.Fatalf("Failed to ensure streams: %v", err)
	}
	setupCancel()

	proc := processor.New(redactor.New(), pgStore, logger)
	dlq := queue.NewDLQ(jsClient, queueOpts)
	consumer := queue.NewConsumer(jsClient, proc, dlq, queueOpts, cfg.Worker.ProcessTimeout, logger)

	consumeCtx, consumeCancel := context.WithCancel(context.Background())
	defer consumeCancel()

	stop, err := consumer.Start(consumeCtx)
	if err != nil {
		log.Fatalf("Failed to start consumer: %v", err)
	}
	slog.Info("Consuming envelopes",
		slog.String("stream", cfg.Queue.Stream),
		slog.String("consumer", cfg.Queue.Consumer),
	)

	// Health and metrics endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !jsClient.IsConnected() {
			httputil.WriteError(w, http.StatusServiceUnavailable, "nats disconnected")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Worker.Port),
		Handler: mux,
	}

	go func() {
		slog.Info("Worker admin endpoint listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down worker")

	// Stop delivery first; anything in flight and unacked stays pending
	// on the stream and redelivers after AckWait.
	stop()
	consumeCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("Worker stopped")
}
