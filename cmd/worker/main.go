package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oncare-clinic/rag-chatbot/internal/bootstrap"
	"github.com/oncare-clinic/rag-chatbot/internal/config"
	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
	"github.com/oncare-clinic/rag-chatbot/internal/observability/logging"
	"github.com/oncare-clinic/rag-chatbot/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logging.Setup("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeIngestBatch(ctx, func(handlerCtx context.Context, batch domain.IngestBatch) error {
		workerMetrics.StartBatch()
		start := time.Now()

		ingestCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		ingestErr := app.Ingestor.IngestBatch(ingestCtx, batch)

		workerMetrics.FinishBatch(time.Since(start), len(batch.Items), ingestErr)
		return ingestErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
