package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/oncare-clinic/rag-chatbot/internal/adapters/http"
	"github.com/oncare-clinic/rag-chatbot/internal/bootstrap"
	"github.com/oncare-clinic/rag-chatbot/internal/config"
	"github.com/oncare-clinic/rag-chatbot/internal/observability/logging"
	"github.com/oncare-clinic/rag-chatbot/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logging.Setup("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, apiMetrics)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(app.ChatUC, apiMetrics)
	mux := http.NewServeMux()
	mux.Handle("/metrics", apiMetrics.Handler())
	mux.Handle("/", apiMetrics.Middleware(router.Handler()))

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// Answers stream token by token; the write timeout must cover a
		// full generation, not a single write.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
