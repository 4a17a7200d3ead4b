// Delegate API — HTTP шлюз к воркерам.
//
// POST /api/v1/invoke/{name} вызывает задачу через Delegator,
// /api/v1/calls читает журнал вызовов (если задан DB_URL).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Delegate/internal/api"
	"github.com/shaiso/Delegate/internal/config"
	"github.com/shaiso/Delegate/internal/mq"
	"github.com/shaiso/Delegate/internal/repo"
	"github.com/shaiso/Delegate/internal/rpc"
	"github.com/shaiso/Delegate/internal/telemetry"
)

var startTime = time.Now()

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting delegate-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Журнал вызовов (опционально)
	var calls api.CallStore
	var journal rpc.Journal
	if cfg.Database.Enabled() {
		pool, err := repo.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		callRepo := repo.NewCallRepo(pool)
		if err := callRepo.Migrate(ctx); err != nil {
			logger.Error("failed to migrate call journal", "error", err)
			os.Exit(1)
		}
		calls, journal = callRepo, callRepo
		logger.Info("call journal enabled")
	} else {
		logger.Info("DB_URL is empty, call journal disabled")
	}

	delegator := rpc.NewDelegator(rpc.DelegatorOptions{
		URL:      cfg.Broker.URL,
		Exchange: mq.Exchange(cfg.Broker.Exchange),
		Events: mq.Events{
			OnError: func(err error) {
				logger.Error("broker connection lost", "error", err)
				cancel()
			},
		},
		Timeout: cfg.Broker.CallTimeout,
		Logger:  logger,
		Metrics: rpc.NewMetrics(prometheus.DefaultRegisterer),
		Journal: journal,
	})
	if err := delegator.Start(ctx); err != nil {
		logger.Error("failed to start delegator", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(api.Config{
		Invoker: delegator,
		Calls:   calls,
		Metrics: api.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Limiter: api.NewTargetLimiter(cfg.InvokeRPS, cfg.InvokeBurst),
		Logger:  logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if delegator.State() != rpc.StateStarted {
			http.Error(w, "delegator is not started", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := delegator.Stop(); err != nil {
		logger.Warn("delegator stop failed", "error", err)
	}

	logger.Info("stopped")
}
