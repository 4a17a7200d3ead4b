// Delegate Scheduler — периодические вызовы задач по cron-расписаниям.
//
// Расписания читаются из YAML файла (SCHEDULER_CONFIG), каждое
// срабатывание вызывает задачу через Delegator.
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

	"github.com/shaiso/Delegate/internal/config"
	"github.com/shaiso/Delegate/internal/mq"
	"github.com/shaiso/Delegate/internal/repo"
	"github.com/shaiso/Delegate/internal/rpc"
	"github.com/shaiso/Delegate/internal/scheduler"
	"github.com/shaiso/Delegate/internal/telemetry"
)

func main() {
	cfg, err := config.LoadScheduler()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting delegate-scheduler", "schedules", len(cfg.Schedules))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
		journal = callRepo
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

	sched := scheduler.New(scheduler.Config{
		Invoker:    delegator,
		Logger:     logger,
		Registerer: prometheus.DefaultRegisterer,
	})
	for _, s := range cfg.Schedules {
		err := sched.Add(scheduler.Entry{
			Name:    s.Name,
			Spec:    s.Spec,
			Target:  s.Target,
			Params:  s.Params,
			Timeout: s.Timeout,
		})
		if err != nil {
			logger.Error("invalid schedule", "schedule", s.Name, "error", err)
			delegator.Stop()
			os.Exit(1)
		}
		next, _ := sched.Next(s.Name)
		logger.Info("schedule added", "schedule", s.Name, "target", s.Target, "spec", s.Spec, "next", next)
	}

	sched.Start(ctx)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if delegator.State() != rpc.StateStarted {
			http.Error(w, "delegator is not started", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Отмена ctx прерывает ожидание ответов, Stop дожидается идущих вызовов
	sched.Stop()
	if err := delegator.Stop(); err != nil {
		logger.Warn("delegator stop failed", "error", err)
	}

	logger.Info("delegate-scheduler stopped")
}
