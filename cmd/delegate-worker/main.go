// Delegate Worker — обслуживает встроенные задачи.
//
// Worker:
//   - Объявляет очередь для каждой задачи из WORKER_TASKS
//   - Запускает WORKER_INSTANCES конкурирующих consumer'ов на очередь
//   - Выполняет запрос и отправляет ответ в его ReplyTo
//
// Workers масштабируются горизонтально: экземпляры делят одну очередь.
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
	"github.com/shaiso/Delegate/internal/rpc"
	"github.com/shaiso/Delegate/internal/tasks"
	"github.com/shaiso/Delegate/internal/telemetry"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting delegate-worker", "tasks", cfg.Tasks, "instances", cfg.Instances)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := tasks.DefaultRegistry()
	metrics := rpc.NewMetrics(prometheus.DefaultRegisterer)

	events := mq.Events{
		OnError: func(err error) {
			logger.Error("broker connection lost", "error", err)
			cancel()
		},
	}

	var workers []*rpc.Worker
	stopAll := func() {
		for _, w := range workers {
			if err := w.Stop(); err != nil {
				logger.Warn("worker stop failed", "worker", w.Name(), "error", err)
			}
		}
	}

	for _, name := range cfg.Tasks {
		task, err := registry.Get(name)
		if err != nil {
			logger.Error("unknown task", "task", name, "available", registry.Names())
			stopAll()
			os.Exit(1)
		}

		for i := 0; i < cfg.Instances; i++ {
			w, err := rpc.NewWorker(rpc.WorkerConfig{
				Name:     name,
				Task:     task,
				URL:      cfg.Broker.URL,
				Exchange: mq.Exchange(cfg.Broker.Exchange),
				Events:   events,
				Logger:   logger,
				Metrics:  metrics,
			})
			if err != nil {
				logger.Error("failed to create worker", "task", name, "error", err)
				stopAll()
				os.Exit(1)
			}

			if err := w.Start(ctx); err != nil {
				logger.Error("failed to start worker", "task", name, "error", err)
				stopAll()
				os.Exit(1)
			}
			workers = append(workers, w)
		}
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		for _, wk := range workers {
			if wk.State() != rpc.StateStarted {
				http.Error(w, "worker "+wk.Name()+" is not started", http.StatusServiceUnavailable)
				return
			}
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

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	stopAll()
	logger.Info("delegate-worker stopped")
}
