package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/Delegate/internal/mq"
	"github.com/shaiso/Delegate/internal/telemetry"
)

// workerPrefetch — не больше одного неподтверждённого запроса на экземпляр.
const workerPrefetch = 1

// Worker выполняет задачу для запросов, адресованных его имени.
//
// Worker:
//   - Объявляет non-durable очередь с именем воркера
//   - Получает запросы с prefetch = 1 (одна задача в работе на экземпляр)
//   - Выполняет задачу через TaskRunner и отвечает в ReplyTo запроса
//
// Workers масштабируются горизонтально — несколько экземпляров с одним
// именем потребляют из одной очереди, брокер распределяет запросы между ними.
type Worker struct {
	name     string
	task     Task
	url      string
	exchange mq.Exchange
	events   mq.Events
	dial     mq.DialFunc
	logger   *slog.Logger
	metrics  *Metrics

	mu       sync.Mutex
	state    State
	conn     mq.Conn
	ch       mq.Channel
	consumer *mq.Consumer
}

// WorkerConfig — конфигурация Worker.
type WorkerConfig struct {
	// Name — имя воркера и его очереди (обязательно).
	Name string

	// Task — выполняемая задача (обязательно).
	Task Task

	// URL брокера (default: mq.DefaultURL()).
	URL string

	// Exchange — пространство имён маршрутизации (default: без exchange).
	Exchange mq.Exchange

	// Events — наблюдатели за соединением (опционально).
	Events mq.Events

	// Dial открывает соединение (default: mq.Dial).
	Dial mq.DialFunc

	Logger  *slog.Logger
	Metrics *Metrics
}

// NewWorker создаёт Worker.
// Возвращает ErrNameMissing или ErrTaskMissing для неполной конфигурации.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Name == "" {
		return nil, ErrNameMissing
	}
	if cfg.Task == nil {
		return nil, ErrTaskMissing
	}

	url := cfg.URL
	if url == "" {
		url = mq.DefaultURL()
	}

	dial := cfg.Dial
	if dial == nil {
		dial = mq.Dial
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		name:     cfg.Name,
		task:     cfg.Task,
		url:      url,
		exchange: cfg.Exchange,
		events:   cfg.Events,
		dial:     dial,
		logger:   telemetry.WithWorker(logger, cfg.Name),
		metrics:  cfg.Metrics,
	}, nil
}

// Name возвращает имя воркера.
func (w *Worker) Name() string {
	return w.name
}

// State возвращает текущее состояние.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start подключается к брокеру и начинает получать запросы.
//
// Отмена ctx не останавливает подписку: она живёт до Stop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateStarted {
		return ErrQueueAlreadyStarted
	}

	conn, err := w.dial(w.url, w.events, w.logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := mq.DeclareWorkerQueue(ch, w.exchange, w.name); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	runner := NewTaskRunner(TaskRunnerConfig{
		Publisher: mq.NewPublisher(ch, mq.ExchangeDefault, w.logger),
		Task:      w.task,
		Name:      w.name,
		Logger:    w.logger,
		Metrics:   w.metrics,
	})

	consumer := mq.NewConsumer(ch, w.logger, mq.ConsumerConfig{
		Queue:    w.name,
		Handler:  runner.Handle,
		Prefetch: workerPrefetch,
	})
	if err := consumer.Start(context.WithoutCancel(ctx)); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	w.conn = conn
	w.ch = ch
	w.consumer = consumer
	w.state = StateStarted

	w.logger.Info("worker is awaiting requests", "exchange", w.exchange)
	return nil
}

// Stop прекращает получение запросов, дожидается текущей задачи
// и закрывает канал и соединение.
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateStarted {
		return ErrNotConnected
	}

	w.logger.Info("stopping worker...")

	w.consumer.Stop()

	var errs []error
	if err := w.ch.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	if err := w.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}

	w.conn = nil
	w.ch = nil
	w.consumer = nil
	w.state = StateNotStarted

	w.logger.Info("worker stopped")
	return errors.Join(errs...)
}
