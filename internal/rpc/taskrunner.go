package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Delegate/internal/mq"
	"github.com/shaiso/Delegate/internal/telemetry"
)

// Task — функция, которую выполняет воркер.
//
// Задача должна быть чистой: одинаковые параметры дают одинаковый результат.
// Ошибка задачи подтверждает запрос без повторной доставки и уходит
// вызывающему как *RemoteError. Повторы — забота самой задачи.
type Task func(ctx context.Context, params Params) (any, error)

// TaskRunnerConfig — конфигурация TaskRunner.
type TaskRunnerConfig struct {
	// Publisher — канал для ответов.
	Publisher *mq.Publisher

	// Task — выполняемая задача.
	Task Task

	// Name — имя воркера для логов и метрик.
	Name string

	Logger  *slog.Logger
	Metrics *Metrics
}

// TaskRunner выполняет задачу для каждого доставленного запроса.
type TaskRunner struct {
	publisher *mq.Publisher
	task      Task
	name      string
	logger    *slog.Logger
	metrics   *Metrics
}

// NewTaskRunner создаёт TaskRunner.
func NewTaskRunner(cfg TaskRunnerConfig) *TaskRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskRunner{
		publisher: cfg.Publisher,
		task:      cfg.Task,
		name:      cfg.Name,
		logger:    logger,
		metrics:   cfg.Metrics,
	}
}

// NewRequestHandler возвращает обработчик запросов, выполняющий task
// и публикующий ответы через pub.
func NewRequestHandler(pub *mq.Publisher, task Task, logger *slog.Logger) mq.Handler {
	return NewTaskRunner(TaskRunnerConfig{
		Publisher: pub,
		Task:      task,
		Logger:    logger,
	}).Handle
}

// Handle реализует mq.Handler.
func (r *TaskRunner) Handle(ctx context.Context, d *mq.Delivery) error {
	_, err := r.Run(ctx, d)
	return err
}

// Run обрабатывает один запрос и возвращает результат задачи.
//
//  1. Тело не разбирается — ack сразу, ошибка наружу (без повторной доставки)
//  2. Выполнение задачи с параметрами запроса
//  3. Успех — публикация ответа в ReplyTo с CorrelationID, затем ack
//  4. Ошибка — ack в любом случае, ошибка наружу
//
// В обоих случаях ошибки вызывающий получает ответ rpc.error, если
// в запросе указан ReplyTo.
func (r *TaskRunner) Run(ctx context.Context, d *mq.Delivery) (any, error) {
	logger := telemetry.WithCorrelationID(r.logger, d.CorrelationID())
	if r.name != "" {
		logger = telemetry.WithWorker(logger, r.name)
	}

	// Ответ уходит даже если воркер останавливается во время задачи
	replyCtx := context.WithoutCancel(ctx)

	params, err := DecodeParams(d.Body())
	if err != nil {
		logger.Warn("malformed request", "error", err)
		r.ack(d, logger)
		r.replyError(replyCtx, d, err, logger)
		r.metrics.taskStarted(r.name)
		r.metrics.taskFinished(r.name, taskStatusMalformed, 0)
		return nil, err
	}

	logger.Debug("task started", "params", len(params))

	start := time.Now()
	r.metrics.taskStarted(r.name)

	result, err := r.execute(telemetry.WithLogger(ctx, logger), params)
	if err == nil {
		var body []byte
		body, err = EncodeResult(result)
		if err != nil {
			err = fmt.Errorf("encode result: %w", err)
		} else if pubErr := r.publisher.PublishReply(replyCtx, d.ReplyTo(), d.CorrelationID(), body); pubErr != nil {
			r.metrics.taskFinished(r.name, taskStatusFailed, time.Since(start))
			logger.Warn("failed to publish reply", "reply_to", d.ReplyTo(), "error", pubErr)
			r.ack(d, logger)
			return nil, fmt.Errorf("publish reply: %w", pubErr)
		}
	}

	if err != nil {
		r.metrics.taskFinished(r.name, taskStatusFailed, time.Since(start))
		logger.Warn("task failed", "error", err, "duration", time.Since(start))
		r.ack(d, logger)
		r.replyError(replyCtx, d, err, logger)
		return nil, err
	}

	r.metrics.taskFinished(r.name, taskStatusSucceeded, time.Since(start))
	if err := d.Ack(); err != nil {
		return result, fmt.Errorf("ack: %w", err)
	}

	logger.Debug("task succeeded", "duration", time.Since(start))
	return result, nil
}

// execute вызывает задачу, превращая панику в ошибку.
func (r *TaskRunner) execute(ctx context.Context, params Params) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, rec)
		}
	}()

	return r.task(ctx, params)
}

// ack подтверждает запрос; ошибка подтверждения только логируется.
func (r *TaskRunner) ack(d *mq.Delivery, logger *slog.Logger) {
	if err := d.Ack(); err != nil {
		logger.Error("failed to ack request", "error", err)
	}
}

// replyError отправляет ошибку вызывающему (best effort).
func (r *TaskRunner) replyError(ctx context.Context, d *mq.Delivery, taskErr error, logger *slog.Logger) {
	if d.ReplyTo() == "" {
		return
	}
	if err := r.publisher.PublishError(ctx, d.ReplyTo(), d.CorrelationID(), encodeError(taskErr)); err != nil {
		logger.Warn("failed to publish error reply", "error", err)
	}
}
