package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Delegate/internal/domain"
	"github.com/shaiso/Delegate/internal/mq"
	"github.com/shaiso/Delegate/internal/telemetry"
)

// Delegator вызывает задачи воркеров и ждёт их результаты.
//
// На Start открывается соединение, канал и анонимная эксклюзивная очередь
// ответов с одним consumer. Каждый Invoke регистрирует обработчик в реестре
// ожидающих вызовов по новому correlation id и публикует запрос в очередь
// воркера. Ответ находит свой вызов по correlation id; ответы без
// ожидающего вызова логируются и отбрасываются.
//
// Вызовы независимы: они завершаются в порядке прихода ответов.
type Delegator struct {
	url      string
	exchange mq.Exchange
	events   mq.Events
	dial     mq.DialFunc
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	journal  Journal

	pending *pendingCalls

	mu         sync.Mutex
	state      State
	conn       mq.Conn
	ch         mq.Channel
	publisher  *mq.Publisher
	consumer   *mq.Consumer
	replyQueue string
}

// DelegatorOptions — конфигурация Delegator.
type DelegatorOptions struct {
	// URL брокера (default: mq.DefaultURL()).
	URL string

	// Exchange — пространство имён маршрутизации запросов (default: без exchange).
	Exchange mq.Exchange

	// Events — наблюдатели за соединением (опционально).
	Events mq.Events

	// Dial открывает соединение (default: mq.Dial).
	Dial mq.DialFunc

	// Timeout ограничивает ожидание ответа (0 — ждать до отмены ctx).
	Timeout time.Duration

	Logger  *slog.Logger
	Metrics *Metrics

	// Journal сохраняет завершённые вызовы (опционально).
	Journal Journal
}

// callOutcome — результат вызова из обработчика ответа.
type callOutcome struct {
	reply Reply
	err   error
}

// NewDelegator создаёт Delegator.
func NewDelegator(opts DelegatorOptions) *Delegator {
	url := opts.URL
	if url == "" {
		url = mq.DefaultURL()
	}

	dial := opts.Dial
	if dial == nil {
		dial = mq.Dial
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Delegator{
		url:      url,
		exchange: opts.Exchange,
		events:   opts.Events,
		dial:     dial,
		timeout:  opts.Timeout,
		logger:   logger,
		metrics:  opts.Metrics,
		journal:  opts.Journal,
		pending:  newPendingCalls(),
	}
}

// State возвращает текущее состояние.
func (d *Delegator) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pending возвращает число вызовов, ожидающих ответа.
func (d *Delegator) Pending() int {
	return d.pending.len()
}

// Start подключается к брокеру и готовит очередь ответов.
//
// Отмена ctx не останавливает consumer ответов: им владеет Delegator до Stop.
func (d *Delegator) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateStarted {
		return ErrQueueAlreadyStarted
	}

	conn, err := d.dial(d.url, d.events, d.logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	replyQueue, err := mq.DeclareReplyQueue(ch)
	if err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	consumer := mq.NewConsumer(ch, d.logger, mq.ConsumerConfig{
		Queue:     replyQueue,
		Handler:   d.dispatchReply,
		AutoAck:   true,
		Exclusive: true,
	})
	if err := consumer.Start(context.WithoutCancel(ctx)); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	d.conn = conn
	d.ch = ch
	d.publisher = mq.NewPublisher(ch, d.exchange, d.logger)
	d.consumer = consumer
	d.replyQueue = replyQueue
	d.state = StateStarted

	d.logger.Info("delegator started", "reply_queue", replyQueue, "exchange", d.exchange)
	return nil
}

// Invoke вызывает задачу воркера name с параметрами params и ждёт ответ.
//
// Возвращает:
//   - ErrQueueNotStarted до Start
//   - *RemoteError, если задача завершилась ошибкой
//   - ошибку ErrDecodeReply для битого ответа
//   - ctx.Err() при отмене или по Timeout
//   - ErrNotConnected, если Delegator остановлен во время ожидания
//   - ErrPublishRequest, если запрос не ушёл в брокер
func (d *Delegator) Invoke(ctx context.Context, name string, params ...any) (Reply, error) {
	d.mu.Lock()
	if d.state != StateStarted {
		d.mu.Unlock()
		return nil, ErrQueueNotStarted
	}
	publisher, replyQueue := d.publisher, d.replyQueue
	d.mu.Unlock()

	body, err := EncodeParams(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	correlationID := uuid.NewString()
	logger := telemetry.WithTarget(telemetry.WithCorrelationID(d.logger, correlationID), name)

	outcome := make(chan callOutcome, 1)
	resolve := func(reply Reply) error {
		outcome <- callOutcome{reply: reply}
		return nil
	}
	reject := func(err error) error {
		outcome <- callOutcome{err: err}
		return nil
	}

	d.pending.add(correlationID, &pendingCall{
		handler: NewReplyHandler(correlationID, resolve, reject),
		reject:  reject,
	})

	rec := domain.NewCallRecord(correlationID, name, body, time.Now())
	d.metrics.callStarted()

	if err := publisher.PublishRequest(ctx, name, correlationID, replyQueue, body); err != nil {
		d.pending.take(correlationID)
		err = fmt.Errorf("%w: %w", ErrPublishRequest, err)
		d.finish(ctx, rec, nil, err)
		return nil, err
	}

	logger.Debug("request published")

	select {
	case out := <-outcome:
		var remote *RemoteError
		if errors.As(out.err, &remote) {
			remote.Target = name
		}
		d.finish(ctx, rec, out.reply, out.err)
		return out.reply, out.err

	case <-ctx.Done():
		d.pending.take(correlationID)
		err := ctx.Err()
		logger.Warn("call abandoned before reply", "error", err)
		d.finish(ctx, rec, nil, err)
		return nil, err
	}
}

// Call вызывает задачу и декодирует результат в T.
func Call[T any](ctx context.Context, d *Delegator, name string, params ...any) (T, error) {
	var result T

	reply, err := d.Invoke(ctx, name, params...)
	if err != nil {
		return result, err
	}

	if err := reply.Decode(&result); err != nil {
		return result, err
	}
	return result, nil
}

// dispatchReply передаёт ответ ожидающему вызову.
func (d *Delegator) dispatchReply(ctx context.Context, delivery *mq.Delivery) error {
	call, ok := d.pending.take(delivery.CorrelationID())
	if !ok {
		d.logger.Warn("discarding reply with unknown correlation id",
			"correlation_id", delivery.CorrelationID(),
			"type", delivery.Type(),
		)
		d.metrics.strayReply()
		return nil
	}

	return call.handler(ctx, delivery)
}

// finish фиксирует итог вызова в метриках и журнале.
func (d *Delegator) finish(ctx context.Context, rec *domain.CallRecord, reply Reply, callErr error) {
	now := time.Now()
	switch {
	case callErr == nil:
		rec.MarkSucceeded(reply, now)
	case errors.Is(callErr, context.DeadlineExceeded):
		rec.MarkTimedOut(callErr.Error(), now)
	default:
		rec.MarkFailed(callErr.Error(), now)
	}

	d.metrics.callFinished(rec.Target, rec.Status, rec.Duration())

	if d.journal == nil {
		return
	}
	if err := d.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.Warn("failed to record call",
			"correlation_id", rec.CorrelationID,
			"target", rec.Target,
			"error", err,
		)
	}
}

// Stop закрывает очередь ответов, канал и соединение.
// Вызовы, ещё ожидающие ответа, завершаются с ErrNotConnected.
func (d *Delegator) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateStarted {
		return ErrNotConnected
	}

	d.consumer.Stop()

	var errs []error
	if err := d.ch.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	if err := d.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}

	for _, call := range d.pending.drain() {
		call.reject(ErrNotConnected)
	}

	d.conn = nil
	d.ch = nil
	d.publisher = nil
	d.consumer = nil
	d.replyQueue = ""
	d.state = StateNotStarted

	d.logger.Info("delegator stopped")
	return errors.Join(errs...)
}
