package mq

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — функция обработки сообщения.
//
// Подтверждение (Ack) — ответственность обработчика: Consumer только
// логирует возвращённую ошибку.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Ack подтверждает обработку сообщения.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Body возвращает тело сообщения.
func (d *Delivery) Body() []byte {
	return d.Raw.Body
}

// CorrelationID возвращает correlation id сообщения.
func (d *Delivery) CorrelationID() string {
	return d.Raw.CorrelationId
}

// ReplyTo возвращает очередь для ответа.
func (d *Delivery) ReplyTo() string {
	return d.Raw.ReplyTo
}

// Type возвращает тип сообщения.
func (d *Delivery) Type() MessageType {
	return MessageType(d.Raw.Type)
}

// Consumer потребляет сообщения из очереди.
//
// Сообщения обрабатываются последовательно в одной горутине.
// Вместе с Prefetch = 1 это даёт не более одной задачи в работе на consumer.
type Consumer struct {
	ch        Channel
	logger    *slog.Logger
	queue     string
	handler   Handler
	prefetch  int
	autoAck   bool
	exclusive bool

	cancelFunc context.CancelFunc
	done       chan struct{}
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — лимит неподтверждённых сообщений (0 — без лимита).
	// Игнорируется при AutoAck.
	Prefetch int

	// AutoAck — брокер подтверждает сообщения сам.
	AutoAck bool

	// Exclusive — единственный consumer очереди.
	Exclusive bool
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(ch Channel, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		ch:        ch,
		logger:    logger,
		queue:     cfg.Queue,
		handler:   cfg.Handler,
		prefetch:  cfg.Prefetch,
		autoAck:   cfg.AutoAck,
		exclusive: cfg.Exclusive,
	}
}

// Start подписывается на очередь и запускает обработку в горутине.
//
// Возвращает ошибку, если подписку установить не удалось.
// Обработка продолжается до отмены ctx, вызова Stop или закрытия канала.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.setupConsume()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		c.processDeliveries(ctx, deliveries)
	}()

	c.logger.Info("consumer started", "queue", c.queue, "prefetch", c.prefetch)
	return nil
}

// setupConsume настраивает канал и начинает потребление.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	if c.ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	// Устанавливаем prefetch
	if !c.autoAck && c.prefetch > 0 {
		if err := c.ch.Qos(c.prefetch); err != nil {
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}

	deliveries, err := c.ch.Consume(c.queue, ConsumeOptions{
		AutoAck:   c.autoAck,
		Exclusive: c.exclusive,
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}

	return deliveries, nil
}

// processDeliveries обрабатывает сообщения из канала.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return

		case raw, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed", "queue", c.queue)
				return
			}

			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	delivery := &Delivery{Raw: raw}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in handler",
				"queue", c.queue,
				"correlation_id", raw.CorrelationId,
				"error", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	c.logger.Debug("received message",
		"queue", c.queue,
		"message_id", raw.MessageId,
		"correlation_id", raw.CorrelationId,
		"type", raw.Type,
	)

	if err := c.handler(ctx, delivery); err != nil {
		c.logger.Error("handler failed",
			"queue", c.queue,
			"message_id", raw.MessageId,
			"correlation_id", raw.CorrelationId,
			"error", err,
		)
	}
}

// Stop останавливает consumer и ждёт завершения текущего обработчика.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	if c.done != nil {
		<-c.done
	}
}

// Done закрывается, когда обработка сообщений завершена.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}
