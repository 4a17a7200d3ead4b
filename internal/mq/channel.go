package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueOptions — параметры объявления очереди.
type QueueOptions struct {
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Args       amqp.Table
}

// ConsumeOptions — параметры подписки на очередь.
type ConsumeOptions struct {
	// Tag — consumer tag; пустой — сгенерирует брокер.
	Tag string

	// AutoAck — брокер считает сообщение подтверждённым сразу при доставке.
	AutoAck bool

	// Exclusive — единственный consumer очереди.
	Exclusive bool
}

// Channel — примитивы канала, которые использует RPC.
//
// Канал принадлежит одному Delegator или Worker и не разделяется между ними.
type Channel interface {
	// QueueDeclare объявляет очередь и возвращает её имя
	// (для name == "" имя генерирует брокер).
	QueueDeclare(name string, opts QueueOptions) (string, error)

	// ExchangeDeclare объявляет non-durable exchange.
	ExchangeDeclare(name, kind string) error

	// QueueBind привязывает очередь к exchange по routing key.
	QueueBind(queue, routingKey, exchange string) error

	// Qos ограничивает число неподтверждённых сообщений на consumer.
	Qos(prefetch int) error

	// Consume подписывается на очередь.
	Consume(queue string, opts ConsumeOptions) (<-chan amqp.Delivery, error)

	// Publish публикует сообщение.
	Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error

	// Close закрывает канал.
	Close() error
}

// amqpChannel — реализация Channel поверх *amqp.Channel.
type amqpChannel struct {
	ch *amqp.Channel
}

func (c *amqpChannel) QueueDeclare(name string, opts QueueOptions) (string, error) {
	q, err := c.ch.QueueDeclare(
		name,            // name
		opts.Durable,    // durable
		opts.AutoDelete, // delete when unused
		opts.Exclusive,  // exclusive
		false,           // no-wait
		opts.Args,       // arguments
	)
	if err != nil {
		return "", err
	}
	return q.Name, nil
}

func (c *amqpChannel) ExchangeDeclare(name, kind string) error {
	return c.ch.ExchangeDeclare(
		name,  // name
		kind,  // type
		false, // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
}

func (c *amqpChannel) QueueBind(queue, routingKey, exchange string) error {
	return c.ch.QueueBind(queue, routingKey, exchange, false, nil)
}

func (c *amqpChannel) Qos(prefetch int) error {
	return c.ch.Qos(prefetch, 0, false)
}

func (c *amqpChannel) Consume(queue string, opts ConsumeOptions) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(
		queue,          // queue
		opts.Tag,       // consumer tag
		opts.AutoAck,   // auto-ack
		opts.Exclusive, // exclusive
		false,          // no-local
		false,          // no-wait
		nil,            // args
	)
}

func (c *amqpChannel) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	return c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}

func (c *amqpChannel) Close() error {
	return c.ch.Close()
}
