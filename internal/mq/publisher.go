package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRequest MessageType = "rpc.request"
	MessageTypeReply   MessageType = "rpc.reply"
	MessageTypeError   MessageType = "rpc.error"
)

// ContentTypeJSON — content type всех RPC сообщений.
const ContentTypeJSON = "application/json"

// Envelope — сообщение для публикации.
type Envelope struct {
	// Type — тип сообщения.
	Type MessageType

	// CorrelationID связывает запрос с ответом.
	CorrelationID string

	// ReplyTo — очередь для ответа (только у запросов).
	ReplyTo string

	// Body — сериализованное тело.
	Body []byte
}

// Publisher публикует RPC сообщения в канал.
type Publisher struct {
	ch       Channel
	exchange Exchange
	logger   *slog.Logger
}

// NewPublisher создаёт новый Publisher.
// exchange используется для запросов; ответы всегда идут через default exchange.
func NewPublisher(ch Channel, exchange Exchange, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey string, env Envelope) error {
	msg := amqp.Publishing{
		ContentType:   ContentTypeJSON,
		DeliveryMode:  amqp.Transient,
		MessageId:     uuid.New().String(),
		Timestamp:     time.Now(),
		Type:          string(env.Type),
		CorrelationId: env.CorrelationID,
		ReplyTo:       env.ReplyTo,
		Body:          env.Body,
	}

	if err := p.ch.Publish(ctx, string(exchange), routingKey, msg); err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.MessageId,
		"correlation_id", env.CorrelationID,
		"type", env.Type,
	)

	return nil
}

// PublishRequest публикует вызов задачи target.
// Потребитель: Worker с именем target.
func (p *Publisher) PublishRequest(ctx context.Context, target, correlationID, replyTo string, body []byte) error {
	return p.Publish(ctx, p.exchange, target, Envelope{
		Type:          MessageTypeRequest,
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
		Body:          body,
	})
}

// PublishReply публикует результат задачи в очередь replyTo.
// Потребитель: Delegator.
func (p *Publisher) PublishReply(ctx context.Context, replyTo, correlationID string, body []byte) error {
	return p.Publish(ctx, ExchangeDefault, replyTo, Envelope{
		Type:          MessageTypeReply,
		CorrelationID: correlationID,
		Body:          body,
	})
}

// PublishError публикует ошибку задачи в очередь replyTo.
func (p *Publisher) PublishError(ctx context.Context, replyTo, correlationID string, body []byte) error {
	return p.Publish(ctx, ExchangeDefault, replyTo, Envelope{
		Type:          MessageTypeError,
		CorrelationID: correlationID,
		Body:          body,
	})
}
