package mq

import (
	"fmt"
)

// Exchange — тип для имени обменника.
type Exchange string

// ExchangeDefault — default exchange RabbitMQ: routing key совпадает с именем очереди.
const ExchangeDefault Exchange = ""

// ExchangeKindDirect — тип обменника для именованных воркеров.
const ExchangeKindDirect = "direct"

// DeclareWorkerQueue объявляет очередь воркера.
//
// Очередь non-durable и общая для всех экземпляров с тем же именем —
// брокер распределяет доставки между ними. Если задан exchange,
// он объявляется как direct и очередь привязывается к нему по имени.
func DeclareWorkerQueue(ch Channel, exchange Exchange, name string) error {
	if _, err := ch.QueueDeclare(name, QueueOptions{
		Durable:    false,
		AutoDelete: false,
		Exclusive:  false,
	}); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}

	if exchange == ExchangeDefault {
		return nil
	}

	if err := ch.ExchangeDeclare(string(exchange), ExchangeKindDirect); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	if err := ch.QueueBind(name, name, string(exchange)); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", name, exchange, err)
	}

	return nil
}

// DeclareReplyQueue объявляет анонимную очередь ответов.
//
// Очередь эксклюзивна для соединения и удаляется вместе с ним,
// поэтому в неё не попадают ответы чужих вызывающих.
func DeclareReplyQueue(ch Channel) (string, error) {
	name, err := ch.QueueDeclare("", QueueOptions{
		Durable:    false,
		AutoDelete: true,
		Exclusive:  true,
	})
	if err != nil {
		return "", fmt.Errorf("declare reply queue: %w", err)
	}
	return name, nil
}
