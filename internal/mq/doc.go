// Package mq предоставляет транспорт поверх RabbitMQ для RPC.
//
// Структура:
//   - connection.go — соединение с RabbitMQ и наблюдатели событий (onError, onClose)
//   - channel.go    — интерфейс Channel и его AMQP-реализация
//   - topology.go   — объявление очередей воркеров, очередей ответов, exchange
//   - publisher.go  — публикация запросов и ответов с correlation id
//   - consumer.go   — потребление сообщений из очереди
//
// Типы сообщений:
//   - rpc.request — вызов задачи, routing key = имя воркера
//   - rpc.reply   — результат задачи, routing key = ReplyTo запроса
//   - rpc.error   — ошибка задачи, тело содержит текст ошибки
//
// Для тестов без брокера см. пакет mqtest.
package mq
