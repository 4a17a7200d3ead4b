// Package mqtest предоставляет брокер в памяти для тестов пакетов,
// работающих через mq.Conn и mq.Channel.
//
// Поддерживается то, что нужно RPC: default exchange и direct exchange,
// анонимные, эксклюзивные и auto-delete очереди, prefetch, ack/nack,
// round-robin между consumers одной очереди и возврат неподтверждённых
// сообщений в очередь при закрытии канала.
package mqtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Delegate/internal/mq"
)

// Ошибки брокера.
var (
	ErrQueueNotFound    = errors.New("queue not found")
	ErrQueueLocked      = errors.New("queue is exclusive to another connection")
	ErrExchangeNotFound = errors.New("exchange not found")
	ErrUnknownTag       = errors.New("unknown delivery tag")
)

// message — сообщение в очереди вместе с адресом публикации.
type message struct {
	exchange   string
	routingKey string
	msg        amqp.Publishing
}

type queue struct {
	name         string
	opts         mq.QueueOptions
	owner        *conn
	messages     []message
	consumers    []*consumer
	next         int
	acks         int
	hadConsumers bool
}

type consumer struct {
	ch         *channel
	q          *queue
	tag        string
	autoAck    bool
	prefetch   int
	deliveries chan amqp.Delivery
	unacked    map[uint64]message
}

// Broker — брокер в памяти.
type Broker struct {
	mu        sync.Mutex
	queues    map[string]*queue
	exchanges map[string]map[string][]string // exchange -> routing key -> queues
	conns     map[*conn]struct{}
	seq       uint64
	dials     int
	dialErr   error
}

// NewBroker создаёт пустой брокер.
func NewBroker() *Broker {
	return &Broker{
		queues:    make(map[string]*queue),
		exchanges: make(map[string]map[string][]string),
		conns:     make(map[*conn]struct{}),
	}
}

// Dial реализует mq.DialFunc.
func (b *Broker) Dial(_ string, events mq.Events, _ *slog.Logger) (mq.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dialErr != nil {
		return nil, b.dialErr
	}

	b.dials++
	c := &conn{b: b, events: events}
	b.conns[c] = struct{}{}
	return c, nil
}

// SetDialError заставляет последующие Dial возвращать err (nil — снять).
func (b *Broker) SetDialError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dialErr = err
}

// Dials возвращает число успешных подключений.
func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// OpenConnections возвращает число незакрытых соединений.
func (b *Broker) OpenConnections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Fault закрывает все соединения с ошибкой err, как при разрыве брокером.
func (b *Broker) Fault(err error) {
	b.mu.Lock()
	conns := make([]*conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		c.close(err)
	}
}

// Inject кладёт сообщение прямо в очередь, минуя exchange.
func (b *Broker) Inject(queueName string, msg amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[queueName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrQueueNotFound, queueName)
	}
	q.messages = append(q.messages, message{routingKey: queueName, msg: msg})
	b.dispatch(q)
	return nil
}

// QueueExists проверяет, объявлена ли очередь.
func (b *Broker) QueueExists(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.queues[name]
	return ok
}

// QueueOptions возвращает параметры, с которыми объявлена очередь.
func (b *Broker) QueueOptions(name string) (mq.QueueOptions, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return mq.QueueOptions{}, false
	}
	return q.opts, true
}

// Ready возвращает число сообщений, ожидающих доставки.
func (b *Broker) Ready(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[name]; ok {
		return len(q.messages)
	}
	return 0
}

// Unacked возвращает число доставленных, но не подтверждённых сообщений очереди.
func (b *Broker) Unacked(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return 0
	}
	n := 0
	for _, c := range q.consumers {
		n += len(c.unacked)
	}
	return n
}

// Acks возвращает число подтверждений, полученных очередью.
func (b *Broker) Acks(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[name]; ok {
		return q.acks
	}
	return 0
}

// Consumers возвращает число consumers очереди.
func (b *Broker) Consumers(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[name]; ok {
		return len(q.consumers)
	}
	return 0
}

// route возвращает очереди для exchange/routing key. Вызывается под b.mu.
func (b *Broker) route(exchange, routingKey string) ([]*queue, error) {
	if exchange == "" {
		if q, ok := b.queues[routingKey]; ok {
			return []*queue{q}, nil
		}
		return nil, nil
	}

	bindings, ok := b.exchanges[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExchangeNotFound, exchange)
	}

	var queues []*queue
	for _, name := range bindings[routingKey] {
		if q, ok := b.queues[name]; ok {
			queues = append(queues, q)
		}
	}
	return queues, nil
}

// dispatch раздаёт готовые сообщения consumers очереди по кругу,
// соблюдая prefetch. Вызывается под b.mu.
func (b *Broker) dispatch(q *queue) {
	for len(q.messages) > 0 {
		c := q.nextConsumer()
		if c == nil {
			return
		}

		m := q.messages[0]
		q.messages = q.messages[1:]

		b.seq++
		tag := b.seq
		if !c.autoAck {
			c.unacked[tag] = m
		}

		c.deliveries <- amqp.Delivery{
			Acknowledger:  &acker{b: b, c: c},
			ContentType:   m.msg.ContentType,
			DeliveryMode:  m.msg.DeliveryMode,
			CorrelationId: m.msg.CorrelationId,
			ReplyTo:       m.msg.ReplyTo,
			MessageId:     m.msg.MessageId,
			Timestamp:     m.msg.Timestamp,
			Type:          m.msg.Type,
			Headers:       m.msg.Headers,
			ConsumerTag:   c.tag,
			DeliveryTag:   tag,
			Exchange:      m.exchange,
			RoutingKey:    m.routingKey,
			Body:          m.msg.Body,
		}
	}
}

// nextConsumer выбирает следующего consumer, готового принять сообщение.
func (q *queue) nextConsumer() *consumer {
	n := len(q.consumers)
	for i := 0; i < n; i++ {
		c := q.consumers[(q.next+i)%n]
		if c.ready() {
			q.next = (q.next + i + 1) % n
			return c
		}
	}
	return nil
}

func (c *consumer) ready() bool {
	if len(c.deliveries) == cap(c.deliveries) {
		return false
	}
	if c.autoAck || c.prefetch <= 0 {
		return true
	}
	return len(c.unacked) < c.prefetch
}

// removeConsumer отписывает consumer и возвращает его неподтверждённые
// сообщения в начало очереди. Вызывается под b.mu.
func (b *Broker) removeConsumer(c *consumer) {
	q := c.q
	for i, other := range q.consumers {
		if other == c {
			q.consumers = append(q.consumers[:i], q.consumers[i+1:]...)
			break
		}
	}
	if q.next >= len(q.consumers) {
		q.next = 0
	}

	if len(c.unacked) > 0 {
		requeued := make([]message, 0, len(c.unacked)+len(q.messages))
		for _, m := range c.unacked {
			requeued = append(requeued, m)
		}
		q.messages = append(requeued, q.messages...)
		c.unacked = map[uint64]message{}
	}

	close(c.deliveries)

	if q.opts.AutoDelete && q.hadConsumers && len(q.consumers) == 0 {
		b.deleteQueue(q)
		return
	}
	b.dispatch(q)
}

// deleteQueue удаляет очередь и её привязки. Вызывается под b.mu.
func (b *Broker) deleteQueue(q *queue) {
	delete(b.queues, q.name)
	for _, bindings := range b.exchanges {
		for key, names := range bindings {
			kept := names[:0]
			for _, name := range names {
				if name != q.name {
					kept = append(kept, name)
				}
			}
			bindings[key] = kept
		}
	}
}

// acker реализует amqp.Acknowledger.
type acker struct {
	b *Broker
	c *consumer
}

func (a *acker) Ack(tag uint64, _ bool) error {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()

	if _, ok := a.c.unacked[tag]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	delete(a.c.unacked, tag)
	a.c.q.acks++
	a.b.dispatch(a.c.q)
	return nil
}

func (a *acker) Nack(tag uint64, _ bool, requeue bool) error {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()

	m, ok := a.c.unacked[tag]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	delete(a.c.unacked, tag)
	if requeue {
		a.c.q.messages = append([]message{m}, a.c.q.messages...)
	}
	a.b.dispatch(a.c.q)
	return nil
}

func (a *acker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

// conn реализует mq.Conn.
type conn struct {
	b        *Broker
	events   mq.Events
	channels []*channel
	closed   bool
}

func (c *conn) Channel() (mq.Channel, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()

	if c.closed {
		return nil, amqp.ErrClosed
	}

	ch := &channel{b: c.b, conn: c}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *conn) Close() error {
	c.close(nil)
	return nil
}

// close закрывает каналы, эксклюзивные очереди и уведомляет наблюдателей.
func (c *conn) close(cause error) {
	c.b.mu.Lock()
	if c.closed {
		c.b.mu.Unlock()
		return
	}
	c.closed = true
	for _, ch := range c.channels {
		ch.closeLocked()
	}
	for _, q := range c.b.queues {
		if q.owner == c {
			c.b.deleteQueue(q)
		}
	}
	delete(c.b.conns, c)
	c.b.mu.Unlock()

	if cause != nil && c.events.OnError != nil {
		c.events.OnError(cause)
	}
	if c.events.OnClose != nil {
		c.events.OnClose()
	}
}

// channel реализует mq.Channel.
type channel struct {
	b         *Broker
	conn      *conn
	prefetch  int
	consumers []*consumer
	closed    bool
}

func (ch *channel) QueueDeclare(name string, opts mq.QueueOptions) (string, error) {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return "", amqp.ErrClosed
	}

	if name == "" {
		ch.b.seq++
		name = fmt.Sprintf("amq.gen-%d", ch.b.seq)
	}

	if q, ok := ch.b.queues[name]; ok {
		if q.opts.Exclusive && q.owner != ch.conn {
			return "", fmt.Errorf("%w: %s", ErrQueueLocked, name)
		}
		return name, nil
	}

	q := &queue{name: name, opts: opts}
	if opts.Exclusive {
		q.owner = ch.conn
	}
	ch.b.queues[name] = q
	return name, nil
}

func (ch *channel) ExchangeDeclare(name, _ string) error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	if _, ok := ch.b.exchanges[name]; !ok {
		ch.b.exchanges[name] = make(map[string][]string)
	}
	return nil
}

func (ch *channel) QueueBind(queueName, routingKey, exchange string) error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	bindings, ok := ch.b.exchanges[exchange]
	if !ok {
		return fmt.Errorf("%w: %s", ErrExchangeNotFound, exchange)
	}
	if _, ok := ch.b.queues[queueName]; !ok {
		return fmt.Errorf("%w: %s", ErrQueueNotFound, queueName)
	}
	for _, name := range bindings[routingKey] {
		if name == queueName {
			return nil
		}
	}
	bindings[routingKey] = append(bindings[routingKey], queueName)
	return nil
}

func (ch *channel) Qos(prefetch int) error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	ch.prefetch = prefetch
	return nil
}

// deliveryBuffer — ёмкость буфера доставок одного consumer.
const deliveryBuffer = 256

func (ch *channel) Consume(queueName string, opts mq.ConsumeOptions) (<-chan amqp.Delivery, error) {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return nil, amqp.ErrClosed
	}
	q, ok := ch.b.queues[queueName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotFound, queueName)
	}
	if q.opts.Exclusive && q.owner != ch.conn {
		return nil, fmt.Errorf("%w: %s", ErrQueueLocked, queueName)
	}

	tag := opts.Tag
	if tag == "" {
		ch.b.seq++
		tag = fmt.Sprintf("ctag-%d", ch.b.seq)
	}

	c := &consumer{
		ch:         ch,
		q:          q,
		tag:        tag,
		autoAck:    opts.AutoAck,
		prefetch:   ch.prefetch,
		deliveries: make(chan amqp.Delivery, deliveryBuffer),
		unacked:    make(map[uint64]message),
	}
	ch.consumers = append(ch.consumers, c)
	q.consumers = append(q.consumers, c)
	q.hadConsumers = true

	ch.b.dispatch(q)
	return c.deliveries, nil
}

func (ch *channel) Publish(_ context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}

	queues, err := ch.b.route(exchange, routingKey)
	if err != nil {
		return err
	}

	// Немаршрутизируемое сообщение отбрасывается, как в RabbitMQ без mandatory
	for _, q := range queues {
		q.messages = append(q.messages, message{exchange: exchange, routingKey: routingKey, msg: msg})
		ch.b.dispatch(q)
	}
	return nil
}

func (ch *channel) Close() error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	ch.closeLocked()
	return nil
}

// closeLocked закрывает канал. Вызывается под b.mu.
func (ch *channel) closeLocked() {
	if ch.closed {
		return
	}
	ch.closed = true
	for _, c := range ch.consumers {
		ch.b.removeConsumer(c)
	}
	ch.consumers = nil
}
