package rpc

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Delegate/internal/domain"
	"github.com/shaiso/Delegate/internal/mq"
	"github.com/shaiso/Delegate/internal/mq/mqtest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// adder складывает первые два параметра.
func adder(_ context.Context, p Params) (any, error) {
	a, err := p.Float(0)
	if err != nil {
		return nil, err
	}
	b, err := p.Float(1)
	if err != nil {
		return nil, err
	}
	return a + b, nil
}

func startWorker(t *testing.T, b *mqtest.Broker, cfg WorkerConfig) *Worker {
	t.Helper()

	cfg.Dial = b.Dial
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}

	w, err := NewWorker(cfg)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	t.Cleanup(func() {
		if w.State() == StateStarted {
			w.Stop()
		}
	})
	return w
}

func startDelegator(t *testing.T, b *mqtest.Broker, opts DelegatorOptions) *Delegator {
	t.Helper()

	opts.Dial = b.Dial
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	d := NewDelegator(opts)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start delegator: %v", err)
	}
	t.Cleanup(func() {
		if d.State() == StateStarted {
			d.Stop()
		}
	})
	return d
}

// eventually ждёт выполнения условия до секунды.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

// fakeWorker — воркер без TaskRunner: отвечает на каждый запрос функцией reply.
func fakeWorker(t *testing.T, b *mqtest.Broker, name string, reply func(ctx context.Context, ch mq.Channel, req amqp.Delivery)) {
	t.Helper()

	conn, err := b.Dial("", mq.Events{}, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	if _, err := ch.QueueDeclare(name, mq.QueueOptions{}); err != nil {
		t.Fatalf("declare: %v", err)
	}
	requests, err := ch.Consume(name, mq.ConsumeOptions{AutoAck: true})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	go func() {
		for req := range requests {
			reply(context.Background(), ch, req)
		}
	}()

	t.Cleanup(func() { conn.Close() })
}

// fakeJournal запоминает записанные вызовы.
type fakeJournal struct {
	mu      sync.Mutex
	records []*domain.CallRecord
}

func (j *fakeJournal) Record(_ context.Context, rec *domain.CallRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *fakeJournal) all() []*domain.CallRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*domain.CallRecord(nil), j.records...)
}
