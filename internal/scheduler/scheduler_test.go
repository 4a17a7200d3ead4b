package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Delegate/internal/rpc"
)

type invocation struct {
	name   string
	params []any
}

// fakeInvoker запоминает вызовы и отвечает заготовленным результатом.
type fakeInvoker struct {
	mu    sync.Mutex
	calls []invocation
	reply rpc.Reply
	err   error
	wait  bool
}

func (f *fakeInvoker) Invoke(ctx context.Context, name string, params ...any) (rpc.Reply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, invocation{name: name, params: params})
	f.mu.Unlock()

	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.reply, f.err
}

func newTestScheduler(inv Invoker, reg prometheus.Registerer) *Scheduler {
	return New(Config{
		Invoker:    inv,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Location:   time.UTC,
		Registerer: reg,
	})
}

func TestValidateSpec(t *testing.T) {
	valid := []string{"0 3 * * *", "*/5 * * * *", "@hourly", "@every 10m"}
	for _, spec := range valid {
		if err := ValidateSpec(spec); err != nil {
			t.Errorf("%q should be valid: %v", spec, err)
		}
	}

	invalid := []string{"", "* * *", "0 0 3 * * *", "61 * * * *", "@sometimes"}
	for _, spec := range invalid {
		if err := ValidateSpec(spec); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("%q: expected ErrInvalidSpec, got %v", spec, err)
		}
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	next, err := NextRun("0 3 * * *", from)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	want := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestScheduler_Add(t *testing.T) {
	s := newTestScheduler(&fakeInvoker{}, nil)

	if err := s.Add(Entry{Name: "sum", Spec: "0 3 * * *", Target: "add"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", s.Len())
	}

	tests := []struct {
		name    string
		entry   Entry
		wantErr error
	}{
		{"duplicate", Entry{Name: "sum", Spec: "0 3 * * *", Target: "add"}, ErrDuplicateEntry},
		{"no name", Entry{Spec: "0 3 * * *", Target: "add"}, ErrInvalidEntry},
		{"no target", Entry{Name: "x", Spec: "0 3 * * *"}, ErrInvalidEntry},
		{"bad spec", Entry{Name: "x", Spec: "tomorrow", Target: "add"}, ErrInvalidSpec},
		{"negative timeout", Entry{Name: "x", Spec: "@hourly", Target: "add", Timeout: -time.Second}, ErrInvalidEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Add(tt.entry); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if s.Len() != 1 {
		t.Errorf("rejected entries should not be added, got %d", s.Len())
	}
}

func TestScheduler_RemoveAndNext(t *testing.T) {
	s := newTestScheduler(&fakeInvoker{}, nil)

	if err := s.Add(Entry{Name: "sum", Spec: "@hourly", Target: "add"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	next, ok := s.Next("sum")
	if !ok {
		t.Fatal("entry should exist")
	}
	if next.IsZero() || next.Before(time.Now()) {
		t.Errorf("expected a future run, got %v", next)
	}

	if !s.Remove("sum") {
		t.Error("remove should report an existing entry")
	}
	if s.Remove("sum") {
		t.Error("second remove should report a missing entry")
	}
	if _, ok := s.Next("sum"); ok {
		t.Error("removed entry should be gone")
	}
}

func TestScheduler_Run(t *testing.T) {
	inv := &fakeInvoker{reply: rpc.Reply(`3`)}
	reg := prometheus.NewRegistry()
	s := newTestScheduler(inv, reg)

	entry := Entry{Name: "sum", Spec: "@hourly", Target: "add", Params: []any{1, 2}}
	s.run(entry)

	if len(inv.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(inv.calls))
	}
	if inv.calls[0].name != "add" || !reflect.DeepEqual(inv.calls[0].params, []any{1, 2}) {
		t.Errorf("unexpected call %+v", inv.calls[0])
	}
	if v := testutil.ToFloat64(s.runs.WithLabelValues("sum", "succeeded")); v != 1 {
		t.Errorf("expected 1 succeeded run, got %v", v)
	}
}

func TestScheduler_RunFailure(t *testing.T) {
	inv := &fakeInvoker{err: &rpc.RemoteError{Target: "add", Message: "boom"}}
	s := newTestScheduler(inv, prometheus.NewRegistry())

	s.run(Entry{Name: "sum", Spec: "@hourly", Target: "add"})

	if v := testutil.ToFloat64(s.runs.WithLabelValues("sum", "failed")); v != 1 {
		t.Errorf("expected 1 failed run, got %v", v)
	}
}

func TestScheduler_RunTimeout(t *testing.T) {
	inv := &fakeInvoker{wait: true}
	s := newTestScheduler(inv, prometheus.NewRegistry())

	start := time.Now()
	s.run(Entry{Name: "slow", Spec: "@hourly", Target: "delay", Timeout: 10 * time.Millisecond})

	if time.Since(start) > time.Second {
		t.Error("timeout should bound the call")
	}
	if v := testutil.ToFloat64(s.runs.WithLabelValues("slow", "timed_out")); v != 1 {
		t.Errorf("expected 1 timed out run, got %v", v)
	}
}

func TestScheduler_RunUsesStartContext(t *testing.T) {
	inv := &fakeInvoker{wait: true}
	s := newTestScheduler(inv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	defer s.Stop()

	done := make(chan struct{})
	go func() {
		s.run(Entry{Name: "wait", Spec: "@hourly", Target: "delay"})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancelling the start context should release the call")
	}
}
