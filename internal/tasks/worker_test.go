package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shaiso/Delegate/internal/mq/mqtest"
	"github.com/shaiso/Delegate/internal/rpc"
)

// Встроенные задачи, обслуживаемые настоящими Worker'ами через брокер в памяти.
func TestBuiltinTasksOverBroker(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := mqtest.NewBroker()
	registry := DefaultRegistry()

	for _, name := range []string{"add", "multiply", "echo"} {
		task, err := registry.Get(name)
		if err != nil {
			t.Fatalf("get %s: %v", name, err)
		}
		w, err := rpc.NewWorker(rpc.WorkerConfig{Name: name, Task: task, Dial: b.Dial, Logger: logger})
		if err != nil {
			t.Fatalf("new worker %s: %v", name, err)
		}
		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("start worker %s: %v", name, err)
		}
		defer w.Stop()
	}

	d := rpc.NewDelegator(rpc.DelegatorOptions{Dial: b.Dial, Logger: logger})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start delegator: %v", err)
	}
	defer d.Stop()

	sum, err := rpc.Call[int](context.Background(), d, "add", 10, 15)
	if err != nil || sum != 25 {
		t.Errorf("add: expected 25, got %d (%v)", sum, err)
	}

	product, err := rpc.Call[int](context.Background(), d, "multiply", 6, 7)
	if err != nil || product != 42 {
		t.Errorf("multiply: expected 42, got %d (%v)", product, err)
	}

	echoed, err := rpc.Call[[]string](context.Background(), d, "echo", "a", "b")
	if err != nil || len(echoed) != 2 || echoed[0] != "a" || echoed[1] != "b" {
		t.Errorf("echo: unexpected %v (%v)", echoed, err)
	}

	_, err = d.Invoke(context.Background(), "add", "ten")
	var remote *rpc.RemoteError
	if !errors.As(err, &remote) {
		t.Errorf("add with a string: expected RemoteError, got %v", err)
	}
}
