package cli

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Delegate/internal/domain"
	"github.com/shaiso/Delegate/internal/repo"
	"github.com/shaiso/Delegate/internal/rpc"
)

type fakeInvoker struct {
	name   string
	params []any
	reply  rpc.Reply
	err    error
}

func (f *fakeInvoker) Invoke(_ context.Context, name string, params ...any) (rpc.Reply, error) {
	f.name = name
	f.params = params
	return f.reply, f.err
}

type fakeLister struct {
	filter  repo.CallFilter
	records []domain.CallRecord
}

func (f *fakeLister) List(_ context.Context, filter repo.CallFilter) ([]domain.CallRecord, error) {
	f.filter = filter
	return f.records, nil
}

func TestParseParams(t *testing.T) {
	got := ParseParams([]string{"2", "3.5", "hello", `{"a":1}`, "[1,2]", "true", `"quoted"`})
	want := []any{
		float64(2),
		3.5,
		"hello",
		map[string]any{"a": float64(1)},
		[]any{float64(1), float64(2)},
		true,
		"quoted",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseParams = %#v, want %#v", got, want)
	}
}

func TestParseParams_Empty(t *testing.T) {
	got := ParseParams(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("ParseParams(nil) = %#v, want empty slice", got)
	}
}

func newTestInvokeCmd(inv *fakeInvoker, flags *BrokerFlags, out *Output) func(args ...string) error {
	connect := func(_ context.Context, f BrokerFlags) (Invoker, func() error, error) {
		*flags = f
		return inv, func() error { return nil }, nil
	}
	defaults := BrokerFlags{URL: "amqp://default/", Timeout: 30 * time.Second}
	cmd := NewInvokeCmd(connect, defaults, func() *Output { return out })
	return func(args ...string) error {
		// nil заставит cobra читать os.Args тестового бинарника
		cmd.SetArgs(append([]string{}, args...))
		return cmd.ExecuteContext(context.Background())
	}
}

func TestInvokeCmd(t *testing.T) {
	var stdout, stderr bytes.Buffer
	inv := &fakeInvoker{reply: rpc.Reply(`5`)}
	var flags BrokerFlags

	run := newTestInvokeCmd(inv, &flags, newOutput(&stdout, &stderr, false))
	if err := run("add", "2", "3", "--exchange", "math", "--timeout", "5s"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if inv.name != "add" {
		t.Errorf("name = %q, want add", inv.name)
	}
	if !reflect.DeepEqual(inv.params, []any{float64(2), float64(3)}) {
		t.Errorf("params = %#v", inv.params)
	}
	if flags.URL != "amqp://default/" || flags.Exchange != "math" || flags.Timeout != 5*time.Second {
		t.Errorf("flags = %+v", flags)
	}
	if got := strings.TrimSpace(stdout.String()); got != "5" {
		t.Errorf("stdout = %q, want 5", got)
	}
}

func TestInvokeCmd_StringReplyUnquoted(t *testing.T) {
	var stdout, stderr bytes.Buffer
	inv := &fakeInvoker{reply: rpc.Reply(`"hello"`)}
	var flags BrokerFlags

	run := newTestInvokeCmd(inv, &flags, newOutput(&stdout, &stderr, false))
	if err := run("echo", "hello"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "hello" {
		t.Errorf("stdout = %q, want hello", got)
	}
}

func TestInvokeCmd_JSONMode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	inv := &fakeInvoker{reply: rpc.Reply(`{"sum":5}`)}
	var flags BrokerFlags

	run := newTestInvokeCmd(inv, &flags, newOutput(&stdout, &stderr, true))
	if err := run("add", "2", "3"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var got map[string]any
	if err := codec.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v (%q)", err, stdout.String())
	}
	if got["sum"] != float64(5) {
		t.Errorf("sum = %v, want 5", got["sum"])
	}
}

func TestInvokeCmd_Error(t *testing.T) {
	var stdout, stderr bytes.Buffer
	remote := &rpc.RemoteError{Target: "add", Message: "boom"}
	inv := &fakeInvoker{err: remote}
	var flags BrokerFlags

	run := newTestInvokeCmd(inv, &flags, newOutput(&stdout, &stderr, false))
	err := run("add")
	if !errors.Is(err, remote) {
		t.Errorf("err = %v, want remote error", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}

func TestInvokeCmd_RequiresName(t *testing.T) {
	var stdout, stderr bytes.Buffer
	var flags BrokerFlags
	run := newTestInvokeCmd(&fakeInvoker{}, &flags, newOutput(&stdout, &stderr, false))
	if err := run(); err == nil {
		t.Error("expected error without task name")
	}
}

func TestInvokeCmd_ConnectError(t *testing.T) {
	connectErr := errors.New("dial failed")
	connect := func(context.Context, BrokerFlags) (Invoker, func() error, error) {
		return nil, nil, connectErr
	}
	var stdout, stderr bytes.Buffer
	out := newOutput(&stdout, &stderr, false)
	cmd := NewInvokeCmd(connect, BrokerFlags{}, func() *Output { return out })
	cmd.SetArgs([]string{"add"})

	if err := cmd.ExecuteContext(context.Background()); !errors.Is(err, connectErr) {
		t.Errorf("err = %v, want %v", err, connectErr)
	}
}

func newTestCallsCmd(lister *fakeLister, opened *string, defaultDSN string, out *Output) func(args ...string) error {
	open := func(_ context.Context, dsn string) (CallLister, func(), error) {
		*opened = dsn
		return lister, func() {}, nil
	}
	cmd := NewCallsCmd(open, defaultDSN, func() *Output { return out })
	return func(args ...string) error {
		// nil заставит cobra читать os.Args тестового бинарника
		cmd.SetArgs(append([]string{}, args...))
		return cmd.ExecuteContext(context.Background())
	}
}

func TestCallsCmd_Table(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	lister := &fakeLister{records: []domain.CallRecord{
		{
			CorrelationID: "c-1",
			Target:        "add",
			Status:        domain.CallStatusSucceeded,
			StartedAt:     started,
			FinishedAt:    started.Add(250 * time.Millisecond),
		},
		{
			CorrelationID: "c-2",
			Target:        "add",
			Status:        domain.CallStatusFailed,
			Error:         "boom",
			StartedAt:     started,
			FinishedAt:    started.Add(time.Second),
		},
	}}
	var stdout, stderr bytes.Buffer
	var dsn string

	run := newTestCallsCmd(lister, &dsn, "postgres://journal", newOutput(&stdout, &stderr, false))
	if err := run("--target", "add", "--status", "failed", "--limit", "5"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if dsn != "postgres://journal" {
		t.Errorf("dsn = %q", dsn)
	}
	want := repo.CallFilter{Target: "add", Status: domain.CallStatusFailed, Limit: 5}
	if lister.filter != want {
		t.Errorf("filter = %+v, want %+v", lister.filter, want)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + separator + 2 rows:\n%s", len(lines), stdout.String())
	}
	if !strings.HasPrefix(lines[0], "CORRELATION_ID") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "250ms") || !strings.Contains(lines[2], "SUCCEEDED") {
		t.Errorf("row 1 = %q", lines[2])
	}
	if !strings.Contains(lines[3], "boom") {
		t.Errorf("row 2 = %q", lines[3])
	}
}

func TestCallsCmd_JSON(t *testing.T) {
	lister := &fakeLister{records: []domain.CallRecord{
		{CorrelationID: "c-1", Target: "echo", Status: domain.CallStatusTimedOut},
	}}
	var stdout, stderr bytes.Buffer
	var dsn string

	run := newTestCallsCmd(lister, &dsn, "postgres://journal", newOutput(&stdout, &stderr, true))
	if err := run(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var got []map[string]any
	if err := codec.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if len(got) != 1 || got[0]["correlation_id"] != "c-1" || got[0]["status"] != "TIMED_OUT" {
		t.Errorf("got %v", got)
	}
}

func TestCallsCmd_InvalidStatus(t *testing.T) {
	var stdout, stderr bytes.Buffer
	var dsn string
	run := newTestCallsCmd(&fakeLister{}, &dsn, "postgres://journal", newOutput(&stdout, &stderr, false))

	if err := run("--status", "RUNNING"); err == nil {
		t.Error("expected error for unknown status")
	}
	if dsn != "" {
		t.Error("journal must not be opened for invalid input")
	}
}

func TestCallsCmd_NoJournal(t *testing.T) {
	var stdout, stderr bytes.Buffer
	var dsn string
	run := newTestCallsCmd(&fakeLister{}, &dsn, "", newOutput(&stdout, &stderr, false))

	err := run()
	if err == nil || !strings.Contains(err.Error(), "DB_URL") {
		t.Errorf("err = %v, want journal not configured", err)
	}
}

func TestEnvCmd(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := newOutput(&stdout, &stderr, false)
	cmd := NewEnvCmd(func() *Output { return out })
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, name := range []string{"RABBITMQ_URL", "WORKER_TASKS", "API_PORT", "SCHEDULER_PORT", "DB_URL"} {
		if !strings.Contains(stdout.String(), name) {
			t.Errorf("env output misses %s", name)
		}
	}
}

func TestOutput_Table(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := newOutput(&stdout, &stderr, false)

	out.Print([]string{"ID", "NAME"}, [][]string{{"1", "add"}}, nil)

	want := "ID  NAME\n--  ----\n1   add\n"
	if stdout.String() != want {
		t.Errorf("table = %q, want %q", stdout.String(), want)
	}
}

func TestOutput_Messages(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := newOutput(&stdout, &stderr, false)

	out.Success("done")
	out.Error("failed")

	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
	if stderr.String() != "done\nError: failed\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
}
