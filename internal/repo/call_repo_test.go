package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/Delegate/internal/domain"
)

// fakeRow отдаёт заранее заданные значения в Scan.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: expected %d destinations, got %d", len(r.values), len(dest))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *uuid.UUID:
			*d = v.(uuid.UUID)
		case *string:
			*d = v.(string)
		case **string:
			*d = v.(*string)
		case *[]byte:
			if v != nil {
				*d = v.([]byte)
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("unsupported destination %T", dest[i])
		}
	}
	return nil
}

// fakeRows — pgx.Rows поверх списка fakeRow.
type fakeRows struct {
	pgx.Rows
	rows   []fakeRow
	pos    int
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error { return r.rows[r.pos-1].Scan(dest...) }
func (r *fakeRows) Err() error             { return nil }
func (r *fakeRows) Close()                 { r.closed = true }

// fakeDB запоминает запросы и отдаёт заготовленные ответы.
type fakeDB struct {
	execSQL  string
	execArgs []any
	execErr  error

	queryArgs []any
	rows      *fakeRows

	row fakeRow
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execSQL = sql
	db.execArgs = args
	return pgconn.NewCommandTag("INSERT 0 1"), db.execErr
}

func (db *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	db.queryArgs = args
	return db.rows, nil
}

func (db *fakeDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return db.row
}

func strPtr(s string) *string { return &s }

func callRow(id uuid.UUID, correlationID, target string, result []byte, status domain.CallStatus, callErr *string) fakeRow {
	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return fakeRow{values: []any{
		id, correlationID, target, []byte(`[1,2]`), result, string(status), callErr,
		started, started.Add(time.Second),
	}}
}

func TestCallRepo_Record(t *testing.T) {
	db := &fakeDB{}
	repo := NewCallRepo(db)

	rec := domain.NewCallRecord("abc", "add", []byte(`[1,2]`), time.Now())
	rec.MarkSucceeded([]byte(`3`), time.Now())

	if err := repo.Record(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	if !strings.Contains(db.execSQL, "INSERT INTO calls") {
		t.Errorf("unexpected sql %q", db.execSQL)
	}
	if len(db.execArgs) != 9 {
		t.Fatalf("expected 9 args, got %d", len(db.execArgs))
	}
	if db.execArgs[1] != "abc" || db.execArgs[2] != "add" {
		t.Errorf("unexpected correlation/target args %v %v", db.execArgs[1], db.execArgs[2])
	}
	if db.execArgs[4] != "3" {
		t.Errorf("expected result json, got %v", db.execArgs[4])
	}
	if db.execArgs[5] != "SUCCEEDED" {
		t.Errorf("expected status SUCCEEDED, got %v", db.execArgs[5])
	}
	if db.execArgs[6] != (*string)(nil) {
		t.Errorf("expected NULL error for a successful call, got %v", db.execArgs[6])
	}
}

func TestCallRepo_RecordNullResult(t *testing.T) {
	db := &fakeDB{}
	repo := NewCallRepo(db)

	rec := domain.NewCallRecord("abc", "add", nil, time.Now())
	rec.MarkTimedOut("context deadline exceeded", time.Now())

	if err := repo.Record(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if db.execArgs[3] != nil || db.execArgs[4] != nil {
		t.Errorf("empty params and result should be NULL, got %v %v", db.execArgs[3], db.execArgs[4])
	}
}

func TestCallRepo_RecordDuplicate(t *testing.T) {
	db := &fakeDB{execErr: &pgconn.PgError{Code: "23505"}}
	repo := NewCallRepo(db)

	err := repo.Record(context.Background(), domain.NewCallRecord("abc", "add", nil, time.Now()))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCallRepo_RecordError(t *testing.T) {
	errConn := errors.New("connection refused")
	repo := NewCallRepo(&fakeDB{execErr: errConn})

	err := repo.Record(context.Background(), domain.NewCallRecord("abc", "add", nil, time.Now()))
	if !errors.Is(err, errConn) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestCallRepo_GetByCorrelationID(t *testing.T) {
	id := uuid.New()
	db := &fakeDB{row: callRow(id, "abc", "divide", nil, domain.CallStatusFailed, strPtr("division by zero"))}
	repo := NewCallRepo(db)

	call, err := repo.GetByCorrelationID(context.Background(), "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if call.ID != id || call.Target != "divide" {
		t.Errorf("unexpected call %+v", call)
	}
	if call.Status != domain.CallStatusFailed || call.Error != "division by zero" {
		t.Errorf("unexpected status %s / %q", call.Status, call.Error)
	}
	if call.Result != nil {
		t.Errorf("expected no result, got %s", call.Result)
	}
	if call.Duration() != time.Second {
		t.Errorf("expected 1s duration, got %v", call.Duration())
	}
}

func TestCallRepo_GetNotFound(t *testing.T) {
	repo := NewCallRepo(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}})

	if _, err := repo.GetByCorrelationID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCallRepo_List(t *testing.T) {
	rows := &fakeRows{rows: []fakeRow{
		callRow(uuid.New(), "b", "add", []byte(`5`), domain.CallStatusSucceeded, nil),
		callRow(uuid.New(), "a", "add", []byte(`3`), domain.CallStatusSucceeded, nil),
	}}
	db := &fakeDB{rows: rows}
	repo := NewCallRepo(db)

	calls, err := repo.List(context.Background(), CallFilter{Target: "add"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].CorrelationID != "b" || string(calls[0].Result) != "5" {
		t.Errorf("unexpected first call %+v", calls[0])
	}
	if !rows.closed {
		t.Error("rows should be closed")
	}

	if got := *db.queryArgs[0].(*string); got != "add" {
		t.Errorf("expected target filter add, got %s", got)
	}
	if db.queryArgs[1] != (*string)(nil) {
		t.Errorf("expected no status filter, got %v", db.queryArgs[1])
	}
	if db.queryArgs[2] != DefaultListLimit {
		t.Errorf("expected default limit, got %v", db.queryArgs[2])
	}
}

func TestCallRepo_ListEmpty(t *testing.T) {
	repo := NewCallRepo(&fakeDB{rows: &fakeRows{}})

	calls, err := repo.List(context.Background(), CallFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if calls == nil || len(calls) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", calls)
	}
}

func TestCallFilter_Limit(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{10, 10},
		{MaxListLimit + 1, MaxListLimit},
	}

	for _, tt := range tests {
		if got := (CallFilter{Limit: tt.limit}).limit(); got != tt.want {
			t.Errorf("limit(%d) = %d, want %d", tt.limit, got, tt.want)
		}
	}
}

func TestCallRepo_Migrate(t *testing.T) {
	db := &fakeDB{}
	if err := NewCallRepo(db).Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(db.execSQL, "CREATE TABLE IF NOT EXISTS calls") {
		t.Errorf("unexpected schema %q", db.execSQL)
	}
}
