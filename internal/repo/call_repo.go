package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shaiso/Delegate/internal/domain"
)

// Ограничения выборки журнала.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

const callsSchema = `
	CREATE TABLE IF NOT EXISTS calls (
		id             uuid PRIMARY KEY,
		correlation_id text NOT NULL UNIQUE,
		target         text NOT NULL,
		params         jsonb,
		result         jsonb,
		status         text NOT NULL,
		error          text,
		started_at     timestamptz NOT NULL,
		finished_at    timestamptz NOT NULL
	);
	CREATE INDEX IF NOT EXISTS calls_target_started_at_idx ON calls (target, started_at DESC);
`

// CallRepo — журнал завершённых RPC вызовов.
// Реализует rpc.Journal.
type CallRepo struct {
	db DB
}

// NewCallRepo создаёт новый CallRepo.
func NewCallRepo(db DB) *CallRepo {
	return &CallRepo{db: db}
}

// Migrate создаёт таблицу журнала, если её нет.
func (r *CallRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, callsSchema); err != nil {
		return fmt.Errorf("migrate calls: %w", err)
	}
	return nil
}

// Record сохраняет завершённый вызов.
func (r *CallRepo) Record(ctx context.Context, call *domain.CallRecord) error {
	query := `
		INSERT INTO calls (id, correlation_id, target, params, result, status, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		call.ID,
		call.CorrelationID,
		call.Target,
		nullJSON(call.Params),
		nullJSON(call.Result),
		string(call.Status),
		nullString(call.Error),
		call.StartedAt,
		call.FinishedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("call %s: %w", call.CorrelationID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// GetByCorrelationID возвращает вызов по correlation id.
func (r *CallRepo) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.CallRecord, error) {
	query := `
		SELECT id, correlation_id, target, params, result, status, error, started_at, finished_at
		FROM calls
		WHERE correlation_id = $1
	`
	return scanCall(r.db.QueryRow(ctx, query, correlationID))
}

// List возвращает последние вызовы, новые первыми.
func (r *CallRepo) List(ctx context.Context, filter CallFilter) ([]domain.CallRecord, error) {
	query := `
		SELECT id, correlation_id, target, params, result, status, error, started_at, finished_at
		FROM calls
		WHERE ($1::text IS NULL OR target = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query,
		nullString(filter.Target),
		nullString(string(filter.Status)),
		filter.limit(),
	)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	calls := []domain.CallRecord{}
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, *call)
	}
	return calls, rows.Err()
}

// --- Helpers ---

// CallFilter — параметры выборки журнала.
type CallFilter struct {
	Target string
	Status domain.CallStatus
	Limit  int // 0 — DefaultListLimit, больше MaxListLimit обрезается
}

func (f CallFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// scanCall сканирует одну строку в CallRecord.
// pgx.Rows тоже реализует pgx.Row.
func scanCall(row pgx.Row) (*domain.CallRecord, error) {
	var call domain.CallRecord
	var params, result []byte
	var status string
	var callError *string

	err := row.Scan(
		&call.ID,
		&call.CorrelationID,
		&call.Target,
		&params,
		&result,
		&status,
		&callError,
		&call.StartedAt,
		&call.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan call: %w", err)
	}

	call.Params = params
	call.Result = result
	call.Status = domain.CallStatus(status)
	if callError != nil {
		call.Error = *callError
	}

	return &call, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullJSON возвращает nil для пустого JSON, чтобы в БД попал NULL.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
