package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CallRecord — завершённый RPC вызов в журнале.
//
// Запись создаётся Delegator'ом после того, как вызов получил ответ,
// ошибку или истёк по таймауту. Незавершённые вызовы в журнал не попадают.
type CallRecord struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// CorrelationID — correlation token вызова.
	CorrelationID string `json:"correlation_id"`

	// Target — имя воркера, которому адресован вызов.
	Target string `json:"target"`

	// Params — параметры вызова (JSON массив).
	Params json.RawMessage `json:"params,omitempty"`

	// Result — результат (JSON), если вызов успешен.
	Result json.RawMessage `json:"result,omitempty"`

	// Status — итоговый статус вызова.
	Status CallStatus `json:"status"`

	// Error — текст ошибки для FAILED и TIMED_OUT.
	Error string `json:"error,omitempty"`

	// StartedAt — время публикации запроса.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время получения ответа или ошибки.
	FinishedAt time.Time `json:"finished_at"`
}

// NewCallRecord создаёт запись для вызова, начатого в startedAt.
func NewCallRecord(correlationID, target string, params []byte, startedAt time.Time) *CallRecord {
	return &CallRecord{
		ID:            uuid.New(),
		CorrelationID: correlationID,
		Target:        target,
		Params:        params,
		StartedAt:     startedAt,
	}
}

// Duration возвращает продолжительность вызова.
// Возвращает 0, если вызов ещё не завершён.
func (r *CallRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// MarkSucceeded переводит запись в статус SUCCEEDED.
func (r *CallRecord) MarkSucceeded(result []byte, at time.Time) {
	r.Status = CallStatusSucceeded
	r.Result = result
	r.Error = ""
	r.FinishedAt = at
}

// MarkFailed переводит запись в статус FAILED.
func (r *CallRecord) MarkFailed(errMsg string, at time.Time) {
	r.Status = CallStatusFailed
	r.Error = errMsg
	r.FinishedAt = at
}

// MarkTimedOut переводит запись в статус TIMED_OUT.
func (r *CallRecord) MarkTimedOut(errMsg string, at time.Time) {
	r.Status = CallStatusTimedOut
	r.Error = errMsg
	r.FinishedAt = at
}
