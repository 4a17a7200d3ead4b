package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Delegate/internal/domain"
)

// CallResponse — DTO для записи журнала.
type CallResponse struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID string          `json:"correlation_id"`
	Target        string          `json:"target"`
	Params        json.RawMessage `json:"params,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	Status        string          `json:"status"`
	Error         string          `json:"error,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	DurationMs    int64           `json:"duration_ms"`
}

// CallFromDomain преобразует domain.CallRecord в DTO.
func CallFromDomain(c domain.CallRecord) CallResponse {
	return CallResponse{
		ID:            c.ID,
		CorrelationID: c.CorrelationID,
		Target:        c.Target,
		Params:        c.Params,
		Result:        c.Result,
		Status:        string(c.Status),
		Error:         c.Error,
		StartedAt:     c.StartedAt,
		FinishedAt:    c.FinishedAt,
		DurationMs:    c.Duration().Milliseconds(),
	}
}
