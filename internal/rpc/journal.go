package rpc

import (
	"context"

	"github.com/shaiso/Delegate/internal/domain"
)

// Journal сохраняет завершённые вызовы.
//
// Реализация: repo.CallRepo (Postgres). Ошибки журнала не влияют на вызов.
type Journal interface {
	Record(ctx context.Context, rec *domain.CallRecord) error
}
