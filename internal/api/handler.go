package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/Delegate/internal/domain"
	"github.com/shaiso/Delegate/internal/repo"
	"github.com/shaiso/Delegate/internal/rpc"
)

// Invoker вызывает задачи воркеров. Реализуется *rpc.Delegator.
type Invoker interface {
	Invoke(ctx context.Context, name string, params ...any) (rpc.Reply, error)
}

// CallStore — чтение журнала вызовов. Реализуется *repo.CallRepo.
type CallStore interface {
	List(ctx context.Context, filter repo.CallFilter) ([]domain.CallRecord, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*domain.CallRecord, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	invoker Invoker
	calls   CallStore
	metrics *HTTPMetrics
	limiter *TargetLimiter
	logger  *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Invoker Invoker

	// Calls — журнал (опционально: без него /calls отвечает 503).
	Calls CallStore

	Metrics *HTTPMetrics

	// Limiter ограничивает частоту вызовов каждой задачи (nil — без ограничений).
	Limiter *TargetLimiter

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		invoker: cfg.Invoker,
		calls:   cfg.Calls,
		metrics: cfg.Metrics,
		limiter: cfg.Limiter,
		logger:  logger,
	}
}
