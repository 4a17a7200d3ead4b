// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//
// Метрики RPC живут в пакете rpc (rpc.Metrics) и экспортируются
// процессами на /metrics endpoint.
package telemetry
