// Package api содержит HTTP шлюз к воркерам.
//
// Структура:
//   - handler.go        — Handler с DI (Invoker, журнал, метрики, logger)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (recovery, метрики, logging)
//   - response.go       — унифицированные JSON-ответы
//   - errors.go         — отображение ошибок вызова и журнала в HTTP коды
//   - invoke_handler.go — POST /api/v1/invoke/{name}
//   - call_handler.go   — GET /api/v1/calls
package api
