package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Instrument(h.metrics),
		Logging(h.logger),
	)

	// Вызовы
	mux.Handle("POST /api/v1/invoke/{name}", chain(RateLimit(h.limiter)(http.HandlerFunc(h.Invoke))))

	// Журнал
	mux.Handle("GET /api/v1/calls", chain(http.HandlerFunc(h.ListCalls)))
	mux.Handle("GET /api/v1/calls/{correlation_id}", chain(http.HandlerFunc(h.GetCall)))
}
