package api

import (
	"encoding/json"
	"io"
	"net/http"
)

// maxRequestBody — лимит тела запроса на вызов.
const maxRequestBody = 1 << 20

// Invoke вызывает задачу воркера и возвращает её результат.
// POST /api/v1/invoke/{name}
//
// Тело — JSON массив параметров (пустое тело — без параметров).
// Ответ: {"data": <результат задачи>}.
func (h *Handler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		BadRequest(w, "worker name is required")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}
	if len(body) > maxRequestBody {
		BadRequest(w, "request body too large")
		return
	}

	params, err := decodeParams(body)
	if err != nil {
		BadRequest(w, "request body must be a JSON array of params")
		return
	}

	reply, err := h.invoker.Invoke(r.Context(), name, params...)
	if HandleCallError(w, h.logger, err) {
		return
	}

	Success(w, reply)
}

// decodeParams разбирает массив параметров, сохраняя каждый как сырой JSON.
func decodeParams(body []byte) ([]any, error) {
	if len(body) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := codec.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	params := make([]any, len(raw))
	for i, p := range raw {
		params[i] = p
	}
	return params, nil
}
