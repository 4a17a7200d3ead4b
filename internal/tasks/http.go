package tasks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/shaiso/Delegate/internal/rpc"
)

const (
	defaultHTTPTimeout = 30 * time.Second

	// maxBodySize — сколько байт ответа попадает в результат.
	maxBodySize = 1 << 20
)

var bodyCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPGet — задача "http.get".
//
// Params:
//   - [0] url (string): адрес запроса (обязательно)
//   - [1] timeout_sec (number): таймаут запроса. Default: 30
//
// Результат:
//   - status_code (int): HTTP-код ответа
//   - headers (map[string]string): заголовки ответа
//   - body (any): тело ответа (JSON или строка)
//
// Ответ с кодом >= 400 — ошибка задачи.
type HTTPGet struct {
	client *http.Client
}

// NewHTTPGet создаёт задачу. nil client — http.DefaultClient.
func NewHTTPGet(client *http.Client) *HTTPGet {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGet{client: client}
}

// Run реализует rpc.Task.
func (h *HTTPGet) Run(ctx context.Context, p rpc.Params) (any, error) {
	url, err := p.String(0)
	if err != nil || url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidParams)
	}

	timeout := defaultHTTPTimeout
	if p.Len() > 1 {
		sec, err := p.Float(1)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("%w: timeout must be a positive number of seconds", ErrInvalidParams)
		}
		timeout = time.Duration(sec * float64(time.Second))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrHTTPRequest, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrHTTPRequest, resp.StatusCode, truncate(string(body), 200))
	}

	return buildResult(resp, body), nil
}

// buildResult формирует результат из HTTP-ответа.
func buildResult(resp *http.Response, body []byte) map[string]any {
	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	// Парсим body: пробуем JSON, иначе строка
	var parsedBody any
	if err := bodyCodec.Unmarshal(body, &parsedBody); err != nil {
		parsedBody = string(body)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        parsedBody,
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
