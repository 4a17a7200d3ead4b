package tasks

import "errors"

// Ошибки задач.
var (
	// ErrUnknownTask — задача не зарегистрирована.
	ErrUnknownTask = errors.New("unknown task")

	// ErrInvalidParams — параметры не подходят задаче.
	ErrInvalidParams = errors.New("invalid params")

	// ErrHTTPRequest — ошибка HTTP запроса.
	ErrHTTPRequest = errors.New("http request failed")
)
