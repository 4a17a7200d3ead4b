package rpc

import "errors"

// Ошибки RPC.
var (
	// ErrNameMissing — Worker создан без имени.
	ErrNameMissing = errors.New("you must provide a worker name")

	// ErrTaskMissing — Worker создан без функции задачи.
	ErrTaskMissing = errors.New("you must provide a task function for the worker to perform")

	// ErrNotConnected — Stop вызван до Start, либо соединение закрыто во время вызова.
	ErrNotConnected = errors.New("not connected to an AMQP server")

	// ErrQueueAlreadyStarted — повторный Start.
	ErrQueueAlreadyStarted = errors.New("message queue has already been started")

	// ErrQueueNotStarted — Invoke до Start.
	ErrQueueNotStarted = errors.New("message queue has not been started")

	// ErrWrongCorrelationID — ответ пришёл с чужим correlation id.
	ErrWrongCorrelationID = errors.New("the provided correlation id is incorrect")

	// ErrDecodeRequest — тело запроса не является JSON массивом параметров.
	ErrDecodeRequest = errors.New("decode request params")

	// ErrDecodeReply — тело ответа не является корректным JSON.
	ErrDecodeReply = errors.New("decode reply")

	// ErrTaskPanic — функция задачи запаниковала.
	ErrTaskPanic = errors.New("task panicked")

	// ErrPublishRequest — запрос не удалось опубликовать (обычно разорвано соединение).
	ErrPublishRequest = errors.New("publish request")

	// ErrParamMissing — задача запросила параметр за пределами списка.
	ErrParamMissing = errors.New("param missing")
)

// RemoteError — ошибка, которую вернула задача на стороне воркера.
type RemoteError struct {
	// Target — имя воркера (заполняется Delegator'ом).
	Target string

	// Message — текст ошибки задачи.
	Message string
}

func (e *RemoteError) Error() string {
	if e.Target == "" {
		return "remote task failed: " + e.Message
	}
	return "remote task " + e.Target + " failed: " + e.Message
}
