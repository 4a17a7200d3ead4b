package rpc

import (
	"context"

	"github.com/shaiso/Delegate/internal/mq"
)

// Resolve завершает вызов результатом.
type Resolve func(reply Reply) error

// Reject завершает вызов ошибкой.
type Reject func(err error) error

// NewReplyHandler возвращает обработчик ответов для вызова с correlation id expected.
//
//   - id совпал, тело rpc.error — reject(*RemoteError)
//   - id совпал, тело не JSON — reject(ErrDecodeReply)
//   - id совпал — resolve(ответ)
//   - id не совпал — reject(ErrWrongCorrelationID)
//
// Обработчик возвращает то, что вернули resolve или reject.
func NewReplyHandler(expected string, resolve Resolve, reject Reject) mq.Handler {
	return func(_ context.Context, d *mq.Delivery) error {
		if d.CorrelationID() != expected {
			return reject(ErrWrongCorrelationID)
		}

		if d.Type() == mq.MessageTypeError {
			return reject(&RemoteError{Message: decodeError(d.Body())})
		}

		reply, err := DecodeReply(d.Body())
		if err != nil {
			return reject(err)
		}

		return resolve(reply)
	}
}
