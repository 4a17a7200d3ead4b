package domain

// CallStatus — итоговый статус RPC вызова.
//
// Жизненный цикл:
//
//	(pending) → SUCCEEDED
//	          ↘ FAILED     (ошибка задачи, битый ответ, разрыв соединения)
//	          ↘ TIMED_OUT  (ответ не пришёл до дедлайна)
type CallStatus string

const (
	// CallStatusSucceeded — получен корректный ответ.
	CallStatusSucceeded CallStatus = "SUCCEEDED"

	// CallStatusFailed — вызов завершился ошибкой.
	CallStatusFailed CallStatus = "FAILED"

	// CallStatusTimedOut — ответ не получен до дедлайна.
	CallStatusTimedOut CallStatus = "TIMED_OUT"
)

// IsValid проверяет, что статус известен.
func (s CallStatus) IsValid() bool {
	switch s {
	case CallStatusSucceeded, CallStatusFailed, CallStatusTimedOut:
		return true
	default:
		return false
	}
}
