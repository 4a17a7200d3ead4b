package rpc

// State — состояние жизненного цикла Delegator и Worker.
//
//	NOT_STARTED --Start()--> STARTED --Stop()--> NOT_STARTED
type State int

const (
	// StateNotStarted — соединения нет, Invoke и Stop недоступны.
	StateNotStarted State = iota

	// StateStarted — соединение и канал открыты.
	StateStarted
)

func (s State) String() string {
	switch s {
	case StateStarted:
		return "STARTED"
	default:
		return "NOT_STARTED"
	}
}
