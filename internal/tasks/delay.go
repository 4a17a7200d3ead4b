package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Delegate/internal/rpc"
	"github.com/shaiso/Delegate/internal/telemetry"
)

// maxDelay ограничивает задержку, чтобы воркер не занимал очередь надолго.
const maxDelay = 5 * time.Minute

// Delay ждёт указанное число секунд (первый параметр, default: 1).
// Поддерживает отмену через context.
//
// Результат: {"delayed_sec": N}.
func Delay(ctx context.Context, p rpc.Params) (any, error) {
	durationSec := 1.0
	if p.Len() > 0 {
		v, err := p.Float(0)
		if err != nil {
			return nil, fmt.Errorf("%w: delay must be a number of seconds", ErrInvalidParams)
		}
		durationSec = v
	}

	if durationSec < 0 {
		return nil, fmt.Errorf("%w: negative delay %v", ErrInvalidParams, durationSec)
	}

	duration := time.Duration(durationSec * float64(time.Second))
	if duration > maxDelay {
		return nil, fmt.Errorf("%w: delay %v exceeds %v", ErrInvalidParams, duration, maxDelay)
	}

	telemetry.FromContext(ctx).Debug("delaying", "duration", duration)

	timer := time.NewTimer(duration)
	defer timer.Stop()

	// Context-aware ожидание
	select {
	case <-timer.C:
		return map[string]any{"delayed_sec": durationSec}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
