package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений: 5 полей или дескриптор (@hourly, @every 1h).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec проверяет валидность cron-выражения.
func ValidateSpec(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSpec, spec, err)
	}
	return nil
}

// NextRun вычисляет следующее время выполнения после from.
func NextRun(spec string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidSpec, spec, err)
	}
	return schedule.Next(from), nil
}

// cronLogger направляет служебные сообщения cron в slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
