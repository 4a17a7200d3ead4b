package scheduler

import "errors"

// Ошибки планировщика.
var (
	// ErrInvalidSpec — cron-выражение не разбирается.
	ErrInvalidSpec = errors.New("invalid cron expression")

	// ErrInvalidEntry — в расписании не хватает полей.
	ErrInvalidEntry = errors.New("invalid schedule entry")

	// ErrDuplicateEntry — расписание с таким именем уже добавлено.
	ErrDuplicateEntry = errors.New("duplicate schedule entry")
)
