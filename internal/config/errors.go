package config

import "errors"

// ErrInvalid — конфигурация прочитана, но значения недопустимы.
var ErrInvalid = errors.New("invalid config")
