package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Scheduler — конфигурация delegate-scheduler.
type Scheduler struct {
	Log      Log      `yaml:"log"`
	Broker   Broker   `yaml:"broker"`
	Database Database `yaml:"database"`

	Port string `yaml:"port" env:"SCHEDULER_PORT" env-default:"8082" env-description:"health and metrics port"`

	// Schedules задаются только в файле.
	Schedules []Schedule `yaml:"schedules"`
}

// Schedule — периодический вызов задачи.
//
// Пример:
//
//	schedules:
//	  - name: nightly-sum
//	    spec: "0 3 * * *"
//	    target: add
//	    params: [1, 2]
//	    timeout: 10s
type Schedule struct {
	Name    string        `yaml:"name"`
	Spec    string        `yaml:"spec"`
	Target  string        `yaml:"target"`
	Params  []any         `yaml:"params"`
	Timeout time.Duration `yaml:"timeout"`
}

type schedulerFile struct {
	Path string `env:"SCHEDULER_CONFIG" env-default:"schedules.yaml" env-description:"YAML file with schedules"`
}

// LoadScheduler читает конфигурацию планировщика.
//
// Путь к файлу берётся из SCHEDULER_CONFIG. Отсутствующий файл по
// умолчанию не ошибка: планировщик стартует без расписаний.
func LoadScheduler() (*Scheduler, error) {
	var file schedulerFile
	if err := cleanenv.ReadEnv(&file); err != nil {
		return nil, fmt.Errorf("read scheduler config path: %w", err)
	}

	return LoadSchedulerFile(file.Path)
}

// LoadSchedulerFile читает конфигурацию планировщика из path и окружения.
func LoadSchedulerFile(path string) (*Scheduler, error) {
	var cfg Scheduler

	err := cleanenv.ReadConfig(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read scheduler config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет расписания.
func (s *Scheduler) Validate() error {
	if err := s.Broker.validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(s.Schedules))
	for i, sched := range s.Schedules {
		if sched.Name == "" {
			return fmt.Errorf("%w: schedule #%d has no name", ErrInvalid, i+1)
		}
		if seen[sched.Name] {
			return fmt.Errorf("%w: duplicate schedule %q", ErrInvalid, sched.Name)
		}
		seen[sched.Name] = true

		if sched.Spec == "" {
			return fmt.Errorf("%w: schedule %q has no spec", ErrInvalid, sched.Name)
		}
		if sched.Target == "" {
			return fmt.Errorf("%w: schedule %q has no target", ErrInvalid, sched.Name)
		}
		if sched.Timeout < 0 {
			return fmt.Errorf("%w: schedule %q has negative timeout", ErrInvalid, sched.Name)
		}
	}
	return nil
}
