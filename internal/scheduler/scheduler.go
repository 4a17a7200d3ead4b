package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Delegate/internal/rpc"
)

// Invoker вызывает задачу воркера. Реализуется *rpc.Delegator.
type Invoker interface {
	Invoke(ctx context.Context, name string, params ...any) (rpc.Reply, error)
}

// Entry — периодический вызов задачи.
type Entry struct {
	// Name — уникальное имя расписания.
	Name string

	// Spec — cron-выражение (5 полей) или дескриптор.
	Spec string

	// Target — имя вызываемого воркера.
	Target string

	// Params — параметры вызова.
	Params []any

	// Timeout ограничивает один вызов (0 — без своего таймаута).
	Timeout time.Duration
}

func (e Entry) validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEntry)
	}
	if e.Target == "" {
		return fmt.Errorf("%w: %s: target is required", ErrInvalidEntry, e.Name)
	}
	if e.Timeout < 0 {
		return fmt.Errorf("%w: %s: negative timeout", ErrInvalidEntry, e.Name)
	}
	return ValidateSpec(e.Spec)
}

// Config — конфигурация Scheduler.
type Config struct {
	Invoker Invoker
	Logger  *slog.Logger

	// Location — часовой пояс расписаний (default: time.Local).
	Location *time.Location

	// Registerer для метрик (nil — без метрик).
	Registerer prometheus.Registerer
}

// Scheduler вызывает задачи по cron-расписаниям.
//
// Вызовы одного расписания не перекрываются: если предыдущий ещё ждёт
// ответа, очередной запуск пропускается.
type Scheduler struct {
	cron    *cron.Cron
	invoker Invoker
	logger  *slog.Logger
	runs    *prometheus.CounterVec

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	cl := cronLogger{logger: logger}

	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		invoker: cfg.Invoker,
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}

	if cfg.Registerer != nil {
		s.runs = promauto.With(cfg.Registerer).NewCounterVec(prometheus.CounterOpts{
			Name: "delegate_scheduled_calls_total",
			Help: "Calls issued by the scheduler, by schedule and outcome",
		}, []string{"schedule", "status"})
	}

	return s
}

// Add валидирует расписание и добавляет его.
func (s *Scheduler) Add(entry Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, entry.Name)
	}

	id, err := s.cron.AddFunc(entry.Spec, func() { s.run(entry) })
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSpec, entry.Spec, err)
	}
	s.entries[entry.Name] = id

	s.logger.Info("schedule added",
		"schedule", entry.Name,
		"spec", entry.Spec,
		"target", entry.Target,
	)
	return nil
}

// Remove удаляет расписание. Возвращает false, если его не было.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.entries, name)
	return true
}

// Next возвращает время следующего запуска расписания.
// Нулевое время — планировщик ещё не запущен.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()

	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Len возвращает число расписаний.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start запускает планировщик в фоне.
// ctx передаётся в каждый вызов; его отмена прерывает ожидание ответов.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "schedules", s.Len())
}

// Stop останавливает планировщик и ждёт завершения идущих вызовов.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// run выполняет один вызов по расписанию.
func (s *Scheduler) run(entry Entry) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if entry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, entry.Timeout)
		defer cancel()
	}

	logger := s.logger.With("schedule", entry.Name, "target", entry.Target)
	start := time.Now()

	reply, err := s.invoker.Invoke(ctx, entry.Target, entry.Params...)
	if err != nil {
		status := "failed"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timed_out"
		}
		s.count(entry.Name, status)
		logger.Warn("scheduled call failed", "error", err, "duration", time.Since(start))
		return
	}

	s.count(entry.Name, "succeeded")
	logger.Info("scheduled call succeeded", "result", reply.String(), "duration", time.Since(start))
}

func (s *Scheduler) count(schedule, status string) {
	if s.runs == nil {
		return
	}
	s.runs.WithLabelValues(schedule, status).Inc()
}
