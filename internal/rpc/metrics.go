package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Delegate/internal/domain"
)

// Статусы выполнения задач для метрик воркера.
const (
	taskStatusSucceeded = "succeeded"
	taskStatusFailed    = "failed"
	taskStatusMalformed = "malformed"
)

// Metrics — Prometheus метрики Delegator и Worker.
//
// Все методы безопасны для nil: без метрик компоненты работают так же.
type Metrics struct {
	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	pendingCalls  prometheus.Gauge
	strayReplies  prometheus.Counter
	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	tasksInFlight *prometheus.GaugeVec
}

// NewMetrics регистрирует метрики в reg.
// Для процесса обычно передаётся prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "delegate_calls_total",
			Help: "Total RPC calls issued by delegators, by target and final status",
		}, []string{"target", "status"}),
		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delegate_call_duration_seconds",
			Help:    "Time from request publish to correlated reply",
			Buckets: prometheus.DefBuckets,
		}, []string{"target"}),
		pendingCalls: factory.NewGauge(prometheus.GaugeOpts{
			Name: "delegate_pending_calls",
			Help: "Calls waiting for a correlated reply",
		}),
		strayReplies: factory.NewCounter(prometheus.CounterOpts{
			Name: "delegate_stray_replies_total",
			Help: "Replies discarded because no pending call matched their correlation id",
		}),
		tasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "delegate_tasks_total",
			Help: "Total requests handled by workers, by worker and status",
		}, []string{"worker", "status"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delegate_task_duration_seconds",
			Help:    "Task execution time on workers",
			Buckets: prometheus.DefBuckets,
		}, []string{"worker"}),
		tasksInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "delegate_tasks_in_flight",
			Help: "Tasks currently executing, by worker",
		}, []string{"worker"}),
	}
}

func (m *Metrics) callStarted() {
	if m == nil {
		return
	}
	m.pendingCalls.Inc()
}

func (m *Metrics) callFinished(target string, status domain.CallStatus, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pendingCalls.Dec()
	m.callsTotal.WithLabelValues(target, string(status)).Inc()
	m.callDuration.WithLabelValues(target).Observe(elapsed.Seconds())
}

func (m *Metrics) strayReply() {
	if m == nil {
		return
	}
	m.strayReplies.Inc()
}

func (m *Metrics) taskStarted(worker string) {
	if m == nil {
		return
	}
	m.tasksInFlight.WithLabelValues(worker).Inc()
}

func (m *Metrics) taskFinished(worker, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.tasksInFlight.WithLabelValues(worker).Dec()
	m.tasksTotal.WithLabelValues(worker, status).Inc()
	m.taskDuration.WithLabelValues(worker).Observe(elapsed.Seconds())
}
