// Package metrics provides Prometheus instrumentation for taskpool components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for taskpool components.
type Registry struct {
	// Worker Pool Metrics
	WorkerPoolSize    *prometheus.GaugeVec
	WorkerPoolActive  *prometheus.GaugeVec
	WorkerPoolQueued  *prometheus.GaugeVec
	TasksSubmitted    *prometheus.CounterVec
	TasksExecuted     *prometheus.CounterVec
	TasksPanicked     *prometheus.CounterVec
	TaskDuration      *prometheus.HistogramVec

	// Dispatch Queue Metrics
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec

	// Schedule Metrics
	TasksScheduled *prometheus.CounterVec

	// Feed Metrics
	FeedJobsConsumed *prometheus.CounterVec
	FeedErrors       *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by taskpool components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskpool",
				Subsystem: "pool",
				Name:      "size",
				Help:      "Number of workers in the pool",
			},
			[]string{"pool_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskpool",
				Subsystem: "pool",
				Name:      "active_workers",
				Help:      "Number of workers currently executing a task",
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskpool",
				Subsystem: "pool",
				Name:      "queued_messages",
				Help:      "Messages waiting on the dispatch queue",
			},
			[]string{"pool_name"},
		),

		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskpool",
				Subsystem: "pool",
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks accepted for execution",
			},
			[]string{"pool_name"},
		),

		TasksExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskpool",
				Subsystem: "pool",
				Name:      "tasks_executed_total",
				Help:      "Total number of tasks that finished executing",
			},
			[]string{"pool_name"},
		),

		TasksPanicked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskpool",
				Subsystem: "pool",
				Name:      "tasks_panicked_total",
				Help:      "Total number of task executions ending in a recovered panic",
			},
			[]string{"pool_name"},
		),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taskpool",
				Subsystem: "pool",
				Name:      "task_duration_seconds",
				Help:      "Time spent executing tasks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),

		MessagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskpool",
				Subsystem: "dispatch",
				Name:      "messages_sent_total",
				Help:      "Total messages accepted by the dispatch queue",
			},
			[]string{"pool_name"},
		),

		MessagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskpool",
				Subsystem: "dispatch",
				Name:      "messages_received_total",
				Help:      "Total messages delivered to workers",
			},
			[]string{"pool_name"},
		),

		TasksScheduled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskpool",
				Subsystem: "schedule",
				Name:      "tasks_scheduled_total",
				Help:      "Total number of tasks registered with a scheduler",
			},
			[]string{"scheduler_name"},
		),

		FeedJobsConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskpool",
				Subsystem: "feed",
				Name:      "jobs_consumed_total",
				Help:      "Total payloads consumed from the feed source",
			},
			[]string{"feed_name"},
		),

		FeedErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskpool",
				Subsystem: "feed",
				Name:      "errors_total",
				Help:      "Total feed source errors",
			},
			[]string{"feed_name"},
		),
	}
}
