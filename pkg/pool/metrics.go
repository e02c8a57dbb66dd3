package pool

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/taskpool/pkg/metrics"
)

// NewWithMetrics creates a pool with size workers reporting into a fresh
// Prometheus registry under the given name. Panics under the same
// conditions as New.
func NewWithMetrics(size int, name string) *Pool {
	registry := prometheus.NewRegistry()
	p, err := BuildWithConfigAndMetrics(Config{Size: size}, name, metrics.Config{
		Enabled:  true,
		Registry: registry,
	})
	if err != nil {
		panic(err)
	}
	return p
}

// BuildWithConfigAndMetrics creates a pool from cfg with its lifecycle
// hooks chained into the given metrics registry. Existing hooks on cfg
// are preserved and called after the instrumentation.
func BuildWithConfigAndMetrics(cfg Config, name string, mcfg metrics.Config) (*Pool, error) {
	if !mcfg.Enabled {
		return BuildWithConfig(cfg)
	}

	registry := metrics.DefaultRegistry
	if mcfg.Registry != nil {
		registry = metrics.NewRegistry(mcfg.Registry)
	}

	instrument(&cfg, name, registry)

	p, err := BuildWithConfig(cfg)
	if err != nil {
		return nil, err
	}

	registry.WorkerPoolSize.WithLabelValues(name).Set(float64(cfg.Size))
	return p, nil
}

// instrument chains metric updates in front of the config's hooks. Task
// start times are tracked per worker id; a worker runs one task at a
// time, so the id is a sufficient key.
func instrument(cfg *Config, name string, registry *metrics.Registry) {
	var mu sync.Mutex
	starts := make(map[int]time.Time)

	onTaskStart := cfg.OnTaskStart
	cfg.OnTaskStart = func(workerID int, task Task) {
		registry.WorkerPoolActive.WithLabelValues(name).Inc()
		mu.Lock()
		starts[workerID] = time.Now()
		mu.Unlock()
		if onTaskStart != nil {
			onTaskStart(workerID, task)
		}
	}

	onTaskComplete := cfg.OnTaskComplete
	cfg.OnTaskComplete = func(workerID int, task Task) {
		mu.Lock()
		start, ok := starts[workerID]
		mu.Unlock()

		registry.WorkerPoolActive.WithLabelValues(name).Dec()
		registry.TasksExecuted.WithLabelValues(name).Inc()
		if ok {
			registry.TaskDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
		if onTaskComplete != nil {
			onTaskComplete(workerID, task)
		}
	}

	panicHandler := cfg.PanicHandler
	cfg.PanicHandler = func(task Task, recovered interface{}) {
		registry.TasksPanicked.WithLabelValues(name).Inc()
		if panicHandler != nil {
			panicHandler(task, recovered)
		}
	}
}
