/*
Package metrics provides Prometheus instrumentation for taskpool components.

Metrics are grouped in a Registry so that components sharing a registry
report under consistent names. The DefaultRegistry registers against
prometheus.DefaultRegisterer; use NewRegistry to target a custom one:

	reg := prometheus.NewRegistry()
	registry := metrics.NewRegistry(reg)
	registry.TasksExecuted.WithLabelValues("my-pool").Inc()

Pool instrumentation is wired through pool.NewWithMetrics and
pool.BuildWithConfigAndMetrics, which chain the pool's lifecycle hooks to
the registry; see the pool package.

All metric names live under the "taskpool" namespace, subsystems "pool",
"dispatch", "schedule" and "feed".
*/
package metrics
