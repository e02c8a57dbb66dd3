/*
Package taskpool provides a fixed-size worker pool built on an explicit
dispatch channel, with fire-and-forget task submission and deterministic,
leak-free shutdown.

Packages:

  - pkg/pool: the worker pool (construction, submission, shutdown)
  - pkg/dispatch: the blocking multi-producer queue workers consume from
  - pkg/schedule: deferred, repeating and cron-driven submission
  - pkg/redisfeed: task intake from a Redis list
  - pkg/metrics: Prometheus instrumentation

Example usage:

	import "github.com/vnykmshr/taskpool/pkg/pool"

	p, err := pool.Build(4)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer p.Close()

	_ = p.Submit(pool.TaskFunc(func() {
		// background work
	}))

Close blocks until every queued task has run and every worker goroutine
has exited.
*/
package taskpool
