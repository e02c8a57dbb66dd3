/*
Package pool provides a fixed-size worker pool with fire-and-forget task
submission and deterministic shutdown.

A pool owns N long-lived worker goroutines sharing the receive end of one
dispatch queue. Each submitted task is wrapped in a job message and
consumed by exactly one idle worker. Closing the pool enqueues one
terminate message per worker, stops accepting submissions, and blocks
until every worker has drained its share of the queue and exited.

Basic usage:

	p, err := pool.Build(4)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer p.Close()

	err = p.Submit(pool.TaskFunc(func() {
		// Do work
	}))

Construction modes:

New panics when the size is zero or a worker cannot be started; it is the
fail-fast form for callers that treat those conditions as programming
errors. Build reports the same conditions as typed errors instead:

	p, err := pool.Build(n)
	switch {
	case errors.Is(err, pool.ErrZeroSize):
		// configuration error
	case err != nil:
		var we *pool.WorkerError
		if errors.As(err, &we) {
			log.Printf("worker %d failed to start: %v", we.WorkerID, we.Err)
		}
	}

Both modes run the same spawn loop; they differ only in how failures are
reported.

Task semantics:

Tasks take no arguments, return nothing, and are invoked at most once.
The pool provides no completion or result feedback. A panic inside a task
is recovered, counted (TaskPanics, the tasks_panicked_total metric) and
optionally reported through Config.PanicHandler; the worker survives, so
a crashing task never reduces pool capacity.

Shutdown semantics:

Close is synchronous and idempotent. Tasks accepted before Close runs are
executed before the workers see their terminate messages, so shutdown is
graceful with respect to already-accepted work. A long-running task delays
only its own worker's exit; Close returns once every worker has exited.
After Close, Submit returns an error wrapping errors.ErrClosed.

Observability:

Size, QueueDepth, ActiveWorkers, TotalSubmitted, TotalCompleted and
TaskPanics expose pool state; NewWithMetrics and
BuildWithConfigAndMetrics chain the lifecycle hooks into a Prometheus
registry (see pkg/metrics).
*/
package pool
