package pool

import "sync/atomic"

// worker is one consumption loop over the shared dispatch queue. It holds
// no task state between invocations.
type worker struct {
	id   int
	pool *Pool
	done chan struct{}
}

// run is the worker loop: block on the shared receive endpoint, then act
// on the message. The queue's lock is released as soon as a message is
// extracted, so other workers receive while this one executes.
func (w *worker) run() {
	defer close(w.done)

	if f := w.pool.cfg.OnWorkerStart; f != nil {
		f(w.id)
	}
	defer func() {
		if f := w.pool.cfg.OnWorkerStop; f != nil {
			f(w.id)
		}
	}()

	for {
		msg, err := w.pool.queue.Receive()
		if err != nil {
			// Queue closed and drained. Under normal shutdown a terminate
			// message arrives first; this path only covers a queue closed
			// out from under the workers.
			return
		}
		if msg.kind == terminate {
			return
		}
		w.execute(msg.task)
	}
}

// execute runs one task with panic isolation. A panicking task is counted
// and reported through the PanicHandler; the worker stays alive, so pool
// capacity is never silently lost.
func (w *worker) execute(task Task) {
	atomic.AddInt32(&w.pool.activeWorkers, 1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&w.pool.taskPanics, 1)
			if h := w.pool.cfg.PanicHandler; h != nil {
				h(task, r)
			}
		}
		atomic.AddInt32(&w.pool.activeWorkers, -1)
		atomic.AddInt64(&w.pool.totalCompleted, 1)
		if f := w.pool.cfg.OnTaskComplete; f != nil {
			f(w.id, task)
		}
	}()

	if f := w.pool.cfg.OnTaskStart; f != nil {
		f(w.id, task)
	}
	task.Execute()
}
