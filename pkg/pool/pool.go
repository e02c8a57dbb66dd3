package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	tperrors "github.com/vnykmshr/taskpool/pkg/common/errors"
	"github.com/vnykmshr/taskpool/pkg/common/validation"
	"github.com/vnykmshr/taskpool/pkg/dispatch"
)

// Task represents a single, owned unit of work. Execute is called at most
// once, by exactly one worker. Tasks must be safe to hand off across
// goroutines; captured data must outlive the Submit call.
type Task interface {
	Execute()
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func()

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute() { f() }

// ErrZeroSize is returned by Build when the requested pool size is zero
// or negative.
var ErrZeroSize = errors.New("pool size must be positive")

// WorkerError reports that starting a worker failed during construction.
// It names the worker index and wraps the underlying cause.
type WorkerError struct {
	WorkerID int
	Err      error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("failed to create worker %d: %v", e.WorkerID, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// messageKind discriminates the dispatch-channel message variants.
type messageKind int

const (
	newJob messageKind = iota
	terminate
)

// message is the unit carried on the dispatch queue: either one task or a
// terminate signal consumed by exactly one worker.
type message struct {
	kind messageKind
	task Task
}

// Config holds configuration options for creating a pool.
type Config struct {
	// Size is the number of workers in the pool. Must be greater than 0.
	Size int

	// SpawnWorker overrides how worker goroutines are started. The loop
	// argument is the worker's run loop; an implementation must either
	// start it on its own goroutine and return nil, or return an error
	// without starting it. If nil, workers are started with the go
	// statement, which cannot fail. Exists so tests can inject spawn
	// failure for the checked construction path.
	SpawnWorker func(id int, loop func()) error

	// PanicHandler is called when a task panics during execution. The
	// worker survives the panic either way; the panic is also counted in
	// TaskPanics.
	PanicHandler func(task Task, recovered interface{})

	// OnWorkerStart is called on the worker goroutine when it starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called on the worker goroutine just before it exits.
	OnWorkerStop func(workerID int)

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(workerID int, task Task)

	// OnTaskComplete is called after a task finishes, whether it returned
	// normally or panicked.
	OnTaskComplete func(workerID int, task Task)
}

// Pool owns a fixed set of workers and the sending side of the dispatch
// queue. Construct it with New or Build, submit tasks with Submit, and
// release it with Close.
type Pool struct {
	cfg   Config
	queue *dispatch.Queue[message]

	workers []*worker

	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	done      chan struct{}

	activeWorkers  int32
	totalSubmitted int64
	totalCompleted int64
	taskPanics     int64
}

// New creates a pool with size workers. It panics if size is not positive
// or if a worker cannot be started; use Build when those conditions must
// be recoverable.
func New(size int) *Pool {
	p, err := Build(size)
	if err != nil {
		panic(err)
	}
	return p
}

// Build creates a pool with size workers, reporting failures as errors:
// ErrZeroSize when size is not positive, or a *WorkerError naming the
// first worker whose start failed. On a start failure the workers already
// running are shut down and joined before Build returns, so a failed
// Build leaves no goroutines behind.
func Build(size int) (*Pool, error) {
	return BuildWithConfig(Config{Size: size})
}

// BuildWithConfig creates a pool from cfg with Build's error contract.
func BuildWithConfig(cfg Config) (*Pool, error) {
	if err := validation.ValidatePositive("pool", "size", cfg.Size); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrZeroSize, err)
	}

	p := &Pool{
		cfg:   cfg,
		queue: dispatch.New[message](),
		done:  make(chan struct{}),
	}

	spawn := cfg.SpawnWorker
	if spawn == nil {
		spawn = func(_ int, loop func()) error {
			go loop()
			return nil
		}
	}

	for id := 0; id < cfg.Size; id++ {
		w := &worker{id: id, pool: p, done: make(chan struct{})}
		if err := spawn(id, w.run); err != nil {
			p.Close() // tear down the workers started before the failure
			return nil, &WorkerError{WorkerID: id, Err: err}
		}
		p.workers = append(p.workers, w)
	}

	return p, nil
}

// Submit enqueues task for execution by one idle worker and returns
// without waiting for it to run. There is no completion or result
// feedback; panics inside the task are recovered and counted. Returns an
// error wrapping errors.ErrClosed if the pool has been closed.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return tperrors.ErrNilTask
	}

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return fmt.Errorf("cannot submit task: %w", tperrors.ErrClosed)
	}

	if err := p.queue.Send(message{kind: newJob, task: task}); err != nil {
		return fmt.Errorf("cannot submit task: %w", err)
	}

	atomic.AddInt64(&p.totalSubmitted, 1)
	return nil
}

// Close shuts the pool down and blocks until every worker has exited. It
// enqueues exactly one terminate message per worker, closes the queue's
// send side, then joins each worker in turn. Jobs accepted before Close
// are drained first; terminate messages queue behind them. Close is
// idempotent and safe for concurrent use; every caller blocks until
// teardown completes.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		for range p.workers {
			// Send can only fail if the queue is already closed, which
			// Close alone does below.
			_ = p.queue.Send(message{kind: terminate})
		}
		_ = p.queue.Close()

		for _, w := range p.workers {
			<-w.done
		}
		close(p.done)
	})

	<-p.done
}

// Size returns the number of workers the pool was created with.
func (p *Pool) Size() int {
	return p.cfg.Size
}

// QueueDepth returns the number of messages accepted by the dispatch
// queue and not yet picked up by a worker.
func (p *Pool) QueueDepth() int {
	return p.queue.Len()
}

// ActiveWorkers returns the number of workers currently executing a task.
func (p *Pool) ActiveWorkers() int {
	return int(atomic.LoadInt32(&p.activeWorkers))
}

// TotalSubmitted returns the total number of tasks accepted by Submit.
func (p *Pool) TotalSubmitted() int64 {
	return atomic.LoadInt64(&p.totalSubmitted)
}

// TotalCompleted returns the total number of tasks that finished
// executing, including tasks that panicked.
func (p *Pool) TotalCompleted() int64 {
	return atomic.LoadInt64(&p.totalCompleted)
}

// TaskPanics returns the number of task executions that ended in a
// recovered panic.
func (p *Pool) TaskPanics() int64 {
	return atomic.LoadInt64(&p.taskPanics)
}
