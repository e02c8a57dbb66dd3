package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/taskpool/internal/testutil"
	tperrors "github.com/vnykmshr/taskpool/pkg/common/errors"
)

func TestBuildAndCloseWithoutTasks(t *testing.T) {
	for _, size := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("size_%d", size), func(t *testing.T) {
			var started, stopped int32

			p, err := BuildWithConfig(Config{
				Size:          size,
				OnWorkerStart: func(int) { atomic.AddInt32(&started, 1) },
				OnWorkerStop:  func(int) { atomic.AddInt32(&stopped, 1) },
			})
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, p.Size(), size)

			p.Close()

			// Close returns only after every worker has exited, so the
			// stop hooks have all fired by now.
			testutil.AssertEqual(t, atomic.LoadInt32(&started), int32(size))
			testutil.AssertEqual(t, atomic.LoadInt32(&stopped), int32(size))
		})
	}
}

func TestBuildZeroSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		p, err := Build(size)
		if p != nil {
			t.Fatalf("expected nil pool for size %d", size)
		}
		testutil.AssertError(t, err)
		testutil.AssertEqual(t, errors.Is(err, ErrZeroSize), true)
	}
}

func TestNewPanicsOnZeroSize(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic")
		}
	}()
	New(0)
}

func TestAllSubmittedTasksRun(t *testing.T) {
	cases := []struct {
		workers int
		tasks   int
	}{
		{1, 0},
		{1, 10},
		{4, 1},
		{4, 100},
		{8, 25},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("workers_%d_tasks_%d", tc.workers, tc.tasks), func(t *testing.T) {
			p, err := Build(tc.workers)
			testutil.AssertNoError(t, err)

			var mu sync.Mutex
			seen := make(map[int]int)

			for i := 0; i < tc.tasks; i++ {
				id := i
				err := p.Submit(TaskFunc(func() {
					mu.Lock()
					seen[id]++
					mu.Unlock()
				}))
				testutil.AssertNoError(t, err)
			}

			p.Close()

			// Every task ran exactly once, no duplicates, none missing.
			testutil.AssertEqual(t, len(seen), tc.tasks)
			for id, count := range seen {
				if count != 1 {
					t.Errorf("task %d ran %d times", id, count)
				}
			}
			testutil.AssertEqual(t, p.TotalSubmitted(), int64(tc.tasks))
			testutil.AssertEqual(t, p.TotalCompleted(), int64(tc.tasks))
		})
	}
}

func TestConcurrentSubmitters(t *testing.T) {
	p, err := Build(5)
	testutil.AssertNoError(t, err)

	const submitters = 10
	const perSubmitter = 20

	var executed int32
	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSubmitter; j++ {
				if err := p.Submit(TaskFunc(func() {
					atomic.AddInt32(&executed, 1)
				})); err != nil {
					t.Errorf("submit failed: %v", err)
					return
				}
			}
		}()
	}

	wg.Wait()
	p.Close()

	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(submitters*perSubmitter))
}

func TestSubmitNilTask(t *testing.T) {
	p, err := Build(1)
	testutil.AssertNoError(t, err)
	defer p.Close()

	testutil.AssertEqual(t, p.Submit(nil), tperrors.ErrNilTask)
}

func TestSubmitAfterClose(t *testing.T) {
	p, err := Build(2)
	testutil.AssertNoError(t, err)

	p.Close()

	err = p.Submit(TaskFunc(func() {}))
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, errors.Is(err, tperrors.ErrClosed), true)
}

func TestBuildSpawnFailure(t *testing.T) {
	spawnErr := errors.New("no more threads")
	var started, stopped int32

	const failAt = 2
	p, err := BuildWithConfig(Config{
		Size: 4,
		SpawnWorker: func(id int, loop func()) error {
			if id == failAt {
				return spawnErr
			}
			go loop()
			return nil
		},
		OnWorkerStart: func(int) { atomic.AddInt32(&started, 1) },
		OnWorkerStop:  func(int) { atomic.AddInt32(&stopped, 1) },
	})

	if p != nil {
		t.Fatal("expected nil pool on spawn failure")
	}
	testutil.AssertError(t, err)

	var we *WorkerError
	testutil.AssertEqual(t, errors.As(err, &we), true)
	testutil.AssertEqual(t, we.WorkerID, failAt)
	testutil.AssertEqual(t, errors.Is(err, spawnErr), true)

	// The workers spawned before the failure were joined before Build
	// returned; goleak (TestMain) confirms nothing is left running.
	testutil.AssertEqual(t, atomic.LoadInt32(&stopped), atomic.LoadInt32(&started))
}

func TestCloseWaitsForLongRunningTask(t *testing.T) {
	p, err := Build(2)
	testutil.AssertNoError(t, err)

	var finished int32
	release := make(chan struct{})
	err = p.Submit(TaskFunc(func() {
		<-release
		atomic.StoreInt32(&finished, 1)
	}))
	testutil.AssertNoError(t, err)

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	// Close must not return while the task is still blocked.
	select {
	case <-closed:
		t.Fatal("Close returned before the running task finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the task finished")
	}

	testutil.AssertEqual(t, atomic.LoadInt32(&finished), int32(1))
}

func TestPendingTasksDrainBeforeShutdown(t *testing.T) {
	// One worker, many queued tasks: terminate messages queue behind the
	// jobs, so Close drains everything before the worker exits.
	p, err := Build(1)
	testutil.AssertNoError(t, err)

	const tasks = 20
	var executed int32
	for i := 0; i < tasks; i++ {
		err := p.Submit(TaskFunc(func() {
			atomic.AddInt32(&executed, 1)
		}))
		testutil.AssertNoError(t, err)
	}

	p.Close()

	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(tasks))
}

func TestPanicIsolation(t *testing.T) {
	var handledTask Task
	var recovered interface{}

	p, err := BuildWithConfig(Config{
		Size: 1,
		PanicHandler: func(task Task, r interface{}) {
			handledTask = task
			recovered = r
		},
	})
	testutil.AssertNoError(t, err)

	boom := TaskFunc(func() { panic("boom") })
	testutil.AssertNoError(t, p.Submit(boom))

	// The worker survived the panic: a follow-up task on the same single
	// worker still runs.
	var ran int32
	testutil.AssertNoError(t, p.Submit(TaskFunc(func() {
		atomic.AddInt32(&ran, 1)
	})))

	p.Close()

	testutil.AssertEqual(t, atomic.LoadInt32(&ran), int32(1))
	testutil.AssertEqual(t, p.TaskPanics(), int64(1))
	testutil.AssertEqual(t, recovered, interface{}("boom"))
	if handledTask == nil {
		t.Error("panic handler did not receive the task")
	}
}

func TestCloseIdempotent(t *testing.T) {
	p, err := Build(3)
	testutil.AssertNoError(t, err)

	p.Close()
	p.Close() // second call returns immediately

	// Concurrent callers all block until teardown is complete.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Close()
		}()
	}
	wg.Wait()
}

func TestTaskHooks(t *testing.T) {
	var taskStarted, taskCompleted int32

	p, err := BuildWithConfig(Config{
		Size:           2,
		OnTaskStart:    func(int, Task) { atomic.AddInt32(&taskStarted, 1) },
		OnTaskComplete: func(int, Task) { atomic.AddInt32(&taskCompleted, 1) },
	})
	testutil.AssertNoError(t, err)

	for i := 0; i < 5; i++ {
		testutil.AssertNoError(t, p.Submit(TaskFunc(func() {})))
	}

	p.Close()

	testutil.AssertEqual(t, atomic.LoadInt32(&taskStarted), int32(5))
	testutil.AssertEqual(t, atomic.LoadInt32(&taskCompleted), int32(5))
}

func TestActiveWorkers(t *testing.T) {
	p, err := Build(2)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, p.ActiveWorkers(), 0)

	var running sync.WaitGroup
	release := make(chan struct{})
	running.Add(2)
	for i := 0; i < 2; i++ {
		testutil.AssertNoError(t, p.Submit(TaskFunc(func() {
			running.Done()
			<-release
		})))
	}

	running.Wait()
	testutil.AssertEqual(t, p.ActiveWorkers(), 2)

	close(release)
	p.Close()

	testutil.AssertEqual(t, p.ActiveWorkers(), 0)
}

func TestQueueDepth(t *testing.T) {
	p, err := Build(1)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, p.QueueDepth(), 0)

	var running sync.WaitGroup
	release := make(chan struct{})
	running.Add(1)
	testutil.AssertNoError(t, p.Submit(TaskFunc(func() {
		running.Done()
		<-release
	})))
	running.Wait() // the worker now holds the blocking task

	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, p.Submit(TaskFunc(func() {})))
	}
	testutil.AssertEqual(t, p.QueueDepth(), 3)

	close(release)
	p.Close()

	testutil.AssertEqual(t, p.QueueDepth(), 0)
}
