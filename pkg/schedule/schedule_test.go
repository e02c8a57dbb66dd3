package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/taskpool/internal/testutil"
	"github.com/vnykmshr/taskpool/pkg/pool"
)

func newTestScheduler(t *testing.T) (Scheduler, *pool.Pool) {
	t.Helper()

	p, err := pool.Build(2)
	testutil.AssertNoError(t, err)

	s := NewWithConfig(Config{
		Pool:         p,
		TickInterval: 5 * time.Millisecond,
	})
	return s, p
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestScheduleAfter(t *testing.T) {
	s, p := newTestScheduler(t)
	defer p.Close()
	defer func() { <-s.Stop() }()

	testutil.AssertNoError(t, s.Start())

	var ran int32
	err := s.ScheduleAfter("soon", pool.TaskFunc(func() {
		atomic.AddInt32(&ran, 1)
	}), 10*time.Millisecond)
	testutil.AssertNoError(t, err)

	waitFor(t, time.Second, func() bool {
		return atomic.LoadInt32(&ran) == 1
	})

	// One-time entries are removed after submission.
	waitFor(t, time.Second, func() bool {
		return len(s.List()) == 0
	})
}

func TestScheduleRepeating(t *testing.T) {
	s, p := newTestScheduler(t)
	defer p.Close()
	defer func() { <-s.Stop() }()

	testutil.AssertNoError(t, s.Start())

	var runs int32
	err := s.ScheduleRepeating("tick", pool.TaskFunc(func() {
		atomic.AddInt32(&runs, 1)
	}), 10*time.Millisecond)
	testutil.AssertNoError(t, err)

	waitFor(t, time.Second, func() bool {
		return atomic.LoadInt32(&runs) >= 3
	})

	testutil.AssertEqual(t, s.Cancel("tick"), true)
}

func TestScheduleValidation(t *testing.T) {
	s, p := newTestScheduler(t)
	defer p.Close()
	defer func() { <-s.Stop() }()

	task := pool.TaskFunc(func() {})

	testutil.AssertError(t, s.Schedule("", task, time.Now()))
	testutil.AssertError(t, s.Schedule("no-task", nil, time.Now()))
	testutil.AssertError(t, s.Schedule("zero-time", task, time.Time{}))
	testutil.AssertError(t, s.ScheduleRepeating("bad-interval", task, 0))
	testutil.AssertError(t, s.ScheduleCron("bad-cron", "not a cron", task))
}

func TestDuplicateID(t *testing.T) {
	s, p := newTestScheduler(t)
	defer p.Close()
	defer func() { <-s.Stop() }()

	task := pool.TaskFunc(func() {})

	testutil.AssertNoError(t, s.Schedule("dup", task, time.Now().Add(time.Hour)))
	testutil.AssertError(t, s.Schedule("dup", task, time.Now().Add(time.Hour)))
}

func TestCancel(t *testing.T) {
	s, p := newTestScheduler(t)
	defer p.Close()
	defer func() { <-s.Stop() }()

	task := pool.TaskFunc(func() {})

	testutil.AssertNoError(t, s.Schedule("a", task, time.Now().Add(time.Hour)))
	testutil.AssertNoError(t, s.Schedule("b", task, time.Now().Add(time.Hour)))
	testutil.AssertEqual(t, len(s.List()), 2)

	testutil.AssertEqual(t, s.Cancel("a"), true)
	testutil.AssertEqual(t, s.Cancel("a"), false)
	testutil.AssertEqual(t, len(s.List()), 1)

	s.CancelAll()
	testutil.AssertEqual(t, len(s.List()), 0)
}

func TestListSortedByRunTime(t *testing.T) {
	s, p := newTestScheduler(t)
	defer p.Close()
	defer func() { <-s.Stop() }()

	task := pool.TaskFunc(func() {})

	testutil.AssertNoError(t, s.Schedule("later", task, time.Now().Add(2*time.Hour)))
	testutil.AssertNoError(t, s.Schedule("sooner", task, time.Now().Add(time.Hour)))

	entries := s.List()
	testutil.AssertEqual(t, len(entries), 2)
	testutil.AssertEqual(t, entries[0].ID, "sooner")
	testutil.AssertEqual(t, entries[1].ID, "later")
}

func TestStartTwice(t *testing.T) {
	s, p := newTestScheduler(t)
	defer p.Close()
	defer func() { <-s.Stop() }()

	testutil.AssertNoError(t, s.Start())
	testutil.AssertError(t, s.Start())
}

func TestStopClosesOwnedPool(t *testing.T) {
	s := NewWithConfig(Config{TickInterval: 5 * time.Millisecond})
	testutil.AssertNoError(t, s.Start())

	var ran int32
	testutil.AssertNoError(t, s.ScheduleAfter("job", pool.TaskFunc(func() {
		atomic.AddInt32(&ran, 1)
	}), 10*time.Millisecond))

	waitFor(t, time.Second, func() bool {
		return atomic.LoadInt32(&ran) == 1
	})

	select {
	case <-s.Stop():
	case <-time.After(time.Second):
		t.Fatal("Stop did not complete")
	}
}
