package schedule

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/taskpool/pkg/common/validation"
	"github.com/vnykmshr/taskpool/pkg/metrics"
	"github.com/vnykmshr/taskpool/pkg/pool"
)

// Entry describes a registered task.
type Entry struct {
	ID       string
	RunAt    time.Time
	Interval time.Duration // zero for one-time and cron entries
	Created  time.Time
}

// Scheduler submits tasks to a worker pool at deferred times, fixed
// intervals, or cron schedules.
type Scheduler interface {
	// Basic scheduling
	Schedule(id string, task pool.Task, runAt time.Time) error
	ScheduleAfter(id string, task pool.Task, delay time.Duration) error
	ScheduleRepeating(id string, task pool.Task, interval time.Duration) error

	// Cron scheduling
	ScheduleCron(id string, cronExpr string, task pool.Task) error

	// Entry management
	Cancel(id string) bool
	CancelAll()
	List() []Entry

	// Lifecycle
	Start() error
	Stop() <-chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	// Pool receives due tasks. If nil the scheduler owns a default pool
	// and closes it on Stop.
	Pool *pool.Pool

	// Location is the time zone for cron schedules. Defaults to time.Local.
	Location *time.Location

	// TickInterval is how often due entries are checked. Defaults to 50ms.
	TickInterval time.Duration

	// MaxEntries caps the number of registered entries. Defaults to 10000.
	MaxEntries int

	// Name labels this scheduler's metrics. Defaults to "default".
	Name string

	// Metrics is an optional registry for the tasks_scheduled counter.
	Metrics *metrics.Registry
}

type scheduledEntry struct {
	id           string
	task         pool.Task
	runAt        time.Time
	interval     time.Duration
	cronSchedule cron.Schedule
	created      time.Time
}

type scheduler struct {
	pool         *pool.Pool
	ownPool      bool
	location     *time.Location
	tickInterval time.Duration
	maxEntries   int
	cronParser   cron.Parser
	name         string
	registry     *metrics.Registry

	mu      sync.RWMutex
	entries map[string]*scheduledEntry
	ticker  *time.Ticker
	done    chan struct{}
	stopped chan struct{}
	running bool
}

// New creates a scheduler with default configuration.
func New() Scheduler {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) Scheduler {
	p := cfg.Pool
	ownPool := false
	if p == nil {
		p = pool.New(4)
		ownPool = true
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = 50 * time.Millisecond
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}

	return &scheduler{
		pool:         p,
		ownPool:      ownPool,
		location:     location,
		tickInterval: tickInterval,
		maxEntries:   maxEntries,
		cronParser:   cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		name:         name,
		registry:     cfg.Metrics,
		entries:      make(map[string]*scheduledEntry),
	}
}

// validateEntry checks the fields shared by every scheduling method.
func (s *scheduler) validateEntry(id string, task pool.Task) error {
	if err := validation.ValidateNotEmpty("schedule", "id", id); err != nil {
		return err
	}
	if len(id) > 255 {
		return fmt.Errorf("entry ID too long (max 255 characters)")
	}
	if task == nil {
		return validation.ValidateNotNil("schedule", "task", nil)
	}
	return nil
}

// add registers the entry, enforcing uniqueness and the entry cap.
// Caller provides a fully populated entry.
func (s *scheduler) add(e *scheduledEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.id]; exists {
		return fmt.Errorf("entry with ID %q already exists, use a different ID or cancel the existing entry first", e.id)
	}
	if len(s.entries) >= s.maxEntries {
		return fmt.Errorf("cannot schedule entry: maximum number of entries (%d) reached", s.maxEntries)
	}

	s.entries[e.id] = e
	if s.registry != nil {
		s.registry.TasksScheduled.WithLabelValues(s.name).Inc()
	}
	return nil
}

func (s *scheduler) Schedule(id string, task pool.Task, runAt time.Time) error {
	if err := s.validateEntry(id, task); err != nil {
		return err
	}
	if runAt.IsZero() {
		return fmt.Errorf("entry run time cannot be zero")
	}

	return s.add(&scheduledEntry{
		id:      id,
		task:    task,
		runAt:   runAt,
		created: time.Now(),
	})
}

func (s *scheduler) ScheduleAfter(id string, task pool.Task, delay time.Duration) error {
	return s.Schedule(id, task, time.Now().Add(delay))
}

func (s *scheduler) ScheduleRepeating(id string, task pool.Task, interval time.Duration) error {
	if err := s.validateEntry(id, task); err != nil {
		return err
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}

	return s.add(&scheduledEntry{
		id:       id,
		task:     task,
		runAt:    time.Now(),
		interval: interval,
		created:  time.Now(),
	})
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, task pool.Task) error {
	if err := s.validateEntry(id, task); err != nil {
		return err
	}
	if cronExpr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}

	sched, err := s.cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	now := time.Now().In(s.location)
	return s.add(&scheduledEntry{
		id:           id,
		task:         task,
		runAt:        sched.Next(now),
		cronSchedule: sched,
		created:      time.Now(),
	})
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		delete(s.entries, id)
		return true
	}
	return false
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*scheduledEntry)
}

func (s *scheduler) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, Entry{
			ID:       e.id,
			RunAt:    e.runAt,
			Interval: e.interval,
			Created:  e.created,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RunAt.Before(entries[j].RunAt)
	})

	return entries
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}

	s.running = true
	s.ticker = time.NewTicker(s.tickInterval)
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.run()
	return nil
}

// Stop halts the tick loop and, when the scheduler owns its pool, closes
// it. The returned channel closes once everything has shut down.
func (s *scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	wasRunning := s.running
	if s.running {
		s.running = false
		close(s.done)
		s.ticker.Stop()
	}
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		if wasRunning {
			<-s.stopped
		}
		if s.ownPool {
			s.pool.Close()
		}
	}()

	return finished
}

func (s *scheduler) run() {
	defer close(s.stopped)

	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.submitDueEntries()
		}
	}
}

// submitDueEntries collects entries whose time has come, reschedules the
// recurring ones, and submits the tasks outside the lock.
func (s *scheduler) submitDueEntries() {
	now := time.Now()

	s.mu.Lock()
	if len(s.entries) == 0 {
		s.mu.Unlock()
		return
	}

	due := make([]*scheduledEntry, 0, len(s.entries))
	for id, e := range s.entries {
		if now.Before(e.runAt) {
			continue
		}
		due = append(due, e)

		switch {
		case e.interval > 0:
			e.runAt = now.Add(e.interval)
		case e.cronSchedule != nil:
			e.runAt = e.cronSchedule.Next(now.In(s.location))
		default:
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		// Submission can fail only once the pool is closed; entries due
		// during shutdown are dropped.
		_ = s.pool.Submit(e.task)
	}
}
