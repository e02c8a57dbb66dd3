/*
Package schedule submits tasks to a worker pool at deferred times, fixed
intervals, or cron schedules.

The scheduler keeps a map of entries and a tick loop that submits due
tasks to the configured pool. With no pool configured it owns one and
closes it on Stop.

	s := schedule.NewWithConfig(schedule.Config{Pool: p})
	if err := s.Start(); err != nil {
		log.Fatal(err)
	}
	defer func() { <-s.Stop() }()

	_ = s.ScheduleAfter("warmup", task, 5*time.Second)
	_ = s.ScheduleRepeating("heartbeat", task, time.Minute)
	_ = s.ScheduleCron("nightly", "0 0 3 * * *", task)

Cron expressions use the six-field format with seconds, parsed by
robfig/cron.
*/
package schedule
