/*
Package redisfeed feeds a worker pool from a Redis list.

A Feeder runs one intake goroutine that BLPOPs payloads from a list key
and submits a handler task to the pool for each payload. Multiple
processes pointing at the same key share the list as a simple distributed
job queue; each payload is popped by exactly one of them.

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	feeder, err := redisfeed.New(redisfeed.Config{
		Client: rdb,
		Key:    "jobs",
		Pool:   p,
		Handler: func(payload string) {
			process(payload)
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	feeder.Start()
	defer feeder.Stop()

Stop halts intake only; tasks already submitted still run, and payloads
still in Redis remain for the next consumer.
*/
package redisfeed
