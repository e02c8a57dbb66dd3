/*
Package dispatch provides the blocking message queue that connects task
submitters to pool workers.

The queue is a multi-producer FIFO with one logical receive endpoint
shared by every consumer. A mutex guards check-and-extract, so exactly
one consumer receives each message; a condition variable parks consumers
while the queue is empty. Sends never block the producer.

	q := dispatch.New[string]()

	go func() {
		for {
			msg, err := q.Receive()
			if err != nil {
				return // closed and drained
			}
			handle(msg)
		}
	}()

	_ = q.Send("job-1")
	_ = q.Close() // rejects further sends; pending messages still drain

Closing the queue wakes every blocked receiver. Receivers drain messages
accepted before the close and then get ErrClosed, which is the signal to
exit their loop.
*/
package dispatch
