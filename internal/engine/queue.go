package engine

import "github.com/bc-dunia/httpdrill/internal/transfer"

// submissionQueueCapacity is the bounded ring size a single worker accepts
// pending submissions into before backpressuring its producer.
const submissionQueueCapacity = 65536

// submissionQueue is the bounded channel a worker's loop drains. The
// producer (the strategy driver, or a round-robin dispatcher fanning
// across workers) pushes; the worker's own goroutine pops. A buffered
// channel gives the bounded capacity without hand rolling a ring buffer.
// Pushes never block: TryPush reports false when the queue is full, and
// Worker.Submit passes that false back to its caller as backpressure.
type submissionQueue chan *transfer.Context

func newSubmissionQueue() submissionQueue {
	return make(submissionQueue, submissionQueueCapacity)
}

// TryPush attempts a non-blocking push, returning false if the queue is
// full (backpressure the caller must react to — see §4.H strategies).
func (q submissionQueue) TryPush(c *transfer.Context) bool {
	select {
	case q <- c:
		return true
	default:
		return false
	}
}

// Len reports the number of pending submissions, for diagnostics.
func (q submissionQueue) Len() int {
	return len(q)
}
