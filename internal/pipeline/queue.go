// internal/pipeline/queue.go
package pipeline

import "time"

// Policy selects the admission behavior of a full queue.
type Policy int

const (
	// Block makes Push wait for space. Used on persistence paths where
	// loss is unacceptable; back-pressure reaches the poll cadence.
	Block Policy = iota

	// DropOldest evicts the oldest queued batch to admit the newest.
	// Used on the display path only, where freshness beats completeness.
	DropOldest
)

// Queue is a bounded FIFO of sample batches. One queue per consumer;
// batches are dequeued strictly in the order enqueued.
type Queue struct {
	ch     chan []float64
	policy Policy
}

// NewQueue creates a queue holding up to depth batches.
func NewQueue(depth int, policy Policy) *Queue {
	if depth <= 0 {
		depth = 1
	}
	return &Queue{
		ch:     make(chan []float64, depth),
		policy: policy,
	}
}

// Push enqueues one batch according to the queue policy. Ownership of
// the slice transfers to the queue.
func (q *Queue) Push(batch []float64) {
	if q.policy == Block {
		q.ch <- batch
		return
	}
	for {
		select {
		case q.ch <- batch:
			return
		default:
			// Full: evict one and retry.
			select {
			case <-q.ch:
			default:
			}
		}
	}
}

// TryPop dequeues without waiting; ok is false when the queue is empty.
func (q *Queue) TryPop() (batch []float64, ok bool) {
	select {
	case b := <-q.ch:
		return b, true
	default:
		return nil, false
	}
}

// Pop dequeues, waiting up to timeout. The timeout lets consumers run
// periodic housekeeping even when no data arrives.
func (q *Queue) Pop(timeout time.Duration) (batch []float64, ok bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case b := <-q.ch:
		return b, true
	case <-t.C:
		return nil, false
	}
}

// Len reports the number of queued batches.
func (q *Queue) Len() int { return len(q.ch) }
