package hostwork

// Queue is the chain's bounded, singly-linked pending-work FIFO
// (component E). The host fills it (indirectly, via QueueFull
// pulling from Host.Dequeue); the scheduler drains it.
type Queue struct {
	head, tail *node
	len        int
}

type node struct {
	work *Work
	next *node
}

// FullThreshold is the queue-full watermark: 10 works per in-flight
// job-id slot, matching the 4-deep job FIFO's replenishment rate.
const FullThreshold = 10 * 4

// NewQueue returns an empty queue.
func NewQueue() *Queue { return &Queue{} }

// Enqueue appends w to the tail. Returns false if w is nil (the
// upstream had nothing to give).
func (q *Queue) Enqueue(w *Work) bool {
	if w == nil {
		return false
	}
	n := &node{work: w}
	if q.tail == nil {
		q.head, q.tail = n, n
	} else {
		q.tail.next = n
		q.tail = n
	}
	q.len++
	return true
}

// Dequeue pops the head, or returns nil if the queue is empty.
func (q *Queue) Dequeue() *Work {
	if q.head == nil {
		return nil
	}
	w := q.head.work
	q.head = q.head.next
	if q.head == nil {
		q.tail = nil
	}
	q.len--
	return w
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int { return q.len }

// Full reports whether the queue has reached FullThreshold.
func (q *Queue) Full() bool { return q.len >= FullThreshold }

// DrainTo pops every queued item and releases it to host (used by
// flush_work and shutdown).
func (q *Queue) DrainTo(host Host) {
	for {
		w := q.Dequeue()
		if w == nil {
			return
		}
		host.Release(w)
	}
}
