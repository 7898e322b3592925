// Package tick hands work from background goroutines to the host's control
// goroutine. Background code calls Post; the control goroutine calls Drain
// once per host update or menu frame.
package tick

import "sync"

// Queue is a FIFO of callbacks. The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	pending []func()
}

// Post schedules fn to run on the next Drain. Safe for concurrent use.
func (q *Queue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Drain runs every callback posted before the call, in posting order, and
// returns how many ran. Callbacks posted while draining run on the next
// Drain.
func (q *Queue) Drain() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Len returns the number of callbacks waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
