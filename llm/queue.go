package llm

import "context"

// RequestQueue is the process-wide, single-slot, first-come-first-served
// gate every completion request passes through before reaching the vendor
// transport (spec.md §4.3). A single buffered channel of size one plays
// the role of the slot: whichever caller's Acquire unblocks first is
// whichever called first, since Go delivers a buffered channel's single
// slot to waiting receivers in send order.
type RequestQueue struct {
	slot chan struct{}
}

// NewRequestQueue constructs a queue with its one slot free.
func NewRequestQueue() *RequestQueue {
	q := &RequestQueue{slot: make(chan struct{}, 1)}
	q.slot <- struct{}{}
	return q
}

// Acquire blocks until the slot is free or ctx is cancelled. On success it
// returns a release function the caller must call exactly once to free the
// slot for the next waiter.
func (q *RequestQueue) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-q.slot:
		return func() { q.slot <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
