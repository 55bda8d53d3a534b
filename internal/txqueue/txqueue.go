// Package txqueue implements the per-channel transmit queue: a
// two-priority FIFO that producers append to and the transmit
// scheduler drains once the channel is clear (ground: tq.go).
package txqueue

import (
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// Priority selects which of a channel's two queues a frame waits in.
// High-priority frames (digipeated traffic) go out first and are never
// bundled behind slot-time/persist waiting; low-priority frames wait
// their turn behind p-persistent channel access.
type Priority int

const (
	PriorityHigh Priority = 0
	PriorityLow  Priority = 1

	numPriorities = 2
)

// Item is one queued frame plus the bookkeeping the transmit scheduler
// needs to decide whether it may be bundled with the next item.
type Item struct {
	Raw []byte
	// Digipeated marks APRS-digipeat traffic, which must never be
	// bundled with other frames.
	Digipeated bool
	Queued     time.Time
}

// Queue holds one channel's two priority FIFOs.
type Queue struct {
	mu   sync.Mutex
	wake chan struct{}

	lanes [numPriorities][]Item

	// TimestampFormat is the strftime layout Stamp applies; empty uses
	// RFC3339.
	TimestampFormat string
}

// New creates an empty transmit queue for one channel.
func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Append adds raw to the tail of the given priority's lane and wakes
// any goroutine blocked in WaitWhileEmpty.
func (q *Queue) Append(prio Priority, raw []byte, digipeated bool) {
	when := time.Now()
	q.mu.Lock()
	q.lanes[prio] = append(q.lanes[prio], Item{Raw: raw, Digipeated: digipeated, Queued: when})
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stamp renders t using TimestampFormat (the per-channel
// timestamp_format), falling back to RFC3339 if the layout is empty or
// invalid.
func (q *Queue) Stamp(t time.Time) string {
	if q.TimestampFormat == "" {
		return t.Format(time.RFC3339)
	}
	s, err := strftime.Format(q.TimestampFormat, t)
	if err != nil {
		return t.Format(time.RFC3339)
	}
	return s
}

// IsEmpty reports whether both lanes are empty.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes[PriorityHigh]) == 0 && len(q.lanes[PriorityLow]) == 0
}

// WaitWhileEmpty blocks until either lane is non-empty or timeout
// elapses; it returns false on timeout. Mirrors tq_wait_while_empty's
// per-channel condition variable.
func (q *Queue) WaitWhileEmpty(timeout time.Duration) bool {
	for {
		if !q.IsEmpty() {
			return true
		}
		if timeout <= 0 {
			<-q.wake
			continue
		}
		select {
		case <-q.wake:
			return !q.IsEmpty()
		case <-time.After(timeout):
			return false
		}
	}
}

// Peek returns the head item of prio's lane without removing it.
func (q *Queue) Peek(prio Priority) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.lanes[prio]) == 0 {
		return Item{}, false
	}
	return q.lanes[prio][0], true
}

// Remove pops the head item of prio's lane.
func (q *Queue) Remove(prio Priority) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.lanes[prio]) == 0 {
		return Item{}, false
	}
	it := q.lanes[prio][0]
	q.lanes[prio] = q.lanes[prio][1:]
	return it, true
}

// NextReady returns the next item to transmit, preferring the high
// priority lane, and which lane it came from.
func (q *Queue) NextReady() (Item, Priority, bool) {
	if it, ok := q.Peek(PriorityHigh); ok {
		return it, PriorityHigh, true
	}
	if it, ok := q.Peek(PriorityLow); ok {
		return it, PriorityLow, true
	}
	return Item{}, 0, false
}
