// Package queue serializes calls to rate-limited third-party services.
// The public geocoding and venue-search endpoints allow roughly one request
// per second, so every caller routes through a single Queue.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTimeout reports that an item waited in the queue beyond its limit
	// and was rejected before ever starting.
	ErrTimeout = errors.New("queue item timed out while waiting")

	// ErrCleared reports that a queued item was rejected by Clear.
	ErrCleared = errors.New("queue cleared")
)

// Operation is the unit of work executed by the queue.
type Operation func(ctx context.Context) (any, error)

// State is the lifecycle state of a queue item.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Config holds the pacing parameters for a Queue.
type Config struct {
	// MinDelay is the minimum interval between the starts of consecutive
	// operations.
	MinDelay time.Duration

	// SettleDelay is an extra pause after each completion before the next
	// item starts.
	SettleDelay time.Duration

	// ItemTimeout rejects an item that has waited in queued state this long,
	// regardless of its position.
	ItemTimeout time.Duration
}

// DefaultConfig returns pacing suited to a 1 req/sec external limit.
func DefaultConfig() Config {
	return Config{
		MinDelay:    1200 * time.Millisecond,
		SettleDelay: 300 * time.Millisecond,
		ItemTimeout: 60 * time.Second,
	}
}

type outcome struct {
	value any
	err   error
}

type item struct {
	id         string
	kind       string
	priority   bool
	op         Operation
	ctx        context.Context
	state      State
	enqueuedAt time.Time
	timer      *time.Timer
	done       chan outcome // buffered; delivered exactly once
}

// Queue runs operations strictly one at a time with a minimum inter-start
// delay, FIFO within each priority class. A single pump goroutine drains the
// list and exits when it empties; enqueueing restarts it.
type Queue struct {
	cfg Config

	mu         sync.Mutex
	pending    []*item
	pumping    bool
	processing bool
	lastStart  time.Time
}

// New creates a Queue with the given pacing configuration.
func New(cfg Config) *Queue {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultConfig().MinDelay
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = DefaultConfig().ItemTimeout
	}
	return &Queue{cfg: cfg}
}

// Enqueue adds an operation and blocks until it completes, fails, times out
// waiting, or the caller's context is cancelled. Priority items run before
// non-priority ones; within a class, order of arrival holds.
func (q *Queue) Enqueue(ctx context.Context, kind string, priority bool, op Operation) (any, error) {
	it := &item{
		id:         uuid.New().String(),
		kind:       kind,
		priority:   priority,
		op:         op,
		ctx:        ctx,
		state:      StateQueued,
		enqueuedAt: time.Now(),
		done:       make(chan outcome, 1),
	}

	it.timer = time.AfterFunc(q.cfg.ItemTimeout, func() {
		q.reject(it, ErrTimeout)
	})

	q.mu.Lock()
	q.insert(it)
	q.startPumpLocked()
	q.mu.Unlock()

	select {
	case out := <-it.done:
		return out.value, out.err
	case <-ctx.Done():
		q.reject(it, ctx.Err())
		// The item may already be processing; in that case its own
		// operation observes the cancelled context and reports back.
		out := <-it.done
		return out.value, out.err
	}
}

// Clear rejects every item still waiting in the queue and returns how many it
// rejected. An in-flight operation is left to finish naturally.
func (q *Queue) Clear() int {
	q.mu.Lock()
	waiting := q.pending
	q.pending = nil
	q.mu.Unlock()

	cleared := 0
	for _, it := range waiting {
		if q.fail(it, ErrCleared) {
			cleared++
		}
	}
	return cleared
}

// Stats reports queue occupancy for display purposes.
type Stats struct {
	Waiting    int
	Processing int
}

// Stats returns the current queue depth and in-flight count.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{Waiting: len(q.pending)}
	if q.processing {
		s.Processing = 1
	}
	return s
}

// insert places the item after the last entry of its priority class.
// Callers hold q.mu.
func (q *Queue) insert(it *item) {
	if !it.priority {
		q.pending = append(q.pending, it)
		return
	}

	pos := 0
	for pos < len(q.pending) && q.pending[pos].priority {
		pos++
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[pos+1:], q.pending[pos:])
	q.pending[pos] = it
}

// startPumpLocked launches the pump goroutine unless one is already running.
// Callers hold q.mu.
func (q *Queue) startPumpLocked() {
	if q.pumping {
		return
	}
	q.pumping = true
	go q.pump()
}

// pump drains the queue one item at a time and exits when it empties. The
// head item stays in pending while pacing out MinDelay so that Clear,
// timeouts, and caller cancellation can still reject it right up until it
// transitions to processing.
func (q *Queue) pump() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.pumping = false
			q.mu.Unlock()
			return
		}

		wait := q.cfg.MinDelay - time.Since(q.lastStart)
		if wait > 0 {
			q.mu.Unlock()
			time.Sleep(wait)
			// The head may have been rejected or replaced meanwhile;
			// re-evaluate from scratch.
			continue
		}

		it := q.pending[0]
		q.pending = q.pending[1:]
		it.state = StateProcessing
		it.timer.Stop()
		q.processing = true
		q.lastStart = time.Now()
		q.mu.Unlock()

		value, err := it.op(it.ctx)

		q.mu.Lock()
		q.processing = false
		if err != nil {
			it.state = StateFailed
		} else {
			it.state = StateCompleted
		}
		q.mu.Unlock()

		it.done <- outcome{value: value, err: err}

		if q.cfg.SettleDelay > 0 {
			time.Sleep(q.cfg.SettleDelay)
		}
	}
}

// reject removes a still-queued item and delivers the given error. Items
// already processing or settled are left alone.
func (q *Queue) reject(it *item, err error) {
	q.mu.Lock()
	for i, p := range q.pending {
		if p == it {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	q.mu.Unlock()

	q.fail(it, err)
}

// fail marks a queued item failed and delivers err exactly once. Returns
// false when the item already left the queued state.
func (q *Queue) fail(it *item, err error) bool {
	q.mu.Lock()
	if it.state != StateQueued {
		q.mu.Unlock()
		return false
	}
	it.state = StateFailed
	it.timer.Stop()
	q.mu.Unlock()

	it.done <- outcome{err: err}
	return true
}
