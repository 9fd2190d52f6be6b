package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MinDelay:    60 * time.Millisecond,
		SettleDelay: 10 * time.Millisecond,
		ItemTimeout: 5 * time.Second,
	}
}

func TestEnqueueSerializesWithMinDelay(t *testing.T) {
	q := New(testConfig())
	ctx := context.Background()

	var mu sync.Mutex
	var starts []time.Time
	inFlight := 0
	maxInFlight := 0

	op := func(context.Context) (any, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Enqueue(ctx, "geocode", false, op)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, starts, 3)
	assert.Equal(t, 1, maxInFlight, "operations must never overlap")
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, 55*time.Millisecond, "start %d began too soon after start %d", i, i-1)
	}
}

func TestPriorityOrdering(t *testing.T) {
	cfg := testConfig()
	cfg.MinDelay = time.Millisecond
	cfg.SettleDelay = 0
	q := New(cfg)
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	record := func(name string) Operation {
		return func(context.Context) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
	}

	// Occupy the pump so subsequent items queue up behind it.
	blocker := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = q.Enqueue(ctx, "blocker", false, func(context.Context) (any, error) {
			<-blocker
			return nil, nil
		})
	}()

	// Give the blocker time to start processing.
	time.Sleep(20 * time.Millisecond)

	for _, spec := range []struct {
		name     string
		priority bool
	}{
		{"normal-1", false},
		{"normal-2", false},
		{"prio-1", true},
		{"prio-2", true},
	} {
		wg.Add(1)
		go func(name string, priority bool) {
			defer wg.Done()
			_, err := q.Enqueue(ctx, "venue", priority, record(name))
			assert.NoError(t, err)
		}(spec.name, spec.priority)
		// Stagger arrivals so FIFO-within-class is well-defined.
		time.Sleep(10 * time.Millisecond)
	}

	close(blocker)
	wg.Wait()

	assert.Equal(t, []string{"prio-1", "prio-2", "normal-1", "normal-2"}, order)
}

func TestQueuedItemTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.ItemTimeout = 30 * time.Millisecond
	cfg.MinDelay = time.Millisecond
	q := New(cfg)
	ctx := context.Background()

	blocker := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = q.Enqueue(ctx, "blocker", false, func(context.Context) (any, error) {
			<-blocker
			return nil, nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	executed := false
	_, err := q.Enqueue(ctx, "geocode", false, func(context.Context) (any, error) {
		executed = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, executed, "timed-out item must never start")

	// The timed-out item was removed; Clear has nothing left to reject.
	assert.Equal(t, 0, q.Clear())

	close(blocker)
	wg.Wait()
}

func TestClearRejectsQueuedOnly(t *testing.T) {
	cfg := testConfig()
	cfg.MinDelay = time.Millisecond
	q := New(cfg)
	ctx := context.Background()

	blocker := make(chan struct{})
	blockerDone := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(ctx, "blocker", false, func(context.Context) (any, error) {
			<-blocker
			return "ok", nil
		})
		blockerDone <- err
	}()
	time.Sleep(10 * time.Millisecond)

	queuedDone := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(ctx, "geocode", false, func(context.Context) (any, error) {
			return nil, nil
		})
		queuedDone <- err
	}()
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, q.Clear())
	assert.ErrorIs(t, <-queuedDone, ErrCleared)

	// The in-flight item is not interrupted.
	close(blocker)
	assert.NoError(t, <-blockerDone)
}

func TestClearRejectsItemInPacingWindow(t *testing.T) {
	cfg := testConfig()
	cfg.MinDelay = 300 * time.Millisecond
	cfg.SettleDelay = 0
	q := New(cfg)
	ctx := context.Background()

	// First item runs immediately; the second then sits in the pacing
	// window behind MinDelay.
	_, err := q.Enqueue(ctx, "geocode", false, func(context.Context) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	executed := false
	queuedDone := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(ctx, "venue", false, func(context.Context) (any, error) {
			executed = true
			return nil, nil
		})
		queuedDone <- err
	}()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, q.Clear(), "item waiting out MinDelay must still be clearable")
	assert.ErrorIs(t, <-queuedDone, ErrCleared)
	assert.False(t, executed, "cleared item must never start")
}

func TestStats(t *testing.T) {
	cfg := testConfig()
	cfg.MinDelay = time.Millisecond
	q := New(cfg)
	ctx := context.Background()

	blocker := make(chan struct{})
	go func() {
		_, _ = q.Enqueue(ctx, "blocker", false, func(context.Context) (any, error) {
			<-blocker
			return nil, nil
		})
	}()
	go func() {
		_, _ = q.Enqueue(ctx, "waiting", false, func(context.Context) (any, error) {
			return nil, nil
		})
	}()
	time.Sleep(30 * time.Millisecond)

	s := q.Stats()
	assert.Equal(t, 1, s.Processing)
	assert.Equal(t, 1, s.Waiting)

	close(blocker)
}
