package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	l := New(0, 0)

	assert.Equal(t, 5, l.calls)
	assert.Equal(t, time.Second, l.period)
	assert.Equal(t, "5 per 1s", l.String())
}

func TestAcquire_FirstPermitImmediate(t *testing.T) {
	l := New(5, time.Second)

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquire_EnforcesRate(t *testing.T) {
	// 5 per 100ms: permits every 20ms, so 11 acquisitions need at least 200ms.
	l := New(5, 100*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 11; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 190*time.Millisecond)
}

func TestAcquire_SharedAcrossGoroutines(t *testing.T) {
	l := New(10, 100*time.Millisecond)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if err := l.Acquire(ctx); err != nil {
					t.Errorf("Acquire() error = %v", err)
					return
				}
				mu.Lock()
				times = append(times, time.Now())
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, times, 20)
	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	// 20 permits at 10ms spacing span at least 190ms regardless of caller.
	assert.GreaterOrEqual(t, last.Sub(first), 180*time.Millisecond)
}

func TestAcquire_ContextCancelled(t *testing.T) {
	l := New(1, time.Hour)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	assert.Error(t, err)
}
