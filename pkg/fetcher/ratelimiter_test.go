package fetcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRateLimiterCapsPerWindow exercises scenario (iv): max_per_minute=60,
// 120 instant callers — no more than 60 may be admitted before the window
// advances.
func TestRateLimiterCapsPerWindow(t *testing.T) {
	rl := NewRateLimiter(60)

	var clock time.Time
	var mu sync.Mutex
	rl.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	var slept []time.Duration
	var sleptAtLeastOnce atomic.Bool
	rl.sleep = func(d time.Duration) {
		mu.Lock()
		sleptAtLeastOnce.Store(true)
		clock = clock.Add(d)
		slept = append(slept, d)
		mu.Unlock()
	}

	var admittedBeforeSleep int32
	var wg sync.WaitGroup
	for i := 0; i < 120; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rl.Acquire()
			if !sleptAtLeastOnce.Load() {
				atomic.AddInt32(&admittedBeforeSleep, 1)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, slept, "expected at least one sleep once the window filled")
	require.LessOrEqual(t, int(atomic.LoadInt32(&admittedBeforeSleep)), 60, "no more than 60 callers may be admitted before the first sleep")
	require.LessOrEqual(t, len(rl.timestamps), 60)
}

func TestRateLimiterEvictsOldTimestamps(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Now()
	rl.timestamps = []time.Time{now.Add(-2 * time.Minute), now.Add(-90 * time.Second)}
	evicted := evict(rl.timestamps, now, time.Minute)
	require.Empty(t, evicted)
}
