package markitdown

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	const tasks = 20

	limiter := newOCRLimiter(capacity)

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer limiter.release()

			n := atomic.AddInt32(&inFlight, 1)
			for {
				prev := atomic.LoadInt32(&maxInFlight)
				if n <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got > capacity {
		t.Errorf("observed %d tasks in flight, capacity is %d", got, capacity)
	}
}

func TestLimiterAcquireCanceled(t *testing.T) {
	limiter := newOCRLimiter(1)
	if err := limiter.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.acquire(ctx); err == nil {
		t.Fatal("acquire on canceled context should fail")
	}

	// The slot taken above must still be releasable and reusable.
	limiter.release()
	if err := limiter.acquire(context.Background()); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
}
