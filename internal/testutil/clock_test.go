package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_Frozen(t *testing.T) {
	start := time.UnixMilli(1700000000000)
	clock := NewFixedClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())
}

func TestFixedClock_AdvanceAndSet(t *testing.T) {
	start := time.UnixMilli(0)
	clock := NewFixedClock(start)

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, int64(1500), clock.Now().UnixMilli())

	clock.Set(time.UnixMilli(42))
	assert.Equal(t, int64(42), clock.Now().UnixMilli())
}

func TestFixedClock_ThreadSafe(t *testing.T) {
	clock := NewFixedClock(time.UnixMilli(0))

	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), clock.Now().UnixMilli())
}
