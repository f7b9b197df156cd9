package sync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpinlock(t *testing.T) {
	var (
		sl         Spinlock
		wg         sync.WaitGroup
		numWorkers = 10
		counter    int
	)

	sl.Acquire()
	require.False(t, sl.TryToAcquire(), "expected TryToAcquire to fail while the lock is held")

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			sl.Acquire()
			counter++
			sl.Release()
		}()
	}

	<-time.After(50 * time.Millisecond)
	require.Zero(t, counter)

	sl.Release()
	wg.Wait()

	require.Equal(t, numWorkers, counter)
	require.True(t, sl.TryToAcquire())
	sl.Release()
}
