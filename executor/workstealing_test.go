package executor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/LEAVING-7/io/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFanInCount is a scaled-down version of spec.md §8 scenario 2: each
// of N children sleeps briefly then spawns a grandchild that sleeps
// briefly and increments a shared atomic counter. After Block returns,
// the counter equals N and elapsed time reflects the two sleeps running
// concurrently across workers, not N serialized sleeps.
func TestFanInCount(t *testing.T) {
	r := newTestReactor(t)
	e := NewWorkStealing(r, 4, testLogger())
	t.Cleanup(e.Stop)

	const n = 12
	var counter atomic.Int64

	start := time.Now()
	Block(e, func(y *task.Yield) struct{} {
		for i := 0; i < n; i++ {
			SpawnDetach[struct{}](e, func(y *task.Yield) struct{} {
				r.Sleep(y, 40*time.Millisecond)
				SpawnDetach[struct{}](e, func(y *task.Yield) struct{} {
					r.Sleep(y, 10*time.Millisecond)
					counter.Add(1)
					return struct{}{}
				})
				return struct{}{}
			})
		}
		return struct{}{}
	})
	elapsed := time.Since(start)

	assert.Equal(t, int64(n), counter.Load())
	// not serialized: n*(40+10)ms would be >= 600ms for n=12.
	assert.Less(t, elapsed, 400*time.Millisecond)
}

// TestWorkConservation is the conservation property of spec.md §8: total
// work done equals work submitted regardless of thread interleaving.
func TestWorkConservation(t *testing.T) {
	r := newTestReactor(t)
	e := NewWorkStealing(r, 8, testLogger())
	t.Cleanup(e.Stop)

	const n = 200
	var counter atomic.Int64

	Block(e, func(y *task.Yield) struct{} {
		for i := 0; i < n; i++ {
			SpawnDetach[struct{}](e, func(y *task.Yield) struct{} {
				counter.Add(1)
				return struct{}{}
			})
		}
		return struct{}{}
	})

	require.Equal(t, int64(n), counter.Load())
}
