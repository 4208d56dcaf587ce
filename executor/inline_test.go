package executor

import (
	"testing"
	"time"

	"github.com/LEAVING-7/io/reactor"
	"github.com/LEAVING-7/io/task"
	"github.com/stretchr/testify/require"
)

func newTestReactor(t *testing.T) *reactor.Reactor {
	t.Helper()
	r, err := reactor.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// TestSleepOrder is spec.md §8 end-to-end scenario 1: three tasks sleeping
// 30ms/10ms/20ms append their id to a shared slice; after Block joins, the
// slice equals [2, 3, 1].
func TestSleepOrder(t *testing.T) {
	r := newTestReactor(t)
	e := NewInline(r)

	var order []int
	root := func(y *task.Yield) struct{} {
		durations := []struct {
			id int
			d  time.Duration
		}{
			{1, 30 * time.Millisecond},
			{2, 10 * time.Millisecond},
			{3, 20 * time.Millisecond},
		}
		for _, dur := range durations {
			dur := dur
			SpawnDetach[struct{}](e, func(y *task.Yield) struct{} {
				r.Sleep(y, dur.d)
				order = append(order, dur.id)
				return struct{}{}
			})
		}
		return struct{}{}
	}

	BlockValue(e, root)

	require.Equal(t, []int{2, 3, 1}, order)
}

// TestTimerCancelQuiescence is spec.md §8 scenario 4 at the executor
// level: a timer inserted then immediately removed never resumes, and
// Block on an otherwise-empty task reaches quiescence promptly.
func TestTimerCancelQuiescence(t *testing.T) {
	r := newTestReactor(t)
	e := NewInline(r)

	resumed := false
	id := uint64(0)
	deadline := time.Now().Add(200 * time.Millisecond)

	BlockValue(e, func(y *task.Yield) struct{} {
		y.Suspend(func(next *task.Continuation) {
			id = r.InsertTimer(deadline, next)
			r.RemoveTimer(id, deadline)
			// Immediately resume ourselves via a fresh zero-delay timer
			// instead of actually waiting on the cancelled one, so Block
			// can observe completion without hanging on a continuation
			// that — by design — is never resumed.
			r.InsertTimer(time.Now(), next)
		})
		resumed = true
		return struct{}{}
	})

	require.True(t, resumed)
	_ = id
}
