package timers

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArm_FiresOnceAndRemovesEntry(t *testing.T) {
	r := NewRegistry()
	fired := make(chan struct{}, 2)

	r.Arm("job-1", time.Now().Add(20*time.Millisecond), func() { fired <- struct{}{} })
	assert.True(t, r.Has("job-1"))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	assert.False(t, r.Has("job-1"), "entry is removed on fire")
	assert.Equal(t, 0, r.Len())

	select {
	case <-fired:
		t.Fatal("timer fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestArm_PastInstantFiresImmediately(t *testing.T) {
	r := NewRegistry()
	fired := make(chan struct{}, 1)

	r.Arm("job-1", time.Now().Add(-time.Hour), func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("past timer was dropped instead of fired")
	}
}

func TestArm_ReplacesExistingTimer(t *testing.T) {
	r := NewRegistry()
	var oldFired, newFired atomic.Int32

	gen1, replaced := r.Arm("job-1", time.Now().Add(30*time.Millisecond), func() { oldFired.Add(1) })
	assert.False(t, replaced)

	gen2, replaced := r.Arm("job-1", time.Now().Add(60*time.Millisecond), func() { newFired.Add(1) })
	assert.True(t, replaced)
	assert.Greater(t, gen2, gen1)
	assert.Equal(t, 1, r.Len())

	require.Eventually(t, func() bool { return newFired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), oldFired.Load(), "replaced timer must never fire")
}

func TestCancel_Idempotent(t *testing.T) {
	r := NewRegistry()
	var fired atomic.Int32

	r.Arm("job-1", time.Now().Add(30*time.Millisecond), func() { fired.Add(1) })
	assert.True(t, r.Cancel("job-1"))
	assert.False(t, r.Cancel("job-1"))
	assert.False(t, r.Cancel("never-armed"))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestArm_CallbackCanRearmSameJob(t *testing.T) {
	r := NewRegistry()
	var count atomic.Int32
	done := make(chan struct{})

	var fn func()
	fn = func() {
		if count.Add(1) < 3 {
			r.Arm("job-1", time.Now().Add(5*time.Millisecond), fn)
			return
		}
		close(done)
	}
	r.Arm("job-1", time.Now(), fn)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("re-armed timers did not fire")
	}
	assert.Equal(t, int32(3), count.Load())
}

func TestArm_AtMostOneTimerPerJobUnderContention(t *testing.T) {
	r := NewRegistry()
	var fired atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Arm("job-1", time.Now().Add(40*time.Millisecond), func() { fired.Add(1) })
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.Len())

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestCancelAll(t *testing.T) {
	r := NewRegistry()
	var fired atomic.Int32
	for _, id := range []string{"a", "b", "c"} {
		r.Arm(id, time.Now().Add(30*time.Millisecond), func() { fired.Add(1) })
	}

	assert.Equal(t, 3, r.CancelAll())
	assert.Equal(t, 0, r.Len())
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestSnapshotAndFireAt(t *testing.T) {
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(WithClock(func() time.Time { return base }))

	r.Arm("late", base.Add(2*time.Hour), func() {})
	r.Arm("early", base.Add(time.Hour), func() {})
	defer r.CancelAll()

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "early", snap[0].JobID)
	assert.Equal(t, "late", snap[1].JobID)

	at, ok := r.FireAt("late")
	assert.True(t, ok)
	assert.Equal(t, base.Add(2*time.Hour), at)

	_, ok = r.FireAt("missing")
	assert.False(t, ok)
}

func TestCancelIf_OnlyMatchingGeneration(t *testing.T) {
	r := NewRegistry()
	defer r.CancelAll()

	old, _ := r.Arm("job-1", time.Now().Add(time.Hour), func() {})
	current, _ := r.Arm("job-1", time.Now().Add(time.Hour), func() {})

	assert.False(t, r.CancelIf("job-1", old), "a stale generation must not remove the newer timer")
	assert.True(t, r.Has("job-1"))

	assert.True(t, r.CancelIf("job-1", current))
	assert.False(t, r.Has("job-1"))
	assert.False(t, r.CancelIf("job-1", current))
	assert.False(t, r.CancelIf("missing", current))
}
