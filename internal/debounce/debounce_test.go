package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrigger_CoalescesBurst(t *testing.T) {
	d := New(30 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Int32

	for i := 1; i <= 5; i++ {
		i := i
		d.Trigger(func() {
			calls.Add(1)
			last.Store(int32(i))
		})
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(5), last.Load())
}

func TestFlush_RunsPendingImmediately(t *testing.T) {
	d := New(time.Hour)
	var ran atomic.Bool
	d.Trigger(func() { ran.Store(true) })

	d.Flush()
	assert.True(t, ran.Load())

	// Second flush is a no-op.
	ran.Store(false)
	d.Flush()
	assert.False(t, ran.Load())
}

func TestStop_DropsPending(t *testing.T) {
	d := New(10 * time.Millisecond)
	var ran atomic.Bool
	d.Trigger(func() { ran.Store(true) })
	d.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestTrigger_AfterFlushSchedulesAgain(t *testing.T) {
	d := New(10 * time.Millisecond)
	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Flush()
	d.Trigger(func() { calls.Add(1) })

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}
