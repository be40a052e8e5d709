package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_TriggerDuringRunSchedulesOneFollowUp(t *testing.T) {
	var runs, inFlight, maxInFlight atomic.Int32
	started := make(chan struct{}, 10)
	release := make(chan struct{})

	d := NewDebouncer(5*time.Millisecond, func() {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		started <- struct{}{}
		if runs.Add(1) == 1 {
			<-release
		}
		inFlight.Add(-1)
	})
	defer d.Stop()

	d.Trigger()
	<-started

	// Three triggers while the first run is blocked collapse into one.
	for i := 0; i < 3; i++ {
		d.Trigger()
		time.Sleep(15 * time.Millisecond)
	}
	close(release)

	assert.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(2), runs.Load())
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { runs.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}
