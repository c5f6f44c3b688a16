package utils

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerRestartsOnSchedule(t *testing.T) {
	var first, second atomic.Int32
	d := Debouncer{}

	d.Schedule(50*time.Millisecond, func() { first.Add(1) })
	d.Schedule(50*time.Millisecond, func() { second.Add(1) })

	assert.Eventually(t, func() bool {
		return second.Load() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestDebouncerCancel(t *testing.T) {
	var fired atomic.Int32
	d := Debouncer{}

	d.Schedule(50*time.Millisecond, func() { fired.Add(1) })
	assert.True(t, d.Cancel())
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	assert.False(t, d.Cancel())
}

func TestDebouncerSchedulesAgainAfterFire(t *testing.T) {
	var fired atomic.Int32
	d := Debouncer{}

	d.Schedule(10*time.Millisecond, func() { fired.Add(1) })
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	d.Schedule(10*time.Millisecond, func() { fired.Add(1) })
	assert.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 5*time.Millisecond)
}
