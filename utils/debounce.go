package utils

import (
	"sync"
	"time"
)

// Debouncer is a single-shot, restart-on-reschedule timer. Scheduling
// a run implicitly cancels the previously pending one, so there is
// never more than one pending run per Debouncer.
type Debouncer struct {
	lock  sync.Mutex
	timer *time.Timer
}

func (d *Debouncer) Schedule(delay time.Duration, f func()) {
	d.lock.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, f)
	d.lock.Unlock()
}

// Cancel stops the pending run, if any. It reports whether a run was
// still pending. The caller decides what to do with the work the
// cancelled run would have done.
func (d *Debouncer) Cancel() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}
