package telemetry

import (
	"sync"
	"time"
)

// Activity tracks when the last sample message arrived.
type Activity struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func NewActivity(now func() time.Time) *Activity {
	if now == nil {
		now = time.Now
	}
	return &Activity{now: now, last: now()}
}

func (a *Activity) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = a.now()
}

// Idle reports whether nothing arrived for at least timeout.
func (a *Activity) Idle(timeout time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now().Sub(a.last) >= timeout
}
