package profiler

import (
	"log"
	"time"
)

// WallTime measures named host-time intervals.
type WallTime struct {
	startTimes map[string]time.Time
}

// NewWallTime creates an interval tracker.
func NewWallTime() *WallTime {
	return &WallTime{
		startTimes: make(map[string]time.Time),
	}
}

// Start opens the interval named flag. One flag can only be open once.
func (w *WallTime) Start(flag string) {
	if _, found := w.startTimes[flag]; found {
		log.Panicf("interval %q already started", flag)
	}
	w.startTimes[flag] = time.Now()
}

// Stop closes the interval named flag and returns its length in seconds.
func (w *WallTime) Stop(flag string) float64 {
	start, found := w.startTimes[flag]
	if !found {
		log.Panicf("interval %q was never started", flag)
	}

	delete(w.startTimes, flag)
	return time.Since(start).Seconds()
}
