package scheduler

import "time"

// Clock abstracts wall-clock access so tests can pin time.
type Clock interface {
	Now() time.Time
}

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Timer is the handle to one armed single-fire timer.
type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

// TimerFactory arms a single-fire timer that calls fn after d elapses.
type TimerFactory func(d time.Duration, fn func()) Timer

// SystemTimers is the production TimerFactory, backed by time.AfterFunc.
func SystemTimers(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
