package utils

import "time"

// Clock abstracts wall time so windows and expiries can be driven by tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock returns the process wall clock.
func SystemClock() Clock {
	return realClock{}
}
