package client

import "time"

// Clock abstracts timer creation so the typing debounce can run against a fake
// clock in tests.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer mirrors the subset of *time.Timer the debounce needs.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NewRealClock returns a Clock backed by the time package.
func NewRealClock() Clock {
	return realClock{}
}
