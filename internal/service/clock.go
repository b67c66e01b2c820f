package service

import "time"

// Clock is the time source used by the abuse-control components. Injecting
// it keeps window and expiry arithmetic deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewSystemClock returns a Clock backed by time.Now.
func NewSystemClock() Clock {
	return systemClock{}
}
