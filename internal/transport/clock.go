package transport

import "time"

// Clock provides a testable time source.
type Clock interface {
	Now() time.Time
}

// RealClock is a production Clock implementation backed by time.Now.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }
