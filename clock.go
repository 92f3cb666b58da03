package eventstore

import "time"

// Clock supplies the recordedat timestamp of committed events
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock reading the wall clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to the Clock interface
type ClockFunc func() time.Time

// Now calls f
func (f ClockFunc) Now() time.Time { return f() }
