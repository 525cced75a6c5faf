package service

import "time"

// Clock supplies the current time. Injected so effective-window filtering and
// stage timestamps are deterministic under test.
type Clock func() time.Time

// SystemClock is the production clock.
func SystemClock() time.Time {
	return time.Now().UTC()
}
