package pipeline

import "time"

// Backoff computes the delay before a retry attempt: base doubling per
// consumed attempt, capped at max. Delays are monotonically non-decreasing in
// the attempt number.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before the next attempt after `consumed` failed
// attempts at a stage. consumed=1 yields Base, consumed=2 yields 2*Base, and
// so on up to Max.
func (b Backoff) Delay(consumed int) time.Duration {
	if consumed <= 0 || b.Base <= 0 {
		return 0
	}
	delay := b.Base
	for i := 1; i < consumed; i++ {
		if b.Max > 0 && delay > b.Max/2 {
			return b.Max
		}
		delay *= 2
	}
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}
