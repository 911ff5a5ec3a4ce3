package session

import (
	"math/rand"
	"time"
)

// Backoff paces reconnection attempts after a transport drop. The delay
// doubles per attempt up to a ceiling, with a random spread so clients that
// lost the same server do not all redial in the same instant.
type Backoff struct {
	Initial time.Duration
	Ceiling time.Duration
	Budget  int     // attempts before the session gives up
	Jitter  float64 // fraction of the delay; 0 disables the spread
}

// DefaultBackoff returns the reconnection pacing used by live sessions
func DefaultBackoff() *Backoff {
	return &Backoff{
		Initial: 2 * time.Second,
		Ceiling: 30 * time.Second,
		Budget:  5,
		Jitter:  0.2,
	}
}

// NextDelay returns how long to wait before the given attempt (zero-based)
func (b *Backoff) NextDelay(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt && d < b.Ceiling; i++ {
		d *= 2
	}
	if d > b.Ceiling {
		d = b.Ceiling
	}

	if spread := time.Duration(float64(d) * b.Jitter); spread > 0 {
		d += time.Duration(rand.Int63n(int64(2*spread))) - spread
	}
	return d
}

// ShouldRetry reports whether the attempt is still inside the budget
func (b *Backoff) ShouldRetry(attempt int) bool {
	return attempt < b.Budget
}
