package rtc

import (
	"math/rand/v2"
	"time"
)

// Backoff is a bounded exponential backoff policy. One policy object drives
// both the initial connect and every reconnect cycle, so retry behavior is
// identical in both paths.
type Backoff struct {
	Base        time.Duration
	Multiplier  float64
	Cap         time.Duration
	MaxAttempts int
	// Jitter is the fraction of the computed delay randomized away in both
	// directions. Zero disables jitter.
	Jitter float64
}

// DefaultBackoff returns the standard policy: 500ms doubling to an 8s cap,
// five attempts, a quarter of jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        500 * time.Millisecond,
		Multiplier:  2,
		Cap:         8 * time.Second,
		MaxAttempts: 5,
		Jitter:      0.25,
	}
}

// Delay returns the wait before the given 1-based attempt number.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(b.Base)
	for i := 1; i < attempt; i++ {
		d *= b.Multiplier
		if time.Duration(d) >= b.Cap {
			d = float64(b.Cap)
			break
		}
	}
	if ceiling := float64(b.Cap); d > ceiling {
		d = ceiling
	}

	if b.Jitter > 0 {
		// d * (1 ± jitter)
		d *= 1 + b.Jitter*(2*rand.Float64()-1)
	}

	return time.Duration(d)
}

// Exhausted reports whether the given number of completed attempts has
// reached the retry ceiling.
func (b Backoff) Exhausted(attempts int) bool {
	return attempts >= b.MaxAttempts
}
