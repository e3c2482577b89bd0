package rtc

import (
	"testing"
	"time"
)

func TestBackoffDelayGrowth(t *testing.T) {
	b := Backoff{Base: 500 * time.Millisecond, Multiplier: 2, Cap: 8 * time.Second, MaxAttempts: 5}

	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second, // capped
		8 * time.Second,
	}
	for i, w := range want {
		if got := b.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoffDelayClampsAttempt(t *testing.T) {
	b := Backoff{Base: time.Second, Multiplier: 2, Cap: 8 * time.Second, MaxAttempts: 5}
	if got := b.Delay(0); got != time.Second {
		t.Errorf("Delay(0) = %v, want base", got)
	}
	if got := b.Delay(-3); got != time.Second {
		t.Errorf("Delay(-3) = %v, want base", got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{Base: time.Second, Multiplier: 2, Cap: 8 * time.Second, MaxAttempts: 5, Jitter: 0.25}

	lo := 750 * time.Millisecond
	hi := 1250 * time.Millisecond
	for i := 0; i < 200; i++ {
		if got := b.Delay(1); got < lo || got > hi {
			t.Fatalf("jittered Delay(1) = %v, want within [%v, %v]", got, lo, hi)
		}
	}
}

func TestBackoffExhausted(t *testing.T) {
	b := Backoff{Base: time.Second, Multiplier: 2, Cap: 8 * time.Second, MaxAttempts: 5}

	if b.Exhausted(4) {
		t.Error("Exhausted(4) should be false with 5 max attempts")
	}
	if !b.Exhausted(5) {
		t.Error("Exhausted(5) should be true with 5 max attempts")
	}
	if !b.Exhausted(6) {
		t.Error("Exhausted(6) should be true with 5 max attempts")
	}
}

func TestDefaultBackoff(t *testing.T) {
	b := DefaultBackoff()
	if b.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", b.MaxAttempts)
	}
	if b.Cap != 8*time.Second {
		t.Errorf("Cap = %v, want 8s", b.Cap)
	}
	// Every delay stays under the cap plus the jitter margin.
	ceiling := time.Duration(float64(b.Cap) * (1 + b.Jitter))
	for attempt := 1; attempt <= 10; attempt++ {
		if got := b.Delay(attempt); got > ceiling {
			t.Errorf("Delay(%d) = %v exceeds jittered ceiling %v", attempt, got, ceiling)
		}
	}
}
