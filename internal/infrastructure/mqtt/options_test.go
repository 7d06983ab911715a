package mqtt

import (
	"testing"
	"time"
)

func TestNextDelay(t *testing.T) {
	maxDelay := 60 * time.Second

	// The backoff sequence doubles from 1s and caps at 60s.
	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}

	delay := 1 * time.Second
	for i, expected := range want {
		delay = nextDelay(delay, maxDelay)
		if delay != expected {
			t.Fatalf("step %d: delay = %v, want %v", i, delay, expected)
		}
	}
}

func TestNextDelay_NeverExceedsCap(t *testing.T) {
	maxDelay := 60 * time.Second
	delay := 1 * time.Second
	for i := 0; i < 100; i++ {
		delay = nextDelay(delay, maxDelay)
		if delay > maxDelay {
			t.Fatalf("step %d: delay %v exceeds cap %v", i, delay, maxDelay)
		}
	}
}
