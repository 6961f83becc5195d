package http

import (
	"testing"
	"time"
)

func TestCalculateBackoffZeroAttempt(t *testing.T) {
	if d := CalculateBackoff(0, time.Second, 10*time.Second); d != 0 {
		t.Errorf("attempt 0 backoff = %v, want 0", d)
	}
}

func TestCalculateBackoffZeroDelay(t *testing.T) {
	if d := CalculateBackoff(3, 0, 0); d != 0 {
		t.Errorf("zero-delay backoff = %v, want 0", d)
	}
}

func TestCalculateBackoffWithinBounds(t *testing.T) {
	initial := time.Second
	max := 10 * time.Second

	for attempt := 1; attempt <= 8; attempt++ {
		for i := 0; i < 20; i++ {
			d := CalculateBackoff(attempt, initial, max)
			if d < 0 || d >= max {
				t.Fatalf("attempt %d: backoff %v outside [0, %v)", attempt, d, max)
			}
		}
	}
}
