package testutil

import (
	"testing"
	"time"
)

func TestManualClock_Frozen(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}
	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() moved without Advance: %v", got)
	}
}

func TestManualClock_Advance(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	c.Advance(90 * time.Second)

	want := start.Add(90 * time.Second)
	if got := c.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestManualClock_Set(t *testing.T) {
	c := NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	target := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.Set(target)

	if got := c.Now(); !got.Equal(target) {
		t.Errorf("Now() after Set = %v, want %v", got, target)
	}
}
