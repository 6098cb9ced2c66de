package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	if d := clock.Since(past); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(200 * time.Millisecond):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_AdvanceFiresAfter(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ch := clock.After(2 * time.Second)

	clock.Advance(time.Second)
	select {
	case <-ch:
		t.Fatal("After fired early")
	default:
	}

	clock.Advance(time.Second)
	select {
	case got := <-ch:
		if !got.Equal(start.Add(2 * time.Second)) {
			t.Errorf("After delivered %v", got)
		}
	default:
		t.Fatal("After did not fire")
	}
	if clock.Since(start) != 2*time.Second {
		t.Errorf("Since() = %v", clock.Since(start))
	}
}

func TestMockClock_AfterZero(t *testing.T) {
	clock := NewMockClock(time.Time{})
	select {
	case <-clock.After(0):
	default:
		t.Error("After(0) should fire immediately")
	}
}

func TestMockTicker_AdvanceAndDrop(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(100 * time.Millisecond).(*MockTicker)

	clock.Advance(50 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(50 * time.Millisecond)
	// A second due tick while one is pending is dropped.
	clock.Advance(100 * time.Millisecond)

	<-ticker.C()
	select {
	case <-ticker.C():
		t.Fatal("pending tick should have been dropped")
	default:
	}

	if !ticker.Trigger(time.Time{}) {
		t.Error("Trigger on empty channel should deliver")
	}
	if ticker.Trigger(time.Time{}) {
		t.Error("Trigger on full channel should drop")
	}

	ticker.Stop()
	if !ticker.Stopped() {
		t.Error("Stopped() = false after Stop")
	}
}

func TestMockClock_WaitForTicker(t *testing.T) {
	clock := NewMockClock(time.Time{})
	if clock.WaitForTicker(10*time.Millisecond) != nil {
		t.Fatal("expected nil without a ticker")
	}

	go clock.NewTicker(time.Second)
	if clock.WaitForTicker(time.Second) == nil {
		t.Fatal("expected the created ticker")
	}
}
