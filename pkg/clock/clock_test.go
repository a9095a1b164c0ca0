package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRealClock_AfterFunc(t *testing.T) {
	c := New()

	fired := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestRealClock_Stop(t *testing.T) {
	c := New()

	var fired atomic.Bool
	timer := c.AfterFunc(50*time.Millisecond, func() { fired.Store(true) })
	if !timer.Stop() {
		t.Fatal("Stop should report cancellation before firing")
	}

	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Error("stopped timer must not fire")
	}
}

func TestFake_AdvanceFiresDueTimers(t *testing.T) {
	f := NewFake()

	var order []int
	f.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	f.AfterFunc(time.Second, func() { order = append(order, 1) })
	f.AfterFunc(10*time.Second, func() { order = append(order, 10) })

	f.Advance(3 * time.Second)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("fired order = %v, want [1 2]", order)
	}
	if f.PendingTimers() != 1 {
		t.Errorf("PendingTimers = %d, want 1", f.PendingTimers())
	}
}

func TestFake_AdvanceRunsNestedSchedules(t *testing.T) {
	f := NewFake()

	var fired bool
	f.AfterFunc(time.Second, func() {
		f.AfterFunc(time.Second, func() { fired = true })
	})

	f.Advance(2 * time.Second)

	if !fired {
		t.Error("timer scheduled from a callback should fire within the same Advance window")
	}
}

func TestFake_Stop(t *testing.T) {
	f := NewFake()

	var fired bool
	timer := f.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop should succeed before firing")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}

	f.Advance(5 * time.Second)
	if fired {
		t.Error("stopped timer must not fire")
	}
	if f.PendingTimers() != 0 {
		t.Errorf("PendingTimers = %d, want 0", f.PendingTimers())
	}
}

func TestFake_NowAdvances(t *testing.T) {
	f := NewFake()
	start := f.Now()

	f.Advance(90 * time.Second)

	if got := f.Now().Sub(start); got != 90*time.Second {
		t.Errorf("Now advanced by %v, want 90s", got)
	}
}
