package main

import (
	"testing"
	"time"
)

func TestDispatchSubcommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"version", []string{"version"}, 0},
		{"version flag", []string{"--version"}, 0},
		{"help", []string{"help"}, 0},
		{"unknown", []string{"frobnicate"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dispatchSubcommand(tt.args); got != tt.want {
				t.Errorf("dispatchSubcommand(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestRuntimeWatchdog(t *testing.T) {
	fired := make(chan struct{}, 1)
	w := &runtimeWatchdog{
		limit:  10 * time.Millisecond,
		expire: func() { fired <- struct{}{} },
	}

	w.Arm()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire")
	}

	// Disarm before expiry suppresses the termination.
	w.Arm()
	w.Disarm()
	select {
	case <-fired:
		t.Fatal("disarmed watchdog fired")
	case <-time.After(50 * time.Millisecond):
	}
}
