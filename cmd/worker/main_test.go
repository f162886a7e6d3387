package main

import (
	"testing"
	"time"
)

func TestDue(t *testing.T) {
	first := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		n    int
		now  time.Time
		want bool
	}{
		{"empty batch never flushes", 0, first.Add(time.Hour), false},
		{"young partial batch waits", 10, first.Add(500 * time.Millisecond), false},
		{"partial batch flushes once the oldest message is a second old", 10, first.Add(flushInterval), true},
		{"steady trickle still flushes on age", 99, first.Add(1500 * time.Millisecond), true},
		{"full batch flushes immediately", batchSize, first, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := due(tt.n, first, tt.now); got != tt.want {
				t.Errorf("due(%d, +%s) = %v, want %v", tt.n, tt.now.Sub(first), got, tt.want)
			}
		})
	}
}
