package queue_test

import (
	"testing"
	"time"

	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

func TestPredictIsLinearWhilePlaying(t *testing.T) {
	s := queue.NewState()
	s.Pause = false
	s.StartTime = 1_700_000_000
	s.StartPosition = 12.5

	times := []float64{1_700_000_000, 1_700_000_001.5, 1_700_000_010, 1_700_000_100.25}
	for i := 1; i < len(times); i++ {
		t1, t2 := times[i-1], times[i]
		got := queue.Predict(s, t2) - queue.Predict(s, t1)
		want := int64((t2 - t1) * 1000)
		if got != want {
			t.Errorf("predict(%v)-predict(%v) = %d, want %d", t2, t1, got, want)
		}
	}

	if got := queue.Predict(s, s.StartTime); got != 12500 {
		t.Errorf("expected 12500 ms at start_time, got %d", got)
	}
}

func TestPredictFreezesWhilePaused(t *testing.T) {
	s := queue.NewState()
	s.Pause = true
	s.StartTime = 1_700_000_000
	s.StartPosition = 42

	for _, now := range []float64{0, 1_700_000_000, 1_800_000_000} {
		if got := queue.Predict(s, now); got != 42000 {
			t.Errorf("predict at %v = %d, want 42000", now, got)
		}
	}
}

func TestClampPosition(t *testing.T) {
	tests := []struct {
		name     string
		ms       int64
		duration int64
		expected int64
	}{
		{"inside", 5000, 10000, 5000},
		{"negative", -200, 10000, 0},
		{"past end", 12000, 10000, 10000},
		{"unknown duration", 12000, 0, 12000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := queue.ClampPosition(tt.ms, tt.duration); got != tt.expected {
				t.Errorf("ClampPosition(%d, %d) = %d, want %d", tt.ms, tt.duration, got, tt.expected)
			}
		})
	}
}

func TestEpochSeconds(t *testing.T) {
	ts := time.Unix(1_700_000_000, int64(500*time.Millisecond))
	if got := queue.EpochSeconds(ts); got != 1_700_000_000.5 {
		t.Errorf("expected 1700000000.5, got %v", got)
	}
}
