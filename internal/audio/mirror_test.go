package audio_test

import (
	"testing"

	"github.com/edumarques81/stellar-queue/internal/audio"
)

func TestNewMirror(t *testing.T) {
	m := audio.NewMirror()
	snap := m.Snapshot()

	if snap.Playing || snap.Loaded {
		t.Error("expected a new mirror to be idle")
	}
	if snap.Format != nil || snap.PendingSeek != nil {
		t.Errorf("expected empty mirror, got %+v", snap)
	}
}

func TestMirrorUpdate(t *testing.T) {
	tests := []struct {
		name          string
		status        audio.Status
		expectPlaying bool
		expectFormat  bool
		expectChanged bool
	}{
		{
			name:          "playing with format",
			status:        audio.Status{State: "play", PositionMs: 1000, DurationMs: 200000, Loaded: true, Audio: "44100:16:2"},
			expectPlaying: true,
			expectFormat:  true,
			expectChanged: true,
		},
		{
			name:          "paused keeps format",
			status:        audio.Status{State: "pause", PositionMs: 1000, DurationMs: 200000, Loaded: true, Audio: "96000:24:2"},
			expectFormat:  true,
			expectChanged: true,
		},
		{
			name:          "stopped from initial state",
			status:        audio.Status{State: "stop"},
			expectChanged: false,
		},
		{
			name:          "invalid format",
			status:        audio.Status{State: "play", Loaded: true, Audio: "invalid"},
			expectPlaying: true,
			expectChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := audio.NewMirror()
			changed := m.Update(tt.status)
			snap := m.Snapshot()

			if snap.Playing != tt.expectPlaying {
				t.Errorf("expected playing=%v, got %v", tt.expectPlaying, snap.Playing)
			}
			if (snap.Format != nil) != tt.expectFormat {
				t.Errorf("expected format=%v, got %+v", tt.expectFormat, snap.Format)
			}
			if snap.PositionMs != tt.status.PositionMs {
				t.Errorf("expected position %d, got %d", tt.status.PositionMs, snap.PositionMs)
			}
			if changed != tt.expectChanged {
				t.Errorf("expected changed=%v, got %v", tt.expectChanged, changed)
			}
		})
	}
}

func TestMirrorPositionOnlyIsNotAChange(t *testing.T) {
	m := audio.NewMirror()
	st := audio.Status{State: "play", PositionMs: 1000, DurationMs: 5000, Loaded: true}
	if !m.Update(st) {
		t.Error("expected first update to report changed")
	}

	st.PositionMs = 1100
	if m.Update(st) {
		t.Error("expected a position tick to not report changed")
	}
	if m.PositionMs() != 1100 {
		t.Errorf("expected position to follow, got %d", m.PositionMs())
	}

	st.State = "pause"
	if !m.Update(st) {
		t.Error("expected pause to report changed")
	}
}

func TestPendingSeek(t *testing.T) {
	m := audio.NewMirror()
	if _, ok := m.TakePendingSeek(); ok {
		t.Fatal("expected no pending seek")
	}

	m.SetPendingSeek(3000)
	m.SetPendingSeek(14000)
	if snap := m.Snapshot(); snap.PendingSeek == nil || *snap.PendingSeek != 14000 {
		t.Errorf("expected pending seek 14000 in snapshot, got %v", snap.PendingSeek)
	}

	ms, ok := m.TakePendingSeek()
	if !ok || ms != 14000 {
		t.Errorf("expected latest pending seek 14000, got %d (%v)", ms, ok)
	}
	if _, ok := m.TakePendingSeek(); ok {
		t.Error("expected pending seek to be cleared once consumed")
	}
}

func TestMediaLifecycle(t *testing.T) {
	m := audio.NewMirror()
	m.Update(audio.Status{State: "play", PositionMs: 5000, DurationMs: 9000, Loaded: true})

	m.MediaLoading()
	if m.Loaded() || m.PositionMs() != 0 {
		t.Error("expected loading media to reset position and readiness")
	}

	m.MediaLoaded(180000)
	if !m.Loaded() || m.DurationMs() != 180000 {
		t.Errorf("expected loaded media with duration, got loaded=%v duration=%d", m.Loaded(), m.DurationMs())
	}

	m.SetPendingSeek(1000)
	m.Stopped()
	if m.Playing() || m.Loaded() {
		t.Error("expected stopped mirror to be idle")
	}
	if _, ok := m.TakePendingSeek(); ok {
		t.Error("expected stop to drop the pending seek")
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := audio.NewMirror()
	done := make(chan bool, 10)

	for i := 0; i < 5; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				if j%2 == 0 {
					m.Update(audio.Status{State: "play", Audio: "44100:16:2"})
				} else {
					m.SetPendingSeek(int64(j))
				}
			}
			done <- true
		}()
	}

	for i := 0; i < 5; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = m.Snapshot()
				m.TakePendingSeek()
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
