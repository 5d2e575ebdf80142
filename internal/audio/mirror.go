// Package audio mirrors the local audio engine's transport state.
package audio

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Status is a point-in-time report from the audio engine.
type Status struct {
	State      string // "play", "pause" or "stop"
	PositionMs int64
	DurationMs int64
	Loaded     bool   // a song is loaded, regardless of play state
	Audio      string // raw output format, "samplerate:bits:channels"
}

// Playing reports whether the engine is producing audio.
func (s Status) Playing() bool {
	return s.State == "play"
}

// Snapshot is the mirror's state as shown to the host.
type Snapshot struct {
	PositionMs  int64   `json:"positionMs"`
	DurationMs  int64   `json:"durationMs"`
	Playing     bool    `json:"playing"`
	Loaded      bool    `json:"loaded"`
	PendingSeek *int64  `json:"pendingSeekMs,omitempty"`
	Format      *Format `json:"format"`
}

// Mirror holds the last known transport state and a seek waiting for
// media to become ready.
type Mirror struct {
	mu          sync.RWMutex
	positionMs  int64
	durationMs  int64
	playing     bool
	loaded      bool
	pendingSeek *int64
	format      *Format
}

// NewMirror returns an empty mirror: nothing loaded, not playing.
func NewMirror() *Mirror {
	return &Mirror{}
}

// Snapshot returns a copy of the mirror's state.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		PositionMs: m.positionMs,
		DurationMs: m.durationMs,
		Playing:    m.playing,
		Loaded:     m.loaded,
	}
	if m.pendingSeek != nil {
		v := *m.pendingSeek
		snap.PendingSeek = &v
	}
	if m.format != nil {
		f := *m.format
		snap.Format = &f
	}
	return snap
}

// Update applies an engine status report. It returns true when anything
// other than the position changed.
func (m *Mirror) Update(st Status) (changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var format *Format
	if st.Audio != "" {
		format = ParseFormat(st.Audio)
	}

	changed = m.playing != st.Playing() ||
		m.loaded != st.Loaded ||
		m.durationMs != st.DurationMs ||
		!formatEqual(m.format, format)

	m.positionMs = st.PositionMs
	m.durationMs = st.DurationMs
	m.playing = st.Playing()
	m.loaded = st.Loaded
	m.format = format

	if changed {
		log.Debug().
			Bool("playing", m.playing).
			Bool("loaded", m.loaded).
			Int64("duration_ms", m.durationMs).
			Str("format", m.format.String()).
			Msg("Transport status changed")
	}
	return changed
}

// PositionMs returns the last known position.
func (m *Mirror) PositionMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positionMs
}

// DurationMs returns the loaded media's duration, 0 when unknown.
func (m *Mirror) DurationMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.durationMs
}

// Playing reports whether the engine was last seen playing.
func (m *Mirror) Playing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playing
}

// Loaded reports whether media is ready for seeking.
func (m *Mirror) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// SetPosition records a position after a seek was issued.
func (m *Mirror) SetPosition(ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionMs = ms
}

// SetPlaying records a play/pause issued to the engine.
func (m *Mirror) SetPlaying(playing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = playing
}

// MediaLoading resets the mirror for a new load; media is not ready
// until the engine reports it.
func (m *Mirror) MediaLoading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionMs = 0
	m.durationMs = 0
	m.loaded = false
}

// MediaLoaded marks media as ready.
func (m *Mirror) MediaLoaded(durationMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = true
	if durationMs > 0 {
		m.durationMs = durationMs
	}
}

// Stopped clears everything except the output format.
func (m *Mirror) Stopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionMs = 0
	m.durationMs = 0
	m.playing = false
	m.loaded = false
	m.pendingSeek = nil
}

// SetPendingSeek buffers a seek until media is ready. A later call replaces it.
func (m *Mirror) SetPendingSeek(ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingSeek = &ms
}

// TakePendingSeek returns and clears the buffered seek.
func (m *Mirror) TakePendingSeek() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pendingSeek == nil {
		return 0, false
	}
	ms := *m.pendingSeek
	m.pendingSeek = nil
	return ms, true
}
