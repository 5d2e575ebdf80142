package socketio

import (
	"reflect"

	"github.com/edumarques81/stellar-queue/internal/domain/player"
	"github.com/edumarques81/stellar-queue/internal/protocol"
)

// stateCompareKeys are the pushQueueState fields that decide whether a
// broadcast is needed. The transport position is left out: clients follow
// it through pushPosition.
var stateCompareKeys = []string{
	"status",
	"role",
	"phase",
	"currentSong",
	"title",
	"artist",
	"album",
	"duration",
	"queue",
	"playNext",
	"tracks",
	"playIndex",
	"playFrom",
	"repeat",
	"random",
	"volume",
	"startPosition",
	"startTime",
	"format",
}

// buildState flattens an engine update into the pushQueueState payload.
func buildState(u player.Update) map[string]any {
	st := u.State
	wire := protocol.PayloadFromState(st)

	status := "play"
	if st.Pause {
		status = "pause"
	}
	if st.CurrentSong == nil {
		status = "stop"
	}

	state := map[string]any{
		"status":        status,
		"role":          u.Role.String(),
		"phase":         u.Phase.String(),
		"currentSong":   wire.CurrentSong,
		"name":          wire.Name,
		"queue":         st.Flattened(),
		"playNext":      wire.PlayNext,
		"tracks":        wire.Tracks,
		"playIndex":     wire.Data.PlayIndex,
		"playFrom":      wire.Data.PlayFrom.String(),
		"repeat":        wire.Data.RepeatMode.String(),
		"random":        wire.Shuffle,
		"volume":        int(wire.Volume*100 + 0.5),
		"startPosition": wire.StartPosition,
		"startTime":     wire.StartTime,
		"duration":      u.Transport.DurationMs / 1000,
		"seek":          u.Transport.PositionMs,
		"transport":     u.Transport,
		"title":         "",
		"artist":        "",
		"album":         "",
	}
	if u.Transport.Format != nil {
		state["format"] = u.Transport.Format.String()
	}

	if np := u.NowPlaying; np != nil {
		state["nowPlaying"] = np
		state["title"] = np.Track.Title
		state["artist"] = np.ArtistName()
		if np.Album != nil {
			state["album"] = np.Album.Name
		}
		if np.Track.LengthSeconds > 0 && u.Transport.DurationMs == 0 {
			state["duration"] = int64(np.Track.LengthSeconds)
		}
	}
	return state
}

// isStateSame reports whether state matches the last broadcast on every
// compared key.
func (s *Server) isStateSame(state map[string]any) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastState == nil {
		return false
	}
	for _, key := range stateCompareKeys {
		if !reflect.DeepEqual(s.lastState[key], state[key]) {
			return false
		}
	}
	return true
}

// saveLastState stores a copy of the compared keys of a broadcast state.
func (s *Server) saveLastState(state map[string]any) {
	saved := make(map[string]any, len(stateCompareKeys))
	for _, key := range stateCompareKeys {
		if v, ok := state[key]; ok {
			saved[key] = v
		}
	}

	s.mu.Lock()
	s.lastState = saved
	s.mu.Unlock()
}
