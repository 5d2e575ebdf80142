package queue

import (
	"slices"
)

// RestartThresholdMs is how far into a track "previous" restarts it instead
// of moving back.
const RestartThresholdMs = 3000

// Outcome tells the transport owner what a queue move requires.
type Outcome int

const (
	// OutcomeNone leaves the transport alone.
	OutcomeNone Outcome = iota
	// OutcomePlay loads Move.Track and plays it from the start.
	OutcomePlay
	// OutcomeRestart seeks the loaded track back to 0 and plays.
	OutcomeRestart
	// OutcomeStop stops the transport.
	OutcomeStop
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlay:
		return "play"
	case OutcomeRestart:
		return "restart"
	case OutcomeStop:
		return "stop"
	default:
		return "none"
	}
}

// Move is the result of a queue transition.
type Move struct {
	Outcome Outcome
	Track   TrackID
}

func (s *State) play(id TrackID, from PlayFrom) Move {
	s.SetCurrent(&id)
	s.PlayFrom = from
	s.Pause = false
	s.StartPosition = 0
	return Move{Outcome: OutcomePlay, Track: id}
}

func (s *State) restart() Move {
	s.Pause = false
	s.StartPosition = 0
	id, _ := s.Current()
	return Move{Outcome: OutcomeRestart, Track: id}
}

func (s *State) stop() Move {
	s.Pause = true
	s.StartPosition = 0
	return Move{Outcome: OutcomeStop}
}

// Advance moves to the next song after the current one ended or the user
// pressed "next". Entries in PlayNext always take priority, and while they
// are pending Tracks and PlayIndex are left untouched.
func (s *State) Advance() Move {
	if len(s.PlayNext) > 0 {
		if s.PlayFrom != PlayFromPlayNext {
			// Not draining yet: the front entry has not been played.
			return s.play(s.PlayNext[0], PlayFromPlayNext)
		}
		s.PlayNext = slices.Clone(s.PlayNext[1:])
		if len(s.PlayNext) > 0 {
			return s.play(s.PlayNext[0], PlayFromPlayNext)
		}
		s.PlayFrom = PlayFromTracks
		return s.resumeTracks()
	}

	if s.RepeatMode == RepeatTrack && s.CurrentSong != nil {
		return s.restart()
	}
	if len(s.Tracks) == 0 {
		return s.stop()
	}

	s.PlayIndex++
	if s.PlayIndex >= len(s.Tracks) {
		if s.RepeatMode != RepeatQueue {
			s.PlayIndex = len(s.Tracks) - 1
			return s.stop()
		}
		s.PlayIndex = 0
	}
	return s.play(s.Tracks[s.PlayIndex], PlayFromTracks)
}

// resumeTracks plays Tracks[PlayIndex] without moving the cursor.
func (s *State) resumeTracks() Move {
	if s.PlayIndex < 0 || s.PlayIndex >= len(s.Tracks) {
		return s.stop()
	}
	return s.play(s.Tracks[s.PlayIndex], PlayFromTracks)
}

// Previous restarts the current song when more than RestartThresholdMs
// into it, otherwise steps PlayIndex back. While draining PlayNext the
// current song is always restarted.
func (s *State) Previous(positionMs int64) Move {
	if positionMs > RestartThresholdMs && s.CurrentSong != nil {
		return s.restart()
	}
	if s.Draining() {
		return s.restart()
	}
	if len(s.Tracks) == 0 {
		return s.stop()
	}

	s.PlayIndex--
	if s.PlayIndex < 0 {
		if s.RepeatMode == RepeatQueue {
			s.PlayIndex = len(s.Tracks) - 1
		} else {
			s.PlayIndex = 0
		}
	}
	if s.PlayIndex >= len(s.Tracks) {
		s.PlayIndex = len(s.Tracks) - 1
	}
	return s.play(s.Tracks[s.PlayIndex], PlayFromTracks)
}
