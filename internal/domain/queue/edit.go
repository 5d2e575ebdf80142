package queue

import (
	"slices"

	"github.com/samber/lo"
)

// Flattened returns the queue as the UI shows it: PlayNext followed by Tracks.
func (s *State) Flattened() []TrackID {
	return slices.Concat(s.PlayNext, s.Tracks)
}

// PlayTrack jumps to id. An id waiting in PlayNext is reached by dropping
// the entries ahead of it. Otherwise the pending PlayNext entries are dropped
// and id is played from Tracks, appended when it is not queued.
func (s *State) PlayTrack(id TrackID) Move {
	if k := slices.Index(s.PlayNext, id); k >= 0 {
		s.PlayNext = slices.Clone(s.PlayNext[k:])
		return s.play(id, PlayFromPlayNext)
	}

	s.PlayNext = nil
	idx := slices.Index(s.Tracks, id)
	if idx < 0 {
		s.Tracks = append(slices.Clone(s.Tracks), id)
		idx = len(s.Tracks) - 1
	}
	s.PlayIndex = idx
	return s.play(id, PlayFromTracks)
}

// PlayTracks replaces the queue with ids and starts playing ids[index].
func (s *State) PlayTracks(ids []TrackID, index int) Move {
	if len(ids) == 0 {
		return s.Clear()
	}
	index = lo.Clamp(index, 0, len(ids)-1)
	s.Tracks = slices.Clone(ids)
	s.PlayNext = nil
	s.PlayIndex = index
	return s.play(ids[index], PlayFromTracks)
}

// AddTracks appends ids to the persistent queue.
func (s *State) AddTracks(ids []TrackID) {
	s.Tracks = slices.Concat(s.Tracks, ids)
}

// AddPlayNext appends ids to the interrupt queue. When nothing was pending
// the first entry interrupts the current song; Tracks[PlayIndex] resumes
// after the interrupt queue is drained.
func (s *State) AddPlayNext(ids []TrackID) Move {
	if len(ids) == 0 {
		return Move{}
	}
	wasDraining := s.Draining()
	s.PlayNext = slices.Concat(s.PlayNext, ids)
	if wasDraining {
		return Move{}
	}
	return s.play(s.PlayNext[0], PlayFromPlayNext)
}

// Clear empties both lists and stops playback.
func (s *State) Clear() Move {
	s.Tracks = nil
	s.PlayNext = nil
	s.PlayIndex = 0
	s.PlayFrom = PlayFromTracks
	s.CurrentSong = nil
	s.Name = ""
	return s.stop()
}

// RemoveAt removes the entry at index of the flattened view.
// Removing the song currently playing from Tracks advances to the song that
// took its place; removing from PlayNext never advances, and the entry being
// played from PlayNext cannot be removed.
func (s *State) RemoveAt(index int) (Move, error) {
	n := len(s.PlayNext)
	if index < 0 || index >= n+len(s.Tracks) {
		return Move{}, ErrIndexOutOfRange
	}

	if index < n {
		if index == 0 && s.Draining() {
			return Move{}, ErrNowPlaying
		}
		s.PlayNext = slices.Delete(slices.Clone(s.PlayNext), index, index+1)
		return Move{}, nil
	}

	i := index - n
	playing := s.PlayFrom == PlayFromTracks && i == s.PlayIndex
	s.Tracks = slices.Delete(slices.Clone(s.Tracks), i, i+1)

	switch {
	case i < s.PlayIndex:
		s.PlayIndex--
	case playing:
		return s.replaceRemovedCurrent(), nil
	}
	return Move{}, nil
}

// replaceRemovedCurrent plays whatever now sits at PlayIndex after the
// current song was removed from Tracks.
func (s *State) replaceRemovedCurrent() Move {
	if len(s.Tracks) == 0 {
		s.PlayIndex = 0
		s.CurrentSong = nil
		return s.stop()
	}
	if s.PlayIndex >= len(s.Tracks) {
		if s.RepeatMode != RepeatQueue {
			s.PlayIndex = len(s.Tracks) - 1
			s.CurrentSong = nil
			return s.stop()
		}
		s.PlayIndex = 0
	}
	return s.play(s.Tracks[s.PlayIndex], PlayFromTracks)
}

// Reorder moves an entry of Tracks, keeping PlayIndex on the same logical song.
// Reordering is refused while PlayNext has entries.
func (s *State) Reorder(from, to int) error {
	if len(s.PlayNext) > 0 {
		return ErrReorderWithPlayNext
	}
	if from < 0 || from >= len(s.Tracks) || to < 0 || to >= len(s.Tracks) {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}

	id := s.Tracks[from]
	tracks := slices.Delete(slices.Clone(s.Tracks), from, from+1)
	s.Tracks = slices.Insert(tracks, to, id)

	switch {
	case from == s.PlayIndex:
		s.PlayIndex = to
	case from < s.PlayIndex && to >= s.PlayIndex:
		s.PlayIndex--
	case from > s.PlayIndex && to <= s.PlayIndex:
		s.PlayIndex++
	}
	return nil
}
