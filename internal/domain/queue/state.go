// Package queue provides the shared play queue model and its advance rules.
package queue

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Errors returned by queue edits.
var (
	ErrIndexOutOfRange     = errors.New("queue index out of range")
	ErrReorderWithPlayNext = errors.New("reorder is only supported while play_next is empty")
	ErrNowPlaying          = errors.New("entry is currently playing from play_next")
)

// TrackID identifies a track in the remote library.
type TrackID int64

// UnmarshalJSON accepts both JSON numbers and numeric strings.
func (id *TrackID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("invalid track id %s", data)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid track id %s: %w", data, err)
	}
	*id = TrackID(v)
	return nil
}

func (id TrackID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Role is the server-assigned responsibility of this client.
type Role int

const (
	// RolePlayer produces audio. It is the default before first server contact.
	RolePlayer Role = iota
	// RoleController mirrors state without producing audio.
	RoleController
)

func (r Role) String() string {
	switch r {
	case RoleController:
		return "controller"
	default:
		return "player"
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	switch string(text) {
	case "player", "":
		*r = RolePlayer
	case "controller":
		*r = RoleController
	default:
		return fmt.Errorf("unknown role %q", text)
	}
	return nil
}

// PlayFrom names the list the current song came from.
type PlayFrom int

const (
	PlayFromTracks PlayFrom = iota
	PlayFromPlayNext
)

func (p PlayFrom) String() string {
	if p == PlayFromPlayNext {
		return "play_next"
	}
	return "tracks"
}

func (p PlayFrom) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PlayFrom) UnmarshalText(text []byte) error {
	switch string(text) {
	case "tracks", "":
		*p = PlayFromTracks
	case "play_next":
		*p = PlayFromPlayNext
	default:
		return fmt.Errorf("unknown play_from %q", text)
	}
	return nil
}

// RepeatMode controls what happens at the end of a track or the queue.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatQueue
	RepeatTrack
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatQueue:
		return "queue"
	case RepeatTrack:
		return "track"
	default:
		return "none"
	}
}

func (m RepeatMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *RepeatMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*m = RepeatNone
	case "queue":
		*m = RepeatQueue
	case "track":
		*m = RepeatTrack
	default:
		return fmt.Errorf("unknown repeat_mode %q", text)
	}
	return nil
}

// Next returns the mode that follows m in the UI toggle cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatQueue
	case RepeatQueue:
		return RepeatTrack
	default:
		return RepeatNone
	}
}

// DefaultVolume is used until the server reports one.
const DefaultVolume = 0.8

// State is the shared description of what should be playing.
// The authoritative copy lives on the queue server; this is the local mirror.
// It is not safe for concurrent use: a single owner mutates it.
type State struct {
	CurrentSong *TrackID
	Name        string

	Tracks    []TrackID
	PlayNext  []TrackID
	PlayIndex int
	PlayFrom  PlayFrom

	RepeatMode RepeatMode
	Shuffle    bool
	Crossfade  bool

	Pause         bool
	StartTime     float64 // epoch seconds at which StartPosition was valid
	StartPosition float64 // seconds

	Volume float64
}

// NewState returns an empty, paused state.
func NewState() State {
	return State{
		Pause:  true,
		Volume: DefaultVolume,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.Tracks = slices.Clone(s.Tracks)
	c.PlayNext = slices.Clone(s.PlayNext)
	if s.CurrentSong != nil {
		id := *s.CurrentSong
		c.CurrentSong = &id
	}
	return c
}

// Current returns the current song and whether there is one.
func (s *State) Current() (TrackID, bool) {
	if s.CurrentSong == nil {
		return 0, false
	}
	return *s.CurrentSong, true
}

// SetCurrent replaces the current song. A nil id clears it.
func (s *State) SetCurrent(id *TrackID) {
	if id == nil {
		s.CurrentSong = nil
		return
	}
	v := *id
	s.CurrentSong = &v
}

// SameSong reports whether s and other point at the same current song.
func (s *State) SameSong(other *TrackID) bool {
	if s.CurrentSong == nil || other == nil {
		return s.CurrentSong == nil && other == nil
	}
	return *s.CurrentSong == *other
}

// Draining reports whether the current song comes from play_next.
func (s *State) Draining() bool {
	return s.PlayFrom == PlayFromPlayNext && len(s.PlayNext) > 0
}

// SetVolume stores volume clamped to [0,1].
func (s *State) SetVolume(v float64) {
	s.Volume = lo.Clamp(v, 0, 1)
}
