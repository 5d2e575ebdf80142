// Package protocol encodes and decodes the play queue server's JSON frames.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

// Version is the protocol version announced in every outbound frame.
const Version = "0.1"

// Command names used on the wire.
const (
	CommandGetState      = "get_state"
	CommandSetState      = "set_state"
	CommandUpdateLibrary = "update_library"
	CommandEndSession    = "end_session"
	CommandSessions      = "sessions"
)

var (
	// ErrMalformedFrame is returned for non-JSON frames, frames without a
	// command and frames carrying illegal values.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownCommand is returned for well-formed frames with a command
	// this client does not handle.
	ErrUnknownCommand = errors.New("unknown command")
)

// ClientInfo identifies this client in outbound frames.
type ClientInfo struct {
	Client     string
	DeviceName string
}

// Envelope is the fixed outbound frame shape.
type Envelope struct {
	Command     string        `json:"command"`
	Version     string        `json:"version"`
	Client      string        `json:"client"`
	DeviceName  string        `json:"device_name"`
	SessionUUID string        `json:"session_uuid,omitempty"`
	Value       *StatePayload `json:"value,omitempty"`
}

// StateData groups the cursor fields nested under "data".
type StateData struct {
	PlayFrom   queue.PlayFrom   `json:"play_from"`
	PlayIndex  int              `json:"play_index"`
	RepeatMode queue.RepeatMode `json:"repeat_mode"`
	Crossfade  bool             `json:"crossfade"`
}

// StatePayload is the wire form of a full queue snapshot.
type StatePayload struct {
	CurrentSong   *queue.TrackID  `json:"current_song"`
	Data          StateData       `json:"data"`
	Name          string          `json:"name"`
	Pause         bool            `json:"pause"`
	Tracks        []queue.TrackID `json:"tracks"`
	PlayNext      []queue.TrackID `json:"play_next"`
	Shuffle       bool            `json:"shuffle"`
	StartPosition float64         `json:"start_position"`
	StartTime     float64         `json:"start_time"`
	Volume        float64         `json:"volume"`
}

// PayloadFromState converts a queue snapshot to its wire form.
func PayloadFromState(s queue.State) StatePayload {
	s = s.Clone()
	tracks, playNext := s.Tracks, s.PlayNext
	if tracks == nil {
		tracks = []queue.TrackID{}
	}
	if playNext == nil {
		playNext = []queue.TrackID{}
	}
	return StatePayload{
		CurrentSong: s.CurrentSong,
		Data: StateData{
			PlayFrom:   s.PlayFrom,
			PlayIndex:  s.PlayIndex,
			RepeatMode: s.RepeatMode,
			Crossfade:  s.Crossfade,
		},
		Name:          s.Name,
		Pause:         s.Pause,
		Tracks:        tracks,
		PlayNext:      playNext,
		Shuffle:       s.Shuffle,
		StartPosition: s.StartPosition,
		StartTime:     s.StartTime,
		Volume:        s.Volume,
	}
}

// State converts the wire form back to a queue snapshot.
func (p StatePayload) State() queue.State {
	return queue.State{
		CurrentSong:   p.CurrentSong,
		Name:          p.Name,
		Tracks:        p.Tracks,
		PlayNext:      p.PlayNext,
		PlayIndex:     p.Data.PlayIndex,
		PlayFrom:      p.Data.PlayFrom,
		RepeatMode:    p.Data.RepeatMode,
		Shuffle:       p.Shuffle,
		Crossfade:     p.Data.Crossfade,
		Pause:         p.Pause,
		StartTime:     p.StartTime,
		StartPosition: p.StartPosition,
		Volume:        p.Volume,
	}
}

// EncodeGetState builds a get_state frame.
func EncodeGetState(info ClientInfo, sessionUUID string) ([]byte, error) {
	return encode(info, CommandGetState, sessionUUID, nil)
}

// EncodeSetState builds a set_state frame carrying the full snapshot.
func EncodeSetState(info ClientInfo, sessionUUID string, s queue.State) ([]byte, error) {
	payload := PayloadFromState(s)
	return encode(info, CommandSetState, sessionUUID, &payload)
}

func encode(info ClientInfo, command, sessionUUID string, value *StatePayload) ([]byte, error) {
	data, err := json.Marshal(Envelope{
		Command:     command,
		Version:     Version,
		Client:      info.Client,
		DeviceName:  info.DeviceName,
		SessionUUID: sessionUUID,
		Value:       value,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", command, err)
	}
	return data, nil
}
