// Package player reconciles the local play queue and audio engine with the
// shared queue server.
package player

import (
	"time"

	"github.com/edumarques81/stellar-queue/internal/audio"
	"github.com/edumarques81/stellar-queue/internal/domain/library"
	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

// DriftThresholdMs is the largest local/remote position gap left uncorrected.
const DriftThresholdMs = 2000

// SeekGestureTimeout bounds how long a seek gesture suspends drift
// correction when its SeekEnd never arrives.
const SeekGestureTimeout = 10 * time.Second

// Transport is the local audio engine.
type Transport interface {
	Load(url string) error
	Play() error
	Pause() error
	Stop() error
	Seek(ms int64) error
	SetVolume(v float64) error
	Status() (audio.Status, error)
}

// Catalog resolves track metadata.
type Catalog interface {
	TrackByID(id queue.TrackID) (library.Track, error)
	ArtistsByTrack(id queue.TrackID) ([]library.Artist, error)
	AlbumByTrack(id queue.TrackID) (*library.Album, error)
}

// Streamer builds the playable URL for a track.
type Streamer interface {
	StreamURL(t library.Track) string
}

// Sender pushes snapshots to the queue server.
type Sender interface {
	SendSetState(s queue.State) error
}

// Host is the application surface showing the engine's state.
type Host interface {
	StateUpdated(u Update)
	PositionUpdated(p Position)
	SessionEnded()
	LibraryUpdateRequested(marker string)
}

// SnapshotStore keeps the last server snapshot across restarts.
type SnapshotStore interface {
	SaveQueueSnapshot(s queue.State) error
}

// Origin tags where a mutation came from. Remote mutations are never pushed back.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// Phase is the engine's connection phase.
type Phase int

const (
	PhaseDisconnected Phase = iota
	// PhaseConnecting covers dialing and waiting for the first set_state.
	PhaseConnecting
	PhaseSynced
	// PhaseEnded is terminal: the server ended the session.
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseSynced:
		return "synced"
	case PhaseEnded:
		return "ended"
	default:
		return "disconnected"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Update is published to the host whenever the queue, role or transport changes.
type Update struct {
	State      queue.State         `json:"-"`
	Role       queue.Role          `json:"role"`
	Phase      Phase               `json:"phase"`
	NowPlaying *library.NowPlaying `json:"nowPlaying"`
	Transport  audio.Snapshot      `json:"transport"`
}

// Position is published to the host on every UI tick.
type Position struct {
	PositionMs int64 `json:"positionMs"`
	DurationMs int64 `json:"durationMs"`
	Playing    bool  `json:"playing"`
}
