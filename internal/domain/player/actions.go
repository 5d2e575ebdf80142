package player

import "github.com/edumarques81/stellar-queue/internal/domain/queue"

// Action is a local user request.
type Action interface {
	action()
}

// PlayTrack plays a track, queueing it if needed.
type PlayTrack struct{ ID queue.TrackID }

// PlayTracks replaces the queue and plays IDs[Index].
type PlayTracks struct {
	IDs   []queue.TrackID
	Index int
}

// TogglePlay flips pause.
type TogglePlay struct{}

// SetPaused pauses or resumes.
type SetPaused struct{ Paused bool }

type Next struct{}

type Previous struct{}

// SeekStart begins a seek gesture; remote positions are ignored until SeekEnd.
type SeekStart struct{}

// SeekEnd finishes a seek gesture at Ms.
type SeekEnd struct{ Ms int64 }

type ToggleShuffle struct{}

// CycleRepeat steps none → queue → track → none.
type CycleRepeat struct{}

// SetRepeat selects a repeat mode directly.
type SetRepeat struct{ Mode queue.RepeatMode }

// SetShuffle selects shuffle directly.
type SetShuffle struct{ On bool }

// SetVolume sets the volume in [0,1].
type SetVolume struct{ Volume float64 }

// AddPlayNext queues tracks in the interrupt queue.
type AddPlayNext struct{ IDs []queue.TrackID }

// AddTracks appends tracks to the queue.
type AddTracks struct{ IDs []queue.TrackID }

// RemoveAt removes an entry of the flattened queue view.
type RemoveAt struct{ Index int }

// Move reorders an entry within tracks.
type Move struct{ From, To int }

type ClearQueue struct{}

func (PlayTrack) action()     {}
func (PlayTracks) action()    {}
func (TogglePlay) action()    {}
func (SetPaused) action()     {}
func (Next) action()          {}
func (Previous) action()      {}
func (SeekStart) action()     {}
func (SeekEnd) action()       {}
func (ToggleShuffle) action() {}
func (CycleRepeat) action()   {}
func (SetRepeat) action()     {}
func (SetShuffle) action()    {}
func (SetVolume) action()     {}
func (AddPlayNext) action()   {}
func (AddTracks) action()     {}
func (RemoveAt) action()      {}
func (Move) action()          {}
func (ClearQueue) action()    {}
