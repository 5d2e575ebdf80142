package audio

// EventKind identifies a transport notification.
type EventKind int

const (
	// EventMediaLoaded fires once loaded media is ready for seeking.
	EventMediaLoaded EventKind = iota
	// EventTrackEnded fires when the loaded media played to its end.
	EventTrackEnded
)

func (k EventKind) String() string {
	if k == EventTrackEnded {
		return "track_ended"
	}
	return "media_loaded"
}

// Event is emitted by the audio engine adapter.
type Event struct {
	Kind       EventKind
	DurationMs int64
}
