package mpd

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-queue/internal/audio"
)

// Transport plays one stream URL at a time through MPD.
type Transport struct {
	client *Client

	mu            sync.Mutex
	lastState     string
	loading       bool
	stopRequested bool
}

// NewTransport creates a transport on top of client.
func NewTransport(client *Client) *Transport {
	return &Transport{client: client, lastState: "stop"}
}

// Load replaces whatever MPD has queued with url and starts it.
func (t *Transport) Load(url string) error {
	t.mu.Lock()
	t.loading = true
	t.stopRequested = false
	t.mu.Unlock()

	return t.client.Replace(url)
}

// Play resumes the loaded song, or starts it again after it stopped.
func (t *Transport) Play() error {
	return t.client.Play(-1)
}

// Pause pauses the loaded song.
func (t *Transport) Pause() error {
	return t.client.Pause(true)
}

// Stop stops playback. The resulting stop is not reported as a track end.
func (t *Transport) Stop() error {
	t.mu.Lock()
	t.stopRequested = true
	t.loading = false
	t.mu.Unlock()

	return t.client.Stop()
}

// Seek moves to ms within the loaded song.
func (t *Transport) Seek(ms int64) error {
	return t.client.SeekCur(time.Duration(ms) * time.Millisecond)
}

// SetVolume takes a 0..1 volume.
func (t *Transport) SetVolume(v float64) error {
	return t.client.SetVolume(int(math.Round(v * 100)))
}

// Status polls MPD.
func (t *Transport) Status() (audio.Status, error) {
	attrs, err := t.client.Status()
	if err != nil {
		return audio.Status{}, err
	}
	return StatusFromAttrs(attrs), nil
}

// Watch turns MPD player events into media-loaded and track-ended events.
// The channel closes when ctx is done or the watcher stops.
func (t *Transport) Watch(ctx context.Context) (<-chan audio.Event, error) {
	changes, err := t.client.Watch("player")
	if err != nil {
		return nil, err
	}

	out := make(chan audio.Event, 8)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				st, err := t.Status()
				if err != nil {
					log.Warn().Err(err).Msg("MPD status after player event failed")
					continue
				}
				for _, ev := range t.Observe(st) {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// Observe feeds a fresh status into the transition tracker and returns the
// events it implies. A play to stop transition that nobody asked for is a
// natural track end.
func (t *Transport) Observe(st audio.Status) []audio.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []audio.Event

	if t.loading && st.Loaded && st.State != "stop" {
		t.loading = false
		events = append(events, audio.Event{Kind: audio.EventMediaLoaded, DurationMs: st.DurationMs})
	}

	if st.State == "stop" {
		if t.lastState == "play" && !t.stopRequested && !t.loading {
			events = append(events, audio.Event{Kind: audio.EventTrackEnded})
		}
		t.stopRequested = false
	}

	t.lastState = st.State
	return events
}

// StatusFromAttrs converts an MPD status response.
func StatusFromAttrs(attrs mpd.Attrs) audio.Status {
	st := audio.Status{
		State:  attrs["state"],
		Loaded: attrs["songid"] != "",
		Audio:  attrs["audio"],
	}
	if st.State == "" {
		st.State = "stop"
	}
	st.PositionMs = secondsToMs(attrs["elapsed"])
	st.DurationMs = secondsToMs(attrs["duration"])
	return st
}

func secondsToMs(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 1000))
}
