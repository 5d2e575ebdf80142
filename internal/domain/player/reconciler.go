package player

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-queue/internal/audio"
	"github.com/edumarques81/stellar-queue/internal/domain/library"
	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

// Deps are the collaborators a Reconciler drives.
type Deps struct {
	Transport Transport
	Mirror    *audio.Mirror
	Catalog   Catalog
	Streamer  Streamer
	Sender    Sender
	Host      Host
	Snapshots SnapshotStore // optional
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock replaces the wall clock used for timestamps and prediction.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// Reconciler merges remote snapshots into local state and turns local
// actions into pushes. It is not safe for concurrent use; the Engine owns it.
type Reconciler struct {
	deps Deps
	now  func() time.Time

	state      queue.State
	lastServer *queue.State
	role       queue.Role
	phase      Phase

	// loaded is the track currently loaded into the transport.
	loaded      *queue.TrackID
	seeking     bool
	seekStarted time.Time
	// songReset is set when a local move started, restarted or stopped the
	// current song, so its position is 0 rather than a prediction.
	songReset  bool
	nowPlaying *library.NowPlaying
}

// NewReconciler creates a reconciler in the disconnected phase with an empty queue.
func NewReconciler(deps Deps, opts ...Option) *Reconciler {
	if deps.Mirror == nil {
		deps.Mirror = audio.NewMirror()
	}
	r := &Reconciler{
		deps:  deps,
		now:   time.Now,
		state: queue.NewState(),
		role:  queue.RolePlayer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns a copy of the local queue state.
func (r *Reconciler) State() queue.State {
	return r.state.Clone()
}

// Role returns the last role assigned by the server.
func (r *Reconciler) Role() queue.Role {
	return r.role
}

// Phase returns the connection phase.
func (r *Reconciler) Phase() Phase {
	return r.phase
}

// SetPhase records a connection phase change and tells the host.
func (r *Reconciler) SetPhase(p Phase) {
	if r.phase == PhaseEnded || r.phase == p {
		return
	}
	log.Debug().Stringer("from", r.phase).Stringer("to", p).Msg("Play queue phase")
	r.phase = p
	r.publish()
}

// Restore shows a previously cached snapshot until the server answers.
// It never touches the transport.
func (r *Reconciler) Restore(s queue.State) {
	if r.phase == PhaseSynced {
		return
	}
	r.state = s.Clone()
	r.state.Pause = true
	r.refreshNowPlaying()
	r.publish()
}

// ApplyRemote merges a set_state frame. The server wins for the whole snapshot.
func (r *Reconciler) ApplyRemote(role queue.Role, remote queue.State) {
	if r.phase == PhaseEnded {
		return
	}

	prevVolume := r.state.Volume
	prevSong := r.state.CurrentSong
	r.role = role
	r.phase = PhaseSynced
	r.state = remote.Clone()
	cached := remote.Clone()
	r.lastServer = &cached

	log.Debug().
		Stringer("role", role).
		Interface("current", remote.CurrentSong).
		Bool("pause", remote.Pause).
		Int("tracks", len(remote.Tracks)).
		Int("play_next", len(remote.PlayNext)).
		Msg("Applying remote state")

	r.refreshNowPlaying()

	// The server moved on to another song: an unfinished gesture is stale.
	if r.seeking && !remote.SameSong(prevSong) {
		r.seeking = false
	}

	switch role {
	case queue.RolePlayer:
		r.applyAsPlayer(prevVolume)
	case queue.RoleController:
		r.applyAsController()
	}

	if r.deps.Snapshots != nil {
		if err := r.deps.Snapshots.SaveQueueSnapshot(cached); err != nil {
			log.Warn().Err(err).Msg("Failed to cache queue snapshot")
		}
	}

	r.commit(OriginRemote)
}

func (r *Reconciler) applyAsPlayer(prevVolume float64) {
	s := &r.state

	if s.Volume != prevVolume {
		r.transportCall("volume", r.deps.Transport.SetVolume(s.Volume))
	}

	id, ok := s.Current()
	if !ok {
		r.stopTransport()
		return
	}

	if !r.isLoaded(id) {
		if err := r.load(id); err != nil {
			log.Error().Err(err).Stringer("track", id).Msg("Failed to load remote track")
			r.stopTransport()
			return
		}
		if !r.midSeek() {
			if target := r.target(); target > 0 {
				r.deps.Mirror.SetPendingSeek(target)
			}
		}
		if s.Pause {
			r.transportCall("pause", r.deps.Transport.Pause())
			r.deps.Mirror.SetPlaying(false)
		}
		return
	}

	if !r.midSeek() {
		target := r.target()
		local := r.deps.Mirror.PositionMs()
		if drift := local - target; drift > DriftThresholdMs || drift < -DriftThresholdMs {
			log.Debug().Int64("local_ms", local).Int64("target_ms", target).Msg("Correcting drift")
			r.seek(target)
		}
	}

	r.syncPause()
}

func (r *Reconciler) applyAsController() {
	r.stopTransport()
}

// target predicts where the current song should be right now.
func (r *Reconciler) target() int64 {
	ms := queue.Predict(r.state, queue.EpochSeconds(r.now()))
	return queue.ClampPosition(ms, r.durationMs())
}

func (r *Reconciler) durationMs() int64 {
	if id, ok := r.state.Current(); ok && r.isLoaded(id) {
		if d := r.deps.Mirror.DurationMs(); d > 0 {
			return d
		}
	}
	if r.nowPlaying != nil {
		return r.nowPlaying.Track.DurationMs()
	}
	return 0
}

// positionMs is the position to report for the current song: the
// transport's when this client plays it, the prediction otherwise.
func (r *Reconciler) positionMs() int64 {
	if id, ok := r.state.Current(); ok && r.role == queue.RolePlayer && r.isLoaded(id) {
		return r.deps.Mirror.PositionMs()
	}
	base := r.state
	if r.role == queue.RoleController && r.lastServer != nil && r.lastServer.SameSong(r.state.CurrentSong) {
		base = *r.lastServer
	}
	ms := queue.Predict(base, queue.EpochSeconds(r.now()))
	return queue.ClampPosition(ms, r.durationMs())
}

// Dispatch applies a local action optimistically and pushes the result.
func (r *Reconciler) Dispatch(a Action) {
	if r.phase == PhaseEnded {
		log.Debug().Msgf("Ignoring %T after session end", a)
		return
	}

	r.songReset = false
	switch a := a.(type) {
	case PlayTrack:
		r.execute(r.state.PlayTrack(a.ID))
	case PlayTracks:
		r.execute(r.state.PlayTracks(a.IDs, a.Index))
	case TogglePlay:
		r.setPaused(!r.state.Pause)
	case SetPaused:
		if a.Paused == r.state.Pause {
			return
		}
		r.setPaused(a.Paused)
	case Next:
		r.execute(r.state.Advance())
	case Previous:
		r.execute(r.state.Previous(r.positionMs()))
	case SeekStart:
		r.seeking = true
		r.seekStarted = r.now()
		return
	case SeekEnd:
		r.seeking = false
		r.seekTo(a.Ms)
	case ToggleShuffle:
		r.state.Shuffle = !r.state.Shuffle
	case SetShuffle:
		r.state.Shuffle = a.On
	case CycleRepeat:
		r.state.RepeatMode = r.state.RepeatMode.Next()
	case SetRepeat:
		r.state.RepeatMode = a.Mode
	case SetVolume:
		r.state.SetVolume(a.Volume)
		if r.role == queue.RolePlayer {
			r.transportCall("volume", r.deps.Transport.SetVolume(r.state.Volume))
		}
	case AddPlayNext:
		r.execute(r.state.AddPlayNext(a.IDs))
	case AddTracks:
		r.state.AddTracks(a.IDs)
	case RemoveAt:
		move, err := r.state.RemoveAt(a.Index)
		if err != nil {
			log.Warn().Err(err).Int("index", a.Index).Msg("Remove refused")
			return
		}
		r.execute(move)
	case Move:
		if err := r.state.Reorder(a.From, a.To); err != nil {
			log.Warn().Err(err).Int("from", a.From).Int("to", a.To).Msg("Move refused")
			return
		}
	case ClearQueue:
		r.execute(r.state.Clear())
	default:
		log.Warn().Msgf("Unknown action %T", a)
		return
	}

	r.stamp()
	r.commit(OriginLocal)
}

// TrackEnded advances the queue after the transport finished a song.
func (r *Reconciler) TrackEnded() {
	if r.phase == PhaseEnded || r.role != queue.RolePlayer {
		return
	}
	log.Debug().Interface("track", r.state.CurrentSong).Msg("Track ended")
	r.songReset = false
	r.execute(r.state.Advance())
	r.stamp()
	r.commit(OriginLocal)
}

// MediaReady applies a buffered seek once loaded media can seek.
func (r *Reconciler) MediaReady(durationMs int64) {
	r.deps.Mirror.MediaLoaded(durationMs)
	if ms, ok := r.deps.Mirror.TakePendingSeek(); ok {
		r.seek(queue.ClampPosition(ms, r.durationMs()))
	}
	r.publish()
}

// Tick refreshes the transport mirror and reports the position to the host.
func (r *Reconciler) Tick() {
	if r.loaded != nil {
		st, err := r.deps.Transport.Status()
		if err != nil {
			log.Debug().Err(err).Msg("Transport status failed")
		} else if r.deps.Mirror.Update(st) {
			r.publish()
		}
	}

	playing := !r.state.Pause && r.state.CurrentSong != nil
	if r.role == queue.RolePlayer && r.loaded != nil {
		playing = r.deps.Mirror.Playing()
	}
	r.deps.Host.PositionUpdated(Position{
		PositionMs: r.positionMs(),
		DurationMs: r.durationMs(),
		Playing:    playing,
	})
}

// Heartbeat re-pushes the snapshot while this client is the active player.
// It reports whether a push was attempted.
func (r *Reconciler) Heartbeat() bool {
	if r.phase != PhaseSynced || r.role != queue.RolePlayer || r.loaded == nil || !r.deps.Mirror.Playing() {
		return false
	}
	r.stamp()
	r.push()
	return true
}

// EndSession stops driving the transport for good.
func (r *Reconciler) EndSession() {
	if r.phase == PhaseEnded {
		return
	}
	log.Warn().Msg("Play queue session ended, re-authentication required")
	r.stopTransport()
	r.phase = PhaseEnded
	r.seeking = false
	r.publish()
	r.deps.Host.SessionEnded()
}

// Shutdown pauses local playback and forces a final push so other devices
// see the pause. It reports whether a push was made.
func (r *Reconciler) Shutdown() bool {
	if r.phase == PhaseEnded || r.role != queue.RolePlayer || r.loaded == nil || !r.deps.Mirror.Playing() {
		return false
	}
	r.transportCall("pause", r.deps.Transport.Pause())
	r.deps.Mirror.SetPlaying(false)
	r.stamp()
	r.state.Pause = true
	r.push()
	return true
}

func (r *Reconciler) setPaused(paused bool) {
	if _, ok := r.state.Current(); !ok {
		if paused || len(r.state.Tracks) == 0 {
			r.state.Pause = true
			return
		}
		idx := min(max(r.state.PlayIndex, 0), len(r.state.Tracks)-1)
		r.execute(r.state.PlayTrack(r.state.Tracks[idx]))
		return
	}

	// Capture the position before the transport changes state.
	pos := r.positionMs()
	r.state.StartPosition = float64(pos) / 1000
	r.state.StartTime = queue.EpochSeconds(r.now())
	r.state.Pause = paused

	if r.role != queue.RolePlayer {
		return
	}
	if paused {
		r.transportCall("pause", r.deps.Transport.Pause())
		r.deps.Mirror.SetPlaying(false)
		return
	}
	id, _ := r.state.Current()
	if !r.isLoaded(id) {
		if err := r.load(id); err != nil {
			log.Error().Err(err).Stringer("track", id).Msg("Failed to load track")
			return
		}
		if pos > 0 {
			r.deps.Mirror.SetPendingSeek(pos)
		}
		return
	}
	r.transportCall("play", r.deps.Transport.Play())
	r.deps.Mirror.SetPlaying(true)
}

func (r *Reconciler) seekTo(ms int64) {
	if _, ok := r.state.Current(); !ok {
		return
	}
	ms = queue.ClampPosition(ms, r.durationMs())
	if r.role == queue.RolePlayer && r.loaded != nil {
		r.seek(ms)
		return
	}
	// Nothing local to seek: move the prediction instead.
	r.state.StartPosition = float64(ms) / 1000
	r.state.StartTime = queue.EpochSeconds(r.now())
	if r.lastServer != nil {
		s := r.state.Clone()
		r.lastServer = &s
	}
}

// execute carries out a queue move on the transport when this client plays.
func (r *Reconciler) execute(m queue.Move) {
	if m.Outcome != queue.OutcomeNone {
		r.songReset = true
	}
	if r.role != queue.RolePlayer {
		return
	}
	switch m.Outcome {
	case queue.OutcomePlay:
		if err := r.load(m.Track); err != nil {
			log.Error().Err(err).Stringer("track", m.Track).Msg("Failed to load track")
		}
	case queue.OutcomeRestart:
		if r.loaded == nil {
			if err := r.load(m.Track); err != nil {
				log.Error().Err(err).Stringer("track", m.Track).Msg("Failed to load track")
			}
			return
		}
		r.seek(0)
		r.transportCall("play", r.deps.Transport.Play())
		r.deps.Mirror.SetPlaying(true)
	case queue.OutcomeStop:
		r.stopTransport()
	}
}

func (r *Reconciler) load(id queue.TrackID) error {
	track, err := r.deps.Catalog.TrackByID(id)
	if err != nil {
		return err
	}

	r.deps.Mirror.MediaLoading()
	r.deps.Mirror.TakePendingSeek()
	if err := r.deps.Transport.Load(r.deps.Streamer.StreamURL(track)); err != nil {
		r.loaded = nil
		return err
	}

	log.Info().Stringer("track", id).Str("title", track.Title).Msg("Loaded track")
	r.loaded = &id
	r.deps.Mirror.SetPlaying(true)
	return nil
}

func (r *Reconciler) seek(ms int64) {
	r.transportCall("seek", r.deps.Transport.Seek(ms))
	r.deps.Mirror.SetPosition(ms)
}

// syncPause makes the transport agree with the state's pause flag.
func (r *Reconciler) syncPause() {
	playing := r.deps.Mirror.Playing()
	switch {
	case r.state.Pause && playing:
		r.transportCall("pause", r.deps.Transport.Pause())
		r.deps.Mirror.SetPlaying(false)
	case !r.state.Pause && !playing:
		r.transportCall("play", r.deps.Transport.Play())
		r.deps.Mirror.SetPlaying(true)
	}
}

func (r *Reconciler) stopTransport() {
	if r.loaded == nil && !r.deps.Mirror.Playing() {
		return
	}
	r.transportCall("stop", r.deps.Transport.Stop())
	r.deps.Mirror.Stopped()
	r.loaded = nil
}

func (r *Reconciler) isLoaded(id queue.TrackID) bool {
	return r.loaded != nil && *r.loaded == id
}

// stamp records the current position as the snapshot's time base.
func (r *Reconciler) stamp() {
	switch {
	case r.state.CurrentSong == nil, r.songReset:
		r.state.StartPosition = 0
	default:
		r.state.StartPosition = float64(r.positionMs()) / 1000
	}
	r.songReset = false
	r.state.StartTime = queue.EpochSeconds(r.now())
}

// midSeek reports whether a seek gesture is suspending drift correction.
// A gesture whose SeekEnd never came expires after SeekGestureTimeout.
func (r *Reconciler) midSeek() bool {
	if r.seeking && r.now().Sub(r.seekStarted) > SeekGestureTimeout {
		log.Debug().Msg("Seek gesture expired")
		r.seeking = false
	}
	return r.seeking
}

// commit refreshes derived state, pushes local changes and tells the host.
func (r *Reconciler) commit(origin Origin) {
	r.refreshNowPlaying()
	if origin == OriginLocal {
		if r.nowPlaying != nil && r.nowPlaying.Track.Title != "" {
			r.state.Name = r.nowPlaying.Track.Title
		}
		r.push()
		if r.role == queue.RoleController {
			s := r.state.Clone()
			r.lastServer = &s
		}
	}
	r.publish()
}

func (r *Reconciler) push() {
	err := r.deps.Sender.SendSetState(r.state.Clone())
	if err != nil {
		log.Debug().Err(err).Msg("State push dropped")
	}
}

func (r *Reconciler) publish() {
	r.deps.Host.StateUpdated(Update{
		State:      r.state.Clone(),
		Role:       r.role,
		Phase:      r.phase,
		NowPlaying: r.nowPlaying,
		Transport:  r.deps.Mirror.Snapshot(),
	})
}

// refreshNowPlaying resolves display metadata when the current song changes.
func (r *Reconciler) refreshNowPlaying() {
	id, ok := r.state.Current()
	if !ok {
		r.nowPlaying = nil
		return
	}
	if r.nowPlaying != nil && r.nowPlaying.Track.ID == id {
		return
	}

	np := &library.NowPlaying{Track: library.Track{ID: id}}
	track, err := r.deps.Catalog.TrackByID(id)
	if err != nil {
		if !errors.Is(err, library.ErrNotFound) {
			log.Warn().Err(err).Stringer("track", id).Msg("Track lookup failed")
		}
		r.nowPlaying = np
		return
	}
	np.Track = track

	if artists, err := r.deps.Catalog.ArtistsByTrack(id); err == nil {
		np.Artists = artists
	} else {
		log.Debug().Err(err).Stringer("track", id).Msg("Artist lookup failed")
	}
	if album, err := r.deps.Catalog.AlbumByTrack(id); err == nil {
		np.Album = album
	} else {
		log.Debug().Err(err).Stringer("track", id).Msg("Album lookup failed")
	}
	r.nowPlaying = np
}

func (r *Reconciler) transportCall(op string, err error) {
	if err != nil {
		log.Error().Err(err).Str("op", op).Msg("Transport command failed")
	}
}
