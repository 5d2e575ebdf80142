package player_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/edumarques81/stellar-queue/internal/audio"
	"github.com/edumarques81/stellar-queue/internal/domain/library"
	"github.com/edumarques81/stellar-queue/internal/domain/player"
	"github.com/edumarques81/stellar-queue/internal/domain/queue"
	"github.com/edumarques81/stellar-queue/internal/transport/queuesocket"
)

var epoch = time.Unix(1_700_000_000, 0)

func fixedClock() time.Time { return epoch }

// MockTransport records every command it receives.
type MockTransport struct {
	mu     sync.Mutex
	calls  []string
	status audio.Status
}

func (m *MockTransport) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return nil
}

func (m *MockTransport) Load(url string) error     { return m.record("load " + url) }
func (m *MockTransport) Play() error               { return m.record("play") }
func (m *MockTransport) Pause() error              { return m.record("pause") }
func (m *MockTransport) Stop() error               { return m.record("stop") }
func (m *MockTransport) Seek(ms int64) error       { return m.record(fmt.Sprintf("seek %d", ms)) }
func (m *MockTransport) SetVolume(v float64) error { return m.record(fmt.Sprintf("volume %.2f", v)) }

func (m *MockTransport) Status() (audio.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, nil
}

func (m *MockTransport) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockTransport) Count(prefix string) int {
	n := 0
	for _, c := range m.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// MockCatalog knows every track except those listed in missing.
type MockCatalog struct {
	missing map[queue.TrackID]bool
}

func (m *MockCatalog) TrackByID(id queue.TrackID) (library.Track, error) {
	if m.missing[id] {
		return library.Track{}, library.ErrNotFound
	}
	return library.Track{ID: id, Title: "Track " + id.String(), LengthSeconds: 300, File: "/" + id.String()}, nil
}

func (m *MockCatalog) ArtistsByTrack(id queue.TrackID) ([]library.Artist, error) {
	return []library.Artist{{ID: 1, Name: "Artist"}}, nil
}

func (m *MockCatalog) AlbumByTrack(id queue.TrackID) (*library.Album, error) {
	return &library.Album{ID: 10, Name: "Album"}, nil
}

type MockStreamer struct{}

func (MockStreamer) StreamURL(t library.Track) string {
	return "https://stream" + t.File
}

// MockSender records pushed snapshots.
type MockSender struct {
	mu   sync.Mutex
	sent []queue.State
}

func (m *MockSender) SendSetState(s queue.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, s)
	return nil
}

func (m *MockSender) Sent() []queue.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.State(nil), m.sent...)
}

func (m *MockSender) Last() (queue.State, bool) {
	sent := m.Sent()
	if len(sent) == 0 {
		return queue.State{}, false
	}
	return sent[len(sent)-1], true
}

// MockHost records everything published to the UI.
type MockHost struct {
	mu        sync.Mutex
	updates   []player.Update
	positions []player.Position
	ended     bool
	markers   []string
}

func (m *MockHost) StateUpdated(u player.Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, u)
}

func (m *MockHost) PositionUpdated(p player.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, p)
}

func (m *MockHost) SessionEnded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = true
}

func (m *MockHost) LibraryUpdateRequested(marker string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = append(m.markers, marker)
}

func (m *MockHost) Last() player.Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.updates) == 0 {
		return player.Update{}
	}
	return m.updates[len(m.updates)-1]
}

func (m *MockHost) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

// MockSnapshots records cached server snapshots.
type MockSnapshots struct {
	saved []queue.State
}

func (m *MockSnapshots) SaveQueueSnapshot(s queue.State) error {
	m.saved = append(m.saved, s)
	return nil
}

// MockConnection stands in for the queue socket manager.
type MockConnection struct {
	mu           sync.Mutex
	events       chan queuesocket.Event
	tokens       []string
	sessions     []string
	disconnected int
	MockSender
}

func newMockConnection() *MockConnection {
	return &MockConnection{events: make(chan queuesocket.Event, 16)}
}

func (m *MockConnection) Connect(ctx context.Context, token, sessionUUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	m.sessions = append(m.sessions, sessionUUID)
	return nil
}

func (m *MockConnection) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected++
}

func (m *MockConnection) Disconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnected
}

func (m *MockConnection) Events() <-chan queuesocket.Event {
	return m.events
}

type fixture struct {
	transport *MockTransport
	sender    *MockSender
	host      *MockHost
	mirror    *audio.Mirror
	catalog   *MockCatalog
	r         *player.Reconciler
}

func newFixture() *fixture {
	return newFixtureWithClock(fixedClock)
}

func newFixtureWithClock(now func() time.Time) *fixture {
	f := &fixture{
		transport: &MockTransport{},
		sender:    &MockSender{},
		host:      &MockHost{},
		mirror:    audio.NewMirror(),
		catalog:   &MockCatalog{missing: map[queue.TrackID]bool{}},
	}
	f.r = player.NewReconciler(player.Deps{
		Transport: f.transport,
		Mirror:    f.mirror,
		Catalog:   f.catalog,
		Streamer:  MockStreamer{},
		Sender:    f.sender,
		Host:      f.host,
	}, player.WithClock(now))
	return f
}

// remote builds a server snapshot.
func remote(current *queue.TrackID, tracks ...queue.TrackID) queue.State {
	s := queue.NewState()
	s.CurrentSong = current
	s.Tracks = tracks
	return s
}

func song(id queue.TrackID) *queue.TrackID { return &id }

// playingRemote is a snapshot of id playing, positionSec seconds in at now.
func playingRemote(id queue.TrackID, positionSec float64, tracks ...queue.TrackID) queue.State {
	s := remote(song(id), tracks...)
	s.Pause = false
	s.StartTime = queue.EpochSeconds(epoch)
	s.StartPosition = positionSec
	return s
}

// eventually polls cond until it holds or a second passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
