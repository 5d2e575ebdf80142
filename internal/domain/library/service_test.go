package library_test

import (
	"context"
	"errors"
	"testing"

	"github.com/edumarques81/stellar-queue/internal/domain/library"
	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

// MockStore is an in-memory library.Store.
type MockStore struct {
	catalog  library.Catalog
	replaced int
	err      error
}

func (m *MockStore) TrackByID(id queue.TrackID) (library.Track, error) {
	for _, t := range m.catalog.Tracks {
		if t.ID == id {
			return t, nil
		}
	}
	return library.Track{}, library.ErrNotFound
}

func (m *MockStore) ArtistsByTrack(id queue.TrackID) ([]library.Artist, error) {
	return m.catalog.Artists, nil
}

func (m *MockStore) AlbumByTrack(id queue.TrackID) (*library.Album, error) {
	return nil, nil
}

func (m *MockStore) AlbumByID(id int64) (*library.Album, error) {
	for _, a := range m.catalog.Albums {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *MockStore) PlaylistByID(id int64) (*library.Playlist, error) {
	for _, pl := range m.catalog.Playlists {
		if pl.ID == id {
			return &pl, nil
		}
	}
	return nil, nil
}

func (m *MockStore) ReplaceLibrary(c library.Catalog) error {
	if m.err != nil {
		return m.err
	}
	m.catalog = c
	m.replaced++
	return nil
}

func (m *MockStore) GetStats() (library.Stats, error) {
	return library.Stats{TrackCount: len(m.catalog.Tracks)}, nil
}

// MockSource returns a fixed catalog.
type MockSource struct {
	catalog library.Catalog
	calls   int
	err     error
}

func (m *MockSource) FetchLibrary(ctx context.Context) (library.Catalog, error) {
	m.calls++
	return m.catalog, m.err
}

func testCatalog() library.Catalog {
	return library.Catalog{
		Tracks: []library.Track{
			{ID: 1, Title: "One", AlbumID: 10},
			{ID: 2, Title: "Two", AlbumID: 10},
		},
		Albums: []library.Album{{ID: 10, Name: "Album", Tracks: []queue.TrackID{1, 2}}},
		Playlists: []library.Playlist{
			{ID: 20, Name: "Mix", Tracks: []queue.TrackID{2, 1, 2}},
			{ID: 21, Name: "Empty"},
		},
	}
}

func TestService_Sync(t *testing.T) {
	store := &MockStore{}
	source := &MockSource{catalog: testCatalog()}
	svc := library.NewService(store, source)

	refreshed, err := svc.Sync(context.Background(), "100")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !refreshed || store.replaced != 1 {
		t.Errorf("expected store to be refreshed once, got %d", store.replaced)
	}

	track, err := svc.TrackByID(2)
	if err != nil || track.Title != "Two" {
		t.Errorf("expected track Two, got %+v (err %v)", track, err)
	}

	stats, err := svc.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TrackCount != 2 || stats.SyncedAt.IsZero() {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestService_Sync_SkipsSameMarker(t *testing.T) {
	store := &MockStore{}
	source := &MockSource{catalog: testCatalog()}
	svc := library.NewService(store, source)

	svc.Sync(context.Background(), "100")
	refreshed, err := svc.Sync(context.Background(), "100")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if refreshed || source.calls != 1 {
		t.Errorf("expected second sync to be skipped, got %d fetches", source.calls)
	}

	if _, err := svc.Sync(context.Background(), "101"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if source.calls != 2 {
		t.Errorf("expected a new marker to fetch again, got %d fetches", source.calls)
	}
}

func TestService_Sync_Errors(t *testing.T) {
	fetchErr := errors.New("boom")
	svc := library.NewService(&MockStore{}, &MockSource{err: fetchErr})
	if _, err := svc.Sync(context.Background(), ""); !errors.Is(err, fetchErr) {
		t.Errorf("expected fetch error, got %v", err)
	}

	storeErr := errors.New("disk full")
	svc = library.NewService(&MockStore{err: storeErr}, &MockSource{catalog: testCatalog()})
	if _, err := svc.Sync(context.Background(), ""); !errors.Is(err, storeErr) {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestService_AlbumTracks(t *testing.T) {
	store := &MockStore{catalog: testCatalog()}
	svc := library.NewService(store, &MockSource{})

	ids, err := svc.AlbumTracks(10)
	if err != nil {
		t.Fatalf("album tracks failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("unexpected tracks %v", ids)
	}

	if _, err := svc.AlbumTracks(99); !errors.Is(err, library.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_PlaylistTracks(t *testing.T) {
	store := &MockStore{catalog: testCatalog()}
	svc := library.NewService(store, &MockSource{})

	ids, err := svc.PlaylistTracks(20)
	if err != nil {
		t.Fatalf("playlist tracks failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != 2 || ids[1] != 1 || ids[2] != 2 {
		t.Errorf("unexpected tracks %v", ids)
	}

	for _, id := range []int64{21, 99} {
		if _, err := svc.PlaylistTracks(id); !errors.Is(err, library.ErrNotFound) {
			t.Errorf("playlist %d: expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestNowPlayingArtistName(t *testing.T) {
	np := library.NowPlaying{Artists: []library.Artist{{Name: "A"}, {Name: "B"}}}
	if got := np.ArtistName(); got != "A, B" {
		t.Errorf("expected \"A, B\", got %q", got)
	}
}
