package cache_test

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/edumarques81/stellar-queue/internal/domain/library"
	"github.com/edumarques81/stellar-queue/internal/domain/queue"
	"github.com/edumarques81/stellar-queue/internal/infra/cache"
)

func openTestDB(t *testing.T) (*cache.DB, *cache.DAO) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "cache_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	db := cache.NewDB(filepath.Join(tmpDir, "test.db"))
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db, cache.NewDAO(db)
}

func testCatalog() library.Catalog {
	return library.Catalog{
		Artists: []library.Artist{
			{ID: 1, Name: "Primary"},
			{ID: 2, Name: "Guest", ArtworkID: 77},
		},
		Albums: []library.Album{
			{ID: 10, Name: "Record", ArtistID: 1, Year: 2020, Tracks: []queue.TrackID{102, 101}},
		},
		Tracks: []library.Track{
			{ID: 101, Title: "Opening", TrackNumber: 2, LengthSeconds: 200, AlbumID: 10, ArtistID: 1, ExtraArtistIDs: []int64{2}, File: "/101.flac"},
			{ID: 102, Title: "Intro", TrackNumber: 1, LengthSeconds: 60, AlbumID: 10, ArtistID: 1, File: "/102.flac"},
			{ID: 103, Title: "Loose", LengthSeconds: 90, ArtistID: 2, File: "/103.mp3"},
		},
		Playlists: []library.Playlist{
			{ID: 500, Name: "Mix", Tracks: []queue.TrackID{103, 101, 103}},
		},
		LastModified: "1700000000",
	}
}

func TestNewDB(t *testing.T) {
	db := cache.NewDB("")
	if db == nil {
		t.Error("NewDB should return a non-nil instance")
	}
}

func TestDBOpenClose(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "cache_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "nested", "test.db")
	db := cache.NewDB(dbPath)

	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist after Open()")
	}

	version, err := db.SchemaVersion()
	if err != nil || version != cache.CurrentSchemaVersion {
		t.Errorf("Expected schema version %q, got %q (%v)", cache.CurrentSchemaVersion, version, err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}

	if _, err := cache.NewDAO(db).GetStats(); !errors.Is(err, cache.ErrNotOpen) {
		t.Errorf("Expected ErrNotOpen after Close, got %v", err)
	}
}

func TestDBReopenKeepsData(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "cache_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")
	db := cache.NewDB(dbPath)
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := cache.NewDAO(db).ReplaceLibrary(testCatalog()); err != nil {
		t.Fatalf("Failed to replace library: %v", err)
	}
	db.Close()

	db = cache.NewDB(dbPath)
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	stats, err := cache.NewDAO(db).GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TrackCount != 3 {
		t.Errorf("Expected 3 tracks after reopen, got %d", stats.TrackCount)
	}
}

func TestDBRebuildsOnSchemaChange(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db := cache.NewDB(dbPath)
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := cache.NewDAO(db).ReplaceLibrary(testCatalog()); err != nil {
		t.Fatalf("Failed to replace library: %v", err)
	}
	db.Close()

	raw, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := raw.Exec("UPDATE cache_meta SET value = '0' WHERE key = 'schema_version'"); err != nil {
		t.Fatal(err)
	}
	raw.Close()

	db = cache.NewDB(dbPath)
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	version, err := db.SchemaVersion()
	if err != nil || version != cache.CurrentSchemaVersion {
		t.Errorf("Expected schema version %q, got %q (%v)", cache.CurrentSchemaVersion, version, err)
	}
	stats, err := cache.NewDAO(db).GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TrackCount != 0 || stats.LastModified != "" {
		t.Errorf("Expected an empty cache after rebuild, got %+v", stats)
	}
}

func TestDAOGetStatsEmpty(t *testing.T) {
	_, dao := openTestDB(t)

	stats, err := dao.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats.AlbumCount != 0 || stats.ArtistCount != 0 || stats.TrackCount != 0 {
		t.Errorf("Expected empty counts, got %+v", stats)
	}
	if stats.LastModified != "" || !stats.SyncedAt.IsZero() {
		t.Errorf("Expected no sync marker, got %+v", stats)
	}
}

func TestDAOReplaceLibrary(t *testing.T) {
	_, dao := openTestDB(t)

	if err := dao.ReplaceLibrary(testCatalog()); err != nil {
		t.Fatalf("Failed to replace library: %v", err)
	}

	stats, err := dao.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TrackCount != 3 || stats.AlbumCount != 1 || stats.ArtistCount != 2 || stats.PlaylistCount != 1 {
		t.Errorf("Unexpected counts %+v", stats)
	}
	if stats.LastModified != "1700000000" {
		t.Errorf("Expected last modified marker, got %q", stats.LastModified)
	}
	if stats.SyncedAt.IsZero() {
		t.Error("Expected sync time to be recorded")
	}

	// A second replace drops rows that disappeared upstream.
	smaller := testCatalog()
	smaller.Tracks = smaller.Tracks[:1]
	smaller.Playlists = nil
	smaller.LastModified = "1700000100"
	if err := dao.ReplaceLibrary(smaller); err != nil {
		t.Fatalf("Failed to replace library again: %v", err)
	}

	if _, err := dao.TrackByID(103); !errors.Is(err, library.ErrNotFound) {
		t.Errorf("Expected removed track to be gone, got %v", err)
	}
	stats, _ = dao.GetStats()
	if stats.TrackCount != 1 || stats.PlaylistCount != 0 || stats.LastModified != "1700000100" {
		t.Errorf("Unexpected stats after second replace %+v", stats)
	}
	if pl, err := dao.PlaylistByID(500); err != nil || pl != nil {
		t.Errorf("Expected removed playlist to be gone, got %+v (%v)", pl, err)
	}
}

func TestDAOPlaylistByID(t *testing.T) {
	_, dao := openTestDB(t)
	if err := dao.ReplaceLibrary(testCatalog()); err != nil {
		t.Fatalf("Failed to replace library: %v", err)
	}

	pl, err := dao.PlaylistByID(500)
	if err != nil {
		t.Fatalf("Failed to get playlist: %v", err)
	}
	if pl == nil || pl.Name != "Mix" {
		t.Fatalf("Expected playlist Mix, got %+v", pl)
	}
	want := []queue.TrackID{103, 101, 103}
	if len(pl.Tracks) != len(want) {
		t.Fatalf("Expected playlist order %v, got %v", want, pl.Tracks)
	}
	for i := range want {
		if pl.Tracks[i] != want[i] {
			t.Errorf("Expected playlist order %v, got %v", want, pl.Tracks)
			break
		}
	}

	if pl, err := dao.PlaylistByID(999); err != nil || pl != nil {
		t.Errorf("Expected nil playlist for unknown id, got %+v (%v)", pl, err)
	}
}

func TestDAOTrackLookups(t *testing.T) {
	_, dao := openTestDB(t)
	if err := dao.ReplaceLibrary(testCatalog()); err != nil {
		t.Fatalf("Failed to replace library: %v", err)
	}

	track, err := dao.TrackByID(101)
	if err != nil {
		t.Fatalf("Failed to get track: %v", err)
	}
	if track.Title != "Opening" || track.File != "/101.flac" || track.LengthSeconds != 200 {
		t.Errorf("Unexpected track %+v", track)
	}
	if len(track.ExtraArtistIDs) != 1 || track.ExtraArtistIDs[0] != 2 {
		t.Errorf("Expected extra artist 2, got %v", track.ExtraArtistIDs)
	}

	artists, err := dao.ArtistsByTrack(101)
	if err != nil {
		t.Fatalf("Failed to get artists: %v", err)
	}
	if len(artists) != 2 || artists[0].Name != "Primary" || artists[1].Name != "Guest" {
		t.Errorf("Expected Primary then Guest, got %+v", artists)
	}

	album, err := dao.AlbumByTrack(101)
	if err != nil {
		t.Fatalf("Failed to get album: %v", err)
	}
	if album == nil || album.Name != "Record" {
		t.Fatalf("Expected album Record, got %+v", album)
	}
	if len(album.Tracks) != 2 || album.Tracks[0] != 102 || album.Tracks[1] != 101 {
		t.Errorf("Expected album track order [102 101], got %v", album.Tracks)
	}

	album, err = dao.AlbumByTrack(103)
	if err != nil || album != nil {
		t.Errorf("Expected no album for a loose track, got %+v (%v)", album, err)
	}

	if _, err := dao.TrackByID(999); !errors.Is(err, library.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := dao.AlbumByTrack(999); !errors.Is(err, library.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if album, err := dao.AlbumByID(999); err != nil || album != nil {
		t.Errorf("Expected nil album for unknown id, got %+v (%v)", album, err)
	}
}

func TestDAOQueueSnapshot(t *testing.T) {
	_, dao := openTestDB(t)

	if _, ok, err := dao.LoadQueueSnapshot(); err != nil || ok {
		t.Fatalf("Expected no snapshot yet, got ok=%v err=%v", ok, err)
	}

	id := queue.TrackID(101)
	s := queue.NewState()
	s.CurrentSong = &id
	s.Tracks = []queue.TrackID{101, 102}
	s.PlayNext = []queue.TrackID{103}
	s.RepeatMode = queue.RepeatQueue
	s.Pause = false
	s.StartPosition = 12.5
	s.StartTime = 1700000000.25

	if err := dao.SaveQueueSnapshot(s); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	s.Shuffle = true
	if err := dao.SaveQueueSnapshot(s); err != nil {
		t.Fatalf("Failed to overwrite snapshot: %v", err)
	}

	got, ok, err := dao.LoadQueueSnapshot()
	if err != nil || !ok {
		t.Fatalf("Expected snapshot, got ok=%v err=%v", ok, err)
	}
	if cur, _ := got.Current(); cur != 101 {
		t.Errorf("Expected current 101, got %v", got.CurrentSong)
	}
	if len(got.Tracks) != 2 || len(got.PlayNext) != 1 || got.RepeatMode != queue.RepeatQueue {
		t.Errorf("Unexpected snapshot %+v", got)
	}
	if !got.Shuffle || got.StartPosition != 12.5 || got.StartTime != 1700000000.25 {
		t.Errorf("Expected the latest save to win, got %+v", got)
	}
}

func TestDBClear(t *testing.T) {
	db, dao := openTestDB(t)
	if err := dao.ReplaceLibrary(testCatalog()); err != nil {
		t.Fatalf("Failed to replace library: %v", err)
	}
	if err := dao.SaveQueueSnapshot(queue.NewState()); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	if err := db.Clear(); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}

	stats, _ := dao.GetStats()
	if stats.TrackCount != 0 || stats.LastModified != "" {
		t.Errorf("Expected empty cache, got %+v", stats)
	}
	if _, ok, _ := dao.LoadQueueSnapshot(); ok {
		t.Error("Expected snapshot to be cleared")
	}
}
