package library

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

// Store persists the catalog locally.
type Store interface {
	TrackByID(id queue.TrackID) (Track, error)
	ArtistsByTrack(id queue.TrackID) ([]Artist, error)
	AlbumByTrack(id queue.TrackID) (*Album, error)
	AlbumByID(id int64) (*Album, error)
	PlaylistByID(id int64) (*Playlist, error)
	ReplaceLibrary(c Catalog) error
	GetStats() (Stats, error)
}

// Source downloads the full catalog from the remote service.
type Source interface {
	FetchLibrary(ctx context.Context) (Catalog, error)
}

// Service answers catalog lookups from the local store and refreshes it
// from the remote source.
type Service struct {
	store  Store
	source Source

	mu           sync.Mutex
	lastModified string
	syncedAt     time.Time
}

// NewService creates a new library service.
func NewService(store Store, source Source) *Service {
	return &Service{
		store:  store,
		source: source,
	}
}

// Sync downloads the catalog and replaces the local copy. A non-empty
// marker equal to the last synced one skips the download.
// It reports whether the store was refreshed.
func (s *Service) Sync(ctx context.Context, marker string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if marker != "" && marker == s.lastModified {
		log.Debug().Str("marker", marker).Msg("Library already up to date")
		return false, nil
	}

	start := time.Now()
	catalog, err := s.source.FetchLibrary(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fetch library: %w", err)
	}
	if catalog.LastModified == "" {
		catalog.LastModified = marker
	}

	if err := s.store.ReplaceLibrary(catalog); err != nil {
		return false, fmt.Errorf("failed to store library: %w", err)
	}

	s.lastModified = catalog.LastModified
	s.syncedAt = time.Now()

	log.Info().
		Int("tracks", len(catalog.Tracks)).
		Int("albums", len(catalog.Albums)).
		Int("artists", len(catalog.Artists)).
		Int("playlists", len(catalog.Playlists)).
		Dur("took", time.Since(start)).
		Msg("Library synced")
	return true, nil
}

// Stats returns the cached catalog counts.
func (s *Service) Stats() (Stats, error) {
	stats, err := s.store.GetStats()
	if err != nil {
		return Stats{}, err
	}
	s.mu.Lock()
	if !s.syncedAt.IsZero() {
		stats.SyncedAt = s.syncedAt
	}
	s.mu.Unlock()
	return stats, nil
}

// TrackByID returns a track from the local catalog.
func (s *Service) TrackByID(id queue.TrackID) (Track, error) {
	return s.store.TrackByID(id)
}

// ArtistsByTrack returns the artists credited on a track.
func (s *Service) ArtistsByTrack(id queue.TrackID) ([]Artist, error) {
	return s.store.ArtistsByTrack(id)
}

// AlbumByTrack returns the album a track belongs to, nil if none.
func (s *Service) AlbumByTrack(id queue.TrackID) (*Album, error) {
	return s.store.AlbumByTrack(id)
}

// AlbumTracks returns the album's tracks in play order.
func (s *Service) AlbumTracks(albumID int64) ([]queue.TrackID, error) {
	album, err := s.store.AlbumByID(albumID)
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, fmt.Errorf("album %d: %w", albumID, ErrNotFound)
	}
	return album.Tracks, nil
}

// PlaylistTracks returns the playlist's tracks in playlist order.
func (s *Service) PlaylistTracks(playlistID int64) ([]queue.TrackID, error) {
	pl, err := s.store.PlaylistByID(playlistID)
	if err != nil {
		return nil, err
	}
	if pl == nil || len(pl.Tracks) == 0 {
		return nil, fmt.Errorf("playlist %d: %w", playlistID, ErrNotFound)
	}
	return pl.Tracks, nil
}
