// Package library provides catalog lookups and synchronization for the remote library.
package library

import (
	"errors"
	"time"

	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

// ErrNotFound is returned when a catalog lookup has no match.
var ErrNotFound = errors.New("not found in library")

// Track represents a track in the remote library.
type Track struct {
	ID             queue.TrackID `json:"id"`
	Title          string        `json:"title"`
	TrackNumber    int           `json:"trackNumber,omitempty"`
	Year           int           `json:"year,omitempty"`
	Genre          string        `json:"genre,omitempty"`
	LengthSeconds  int           `json:"length"`
	AlbumID        int64         `json:"albumId,omitempty"`
	ArtistID       int64         `json:"artistId,omitempty"`
	ExtraArtistIDs []int64       `json:"extraArtistIds,omitempty"` // credited beyond ArtistID
	ArtworkID      int64         `json:"artworkId,omitempty"`
	File           string        `json:"file"`
	Size           int64         `json:"size,omitempty"`
	UploadedAt     time.Time     `json:"uploadedAt,omitempty"`
}

// DurationMs returns the track length in milliseconds, 0 when unknown.
func (t Track) DurationMs() int64 {
	return int64(t.LengthSeconds) * 1000
}

// Artist represents an artist in the remote library.
type Artist struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ArtworkID int64  `json:"artworkId,omitempty"`
}

// Album represents an album in the remote library.
type Album struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	ArtistID int64           `json:"artistId,omitempty"`
	Year     int             `json:"year,omitempty"`
	Tracks   []queue.TrackID `json:"tracks,omitempty"`
}

// Playlist is a user playlist; Tracks keeps the playlist order.
type Playlist struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Tracks []queue.TrackID `json:"tracks,omitempty"`
}

// Catalog is a full library download.
type Catalog struct {
	Tracks       []Track
	Artists      []Artist
	Albums       []Album
	Playlists    []Playlist
	LastModified string
}

// Stats summarizes the cached catalog.
type Stats struct {
	TrackCount    int       `json:"trackCount"`
	ArtistCount   int       `json:"artistCount"`
	AlbumCount    int       `json:"albumCount"`
	PlaylistCount int       `json:"playlistCount"`
	LastModified  string    `json:"lastModified,omitempty"`
	SyncedAt      time.Time `json:"syncedAt,omitempty"`
}

// NowPlaying is the display metadata for the current song.
type NowPlaying struct {
	Track   Track    `json:"track"`
	Artists []Artist `json:"artists"`
	Album   *Album   `json:"album,omitempty"`
}

// ArtistName joins the track's artists for display.
func (n NowPlaying) ArtistName() string {
	name := ""
	for i, a := range n.Artists {
		if i > 0 {
			name += ", "
		}
		name += a.Name
	}
	return name
}
