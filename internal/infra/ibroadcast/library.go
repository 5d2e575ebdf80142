package ibroadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-queue/internal/domain/library"
	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

type libraryResponse struct {
	Authenticated *bool `json:"authenticated"`
	Settings      struct {
		StreamingServer string `json:"streaming_server"`
	} `json:"settings"`
	Library map[string]json.RawMessage `json:"library"`
}

// FetchLibrary downloads the whole catalog.
func (c *Client) FetchLibrary(ctx context.Context) (library.Catalog, error) {
	var out libraryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"mode": "library"}).
		SetResult(&out).
		Post(c.cfg.LibraryURL + "/s/JSON/library")
	if err != nil {
		return library.Catalog{}, fmt.Errorf("library request failed: %w", err)
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return library.Catalog{}, ErrUnauthenticated
	}
	if resp.IsError() {
		return library.Catalog{}, fmt.Errorf("library request failed: status %d", resp.StatusCode())
	}
	if out.Authenticated != nil && !*out.Authenticated {
		return library.Catalog{}, ErrUnauthenticated
	}

	if server := out.Settings.StreamingServer; server != "" {
		c.mu.Lock()
		c.streamingServer = server
		c.mu.Unlock()
	}

	return decodeLibrary(out.Library)
}

func decodeLibrary(lib map[string]json.RawMessage) (library.Catalog, error) {
	var catalog library.Catalog

	artists, err := parseSection(lib["artists"])
	if err != nil {
		return catalog, fmt.Errorf("artists: %w", err)
	}
	albums, err := parseSection(lib["albums"])
	if err != nil {
		return catalog, fmt.Errorf("albums: %w", err)
	}
	tracks, err := parseSection(lib["tracks"])
	if err != nil {
		return catalog, fmt.Errorf("tracks: %w", err)
	}
	playlists, err := parseSection(lib["playlists"])
	if err != nil {
		return catalog, fmt.Errorf("playlists: %w", err)
	}

	for id, row := range artists.rows {
		catalog.Artists = append(catalog.Artists, library.Artist{
			ID:        id,
			Name:      artists.str(row, "name"),
			ArtworkID: artists.int(row, "artwork_id"),
		})
	}

	for id, row := range albums.rows {
		album := library.Album{
			ID:       id,
			Name:     albums.str(row, "name"),
			ArtistID: albums.int(row, "artist_id"),
			Year:     int(albums.int(row, "year")),
		}
		album.Tracks = albums.trackIDs(row, "tracks")
		catalog.Albums = append(catalog.Albums, album)
	}

	for id, row := range playlists.rows {
		pl := library.Playlist{
			ID:   id,
			Name: playlists.str(row, "name"),
		}
		pl.Tracks = playlists.trackIDs(row, "tracks")
		catalog.Playlists = append(catalog.Playlists, pl)
	}

	for id, row := range tracks.rows {
		t := library.Track{
			ID:            queue.TrackID(id),
			Title:         tracks.str(row, "title"),
			TrackNumber:   int(tracks.int(row, "track")),
			Year:          int(tracks.int(row, "year")),
			Genre:         tracks.str(row, "genre"),
			LengthSeconds: int(tracks.int(row, "length")),
			AlbumID:       tracks.int(row, "album_id"),
			ArtistID:      tracks.int(row, "artist_id"),
			ArtworkID:     tracks.int(row, "artwork_id"),
			File:          tracks.str(row, "file"),
			Size:          tracks.int(row, "size"),
		}
		if on := tracks.str(row, "uploaded_on"); on != "" {
			t.UploadedAt, _ = time.Parse(time.DateOnly, on)
		}
		t.ExtraArtistIDs = tracks.additionalArtists(row)
		catalog.Tracks = append(catalog.Tracks, t)
	}

	log.Debug().
		Int("tracks", len(catalog.Tracks)).
		Int("albums", len(catalog.Albums)).
		Int("artists", len(catalog.Artists)).
		Int("playlists", len(catalog.Playlists)).
		Msg("Library decoded")
	return catalog, nil
}

// section is one map-indexed library block: rows are positional arrays
// and "map" names the position of each field.
type section struct {
	index      map[string]int
	additional map[string]int
	rows       map[int64][]json.RawMessage
}

func parseSection(raw json.RawMessage) (section, error) {
	s := section{
		index:      map[string]int{},
		additional: map[string]int{},
		rows:       map[int64][]json.RawMessage{},
	}
	if len(raw) == 0 {
		return s, nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return s, err
	}

	if m, ok := entries["map"]; ok {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(m, &fields); err != nil {
			return s, fmt.Errorf("map: %w", err)
		}
		for key, v := range fields {
			if key == "artists_additional_map" {
				if err := json.Unmarshal(v, &s.additional); err != nil {
					return s, fmt.Errorf("artists_additional_map: %w", err)
				}
				continue
			}
			var i int
			if json.Unmarshal(v, &i) == nil {
				s.index[key] = i
			}
		}
	}

	for key, v := range entries {
		if key == "map" {
			continue
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		var row []json.RawMessage
		if json.Unmarshal(v, &row) != nil {
			continue
		}
		s.rows[id] = row
	}
	return s, nil
}

func (s section) field(row []json.RawMessage, key string) json.RawMessage {
	i, ok := s.index[key]
	if !ok || i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func (s section) str(row []json.RawMessage, key string) string {
	raw := s.field(row, key)
	var v string
	if json.Unmarshal(raw, &v) == nil {
		return v
	}
	if n, ok := number(raw); ok {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

func (s section) int(row []json.RawMessage, key string) int64 {
	n, _ := number(s.field(row, key))
	return n
}

func (s section) list(row []json.RawMessage, key string) []json.RawMessage {
	var v []json.RawMessage
	if json.Unmarshal(s.field(row, key), &v) != nil {
		return nil
	}
	return v
}

// trackIDs reads a list field of track ids, skipping entries that are not numbers.
func (s section) trackIDs(row []json.RawMessage, key string) []queue.TrackID {
	var ids []queue.TrackID
	for _, raw := range s.list(row, key) {
		if n, ok := number(raw); ok {
			ids = append(ids, queue.TrackID(n))
		}
	}
	return ids
}

func (s section) additionalArtists(row []json.RawMessage) []int64 {
	pos, ok := s.additional["artist_id"]
	if !ok {
		return nil
	}
	var ids []int64
	for _, raw := range s.list(row, "artists_additional") {
		var entry []json.RawMessage
		if json.Unmarshal(raw, &entry) != nil || pos >= len(entry) {
			continue
		}
		if n, ok := number(entry[pos]); ok && n != 0 {
			ids = append(ids, n)
		}
	}
	return ids
}

// number accepts a JSON number or a numeric string.
func number(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return int64(f), true
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
