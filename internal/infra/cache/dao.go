package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-queue/internal/domain/library"
	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

// DAO provides catalog lookups and writes on top of DB.
// It implements library.Store.
type DAO struct {
	db *DB
}

// NewDAO creates a new DAO instance.
func NewDAO(db *DB) *DAO {
	return &DAO{db: db}
}

// --- Library replacement ---

// ReplaceLibrary swaps the whole catalog in one transaction.
func (dao *DAO) ReplaceLibrary(c library.Catalog) error {
	db, err := dao.db.conn()
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range catalogTables {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := insertArtists(tx, c.Artists); err != nil {
		return err
	}
	if err := insertAlbums(tx, c.Albums); err != nil {
		return err
	}
	if err := insertTracks(tx, c.Tracks); err != nil {
		return err
	}
	if err := insertPlaylists(tx, c.Playlists); err != nil {
		return err
	}

	if err := setMeta(tx, "last_modified", c.LastModified); err != nil {
		return err
	}
	if err := setMeta(tx, "last_updated", time.Now().Format(time.RFC3339)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Debug().
		Int("tracks", len(c.Tracks)).
		Int("albums", len(c.Albums)).
		Int("artists", len(c.Artists)).
		Int("playlists", len(c.Playlists)).
		Msg("Library cache replaced")
	return nil
}

func insertArtists(tx *sql.Tx, artists []library.Artist) error {
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO artists (id, name, artwork_id) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range artists {
		if _, err := stmt.Exec(a.ID, a.Name, a.ArtworkID); err != nil {
			return fmt.Errorf("failed to insert artist %d: %w", a.ID, err)
		}
	}
	return nil
}

func insertAlbums(tx *sql.Tx, albums []library.Album) error {
	albumStmt, err := tx.Prepare("INSERT OR REPLACE INTO albums (id, name, artist_id, year) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer albumStmt.Close()

	trackStmt, err := tx.Prepare("INSERT INTO album_tracks (album_id, track_id, position) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer trackStmt.Close()

	for _, al := range albums {
		if _, err := albumStmt.Exec(al.ID, al.Name, al.ArtistID, al.Year); err != nil {
			return fmt.Errorf("failed to insert album %d: %w", al.ID, err)
		}
		for i, id := range al.Tracks {
			if _, err := trackStmt.Exec(al.ID, int64(id), i); err != nil {
				return fmt.Errorf("failed to insert album %d track %s: %w", al.ID, id, err)
			}
		}
	}
	return nil
}

func insertPlaylists(tx *sql.Tx, playlists []library.Playlist) error {
	plStmt, err := tx.Prepare("INSERT OR REPLACE INTO playlists (id, name) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer plStmt.Close()

	trackStmt, err := tx.Prepare("INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer trackStmt.Close()

	for _, pl := range playlists {
		if _, err := plStmt.Exec(pl.ID, pl.Name); err != nil {
			return fmt.Errorf("failed to insert playlist %d: %w", pl.ID, err)
		}
		for i, id := range pl.Tracks {
			if _, err := trackStmt.Exec(pl.ID, int64(id), i); err != nil {
				return fmt.Errorf("failed to insert playlist %d track %s: %w", pl.ID, id, err)
			}
		}
	}
	return nil
}

func insertTracks(tx *sql.Tx, tracks []library.Track) error {
	trackStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO tracks (id, title, track_number, year, genre, length,
			album_id, artist_id, artwork_id, file, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer trackStmt.Close()

	artistStmt, err := tx.Prepare("INSERT OR IGNORE INTO track_artists (track_id, artist_id, position) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer artistStmt.Close()

	for _, t := range tracks {
		uploadedAt := ""
		if !t.UploadedAt.IsZero() {
			uploadedAt = t.UploadedAt.Format(time.RFC3339)
		}
		if _, err := trackStmt.Exec(
			int64(t.ID), t.Title, t.TrackNumber, t.Year, t.Genre, t.LengthSeconds,
			t.AlbumID, t.ArtistID, t.ArtworkID, t.File, t.Size, uploadedAt,
		); err != nil {
			return fmt.Errorf("failed to insert track %s: %w", t.ID, err)
		}

		position := 0
		credit := func(artistID int64) error {
			if artistID == 0 {
				return nil
			}
			_, err := artistStmt.Exec(int64(t.ID), artistID, position)
			position++
			return err
		}
		if err := credit(t.ArtistID); err != nil {
			return fmt.Errorf("failed to credit track %s: %w", t.ID, err)
		}
		for _, id := range t.ExtraArtistIDs {
			if err := credit(id); err != nil {
				return fmt.Errorf("failed to credit track %s: %w", t.ID, err)
			}
		}
	}
	return nil
}

// --- Lookups ---

// TrackByID retrieves a track by ID.
func (dao *DAO) TrackByID(id queue.TrackID) (library.Track, error) {
	db, err := dao.db.conn()
	if err != nil {
		return library.Track{}, err
	}

	var t library.Track
	var trackID int64
	var genre, uploadedAt sql.NullString

	err = db.QueryRow(`
		SELECT id, title, track_number, year, genre, length, album_id, artist_id,
			artwork_id, file, size, uploaded_at
		FROM tracks WHERE id = ?
	`, int64(id)).Scan(
		&trackID, &t.Title, &t.TrackNumber, &t.Year, &genre, &t.LengthSeconds,
		&t.AlbumID, &t.ArtistID, &t.ArtworkID, &t.File, &t.Size, &uploadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return library.Track{}, fmt.Errorf("track %s: %w", id, library.ErrNotFound)
	}
	if err != nil {
		return library.Track{}, err
	}

	t.ID = queue.TrackID(trackID)
	t.Genre = genre.String
	if uploadedAt.Valid && uploadedAt.String != "" {
		t.UploadedAt, _ = time.Parse(time.RFC3339, uploadedAt.String)
	}

	rows, err := db.Query(`
		SELECT artist_id FROM track_artists
		WHERE track_id = ? AND artist_id != ?
		ORDER BY position
	`, trackID, t.ArtistID)
	if err != nil {
		return library.Track{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var artistID int64
		if err := rows.Scan(&artistID); err != nil {
			return library.Track{}, err
		}
		t.ExtraArtistIDs = append(t.ExtraArtistIDs, artistID)
	}
	return t, rows.Err()
}

// ArtistsByTrack returns the artists credited on a track, primary first.
func (dao *DAO) ArtistsByTrack(id queue.TrackID) ([]library.Artist, error) {
	db, err := dao.db.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT a.id, a.name, a.artwork_id
		FROM track_artists ta
		JOIN artists a ON a.id = ta.artist_id
		WHERE ta.track_id = ?
		ORDER BY ta.position
	`, int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artists []library.Artist
	for rows.Next() {
		var a library.Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.ArtworkID); err != nil {
			return nil, err
		}
		artists = append(artists, a)
	}
	return artists, rows.Err()
}

// AlbumByTrack returns the album a track belongs to, nil if none.
func (dao *DAO) AlbumByTrack(id queue.TrackID) (*library.Album, error) {
	db, err := dao.db.conn()
	if err != nil {
		return nil, err
	}

	var albumID int64
	err = db.QueryRow("SELECT album_id FROM tracks WHERE id = ?", int64(id)).Scan(&albumID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("track %s: %w", id, library.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if albumID == 0 {
		return nil, nil
	}
	return dao.AlbumByID(albumID)
}

// AlbumByID retrieves an album with its track order. Returns nil, nil when
// the album is unknown.
func (dao *DAO) AlbumByID(id int64) (*library.Album, error) {
	db, err := dao.db.conn()
	if err != nil {
		return nil, err
	}

	album := &library.Album{}
	err = db.QueryRow("SELECT id, name, artist_id, year FROM albums WHERE id = ?", id).
		Scan(&album.ID, &album.Name, &album.ArtistID, &album.Year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query("SELECT track_id FROM album_tracks WHERE album_id = ? ORDER BY position", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var trackID int64
		if err := rows.Scan(&trackID); err != nil {
			return nil, err
		}
		album.Tracks = append(album.Tracks, queue.TrackID(trackID))
	}
	return album, rows.Err()
}

// PlaylistByID retrieves a playlist with its track order. Returns nil, nil
// when the playlist is unknown.
func (dao *DAO) PlaylistByID(id int64) (*library.Playlist, error) {
	db, err := dao.db.conn()
	if err != nil {
		return nil, err
	}

	pl := &library.Playlist{}
	err = db.QueryRow("SELECT id, name FROM playlists WHERE id = ?", id).Scan(&pl.ID, &pl.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query("SELECT track_id FROM playlist_tracks WHERE playlist_id = ? ORDER BY position", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var trackID int64
		if err := rows.Scan(&trackID); err != nil {
			return nil, err
		}
		pl.Tracks = append(pl.Tracks, queue.TrackID(trackID))
	}
	return pl, rows.Err()
}

// GetStats returns catalog counts and the stored sync marker.
func (dao *DAO) GetStats() (library.Stats, error) {
	db, err := dao.db.conn()
	if err != nil {
		return library.Stats{}, err
	}

	var stats library.Stats
	counts := []struct {
		table string
		dest  *int
	}{
		{"tracks", &stats.TrackCount},
		{"artists", &stats.ArtistCount},
		{"albums", &stats.AlbumCount},
		{"playlists", &stats.PlaylistCount},
	}
	for _, c := range counts {
		if err := db.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dest); err != nil {
			return library.Stats{}, err
		}
	}

	stats.LastModified, err = dao.db.getMeta("last_modified")
	if err != nil {
		return library.Stats{}, err
	}
	if lastUpdated, _ := dao.db.getMeta("last_updated"); lastUpdated != "" {
		stats.SyncedAt, _ = time.Parse(time.RFC3339, lastUpdated)
	}
	return stats, nil
}
