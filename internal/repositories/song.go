package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

const songColumns = `s.id, s.user_id, s.title, s.artist, s.album, s.album_cover, s.added_at, s.created_at, s.updated_at`

// SongRepository persists [models.Song] rows and their platform tags.
//
// Songs are unique per (user_id, title_key, artist_key) where the keys are
// [shared.Normalize]d title and artist. Tags live in song_platforms and are
// only ever added.
type SongRepository struct {
	db *shared.DB
}

// NewSongRepository creates a new [SongRepository] with the given database connection
func NewSongRepository(db *shared.DB) *SongRepository {
	return &SongRepository{db: db}
}

// Create inserts a song and its platform tags in one transaction. A song with
// the same normalized title and artist fails with [shared.ErrConflict].
func (r *SongRepository) Create(ctx context.Context, song *models.Song) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	id := shared.GenerateID()
	if song.AddedAt.IsZero() {
		song.AddedAt = now
	}

	query := `
		INSERT INTO songs (id, user_id, title, artist, album, album_cover, title_key, artist_key, added_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.db.Rebind(query),
			id, song.UserID, song.Title, song.Artist, nullString(song.Album), nullString(song.AlbumCover),
			shared.Normalize(song.Title), shared.Normalize(song.Artist), song.AddedAt.UTC(), now, now)
		if err != nil {
			return wrapWriteErr("insert song", err)
		}
		return r.addTags(ctx, tx, id, song.Platforms, now)
	})
	if err != nil {
		return err
	}

	song.ID = id
	song.CreatedAt = now
	song.UpdatedAt = now
	return nil
}

// Update rewrites album metadata and adds any platform tags not yet stored.
// Title and artist are part of the song's identity and are left as is.
func (r *SongRepository) Update(ctx context.Context, song *models.Song) error {
	now := time.Now().UTC()

	query := `
		UPDATE songs SET album = ?, album_cover = ?, updated_at = ? WHERE id = ?
	`

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, r.db.Rebind(query),
			nullString(song.Album), nullString(song.AlbumCover), now, song.ID)
		if err != nil {
			return wrapWriteErr("update song", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return notFound("song", song.ID)
		}

		return r.addTags(ctx, tx, song.ID, song.Platforms, now)
	})
	if err != nil {
		return err
	}

	song.UpdatedAt = now
	return nil
}

// FindByKey looks up a song by normalized title and artist.
func (r *SongRepository) FindByKey(ctx context.Context, userID, title, artist string) (*models.Song, error) {
	query := `
		SELECT ` + songColumns + `
		FROM songs s
		WHERE s.user_id = ? AND s.title_key = ? AND s.artist_key = ?
	`

	songs, err := r.list(ctx, query, userID, shared.Normalize(title), shared.Normalize(artist))
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, notFound("song", title+" - "+artist)
	}
	return songs[0], nil
}

// ListByUser returns a user's songs, most recently added first.
func (r *SongRepository) ListByUser(ctx context.Context, userID string) ([]*models.Song, error) {
	query := `
		SELECT ` + songColumns + `
		FROM songs s
		WHERE s.user_id = ?
		ORDER BY s.added_at DESC, s.title_key ASC
	`
	return r.list(ctx, query, userID)
}

// ListByUserAndPlatform returns a user's songs tagged with platformID.
func (r *SongRepository) ListByUserAndPlatform(ctx context.Context, userID, platformID string) ([]*models.Song, error) {
	query := `
		SELECT ` + songColumns + `
		FROM songs s
		WHERE s.user_id = ?
		  AND EXISTS (SELECT 1 FROM song_platforms sp WHERE sp.song_id = s.id AND sp.platform_id = ?)
		ORDER BY s.added_at DESC, s.title_key ASC
	`
	return r.list(ctx, query, userID, platformID)
}

func (r *SongRepository) list(ctx context.Context, query string, args ...any) ([]*models.Song, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var songs []*models.Song
	for rows.Next() {
		song, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	if len(songs) == 0 {
		return songs, nil
	}

	tags, err := r.tags(ctx, songs[0].UserID)
	if err != nil {
		return nil, err
	}
	for _, song := range songs {
		song.Platforms = tags[song.ID]
		if song.Platforms == nil {
			song.Platforms = []string{}
		}
	}
	return songs, nil
}

// tags loads every platform tag of a user's songs keyed by song ID.
func (r *SongRepository) tags(ctx context.Context, userID string) (map[string][]string, error) {
	query := `
		SELECT sp.song_id, sp.platform_id
		FROM song_platforms sp
		JOIN songs s ON s.id = sp.song_id
		WHERE s.user_id = ?
		ORDER BY sp.created_at ASC, sp.platform_id ASC
	`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query song platforms: %w", err)
	}
	defer rows.Close()

	tags := make(map[string][]string)
	for rows.Next() {
		var songID, platformID string
		if err := rows.Scan(&songID, &platformID); err != nil {
			return nil, fmt.Errorf("failed to scan song platform: %w", err)
		}
		tags[songID] = append(tags[songID], platformID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tags, nil
}

func (r *SongRepository) addTags(ctx context.Context, tx *sql.Tx, songID string, platformIDs []string, at time.Time) error {
	query := r.db.Rebind(`
		INSERT INTO song_platforms (song_id, platform_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (song_id, platform_id) DO NOTHING
	`)
	for _, platformID := range platformIDs {
		if platformID == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, query, songID, platformID, at); err != nil {
			return fmt.Errorf("failed to tag song %s with platform %s: %w", songID, platformID, err)
		}
	}
	return nil
}

func (r *SongRepository) scanRow(rows *sql.Rows) (*models.Song, error) {
	var (
		song       models.Song
		album      sql.NullString
		albumCover sql.NullString
	)

	err := rows.Scan(&song.ID, &song.UserID, &song.Title, &song.Artist, &album, &albumCover,
		&song.AddedAt, &song.CreatedAt, &song.UpdatedAt)
	if err != nil {
		return nil, err
	}

	song.Album = album.String
	song.AlbumCover = albumCover.String
	return &song, nil
}
