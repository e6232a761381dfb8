package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Store implements [models.Store] over a sqlite3 or pgx database.
type Store struct {
	users     *UserRepository
	platforms *PlatformRepository
	songs     *SongRepository
	history   *SyncHistoryRepository
}

var _ models.Store = (*Store)(nil)

// NewStore creates a [Store] with repositories sharing db.
func NewStore(db *shared.DB) *Store {
	return &Store{
		users:     NewUserRepository(db),
		platforms: NewPlatformRepository(db),
		songs:     NewSongRepository(db),
		history:   NewSyncHistoryRepository(db),
	}
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.Get(ctx, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.users.GetByUsername(ctx, username)
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.users.Create(ctx, u)
}

func (s *Store) GetPlatformsByUserID(ctx context.Context, userID string) ([]*models.Platform, error) {
	return s.platforms.ListByUser(ctx, userID)
}

func (s *Store) GetPlatform(ctx context.Context, id string) (*models.Platform, error) {
	return s.platforms.Get(ctx, id)
}

func (s *Store) CreatePlatform(ctx context.Context, p *models.Platform) error {
	return s.platforms.Create(ctx, p)
}

func (s *Store) UpdatePlatform(ctx context.Context, p *models.Platform) error {
	return s.platforms.Update(ctx, p)
}

func (s *Store) GetSongsByUserID(ctx context.Context, userID string) ([]*models.Song, error) {
	return s.songs.ListByUser(ctx, userID)
}

func (s *Store) GetSongsByUserIDAndPlatform(ctx context.Context, userID, platformID string) ([]*models.Song, error) {
	return s.songs.ListByUserAndPlatform(ctx, userID, platformID)
}

func (s *Store) FindSong(ctx context.Context, userID, title, artist string) (*models.Song, error) {
	return s.songs.FindByKey(ctx, userID, title, artist)
}

func (s *Store) CreateSong(ctx context.Context, song *models.Song) error {
	return s.songs.Create(ctx, song)
}

func (s *Store) UpdateSong(ctx context.Context, song *models.Song) error {
	return s.songs.Update(ctx, song)
}

func (s *Store) GetSyncHistoryByUserID(ctx context.Context, userID string) ([]*models.SyncHistory, error) {
	return s.history.ListByUser(ctx, userID)
}

func (s *Store) CreateSyncHistory(ctx context.Context, h *models.SyncHistory) error {
	return s.history.Create(ctx, h)
}

// isUniqueViolation reports whether err is a unique or primary key constraint
// failure from either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// wrapWriteErr maps constraint failures to [shared.ErrConflict].
func wrapWriteErr(what string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, shared.ErrConflict)
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}

// notFound wraps [shared.ErrNotFound] with the entity and key.
func notFound(entity, key string) error {
	return fmt.Errorf("%s %w: %s", entity, shared.ErrNotFound, key)
}

// nullString stores empty strings as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// withTx runs fn in a transaction, committing when it returns nil.
func withTx(ctx context.Context, db *shared.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
