// Package repositories implements SQL persistence for all domain entities.
//
// The same queries run on SQLite (mattn/go-sqlite3) and PostgreSQL (pgx stdlib);
// placeholders are written as "?" and rebound by [shared.DB.Rebind].
//
// Key Implementations:
//   - [UserRepository] : user accounts with username lookups
//   - [PlatformRepository] : one provider connection per user and type, unique on (user_id, type)
//   - [SongRepository] : library songs unique on normalized (title, artist) with a song_platforms tag table
//   - [SyncHistoryRepository] : append-only sync audit rows with ordered target platform IDs
//
// [Store] composes the repositories into [models.Store]. Unique violations from either
// driver are reported as [shared.ErrConflict]; lookup misses as [shared.ErrNotFound].
package repositories
