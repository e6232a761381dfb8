package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

// SyncHistoryRepository persists [models.SyncHistory] rows. History is
// append-only: there is no update or delete path.
type SyncHistoryRepository struct {
	db *shared.DB
}

// NewSyncHistoryRepository creates a new [SyncHistoryRepository] with the given database connection
func NewSyncHistoryRepository(db *shared.DB) *SyncHistoryRepository {
	return &SyncHistoryRepository{db: db}
}

// Create inserts a history row and its ordered target platform IDs.
func (r *SyncHistoryRepository) Create(ctx context.Context, h *models.SyncHistory) error {
	if h.UserID == "" {
		return fmt.Errorf("%w: sync history user id is required", shared.ErrInvalidInput)
	}
	if h.Type == "" {
		h.Type = models.SyncFull
	}
	if h.Status == "" {
		h.Status = models.SyncCompleted
	}
	if h.CompletedAt.IsZero() {
		h.CompletedAt = time.Now().UTC()
	}

	id := shared.GenerateID()

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO sync_history (id, user_id, type, songs_added, status, completed_at) VALUES (?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, r.db.Rebind(query),
			id, h.UserID, string(h.Type), h.SongsAdded, string(h.Status), h.CompletedAt.UTC()); err != nil {
			return wrapWriteErr("insert sync history", err)
		}

		target := r.db.Rebind(`INSERT INTO sync_history_platforms (sync_id, platform_id, position) VALUES (?, ?, ?)`)
		for i, platformID := range h.TargetPlatforms {
			if _, err := tx.ExecContext(ctx, target, id, platformID, i); err != nil {
				return wrapWriteErr("insert sync history platform", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.ID = id
	return nil
}

// ListByUser returns a user's sync history, most recent first.
func (r *SyncHistoryRepository) ListByUser(ctx context.Context, userID string) ([]*models.SyncHistory, error) {
	query := `
		SELECT id, user_id, type, songs_added, status, completed_at
		FROM sync_history
		WHERE user_id = ?
		ORDER BY completed_at DESC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync history: %w", err)
	}
	defer rows.Close()

	var (
		history []*models.SyncHistory
		byID    = make(map[string]*models.SyncHistory)
	)
	for rows.Next() {
		var (
			h          models.SyncHistory
			syncType   string
			syncStatus string
		)
		if err := rows.Scan(&h.ID, &h.UserID, &syncType, &h.SongsAdded, &syncStatus, &h.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync history: %w", err)
		}
		h.Type = models.SyncType(syncType)
		h.Status = models.SyncStatus(syncStatus)
		h.TargetPlatforms = []string{}
		history = append(history, &h)
		byID[h.ID] = &h
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	if len(history) == 0 {
		return history, nil
	}

	targets := `
		SELECT hp.sync_id, hp.platform_id
		FROM sync_history_platforms hp
		JOIN sync_history h ON h.id = hp.sync_id
		WHERE h.user_id = ?
		ORDER BY hp.sync_id, hp.position ASC
	`
	trows, err := r.db.QueryContext(ctx, r.db.Rebind(targets), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync history platforms: %w", err)
	}
	defer trows.Close()

	for trows.Next() {
		var syncID, platformID string
		if err := trows.Scan(&syncID, &platformID); err != nil {
			return nil, fmt.Errorf("failed to scan sync history platform: %w", err)
		}
		if h, ok := byID[syncID]; ok {
			h.TargetPlatforms = append(h.TargetPlatforms, platformID)
		}
	}
	if err := trows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return history, nil
}
