package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

const platformColumns = `id, user_id, type, is_connected, access_token, refresh_token, connected_at, created_at, updated_at`

// PlatformRepository persists [models.Platform] rows. The (user_id, type)
// pair is unique.
type PlatformRepository struct {
	db *shared.DB
}

// NewPlatformRepository creates a new [PlatformRepository] with the given database connection
func NewPlatformRepository(db *shared.DB) *PlatformRepository {
	return &PlatformRepository{db: db}
}

// Create inserts a platform with a generated ID. A second row for the same
// user and type fails with [shared.ErrConflict].
func (r *PlatformRepository) Create(ctx context.Context, p *models.Platform) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	p.ID = shared.GenerateID()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO platforms (` + platformColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		p.ID, p.UserID, string(p.Type), p.IsConnected,
		nullString(p.AccessToken), nullString(p.RefreshToken), nullTime(p.ConnectedAt),
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return wrapWriteErr("insert platform", err)
	}

	return nil
}

// Get retrieves a platform by ID
func (r *PlatformRepository) Get(ctx context.Context, id string) (*models.Platform, error) {
	query := `SELECT ` + platformColumns + ` FROM platforms WHERE id = ?`

	p, err := r.scan(r.db.QueryRowContext(ctx, r.db.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("platform", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query platform: %w", err)
	}
	return p, nil
}

// ListByUser returns every platform row of a user ordered by type.
func (r *PlatformRepository) ListByUser(ctx context.Context, userID string) ([]*models.Platform, error) {
	query := `SELECT ` + platformColumns + ` FROM platforms WHERE user_id = ? ORDER BY type ASC`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query platforms: %w", err)
	}
	defer rows.Close()

	var platforms []*models.Platform
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan platform: %w", err)
		}
		platforms = append(platforms, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return platforms, nil
}

// Update writes connection state and credentials.
func (r *PlatformRepository) Update(ctx context.Context, p *models.Platform) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE platforms
		SET is_connected = ?, access_token = ?, refresh_token = ?, connected_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		p.IsConnected, nullString(p.AccessToken), nullString(p.RefreshToken), nullTime(p.ConnectedAt),
		p.UpdatedAt, p.ID)
	if err != nil {
		return wrapWriteErr("update platform", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound("platform", p.ID)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PlatformRepository) scan(row scanner) (*models.Platform, error) {
	var (
		p            models.Platform
		platformType string
		accessToken  sql.NullString
		refreshToken sql.NullString
		connectedAt  sql.NullTime
	)

	err := row.Scan(&p.ID, &p.UserID, &platformType, &p.IsConnected,
		&accessToken, &refreshToken, &connectedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Type = models.PlatformType(platformType)
	p.AccessToken = accessToken.String
	p.RefreshToken = refreshToken.String
	if connectedAt.Valid {
		t := connectedAt.Time
		p.ConnectedAt = &t
	}
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
