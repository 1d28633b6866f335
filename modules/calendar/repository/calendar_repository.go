package repository

import (
	"context"
	"database/sql"
	"time"

	"appointly/core/database"
	"appointly/modules/calendar/entity"

	"github.com/google/uuid"
)

type CalendarRepository interface {
	CreateConnection(ctx context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error)
	GetConnectionByID(ctx context.Context, id uuid.UUID) (*entity.CalendarConnection, error)
	GetConnectionByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*entity.CalendarConnection, error)
	GetActiveConnectionsByUserID(ctx context.Context, userID uuid.UUID) ([]entity.CalendarConnection, error)
	UpdateConnection(ctx context.Context, conn *entity.CalendarConnection) error
	// UpdateTokens persists refreshed tokens only when the row still carries
	// expectedVersion; returns false when a concurrent refresh won the race.
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt time.Time, expectedVersion int) (bool, error)
	MarkInactive(ctx context.Context, id uuid.UUID) error
	UpdateLastSync(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteConnection(ctx context.Context, userID uuid.UUID, connectionID uuid.UUID) (int64, error)
}

type calendarRepository struct {
	db database.Database
}

func NewCalendarRepository(db database.Database) CalendarRepository {
	return &calendarRepository{db: db}
}

const connectionColumns = `
	id, user_id, provider, access_token, refresh_token, token_expires_at,
	calendar_email, calendar_id, is_active, last_sync_at, token_version,
	created_at, updated_at
`

// CreateConnection inserts a new calendar connection.
func (r *calendarRepository) CreateConnection(ctx context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error) {
	query := `
		INSERT INTO calendar_connections
			(user_id, provider, access_token, refresh_token, token_expires_at, calendar_email, calendar_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(
		ctx, query,
		conn.UserID, conn.Provider, conn.AccessToken, conn.RefreshToken,
		conn.TokenExpiresAt, conn.CalendarEmail, conn.CalendarID, conn.IsActive,
	).Scan(&conn.ID, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// GetConnectionByID loads a connection regardless of its active flag; the
// service layer decides what an inactive connection means.
func (r *calendarRepository) GetConnectionByID(ctx context.Context, id uuid.UUID) (*entity.CalendarConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM calendar_connections WHERE id = $1`
	var conn entity.CalendarConnection
	if err := r.db.GetContext(ctx, &conn, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *calendarRepository) GetConnectionByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*entity.CalendarConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM calendar_connections WHERE user_id = $1 AND provider = $2`
	var conn entity.CalendarConnection
	if err := r.db.GetContext(ctx, &conn, query, userID, provider); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *calendarRepository) GetActiveConnectionsByUserID(ctx context.Context, userID uuid.UUID) ([]entity.CalendarConnection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM calendar_connections
		WHERE user_id = $1 AND is_active = true
		ORDER BY created_at DESC
	`
	var connections []entity.CalendarConnection
	if err := r.db.SelectContext(ctx, &connections, query, userID); err != nil {
		return nil, err
	}
	return connections, nil
}

// UpdateConnection rewrites the mutable fields of a connection.
func (r *calendarRepository) UpdateConnection(ctx context.Context, conn *entity.CalendarConnection) error {
	query := `
		UPDATE calendar_connections
		SET access_token = $1, refresh_token = $2, token_expires_at = $3,
		    calendar_email = $4, calendar_id = $5, is_active = $6, updated_at = NOW()
		WHERE id = $7
	`
	_, err := r.db.ExecContext(ctx, query,
		conn.AccessToken, conn.RefreshToken, conn.TokenExpiresAt,
		conn.CalendarEmail, conn.CalendarID, conn.IsActive, conn.ID,
	)
	return err
}

func (r *calendarRepository) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt time.Time, expectedVersion int) (bool, error) {
	query := `
		UPDATE calendar_connections
		SET access_token = $1, refresh_token = $2, token_expires_at = $3,
		    token_version = token_version + 1, updated_at = NOW()
		WHERE id = $4 AND token_version = $5
	`
	res, err := r.db.ExecContext(ctx, query, accessToken, refreshToken, expiresAt, id, expectedVersion)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *calendarRepository) MarkInactive(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE calendar_connections SET is_active = false, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *calendarRepository) UpdateLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE calendar_connections SET last_sync_at = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}

// DeleteConnection hard-deletes a connection, scoped by both ids so one user
// cannot remove another user's connection.
func (r *calendarRepository) DeleteConnection(ctx context.Context, userID uuid.UUID, connectionID uuid.UUID) (int64, error) {
	query := `DELETE FROM calendar_connections WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, connectionID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
