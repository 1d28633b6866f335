package entity

import (
	"time"

	"appointly/core/entity"

	"github.com/google/uuid"
)

// CalendarConnection stores a user's calendar provider connection. Access and
// refresh tokens are held as vault ciphertext, never plaintext. At most one
// active connection exists per (user, provider) pair; the service layer
// enforces this with upsert semantics.
type CalendarConnection struct {
	entity.BaseEntity
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	Provider       string     `db:"provider" json:"provider"` // "google" | "microsoft"
	AccessToken    string     `db:"access_token" json:"-"`
	RefreshToken   *string    `db:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`
	CalendarEmail  string     `db:"calendar_email" json:"calendar_email"`
	CalendarID     string     `db:"calendar_id" json:"calendar_id"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	LastSyncAt     *time.Time `db:"last_sync_at" json:"last_sync_at,omitempty"`
	// TokenVersion guards the read-refresh-write sequence against concurrent
	// refreshes of the same connection; the losing writer reloads instead of
	// clobbering.
	TokenVersion int `db:"token_version" json:"-"`
}

func (CalendarConnection) TableName() string {
	return "calendar_connections"
}
