package constants

import "time"

// Database pool settings
const (
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes
	DatabaseSSLMode         = "disable"
)

// Timeouts
const (
	DefaultTimeout     = 30 * time.Second
	ProviderTimeout    = 30 * time.Second
	ShutdownTimeout    = 10 * time.Second
	OAuthStateLifetime = 10 * time.Minute
)

// TokenExpiryBuffer is subtracted from a connection's token expiry when
// deciding whether to refresh, so a call already in flight does not race
// the actual expiry instant.
const TokenExpiryBuffer = 5 * time.Minute

// Redis key prefixes
const (
	RedisKeyOAuthState     = "oauth_state:"
	RedisKeyTokenBlacklist = "token_blacklist:"
)

// Asynq task types
const (
	TaskNotifyReconnect = "notification:reconnect"
)

// JWT
const (
	AccessTokenLifetime = 24 * time.Hour
)
