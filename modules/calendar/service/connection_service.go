package service

import (
	"context"
	"time"

	"appointly/core/constants"
	"appointly/core/crypto"
	"appointly/core/errors"
	"appointly/core/logger"
	"appointly/modules/calendar/dto"
	"appointly/modules/calendar/entity"
	"appointly/modules/calendar/provider"
	"appointly/modules/calendar/repository"

	"github.com/google/uuid"
)

// ReconnectNotifier is told when a connection is disabled because its refresh
// token stopped working, so the owner can be asked to reconnect.
type ReconnectNotifier interface {
	NotifyReconnect(ctx context.Context, userID uuid.UUID, provider string, email string)
}

type ConnectionService interface {
	// GetValidAccessToken returns a usable plaintext access token for the
	// connection, refreshing it first when it is within the expiry buffer.
	// An empty string means the connection has no usable token; the
	// connection's own state already reflects why.
	GetValidAccessToken(ctx context.Context, connectionID uuid.UUID) (string, error)
	StoreConnection(ctx context.Context, userID uuid.UUID, providerName string, tokens *dto.OAuthTokens, email, calendarID string) dto.StoreConnectionResult
	DisconnectCalendar(ctx context.Context, userID uuid.UUID, connectionID uuid.UUID) *errors.AppError
	GetConnections(ctx context.Context, userID uuid.UUID) ([]dto.CalendarConnectionResponse, error)
	// ListEvents reads events straight from one provider's calendar.
	ListEvents(ctx context.Context, userID uuid.UUID, providerName, timeMin, timeMax string, max int) ([]dto.CalendarEvent, *errors.AppError)
}

type connectionService struct {
	repo      repository.CalendarRepository
	vault     crypto.Vault
	providers *provider.Registry
	notifier  ReconnectNotifier
}

func NewConnectionService(
	repo repository.CalendarRepository,
	vault crypto.Vault,
	providers *provider.Registry,
	notifier ReconnectNotifier,
) ConnectionService {
	return &connectionService{
		repo:      repo,
		vault:     vault,
		providers: providers,
		notifier:  notifier,
	}
}

func (s *connectionService) GetValidAccessToken(ctx context.Context, connectionID uuid.UUID) (string, error) {
	conn, err := s.repo.GetConnectionByID(ctx, connectionID)
	if err != nil {
		logger.Error("ConnectionService:GetValidAccessToken:GetConnection:Error", "error", err, "connection_id", connectionID)
		return "", err
	}
	if conn == nil || !conn.IsActive {
		return "", nil
	}

	if !s.isExpired(conn) {
		token, err := s.vault.Decrypt(conn.AccessToken)
		if err != nil {
			// An undecryptable token means the connection is unusable, not
			// that the caller did something wrong.
			logger.Error("ConnectionService:GetValidAccessToken:Decrypt:Error", "error", err, "connection_id", conn.ID)
			return "", nil
		}
		return token, nil
	}

	if conn.RefreshToken == nil {
		logger.Warn("ConnectionService:GetValidAccessToken:ExpiredNoRefreshToken", "connection_id", conn.ID, "provider", conn.Provider)
		return "", nil
	}

	return s.refresh(ctx, conn)
}

// refresh performs the read-refresh-write sequence. The write is guarded by
// token_version: when a concurrent request refreshed first, this caller
// discards its own result and uses the winner's token.
func (s *connectionService) refresh(ctx context.Context, conn *entity.CalendarConnection) (string, error) {
	logger.Info("ConnectionService:Refresh:Start", "connection_id", conn.ID, "provider", conn.Provider)

	refreshToken, err := s.vault.Decrypt(*conn.RefreshToken)
	if err != nil {
		logger.Error("ConnectionService:Refresh:DecryptRefreshToken:Error", "error", err, "connection_id", conn.ID)
		return "", nil
	}

	adapter, err := s.providers.ForProvider(conn.Provider)
	if err != nil {
		logger.Error("ConnectionService:Refresh:UnknownProvider", "error", err, "connection_id", conn.ID)
		return "", nil
	}

	tokens, err := adapter.RefreshToken(ctx, refreshToken)
	if err != nil {
		// A rejected refresh token does not heal on retry; disable the
		// connection and leave it for a manual reconnect.
		logger.Error("ConnectionService:Refresh:ProviderRefresh:Error", "error", err, "connection_id", conn.ID, "provider", conn.Provider)
		if markErr := s.repo.MarkInactive(ctx, conn.ID); markErr != nil {
			logger.Error("ConnectionService:Refresh:MarkInactive:Error", "error", markErr, "connection_id", conn.ID)
		}
		if s.notifier != nil {
			s.notifier.NotifyReconnect(ctx, conn.UserID, conn.Provider, conn.CalendarEmail)
		}
		return "", nil
	}

	encryptedAccess, err := s.vault.Encrypt(tokens.AccessToken)
	if err != nil {
		logger.Error("ConnectionService:Refresh:EncryptAccessToken:Error", "error", err, "connection_id", conn.ID)
		return "", err
	}

	// Keep the prior refresh token unless the provider rotated it. Google
	// never returns one on refresh; Microsoft may.
	encryptedRefresh := conn.RefreshToken
	if tokens.RefreshToken != "" {
		rotated, err := s.vault.Encrypt(tokens.RefreshToken)
		if err != nil {
			logger.Error("ConnectionService:Refresh:EncryptRefreshToken:Error", "error", err, "connection_id", conn.ID)
			return "", err
		}
		encryptedRefresh = &rotated
	}

	updated, err := s.repo.UpdateTokens(ctx, conn.ID, encryptedAccess, encryptedRefresh, tokens.ExpiresAt, conn.TokenVersion)
	if err != nil {
		logger.Error("ConnectionService:Refresh:UpdateTokens:Error", "error", err, "connection_id", conn.ID)
		return "", err
	}
	if !updated {
		// Lost the race to a concurrent refresh; the stored token is newer
		// than ours.
		logger.Info("ConnectionService:Refresh:LostRace", "connection_id", conn.ID)
		current, err := s.repo.GetConnectionByID(ctx, conn.ID)
		if err != nil || current == nil || !current.IsActive {
			return "", err
		}
		token, decErr := s.vault.Decrypt(current.AccessToken)
		if decErr != nil {
			logger.Error("ConnectionService:Refresh:DecryptWinner:Error", "error", decErr, "connection_id", conn.ID)
			return "", nil
		}
		return token, nil
	}

	logger.Info("ConnectionService:Refresh:Success", "connection_id", conn.ID, "provider", conn.Provider)
	return tokens.AccessToken, nil
}

func (s *connectionService) isExpired(conn *entity.CalendarConnection) bool {
	if conn.TokenExpiresAt == nil {
		return false
	}
	return !time.Now().Before(conn.TokenExpiresAt.Add(-constants.TokenExpiryBuffer))
}

// StoreConnection upserts the connection for (user, provider): tokens and
// expiry are always replaced, email and calendar id only when newly
// provided, and a previously disabled connection is reactivated.
func (s *connectionService) StoreConnection(ctx context.Context, userID uuid.UUID, providerName string, tokens *dto.OAuthTokens, email, calendarID string) dto.StoreConnectionResult {
	encryptedAccess, err := s.vault.Encrypt(tokens.AccessToken)
	if err != nil {
		logger.Error("ConnectionService:StoreConnection:EncryptAccessToken:Error", "error", err, "user_id", userID)
		return dto.StoreConnectionResult{Success: false, Error: "failed to protect tokens"}
	}

	var encryptedRefresh *string
	if tokens.RefreshToken != "" {
		ciphertext, err := s.vault.Encrypt(tokens.RefreshToken)
		if err != nil {
			logger.Error("ConnectionService:StoreConnection:EncryptRefreshToken:Error", "error", err, "user_id", userID)
			return dto.StoreConnectionResult{Success: false, Error: "failed to protect tokens"}
		}
		encryptedRefresh = &ciphertext
	}

	var expiresAt *time.Time
	if !tokens.ExpiresAt.IsZero() {
		expiresAt = &tokens.ExpiresAt
	}

	existing, err := s.repo.GetConnectionByUserAndProvider(ctx, userID, providerName)
	if err != nil {
		logger.Error("ConnectionService:StoreConnection:GetExisting:Error", "error", err, "user_id", userID, "provider", providerName)
		return dto.StoreConnectionResult{Success: false, Error: "failed to load connection"}
	}

	if existing != nil {
		existing.AccessToken = encryptedAccess
		if encryptedRefresh != nil {
			existing.RefreshToken = encryptedRefresh
		}
		existing.TokenExpiresAt = expiresAt
		if email != "" {
			existing.CalendarEmail = email
		}
		if calendarID != "" {
			existing.CalendarID = calendarID
		}
		existing.IsActive = true

		if err := s.repo.UpdateConnection(ctx, existing); err != nil {
			logger.Error("ConnectionService:StoreConnection:Update:Error", "error", err, "connection_id", existing.ID)
			return dto.StoreConnectionResult{Success: false, Error: "failed to update connection"}
		}
		logger.Info("ConnectionService:StoreConnection:Updated", "connection_id", existing.ID, "provider", providerName)
		return dto.StoreConnectionResult{Success: true, ConnectionID: existing.ID.String()}
	}

	conn := &entity.CalendarConnection{
		UserID:         userID,
		Provider:       providerName,
		AccessToken:    encryptedAccess,
		RefreshToken:   encryptedRefresh,
		TokenExpiresAt: expiresAt,
		CalendarEmail:  email,
		CalendarID:     calendarID,
		IsActive:       true,
	}
	created, err := s.repo.CreateConnection(ctx, conn)
	if err != nil {
		logger.Error("ConnectionService:StoreConnection:Create:Error", "error", err, "user_id", userID, "provider", providerName)
		return dto.StoreConnectionResult{Success: false, Error: "failed to create connection"}
	}
	logger.Info("ConnectionService:StoreConnection:Created", "connection_id", created.ID, "provider", providerName)
	return dto.StoreConnectionResult{Success: true, ConnectionID: created.ID.String()}
}

// DisconnectCalendar hard-deletes the connection, scoped by both ids.
func (s *connectionService) DisconnectCalendar(ctx context.Context, userID uuid.UUID, connectionID uuid.UUID) *errors.AppError {
	rows, err := s.repo.DeleteConnection(ctx, userID, connectionID)
	if err != nil {
		logger.Error("ConnectionService:DisconnectCalendar:Error", "error", err, "connection_id", connectionID)
		return errors.NewAppError(errors.ErrDeleteFailed, "failed to disconnect calendar", err)
	}
	if rows == 0 {
		return errors.NewAppError(errors.ErrNotFound, "calendar connection not found", nil)
	}
	logger.Info("ConnectionService:DisconnectCalendar:Success", "connection_id", connectionID, "user_id", userID)
	return nil
}

func (s *connectionService) GetConnections(ctx context.Context, userID uuid.UUID) ([]dto.CalendarConnectionResponse, error) {
	connections, err := s.repo.GetActiveConnectionsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]dto.CalendarConnectionResponse, 0, len(connections))
	for _, conn := range connections {
		resp := dto.CalendarConnectionResponse{
			ID:            conn.ID.String(),
			Provider:      conn.Provider,
			CalendarEmail: conn.CalendarEmail,
			CalendarID:    conn.CalendarID,
			IsActive:      conn.IsActive,
			ConnectedAt:   conn.CreatedAt.Format(time.RFC3339),
		}
		if conn.LastSyncAt != nil {
			resp.LastSyncAt = conn.LastSyncAt.Format(time.RFC3339)
		}
		result = append(result, resp)
	}
	return result, nil
}

// ListEvents pulls the user's events from one provider within a time window.
func (s *connectionService) ListEvents(ctx context.Context, userID uuid.UUID, providerName, timeMin, timeMax string, max int) ([]dto.CalendarEvent, *errors.AppError) {
	adapter, err := s.providers.ForProvider(providerName)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "unsupported calendar provider", err)
	}

	conn, err := s.repo.GetConnectionByUserAndProvider(ctx, userID, providerName)
	if err != nil {
		logger.Error("ConnectionService:ListEvents:GetConnection:Error", "error", err, "user_id", userID, "provider", providerName)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil || !conn.IsActive {
		return nil, errors.NewAppError(errors.ErrNotFound, "no active calendar connection for provider", nil)
	}

	token, err := s.GetValidAccessToken(ctx, conn.ID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to obtain access token", err)
	}
	if token == "" {
		return nil, errors.NewAppError(errors.ErrUnauthorized, "calendar connection requires reauthorization", nil)
	}

	events, err := adapter.GetEvents(ctx, token, timeMin, timeMax, max)
	if err != nil {
		logger.Error("ConnectionService:ListEvents:Provider:Error", "error", err, "provider", providerName)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to fetch events", err)
	}
	return events, nil
}
