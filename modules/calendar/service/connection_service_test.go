package service

import (
	"context"
	"testing"
	"time"

	coreEntity "appointly/core/entity"
	"appointly/core/errors"
	"appointly/modules/calendar/dto"
	"appointly/modules/calendar/entity"
	"appointly/modules/calendar/provider"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConnection(providerName string, expiresIn time.Duration) *entity.CalendarConnection {
	refresh := "enc:rt-1"
	expiry := time.Now().Add(expiresIn)
	return &entity.CalendarConnection{
		BaseEntity:     coreEntity.BaseEntity{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
		UserID:         uuid.New(),
		Provider:       providerName,
		AccessToken:    "enc:at-1",
		RefreshToken:   &refresh,
		TokenExpiresAt: &expiry,
		CalendarEmail:  "owner@example.com",
		IsActive:       true,
		TokenVersion:   3,
	}
}

func newTestConnectionService(repo *fakeCalendarRepo, google, microsoft *stubProvider, notifier *fakeNotifier) ConnectionService {
	return NewConnectionService(repo, &fakeVault{}, provider.NewRegistry(google, microsoft), notifier)
}

func TestGetValidAccessTokenNotExpired(t *testing.T) {
	repo := newFakeCalendarRepo()
	google := &stubProvider{name: dto.ProviderGoogle}
	conn := testConnection(dto.ProviderGoogle, time.Hour)
	repo.add(conn)

	svc := newTestConnectionService(repo, google, &stubProvider{name: dto.ProviderMicrosoft}, nil)
	token, err := svc.GetValidAccessToken(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "at-1", token)
	assert.Empty(t, google.refreshCalls, "fresh tokens must not trigger a refresh")
}

func TestGetValidAccessTokenUnknownConnection(t *testing.T) {
	repo := newFakeCalendarRepo()
	svc := newTestConnectionService(repo, &stubProvider{name: dto.ProviderGoogle}, &stubProvider{name: dto.ProviderMicrosoft}, nil)

	token, err := svc.GetValidAccessToken(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestGetValidAccessTokenInactiveConnection(t *testing.T) {
	repo := newFakeCalendarRepo()
	conn := testConnection(dto.ProviderGoogle, time.Hour)
	conn.IsActive = false
	repo.add(conn)

	svc := newTestConnectionService(repo, &stubProvider{name: dto.ProviderGoogle}, &stubProvider{name: dto.ProviderMicrosoft}, nil)
	token, err := svc.GetValidAccessToken(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestGetValidAccessTokenUndecryptable(t *testing.T) {
	repo := newFakeCalendarRepo()
	conn := testConnection(dto.ProviderGoogle, time.Hour)
	conn.AccessToken = "garbage"
	repo.add(conn)

	svc := newTestConnectionService(repo, &stubProvider{name: dto.ProviderGoogle}, &stubProvider{name: dto.ProviderMicrosoft}, nil)
	token, err := svc.GetValidAccessToken(context.Background(), conn.ID)
	require.NoError(t, err, "a corrupt token is an unusable connection, not a caller error")
	assert.Empty(t, token)
}

func TestGetValidAccessTokenRefreshesWithinExpiryBuffer(t *testing.T) {
	repo := newFakeCalendarRepo()
	newExpiry := time.Now().Add(time.Hour)
	google := &stubProvider{
		name: dto.ProviderGoogle,
		refreshFunc: func(ctx context.Context, refreshToken string) (*dto.OAuthTokens, error) {
			assert.Equal(t, "rt-1", refreshToken)
			// No rotated refresh token, as Google behaves.
			return &dto.OAuthTokens{AccessToken: "at-2", ExpiresAt: newExpiry}, nil
		},
	}
	// Still 2 minutes of validity left, but inside the 5 minute buffer.
	conn := testConnection(dto.ProviderGoogle, 2*time.Minute)
	repo.add(conn)

	svc := newTestConnectionService(repo, google, &stubProvider{name: dto.ProviderMicrosoft}, nil)
	token, err := svc.GetValidAccessToken(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "at-2", token)

	require.Len(t, repo.tokenUpdates, 1)
	update := repo.tokenUpdates[0]
	assert.Equal(t, "enc:at-2", update.accessToken)
	require.NotNil(t, update.refreshToken)
	assert.Equal(t, "enc:rt-1", *update.refreshToken, "refresh token must survive unchanged when not rotated")
	assert.Equal(t, 3, update.expectedVersion)
	assert.WithinDuration(t, newExpiry, update.expiresAt, time.Second)
}

func TestGetValidAccessTokenPersistsRotatedRefreshToken(t *testing.T) {
	repo := newFakeCalendarRepo()
	microsoft := &stubProvider{
		name: dto.ProviderMicrosoft,
		refreshFunc: func(ctx context.Context, refreshToken string) (*dto.OAuthTokens, error) {
			return &dto.OAuthTokens{AccessToken: "at-2", RefreshToken: "rt-2", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	conn := testConnection(dto.ProviderMicrosoft, -time.Minute)
	repo.add(conn)

	svc := newTestConnectionService(repo, &stubProvider{name: dto.ProviderGoogle}, microsoft, nil)
	token, err := svc.GetValidAccessToken(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "at-2", token)

	require.Len(t, repo.tokenUpdates, 1)
	require.NotNil(t, repo.tokenUpdates[0].refreshToken)
	assert.Equal(t, "enc:rt-2", *repo.tokenUpdates[0].refreshToken)
}

func TestGetValidAccessTokenExpiredWithoutRefreshToken(t *testing.T) {
	repo := newFakeCalendarRepo()
	google := &stubProvider{name: dto.ProviderGoogle}
	conn := testConnection(dto.ProviderGoogle, -time.Minute)
	conn.RefreshToken = nil
	repo.add(conn)

	svc := newTestConnectionService(repo, google, &stubProvider{name: dto.ProviderMicrosoft}, nil)
	token, err := svc.GetValidAccessToken(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Empty(t, google.refreshCalls)
}

func TestGetValidAccessTokenRefreshFailureDisablesConnection(t *testing.T) {
	repo := newFakeCalendarRepo()
	notifier := &fakeNotifier{}
	google := &stubProvider{
		name: dto.ProviderGoogle,
		refreshFunc: func(ctx context.Context, refreshToken string) (*dto.OAuthTokens, error) {
			return nil, assert.AnError
		},
	}
	conn := testConnection(dto.ProviderGoogle, -time.Minute)
	repo.add(conn)

	svc := newTestConnectionService(repo, google, &stubProvider{name: dto.ProviderMicrosoft}, notifier)
	token, err := svc.GetValidAccessToken(context.Background(), conn.ID)
	require.NoError(t, err, "refresh rejection is not a caller error")
	assert.Empty(t, token)

	require.Len(t, repo.markedInactive, 1)
	assert.Equal(t, conn.ID, repo.markedInactive[0])
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, conn.UserID, notifier.calls[0].userID)
	assert.Equal(t, dto.ProviderGoogle, notifier.calls[0].provider)
	assert.Equal(t, "owner@example.com", notifier.calls[0].email)
}

func TestGetValidAccessTokenLostRefreshRaceUsesWinnerToken(t *testing.T) {
	repo := newFakeCalendarRepo()
	repo.updateTokensResult = false
	google := &stubProvider{name: dto.ProviderGoogle}
	conn := testConnection(dto.ProviderGoogle, -time.Minute)
	repo.add(conn)

	winner := *conn
	winner.AccessToken = "enc:winner-token"
	winner.TokenVersion = 4
	repo.getByIDQueue = []*entity.CalendarConnection{conn, &winner}

	svc := newTestConnectionService(repo, google, &stubProvider{name: dto.ProviderMicrosoft}, nil)
	token, err := svc.GetValidAccessToken(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "winner-token", token)
}

func TestStoreConnectionCreatesNew(t *testing.T) {
	repo := newFakeCalendarRepo()
	svc := newTestConnectionService(repo, &stubProvider{name: dto.ProviderGoogle}, &stubProvider{name: dto.ProviderMicrosoft}, nil)

	userID := uuid.New()
	tokens := &dto.OAuthTokens{AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: time.Now().Add(time.Hour)}
	result := svc.StoreConnection(context.Background(), userID, dto.ProviderGoogle, tokens, "new@example.com", "")
	require.True(t, result.Success, result.Error)

	stored, err := repo.GetConnectionByUserAndProvider(context.Background(), userID, dto.ProviderGoogle)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "enc:at-1", stored.AccessToken)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, "enc:rt-1", *stored.RefreshToken)
	assert.True(t, stored.IsActive)
	assert.Equal(t, "new@example.com", stored.CalendarEmail)
	assert.Equal(t, stored.ID.String(), result.ConnectionID)
}

func TestStoreConnectionUpdatesExisting(t *testing.T) {
	repo := newFakeCalendarRepo()
	conn := testConnection(dto.ProviderGoogle, time.Hour)
	conn.IsActive = false
	repo.add(conn)

	svc := newTestConnectionService(repo, &stubProvider{name: dto.ProviderGoogle}, &stubProvider{name: dto.ProviderMicrosoft}, nil)

	// Reconnect without a refresh token and without a resolved email.
	tokens := &dto.OAuthTokens{AccessToken: "at-9", ExpiresAt: time.Now().Add(time.Hour)}
	result := svc.StoreConnection(context.Background(), conn.UserID, dto.ProviderGoogle, tokens, "", "")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, conn.ID.String(), result.ConnectionID)

	stored := repo.conns[conn.ID]
	assert.Equal(t, "enc:at-9", stored.AccessToken)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, "enc:rt-1", *stored.RefreshToken, "prior refresh token must be kept")
	assert.Equal(t, "owner@example.com", stored.CalendarEmail, "prior email must be kept")
	assert.True(t, stored.IsActive, "reconnect must reactivate the connection")
}

func TestDisconnectCalendar(t *testing.T) {
	repo := newFakeCalendarRepo()
	conn := testConnection(dto.ProviderGoogle, time.Hour)
	repo.conns[conn.ID] = conn
	svc := newTestConnectionService(repo, &stubProvider{name: dto.ProviderGoogle}, &stubProvider{name: dto.ProviderMicrosoft}, nil)

	appErr := svc.DisconnectCalendar(context.Background(), conn.UserID, conn.ID)
	assert.Nil(t, appErr)
	assert.NotContains(t, repo.conns, conn.ID)
}

func TestDisconnectCalendarNotFound(t *testing.T) {
	repo := newFakeCalendarRepo()
	svc := newTestConnectionService(repo, &stubProvider{name: dto.ProviderGoogle}, &stubProvider{name: dto.ProviderMicrosoft}, nil)

	appErr := svc.DisconnectCalendar(context.Background(), uuid.New(), uuid.New())
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrNotFound, appErr.Code)
}

func TestDisconnectCalendarWrongUserLeavesRow(t *testing.T) {
	repo := newFakeCalendarRepo()
	conn := testConnection(dto.ProviderGoogle, time.Hour)
	repo.conns[conn.ID] = conn
	svc := newTestConnectionService(repo, &stubProvider{name: dto.ProviderGoogle}, &stubProvider{name: dto.ProviderMicrosoft}, nil)

	appErr := svc.DisconnectCalendar(context.Background(), uuid.New(), conn.ID)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrNotFound, appErr.Code)
	assert.Contains(t, repo.conns, conn.ID, "mismatched user must not delete the row")
	assert.Empty(t, repo.deletedIDs)
}
