package service

import (
	"context"

	"appointly/core/cache"
	"appointly/core/errors"
	"appointly/core/logger"
	"appointly/core/utils"
	"appointly/modules/calendar/dto"
	"appointly/modules/calendar/provider"

	"github.com/google/uuid"
)

type OAuthService interface {
	// GetAuthURL builds the provider consent URL with a fresh single-use
	// state token bound to the requesting user.
	GetAuthURL(ctx context.Context, userID uuid.UUID, providerName string) (*dto.OAuthURLResponse, *errors.AppError)
	// HandleCallback redeems the authorization code and persists the
	// resulting connection for the user the state was issued to.
	HandleCallback(ctx context.Context, providerName, code, state string) (*dto.StoreConnectionResult, *errors.AppError)
}

type oauthService struct {
	providers   *provider.Registry
	cache       cache.Cache
	connections ConnectionService
}

func NewOAuthService(providers *provider.Registry, c cache.Cache, connections ConnectionService) OAuthService {
	return &oauthService{
		providers:   providers,
		cache:       c,
		connections: connections,
	}
}

func (s *oauthService) GetAuthURL(ctx context.Context, userID uuid.UUID, providerName string) (*dto.OAuthURLResponse, *errors.AppError) {
	adapter, err := s.providers.ForProvider(providerName)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "unsupported calendar provider", err)
	}

	state := utils.GenerateRandomString(32)
	if err := s.cache.SetOAuthState(ctx, state, userID.String()); err != nil {
		logger.Error("OAuthService:GetAuthURL:SetState:Error", "error", err, "user_id", userID)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to start authorization", err)
	}

	url := adapter.GetAuthURL(state)
	logger.Info("OAuthService:GetAuthURL:Issued", "user_id", userID, "provider", providerName)
	return &dto.OAuthURLResponse{URL: url, State: state}, nil
}

func (s *oauthService) HandleCallback(ctx context.Context, providerName, code, state string) (*dto.StoreConnectionResult, *errors.AppError) {
	adapter, err := s.providers.ForProvider(providerName)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "unsupported calendar provider", err)
	}

	userIDStr, err := s.cache.ConsumeOAuthState(ctx, state)
	if err != nil || userIDStr == "" {
		logger.Warn("OAuthService:HandleCallback:UnknownState", "provider", providerName)
		return nil, errors.NewAppError(errors.ErrUnauthorized, "invalid or expired authorization state", err)
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "corrupt authorization state", err)
	}

	tokens, err := adapter.ExchangeCode(ctx, code)
	if err != nil {
		logger.Error("OAuthService:HandleCallback:Exchange:Error", "error", err, "provider", providerName, "user_id", userID)
		return nil, errors.NewAppError(errors.ErrUnauthorized, "authorization code exchange failed", err)
	}

	// Best effort. A connection without a known email is still usable.
	email := ""
	if info, err := adapter.GetUserInfo(ctx, tokens.AccessToken); err != nil {
		logger.Warn("OAuthService:HandleCallback:GetUserInfo:Error", "error", err, "provider", providerName, "user_id", userID)
	} else {
		email = info.Email
	}

	result := s.connections.StoreConnection(ctx, userID, providerName, tokens, email, "")
	if !result.Success {
		return nil, errors.NewAppError(errors.ErrCreateFailed, result.Error, nil)
	}
	logger.Info("OAuthService:HandleCallback:Connected", "user_id", userID, "provider", providerName, "connection_id", result.ConnectionID)
	return &result, nil
}
