package provider

import (
	"context"
	"fmt"
	"net/http"

	"appointly/core/constants"
	"appointly/modules/calendar/dto"
)

// CalendarProvider is the operation set both providers expose. Payload shapes
// differ per provider; the coordinator only ever sees the normalized DTOs.
//
// Exchange and refresh failures surface as errors carrying the raw provider
// response body. Event operations never return a Go error for a provider-side
// failure: transport and non-2xx outcomes are folded into the SyncResult so
// one provider's failure cannot abort another's attempt.
type CalendarProvider interface {
	Name() string
	GetAuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*dto.OAuthTokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (*dto.OAuthTokens, error)
	GetUserInfo(ctx context.Context, accessToken string) (*dto.UserInfo, error)
	CreateEvent(ctx context.Context, accessToken string, event *dto.CalendarEvent, calendarID string) dto.SyncResult
	UpdateEvent(ctx context.Context, accessToken string, eventID string, patch *dto.EventPatch, calendarID string) dto.SyncResult
	DeleteEvent(ctx context.Context, accessToken string, eventID string, calendarID string) dto.SyncResult
	GetEvents(ctx context.Context, accessToken string, timeMin, timeMax string, max int) ([]dto.CalendarEvent, error)
}

// Registry holds the two adapters. There are exactly two providers and no
// plan to add more without revisiting the whole module, so a flat switch is
// sufficient.
type Registry struct {
	google    CalendarProvider
	microsoft CalendarProvider
}

func NewRegistry(google, microsoft CalendarProvider) *Registry {
	return &Registry{google: google, microsoft: microsoft}
}

// ForProvider returns the adapter for a provider name.
func (r *Registry) ForProvider(name string) (CalendarProvider, error) {
	switch name {
	case dto.ProviderGoogle:
		return r.google, nil
	case dto.ProviderMicrosoft:
		return r.microsoft, nil
	default:
		return nil, fmt.Errorf("unknown calendar provider: %q", name)
	}
}

// Names returns the known provider names.
func (r *Registry) Names() []string {
	return []string{dto.ProviderGoogle, dto.ProviderMicrosoft}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: constants.ProviderTimeout}
}
