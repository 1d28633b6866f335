package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"appointly/core/config"
	"appointly/core/logger"
	"appointly/modules/calendar/dto"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	microsoftTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	msGraphBaseURL    = "https://graph.microsoft.com/v1.0"

	// Graph expects local wall-clock time alongside an explicit timeZone.
	outlookTimeFormat = "2006-01-02T15:04:05"
)

var microsoftScopes = []string{
	"openid",
	"profile",
	"email",
	"offline_access",
	"Calendars.ReadWrite",
	"User.Read",
}

// MicrosoftProvider wraps the Microsoft Graph calendar API and the
// login.microsoftonline.com OAuth endpoints. Stateless.
type MicrosoftProvider struct {
	clientID     string
	clientSecret string
	redirectURI  string

	// Overridable in tests.
	TokenURL string
	APIBase  string

	client *http.Client
}

func NewMicrosoftProvider(cfg config.OAuthProviderConfig) (*MicrosoftProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("microsoft oauth is not configured: missing client id or secret")
	}
	return &MicrosoftProvider{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		TokenURL:     microsoftTokenURL,
		APIBase:      msGraphBaseURL,
		client:       newHTTPClient(),
	}, nil
}

func (p *MicrosoftProvider) Name() string { return dto.ProviderMicrosoft }

// GetAuthURL builds the OAuth consent redirect against the common tenant.
func (p *MicrosoftProvider) GetAuthURL(state string) string {
	oauthConfig := &oauth2.Config{
		ClientID:    p.clientID,
		RedirectURL: p.redirectURI,
		Scopes:      microsoftScopes,
		Endpoint:    microsoft.AzureADEndpoint("common"),
	}
	return oauthConfig.AuthCodeURL(state)
}

type microsoftTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// ExchangeCode exchanges the authorization code for tokens.
func (p *MicrosoftProvider) ExchangeCode(ctx context.Context, code string) (*dto.OAuthTokens, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", p.clientID)
	data.Set("client_secret", p.clientSecret)
	data.Set("redirect_uri", p.redirectURI)
	data.Set("grant_type", "authorization_code")
	data.Set("scope", strings.Join(microsoftScopes, " "))

	return p.postTokenEndpoint(ctx, data)
}

// RefreshToken exchanges a refresh token for new tokens. Microsoft may rotate
// the refresh token; when RefreshToken is set on the result the caller must
// persist it in place of the old one.
func (p *MicrosoftProvider) RefreshToken(ctx context.Context, refreshToken string) (*dto.OAuthTokens, error) {
	data := url.Values{}
	data.Set("client_id", p.clientID)
	data.Set("client_secret", p.clientSecret)
	data.Set("refresh_token", refreshToken)
	data.Set("grant_type", "refresh_token")
	data.Set("scope", strings.Join(microsoftScopes, " "))

	return p.postTokenEndpoint(ctx, data)
}

func (p *MicrosoftProvider) postTokenEndpoint(ctx context.Context, data url.Values) (*dto.OAuthTokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("microsoft token endpoint error: %s", string(body))
	}

	var tokenResp microsoftTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, err
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("microsoft token endpoint error: no access_token in response")
	}

	return &dto.OAuthTokens{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		Scope:        tokenResp.Scope,
		TokenType:    tokenResp.TokenType,
	}, nil
}

// GetUserInfo resolves the signed-in account via Graph /me.
func (p *MicrosoftProvider) GetUserInfo(ctx context.Context, accessToken string) (*dto.UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.APIBase+"/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("microsoft graph error: %s", string(body))
	}

	var user struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
		DisplayName       string `json:"displayName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}

	email := user.Mail
	if email == "" {
		email = user.UserPrincipalName
	}
	return &dto.UserInfo{Email: email, Name: user.DisplayName}, nil
}

func (p *MicrosoftProvider) eventsURL(calendarID string) string {
	if calendarID == "" {
		return p.APIBase + "/me/events"
	}
	return fmt.Sprintf("%s/me/calendars/%s/events", p.APIBase, url.PathEscape(calendarID))
}

// CreateEvent creates an event and returns its external id.
func (p *MicrosoftProvider) CreateEvent(ctx context.Context, accessToken string, event *dto.CalendarEvent, calendarID string) dto.SyncResult {
	payload := microsoftEventPayload(dto.FullPatch(event))
	return p.writeEvent(ctx, http.MethodPost, p.eventsURL(calendarID), accessToken, payload)
}

// UpdateEvent patches an existing event with only the fields present on the
// patch.
func (p *MicrosoftProvider) UpdateEvent(ctx context.Context, accessToken string, eventID string, patch *dto.EventPatch, calendarID string) dto.SyncResult {
	payload := microsoftEventPayload(patch)
	endpoint := p.APIBase + "/me/events/" + url.PathEscape(eventID)
	return p.writeEvent(ctx, http.MethodPatch, endpoint, accessToken, payload)
}

func (p *MicrosoftProvider) writeEvent(ctx context.Context, method, endpoint, accessToken string, payload map[string]any) dto.SyncResult {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("MicrosoftProvider:writeEvent:Marshal:Error", "error", err)
		return dto.SyncResult{Success: false, Error: "unexpected error building event payload"}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return dto.SyncResult{Success: false, Error: "unexpected error building request"}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("MicrosoftProvider:writeEvent:DoRequest:Error", "method", method, "error", err)
		return dto.SyncResult{Success: false, Error: "request to microsoft graph failed"}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dto.SyncResult{Success: false, Error: fmt.Sprintf("microsoft graph error: %s", string(respBody))}
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		logger.Error("MicrosoftProvider:writeEvent:Unmarshal:Error", "error", err)
		return dto.SyncResult{Success: false, Error: "unexpected response from microsoft graph"}
	}

	return dto.SyncResult{Success: true, ExternalID: result.ID}
}

// DeleteEvent removes an event; 404 counts as success so deletes are
// idempotent.
func (p *MicrosoftProvider) DeleteEvent(ctx context.Context, accessToken string, eventID string, calendarID string) dto.SyncResult {
	endpoint := p.APIBase + "/me/events/" + url.PathEscape(eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return dto.SyncResult{Success: false, Error: "unexpected error building request"}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("MicrosoftProvider:DeleteEvent:DoRequest:Error", "error", err)
		return dto.SyncResult{Success: false, Error: "request to microsoft graph failed"}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return dto.SyncResult{Success: true, ExternalID: eventID}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return dto.SyncResult{Success: false, Error: fmt.Sprintf("microsoft graph error: %s", string(body))}
	}
	return dto.SyncResult{Success: true, ExternalID: eventID}
}

// GetEvents lists events in a time range via the calendarView endpoint,
// normalized into the shared DTO.
func (p *MicrosoftProvider) GetEvents(ctx context.Context, accessToken string, timeMin, timeMax string, max int) ([]dto.CalendarEvent, error) {
	params := url.Values{}
	if timeMin == "" {
		timeMin = time.Now().Format(time.RFC3339)
	}
	if timeMax == "" {
		timeMax = time.Now().AddDate(0, 1, 0).Format(time.RFC3339)
	}
	params.Set("startDateTime", timeMin)
	params.Set("endDateTime", timeMax)
	if max > 0 {
		params.Set("$top", fmt.Sprintf("%d", max))
	}

	endpoint := p.APIBase + "/me/calendarview?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("microsoft graph error: %s", string(body))
	}

	var listResp struct {
		Value []struct {
			ID      string `json:"id"`
			Subject string `json:"subject"`
			Body    struct {
				Content string `json:"content"`
			} `json:"body"`
			Location struct {
				DisplayName string `json:"displayName"`
			} `json:"location"`
			Start struct {
				DateTime string `json:"dateTime"`
				TimeZone string `json:"timeZone"`
			} `json:"start"`
			End struct {
				DateTime string `json:"dateTime"`
				TimeZone string `json:"timeZone"`
			} `json:"end"`
			IsCancelled      bool   `json:"isCancelled"`
			OnlineMeetingURL string `json:"onlineMeetingUrl"`
			Attendees        []struct {
				EmailAddress struct {
					Address string `json:"address"`
					Name    string `json:"name"`
				} `json:"emailAddress"`
				Status struct {
					Response string `json:"response"`
				} `json:"status"`
			} `json:"attendees"`
			Organizer struct {
				EmailAddress struct {
					Address string `json:"address"`
				} `json:"emailAddress"`
			} `json:"organizer"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, err
	}

	events := make([]dto.CalendarEvent, 0, len(listResp.Value))
	for _, item := range listResp.Value {
		event := dto.CalendarEvent{
			Title:       item.Subject,
			Description: item.Body.Content,
			Location:    item.Location.DisplayName,
			MeetingURL:  item.OnlineMeetingURL,
			Timezone:    item.Start.TimeZone,
			Status:      dto.EventStatusConfirmed,
		}
		if item.IsCancelled {
			event.Status = dto.EventStatusCancelled
		}
		event.StartTime = parseOutlookTime(item.Start.DateTime, item.Start.TimeZone)
		event.EndTime = parseOutlookTime(item.End.DateTime, item.End.TimeZone)
		for _, att := range item.Attendees {
			event.Attendees = append(event.Attendees, dto.Attendee{
				Email:       att.EmailAddress.Address,
				Name:        att.EmailAddress.Name,
				Status:      att.Status.Response,
				IsOrganizer: att.EmailAddress.Address == item.Organizer.EmailAddress.Address,
			})
		}
		events = append(events, event)
	}
	return events, nil
}

func parseOutlookTime(value, timezone string) time.Time {
	// Graph returns fractional seconds, e.g. 2024-05-01T09:00:00.0000000.
	if idx := strings.Index(value, "."); idx > 0 {
		value = value[:idx]
	}
	loc := time.UTC
	if timezone != "" && timezone != "UTC" {
		if parsed, err := time.LoadLocation(timezone); err == nil {
			loc = parsed
		}
	}
	t, err := time.ParseInLocation(outlookTimeFormat, value, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// microsoftEventPayload translates a patch into Graph event fields. Only
// non-nil patch fields appear in the payload.
func microsoftEventPayload(patch *dto.EventPatch) map[string]any {
	payload := map[string]any{}
	if patch == nil {
		return payload
	}

	if patch.Title != nil {
		payload["subject"] = *patch.Title
	}
	if patch.Description != nil {
		payload["body"] = map[string]string{
			"contentType": "text",
			"content":     *patch.Description,
		}
	}
	if patch.Location != nil {
		payload["location"] = map[string]string{"displayName": *patch.Location}
	}
	if patch.Status != nil {
		switch *patch.Status {
		case dto.EventStatusTentative:
			payload["showAs"] = "tentative"
		case dto.EventStatusCancelled:
			payload["showAs"] = "free"
		default:
			payload["showAs"] = "busy"
		}
	}
	if patch.MeetingURL != nil && *patch.MeetingURL != "" {
		payload["onlineMeetingUrl"] = *patch.MeetingURL
	}

	// Graph reads dateTime as wall clock in the declared timeZone, so the
	// instant has to be converted into that zone before formatting.
	timezone := "UTC"
	loc := time.UTC
	if patch.Timezone != nil && *patch.Timezone != "" {
		if parsed, err := time.LoadLocation(*patch.Timezone); err == nil {
			timezone = *patch.Timezone
			loc = parsed
		}
	}
	if patch.StartTime != nil {
		payload["start"] = map[string]string{
			"dateTime": patch.StartTime.In(loc).Format(outlookTimeFormat),
			"timeZone": timezone,
		}
	}
	if patch.EndTime != nil {
		payload["end"] = map[string]string{
			"dateTime": patch.EndTime.In(loc).Format(outlookTimeFormat),
			"timeZone": timezone,
		}
	}

	if patch.Attendees != nil {
		attendees := make([]map[string]any, 0, len(*patch.Attendees))
		for _, att := range *patch.Attendees {
			attendees = append(attendees, map[string]any{
				"emailAddress": map[string]string{
					"address": att.Email,
					"name":    att.Name,
				},
				"type": "required",
			})
		}
		payload["attendees"] = attendees
	}

	// Graph supports a single reminder offset per event; the first one is used.
	if patch.ReminderMinutes != nil && len(*patch.ReminderMinutes) > 0 {
		payload["isReminderOn"] = true
		payload["reminderMinutesBeforeStart"] = (*patch.ReminderMinutes)[0]
	}

	return payload
}
