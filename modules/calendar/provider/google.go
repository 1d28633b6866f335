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
	"golang.org/x/oauth2/google"
)

const (
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleAPIBase     = "https://www.googleapis.com/calendar/v3"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

var googleScopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/userinfo.email",
}

// GoogleProvider wraps the Google Calendar REST API and its OAuth endpoints.
// Stateless: pure request/response transforms.
type GoogleProvider struct {
	clientID     string
	clientSecret string
	redirectURI  string

	// Overridable in tests.
	TokenURL    string
	APIBase     string
	UserInfoURL string

	client *http.Client
}

// NewGoogleProvider builds the adapter. Missing client credentials are a
// deployment configuration error and fail fast.
func NewGoogleProvider(cfg config.OAuthProviderConfig) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("google oauth is not configured: missing client id or secret")
	}
	return &GoogleProvider{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		TokenURL:     googleTokenURL,
		APIBase:      googleAPIBase,
		UserInfoURL:  googleUserInfoURL,
		client:       newHTTPClient(),
	}, nil
}

func (p *GoogleProvider) Name() string { return dto.ProviderGoogle }

// GetAuthURL builds the OAuth consent redirect. offline access and forced
// consent are required so Google issues a refresh token.
func (p *GoogleProvider) GetAuthURL(state string) string {
	oauthConfig := &oauth2.Config{
		ClientID:    p.clientID,
		RedirectURL: p.redirectURI,
		Scopes:      googleScopes,
		Endpoint:    google.Endpoint,
	}
	return oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// ExchangeCode exchanges the authorization code for tokens.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*dto.OAuthTokens, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", p.clientID)
	data.Set("client_secret", p.clientSecret)
	data.Set("redirect_uri", p.redirectURI)
	data.Set("grant_type", "authorization_code")

	return p.postTokenEndpoint(ctx, data)
}

// RefreshToken exchanges a refresh token for a new access token. Google does
// not rotate the refresh token; the returned RefreshToken is usually empty
// and the caller must keep the original.
func (p *GoogleProvider) RefreshToken(ctx context.Context, refreshToken string) (*dto.OAuthTokens, error) {
	data := url.Values{}
	data.Set("client_id", p.clientID)
	data.Set("client_secret", p.clientSecret)
	data.Set("refresh_token", refreshToken)
	data.Set("grant_type", "refresh_token")

	return p.postTokenEndpoint(ctx, data)
}

func (p *GoogleProvider) postTokenEndpoint(ctx context.Context, data url.Values) (*dto.OAuthTokens, error) {
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
		return nil, fmt.Errorf("google token endpoint error: %s", string(body))
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, err
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("google token endpoint error: no access_token in response")
	}

	return &dto.OAuthTokens{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		Scope:        tokenResp.Scope,
		TokenType:    tokenResp.TokenType,
	}, nil
}

// GetUserInfo resolves the authenticated account's identity.
func (p *GoogleProvider) GetUserInfo(ctx context.Context, accessToken string) (*dto.UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
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
		return nil, fmt.Errorf("google userinfo error: %s", string(body))
	}

	var user struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &dto.UserInfo{Email: user.Email, Name: user.Name}, nil
}

func (p *GoogleProvider) eventsURL(calendarID string) string {
	if calendarID == "" {
		calendarID = "primary"
	}
	return fmt.Sprintf("%s/calendars/%s/events", p.APIBase, url.PathEscape(calendarID))
}

// CreateEvent creates an event and returns its external id.
func (p *GoogleProvider) CreateEvent(ctx context.Context, accessToken string, event *dto.CalendarEvent, calendarID string) dto.SyncResult {
	payload := googleEventPayload(dto.FullPatch(event))
	return p.writeEvent(ctx, http.MethodPost, p.eventsURL(calendarID), accessToken, payload)
}

// UpdateEvent patches an existing event. Only fields present on the patch are
// sent; omitted fields are left untouched at the provider.
func (p *GoogleProvider) UpdateEvent(ctx context.Context, accessToken string, eventID string, patch *dto.EventPatch, calendarID string) dto.SyncResult {
	payload := googleEventPayload(patch)
	endpoint := p.eventsURL(calendarID) + "/" + url.PathEscape(eventID)
	return p.writeEvent(ctx, http.MethodPatch, endpoint, accessToken, payload)
}

func (p *GoogleProvider) writeEvent(ctx context.Context, method, endpoint, accessToken string, payload map[string]any) dto.SyncResult {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("GoogleProvider:writeEvent:Marshal:Error", "error", err)
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
		logger.Error("GoogleProvider:writeEvent:DoRequest:Error", "method", method, "error", err)
		return dto.SyncResult{Success: false, Error: "request to google calendar failed"}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dto.SyncResult{Success: false, Error: fmt.Sprintf("google api error: %s", string(respBody))}
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		logger.Error("GoogleProvider:writeEvent:Unmarshal:Error", "error", err)
		return dto.SyncResult{Success: false, Error: "unexpected response from google calendar"}
	}

	return dto.SyncResult{Success: true, ExternalID: result.ID}
}

// DeleteEvent removes an event. A 404 means the event is already gone and is
// treated as success, so deletes are idempotent.
func (p *GoogleProvider) DeleteEvent(ctx context.Context, accessToken string, eventID string, calendarID string) dto.SyncResult {
	endpoint := p.eventsURL(calendarID) + "/" + url.PathEscape(eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return dto.SyncResult{Success: false, Error: "unexpected error building request"}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("GoogleProvider:DeleteEvent:DoRequest:Error", "error", err)
		return dto.SyncResult{Success: false, Error: "request to google calendar failed"}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return dto.SyncResult{Success: true, ExternalID: eventID}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return dto.SyncResult{Success: false, Error: fmt.Sprintf("google api error: %s", string(body))}
	}
	return dto.SyncResult{Success: true, ExternalID: eventID}
}

// GetEvents lists events in a time range, normalized into the shared DTO.
func (p *GoogleProvider) GetEvents(ctx context.Context, accessToken string, timeMin, timeMax string, max int) ([]dto.CalendarEvent, error) {
	params := url.Values{}
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	if timeMin != "" {
		params.Set("timeMin", timeMin)
	} else {
		params.Set("timeMin", time.Now().Format(time.RFC3339))
	}
	if timeMax != "" {
		params.Set("timeMax", timeMax)
	}
	if max > 0 {
		params.Set("maxResults", fmt.Sprintf("%d", max))
	}

	endpoint := p.eventsURL("") + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
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
		return nil, fmt.Errorf("google api error: %s", string(body))
	}

	var listResp struct {
		Items []struct {
			ID          string `json:"id"`
			Summary     string `json:"summary"`
			Description string `json:"description"`
			Location    string `json:"location"`
			Status      string `json:"status"`
			HangoutLink string `json:"hangoutLink"`
			Start       struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
				TimeZone string `json:"timeZone"`
			} `json:"start"`
			End struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
				TimeZone string `json:"timeZone"`
			} `json:"end"`
			Attendees []struct {
				Email          string `json:"email"`
				DisplayName    string `json:"displayName"`
				ResponseStatus string `json:"responseStatus"`
				Organizer      bool   `json:"organizer"`
			} `json:"attendees"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, err
	}

	events := make([]dto.CalendarEvent, 0, len(listResp.Items))
	for _, item := range listResp.Items {
		event := dto.CalendarEvent{
			Title:       item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Status:      item.Status,
			MeetingURL:  item.HangoutLink,
			Timezone:    item.Start.TimeZone,
		}
		event.StartTime = parseGoogleTime(item.Start.DateTime, item.Start.Date)
		event.EndTime = parseGoogleTime(item.End.DateTime, item.End.Date)
		for _, att := range item.Attendees {
			event.Attendees = append(event.Attendees, dto.Attendee{
				Email:       att.Email,
				Name:        att.DisplayName,
				Status:      att.ResponseStatus,
				IsOrganizer: att.Organizer,
			})
		}
		events = append(events, event)
	}
	return events, nil
}

func parseGoogleTime(dateTime, date string) time.Time {
	if dateTime != "" {
		if t, err := time.Parse(time.RFC3339, dateTime); err == nil {
			return t
		}
	}
	if date != "" {
		if t, err := time.Parse("2006-01-02", date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// googleEventPayload translates a patch into Google event fields. Only
// non-nil patch fields appear in the payload.
func googleEventPayload(patch *dto.EventPatch) map[string]any {
	payload := map[string]any{}
	if patch == nil {
		return payload
	}

	if patch.Title != nil {
		payload["summary"] = *patch.Title
	}
	if patch.Description != nil {
		payload["description"] = *patch.Description
	}
	if patch.Location != nil {
		payload["location"] = *patch.Location
	}
	if patch.Status != nil {
		payload["status"] = *patch.Status
	}
	if patch.MeetingURL != nil && *patch.MeetingURL != "" {
		payload["hangoutLink"] = *patch.MeetingURL
	}

	timezone := "UTC"
	if patch.Timezone != nil && *patch.Timezone != "" {
		timezone = *patch.Timezone
	}
	if patch.StartTime != nil {
		payload["start"] = map[string]string{
			"dateTime": patch.StartTime.Format(time.RFC3339),
			"timeZone": timezone,
		}
	}
	if patch.EndTime != nil {
		payload["end"] = map[string]string{
			"dateTime": patch.EndTime.Format(time.RFC3339),
			"timeZone": timezone,
		}
	}

	if patch.Attendees != nil {
		attendees := make([]map[string]any, 0, len(*patch.Attendees))
		for _, att := range *patch.Attendees {
			entry := map[string]any{"email": att.Email}
			if att.Name != "" {
				entry["displayName"] = att.Name
			}
			if att.Status != "" {
				entry["responseStatus"] = att.Status
			}
			if att.IsOrganizer {
				entry["organizer"] = true
			}
			attendees = append(attendees, entry)
		}
		payload["attendees"] = attendees
	}

	if patch.ReminderMinutes != nil && len(*patch.ReminderMinutes) > 0 {
		overrides := make([]map[string]any, 0, len(*patch.ReminderMinutes))
		for _, minutes := range *patch.ReminderMinutes {
			overrides = append(overrides, map[string]any{"method": "popup", "minutes": minutes})
		}
		payload["reminders"] = map[string]any{"useDefault": false, "overrides": overrides}
	}

	return payload
}
