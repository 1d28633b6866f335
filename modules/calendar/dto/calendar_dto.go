package dto

import "time"

// Provider constants
const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"
)

// Event status values shared with the appointment module.
const (
	EventStatusConfirmed = "confirmed"
	EventStatusTentative = "tentative"
	EventStatusCancelled = "cancelled"
)

// ========== Calendar Event DTOs ==========

// Attendee is one participant on a calendar event.
type Attendee struct {
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	Status      string `json:"status,omitempty"`
	IsOrganizer bool   `json:"is_organizer,omitempty"`
}

// CalendarEvent is the wire-format bridge between a local appointment and the
// provider-specific event payloads. It is built fresh for every sync pass and
// never persisted.
type CalendarEvent struct {
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Location        string     `json:"location,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	Timezone        string     `json:"timezone"`
	Attendees       []Attendee `json:"attendees,omitempty"`
	MeetingURL      string     `json:"meeting_url,omitempty"`
	Status          string     `json:"status,omitempty"`
	ReminderMinutes []int      `json:"reminder_minutes,omitempty"`
}

// EventPatch carries only the fields that changed on an appointment. Nil
// fields are left untouched at the provider.
type EventPatch struct {
	Title           *string     `json:"title,omitempty"`
	Description     *string     `json:"description,omitempty"`
	Location        *string     `json:"location,omitempty"`
	StartTime       *time.Time  `json:"start_time,omitempty"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	Timezone        *string     `json:"timezone,omitempty"`
	Attendees       *[]Attendee `json:"attendees,omitempty"`
	MeetingURL      *string     `json:"meeting_url,omitempty"`
	Status          *string     `json:"status,omitempty"`
	ReminderMinutes *[]int      `json:"reminder_minutes,omitempty"`
}

// IsEmpty reports whether the patch carries no changes at all.
func (p *EventPatch) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.Title == nil && p.Description == nil && p.Location == nil &&
		p.StartTime == nil && p.EndTime == nil && p.Timezone == nil &&
		p.Attendees == nil && p.MeetingURL == nil && p.Status == nil &&
		p.ReminderMinutes == nil
}

// FullPatch converts a complete event into a patch touching every field, for
// callers that cannot produce a field-level diff.
func FullPatch(event *CalendarEvent) *EventPatch {
	attendees := event.Attendees
	reminders := event.ReminderMinutes
	return &EventPatch{
		Title:           &event.Title,
		Description:     &event.Description,
		Location:        &event.Location,
		StartTime:       &event.StartTime,
		EndTime:         &event.EndTime,
		Timezone:        &event.Timezone,
		Attendees:       &attendees,
		MeetingURL:      &event.MeetingURL,
		Status:          &event.Status,
		ReminderMinutes: &reminders,
	}
}

// ========== OAuth DTOs ==========

// OAuthTokens is the normalized shape returned by both providers' token
// exchange and refresh calls. RefreshToken may be empty: Google does not
// rotate refresh tokens, so the caller keeps the prior one.
type OAuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
}

// UserInfo identifies the account authenticated at the provider.
type UserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// OAuthURLResponse response with OAuth consent URL
type OAuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// ========== Sync DTOs ==========

// SyncResult is the outcome of one provider-side event operation. Event
// operations never surface transport failures as errors; they land here.
type SyncResult struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"external_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SyncSummary reports the per-provider outcome of one sync pass. A nil slot
// means the provider was not attempted (not connected, or no usable token).
type SyncSummary struct {
	Google    *SyncResult `json:"google,omitempty"`
	Microsoft *SyncResult `json:"microsoft,omitempty"`
}

// Set assigns the slot for a provider.
func (s *SyncSummary) Set(provider string, result *SyncResult) {
	switch provider {
	case ProviderGoogle:
		s.Google = result
	case ProviderMicrosoft:
		s.Microsoft = result
	}
}

// Get returns the slot for a provider.
func (s *SyncSummary) Get(provider string) *SyncResult {
	switch provider {
	case ProviderGoogle:
		return s.Google
	case ProviderMicrosoft:
		return s.Microsoft
	}
	return nil
}

// ========== Connection DTOs ==========

// CalendarConnectionResponse represents a calendar connection
type CalendarConnectionResponse struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"`
	CalendarEmail string `json:"calendar_email"`
	CalendarID    string `json:"calendar_id,omitempty"`
	IsActive      bool   `json:"is_active"`
	ConnectedAt   string `json:"connected_at"`
	LastSyncAt    string `json:"last_sync_at,omitempty"`
}

// CalendarConnectionListResponse represents list of connections
type CalendarConnectionListResponse struct {
	Connections []CalendarConnectionResponse `json:"connections"`
}

// StoreConnectionResult reports the outcome of saving a connection.
type StoreConnectionResult struct {
	Success      bool   `json:"success"`
	ConnectionID string `json:"connection_id,omitempty"`
	Error        string `json:"error,omitempty"`
}
