package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"appointly/core/entity"

	"github.com/google/uuid"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusTentative AppointmentStatus = "tentative"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Attendee is one participant stored on the appointment row.
type Attendee struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// AttendeeList is stored as a JSONB column.
type AttendeeList []Attendee

func (l AttendeeList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *AttendeeList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported attendee list type %T", src)
	}
	return json.Unmarshal(raw, l)
}

// ReminderList holds minutes-before-start reminder offsets, stored as a
// JSONB column.
type ReminderList []int

func (l ReminderList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *ReminderList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported reminder list type %T", src)
	}
	return json.Unmarshal(raw, l)
}

// Appointment is a booked time slot. GoogleEventID and MicrosoftEventID are
// weak back-references into each provider's event space, set by the sync
// coordinator after the first successful create and trusted as-is afterwards.
type Appointment struct {
	entity.BaseEntity
	UserID           uuid.UUID         `db:"user_id" json:"user_id"`
	Title            string            `db:"title" json:"title"`
	Description      *string           `db:"description" json:"description,omitempty"`
	Location         *string           `db:"location" json:"location,omitempty"`
	StartTime        time.Time         `db:"start_time" json:"start_time"`
	EndTime          time.Time         `db:"end_time" json:"end_time"`
	Timezone         string            `db:"timezone" json:"timezone"`
	Status           AppointmentStatus `db:"status" json:"status"`
	Attendees        AttendeeList      `db:"attendees" json:"attendees,omitempty"`
	ReminderMinutes  ReminderList      `db:"reminder_minutes" json:"reminder_minutes,omitempty"`
	MeetingURL       *string           `db:"meeting_url" json:"meeting_url,omitempty"`
	GoogleEventID    *string           `db:"google_event_id" json:"google_event_id,omitempty"`
	MicrosoftEventID *string           `db:"microsoft_event_id" json:"microsoft_event_id,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// ExternalEventID returns the stored event id for a provider, or nil.
func (a *Appointment) ExternalEventID(provider string) *string {
	switch provider {
	case "google":
		return a.GoogleEventID
	case "microsoft":
		return a.MicrosoftEventID
	}
	return nil
}
