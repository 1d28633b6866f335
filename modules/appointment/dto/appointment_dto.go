package dto

import (
	"time"

	"appointly/modules/appointment/entity"
	calendarDto "appointly/modules/calendar/dto"
)

// CreateAppointmentRequest is the booking payload.
type CreateAppointmentRequest struct {
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Location        string            `json:"location,omitempty"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	Timezone        string            `json:"timezone,omitempty"`
	Attendees       []entity.Attendee `json:"attendees,omitempty"`
	ReminderMinutes []int             `json:"reminder_minutes,omitempty"`
	MeetingURL      string            `json:"meeting_url,omitempty"`
}

// UpdateAppointmentRequest carries only the fields the caller wants changed.
type UpdateAppointmentRequest struct {
	Title           *string            `json:"title,omitempty"`
	Description     *string            `json:"description,omitempty"`
	Location        *string            `json:"location,omitempty"`
	StartTime       *time.Time         `json:"start_time,omitempty"`
	EndTime         *time.Time         `json:"end_time,omitempty"`
	Timezone        *string            `json:"timezone,omitempty"`
	Attendees       *[]entity.Attendee `json:"attendees,omitempty"`
	ReminderMinutes *[]int             `json:"reminder_minutes,omitempty"`
	MeetingURL      *string            `json:"meeting_url,omitempty"`
}

// AppointmentResponse returns the stored appointment along with the outcome
// of pushing it to each connected calendar.
type AppointmentResponse struct {
	Appointment *entity.Appointment      `json:"appointment"`
	Sync        *calendarDto.SyncSummary `json:"sync,omitempty"`
}

// AppointmentListResponse represents the user's appointments.
type AppointmentListResponse struct {
	Appointments []entity.Appointment `json:"appointments"`
}
