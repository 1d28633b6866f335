package repository

import (
	"context"
	"database/sql"
	"fmt"

	"appointly/core/database"
	"appointly/modules/appointment/entity"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appt *entity.Appointment) (*entity.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]entity.Appointment, error)
	Update(ctx context.Context, appt *entity.Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.AppointmentStatus) error
	SetExternalEventID(ctx context.Context, id uuid.UUID, provider string, externalID string) error
	ClearExternalEventID(ctx context.Context, id uuid.UUID, provider string) error
}

type appointmentRepository struct {
	db database.Database
}

func NewAppointmentRepository(db database.Database) AppointmentRepository {
	return &appointmentRepository{db: db}
}

const appointmentColumns = `
	id, user_id, title, description, location, start_time, end_time, timezone,
	status, attendees, reminder_minutes, meeting_url, google_event_id,
	microsoft_event_id, created_at, updated_at
`

func (r *appointmentRepository) Create(ctx context.Context, appt *entity.Appointment) (*entity.Appointment, error) {
	query := `
		INSERT INTO appointments
			(user_id, title, description, location, start_time, end_time, timezone, status, attendees, reminder_minutes, meeting_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(
		ctx, query,
		appt.UserID, appt.Title, appt.Description, appt.Location,
		appt.StartTime, appt.EndTime, appt.Timezone, appt.Status,
		appt.Attendees, appt.ReminderMinutes, appt.MeetingURL,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (r *appointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	var appt entity.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]entity.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE user_id = $1
		ORDER BY start_time DESC
	`
	var appointments []entity.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, userID); err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appt *entity.Appointment) error {
	query := `
		UPDATE appointments
		SET title = $1, description = $2, location = $3, start_time = $4,
		    end_time = $5, timezone = $6, status = $7, attendees = $8,
		    reminder_minutes = $9, meeting_url = $10, updated_at = NOW()
		WHERE id = $11
	`
	_, err := r.db.ExecContext(ctx, query,
		appt.Title, appt.Description, appt.Location, appt.StartTime,
		appt.EndTime, appt.Timezone, appt.Status, appt.Attendees,
		appt.ReminderMinutes, appt.MeetingURL, appt.ID,
	)
	return err
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.AppointmentStatus) error {
	query := `UPDATE appointments SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func externalIDColumn(provider string) (string, error) {
	switch provider {
	case "google":
		return "google_event_id", nil
	case "microsoft":
		return "microsoft_event_id", nil
	default:
		return "", fmt.Errorf("unknown calendar provider: %q", provider)
	}
}

// SetExternalEventID persists the provider event id back onto the
// appointment so the next sync becomes an update instead of a duplicate
// create.
func (r *appointmentRepository) SetExternalEventID(ctx context.Context, id uuid.UUID, provider string, externalID string) error {
	column, err := externalIDColumn(provider)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE appointments SET %s = $1, updated_at = NOW() WHERE id = $2`, column)
	_, err = r.db.ExecContext(ctx, query, externalID, id)
	return err
}

// ClearExternalEventID nulls the back-reference after the remote event is
// deleted, so a resurrected appointment creates a fresh event instead of
// patching a dead one.
func (r *appointmentRepository) ClearExternalEventID(ctx context.Context, id uuid.UUID, provider string) error {
	column, err := externalIDColumn(provider)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE appointments SET %s = NULL, updated_at = NOW() WHERE id = $1`, column)
	_, err = r.db.ExecContext(ctx, query, id)
	return err
}
