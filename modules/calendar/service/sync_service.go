package service

import (
	"context"
	"sync"
	"time"

	"appointly/core/logger"
	apptEntity "appointly/modules/appointment/entity"
	apptRepository "appointly/modules/appointment/repository"
	"appointly/modules/calendar/dto"
	calEntity "appointly/modules/calendar/entity"
	"appointly/modules/calendar/provider"
	"appointly/modules/calendar/repository"

	"github.com/google/uuid"
)

// SyncService pushes appointment mutations out to every calendar provider the
// owning user has connected. It is best-effort and partial-success-tolerant:
// a booking must never fail just because one provider is unreachable, so no
// provider outcome is ever surfaced as an error to the caller.
type SyncService interface {
	// SyncAppointment creates or updates the appointment's event at each
	// connected provider. The patch carries the fields that changed; a nil
	// patch means "send everything" (used on create).
	SyncAppointment(ctx context.Context, appointmentID uuid.UUID, patch *dto.EventPatch) *dto.SyncSummary
	// DeleteAppointmentFromCalendars removes the appointment's events from
	// every provider holding one, clearing the stored back-reference on
	// success.
	DeleteAppointmentFromCalendars(ctx context.Context, appointmentID uuid.UUID) *dto.SyncSummary
}

type syncService struct {
	calRepo   repository.CalendarRepository
	apptRepo  apptRepository.AppointmentRepository
	conns     ConnectionService
	providers *provider.Registry
}

func NewSyncService(
	calRepo repository.CalendarRepository,
	apptRepo apptRepository.AppointmentRepository,
	conns ConnectionService,
	providers *provider.Registry,
) SyncService {
	return &syncService{
		calRepo:   calRepo,
		apptRepo:  apptRepo,
		conns:     conns,
		providers: providers,
	}
}

func (s *syncService) SyncAppointment(ctx context.Context, appointmentID uuid.UUID, patch *dto.EventPatch) *dto.SyncSummary {
	appt, err := s.apptRepo.GetByID(ctx, appointmentID)
	if err != nil || appt == nil {
		logger.Error("SyncService:SyncAppointment:AppointmentNotFound", "appointment_id", appointmentID, "error", err)
		return s.allFailed("appointment not found")
	}

	connections, err := s.calRepo.GetActiveConnectionsByUserID(ctx, appt.UserID)
	if err != nil {
		logger.Error("SyncService:SyncAppointment:GetConnections:Error", "error", err, "user_id", appt.UserID)
		return s.allFailed("failed to load calendar connections")
	}
	if len(connections) == 0 {
		return &dto.SyncSummary{}
	}

	// One event DTO for the whole pass: both providers receive the same
	// title, times and attendee data.
	event := buildCalendarEvent(appt)
	if patch == nil {
		patch = dto.FullPatch(event)
	}

	summary := &dto.SyncSummary{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	// The providers share no mutable state, so they are synced concurrently
	// rather than paying both latencies back to back.
	for i := range connections {
		conn := connections[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := s.syncOne(ctx, appt, &conn, event, patch)
			if result == nil {
				return
			}
			mu.Lock()
			summary.Set(conn.Provider, result)
			mu.Unlock()
		}()
	}
	wg.Wait()

	logger.Info("SyncService:SyncAppointment:Done",
		"appointment_id", appointmentID,
		"google", summary.Google != nil && summary.Google.Success,
		"microsoft", summary.Microsoft != nil && summary.Microsoft.Success,
	)
	return summary
}

// syncOne runs one provider's step. A nil result means the provider was
// skipped (no usable token); any failure inside the step is absorbed into the
// SyncResult so the other provider's pass is unaffected.
func (s *syncService) syncOne(ctx context.Context, appt *apptEntity.Appointment, conn *calEntity.CalendarConnection, event *dto.CalendarEvent, patch *dto.EventPatch) (result *dto.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("SyncService:syncOne:Panic", "provider", conn.Provider, "panic", r)
			result = &dto.SyncResult{Success: false, Error: "unexpected error during calendar sync"}
		}
	}()

	accessToken, err := s.conns.GetValidAccessToken(ctx, conn.ID)
	if err != nil || accessToken == "" {
		// The connection's own state already reflects the failure; skip
		// silently for this pass.
		return nil
	}

	adapter, err := s.providers.ForProvider(conn.Provider)
	if err != nil {
		return &dto.SyncResult{Success: false, Error: err.Error()}
	}

	externalID := appt.ExternalEventID(conn.Provider)
	if externalID != nil && *externalID != "" {
		// The stored id is trusted as-is; it is never re-derived.
		res := adapter.UpdateEvent(ctx, accessToken, *externalID, patch, conn.CalendarID)
		if res.Success {
			s.touchLastSync(ctx, conn.ID)
		}
		return &res
	}

	res := adapter.CreateEvent(ctx, accessToken, event, conn.CalendarID)
	if res.Success {
		// Persist immediately so a second sync for the same appointment
		// becomes an update, not a duplicate create.
		if err := s.apptRepo.SetExternalEventID(ctx, appt.ID, conn.Provider, res.ExternalID); err != nil {
			logger.Error("SyncService:syncOne:SetExternalEventID:Error", "error", err, "appointment_id", appt.ID, "provider", conn.Provider)
		}
		s.touchLastSync(ctx, conn.ID)
	}
	return &res
}

func (s *syncService) DeleteAppointmentFromCalendars(ctx context.Context, appointmentID uuid.UUID) *dto.SyncSummary {
	appt, err := s.apptRepo.GetByID(ctx, appointmentID)
	if err != nil || appt == nil {
		logger.Error("SyncService:DeleteAppointment:AppointmentNotFound", "appointment_id", appointmentID, "error", err)
		return s.allFailed("appointment not found")
	}

	connections, err := s.calRepo.GetActiveConnectionsByUserID(ctx, appt.UserID)
	if err != nil {
		logger.Error("SyncService:DeleteAppointment:GetConnections:Error", "error", err, "user_id", appt.UserID)
		return s.allFailed("failed to load calendar connections")
	}

	summary := &dto.SyncSummary{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := range connections {
		conn := connections[i]
		externalID := appt.ExternalEventID(conn.Provider)
		if externalID == nil || *externalID == "" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := s.deleteOne(ctx, appt, &conn, *externalID)
			if result == nil {
				return
			}
			mu.Lock()
			summary.Set(conn.Provider, result)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return summary
}

func (s *syncService) deleteOne(ctx context.Context, appt *apptEntity.Appointment, conn *calEntity.CalendarConnection, externalID string) (result *dto.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("SyncService:deleteOne:Panic", "provider", conn.Provider, "panic", r)
			result = &dto.SyncResult{Success: false, Error: "unexpected error during calendar sync"}
		}
	}()

	accessToken, err := s.conns.GetValidAccessToken(ctx, conn.ID)
	if err != nil || accessToken == "" {
		return nil
	}

	adapter, err := s.providers.ForProvider(conn.Provider)
	if err != nil {
		return &dto.SyncResult{Success: false, Error: err.Error()}
	}

	res := adapter.DeleteEvent(ctx, accessToken, externalID, conn.CalendarID)
	if res.Success {
		// Clear the back-reference so a resurrected appointment creates a
		// fresh event instead of patching a deleted one.
		if err := s.apptRepo.ClearExternalEventID(ctx, appt.ID, conn.Provider); err != nil {
			logger.Error("SyncService:deleteOne:ClearExternalEventID:Error", "error", err, "appointment_id", appt.ID, "provider", conn.Provider)
		}
		s.touchLastSync(ctx, conn.ID)
	}
	return &res
}

func (s *syncService) touchLastSync(ctx context.Context, connectionID uuid.UUID) {
	if err := s.calRepo.UpdateLastSync(ctx, connectionID, time.Now()); err != nil {
		logger.Error("SyncService:touchLastSync:Error", "error", err, "connection_id", connectionID)
	}
}

// allFailed fills every provider slot with the same failure; used when the
// root entity is gone and no provider can be attempted.
func (s *syncService) allFailed(message string) *dto.SyncSummary {
	return &dto.SyncSummary{
		Google:    &dto.SyncResult{Success: false, Error: message},
		Microsoft: &dto.SyncResult{Success: false, Error: message},
	}
}

// buildCalendarEvent maps an appointment to the provider-neutral event DTO.
func buildCalendarEvent(appt *apptEntity.Appointment) *dto.CalendarEvent {
	event := &dto.CalendarEvent{
		Title:     appt.Title,
		StartTime: appt.StartTime,
		EndTime:   appt.EndTime,
		Timezone:  appt.Timezone,
		Status:    string(appt.Status),
	}
	if appt.Description != nil {
		event.Description = *appt.Description
	}
	if appt.Location != nil {
		event.Location = *appt.Location
	}
	if appt.MeetingURL != nil {
		event.MeetingURL = *appt.MeetingURL
	}
	for _, att := range appt.Attendees {
		event.Attendees = append(event.Attendees, dto.Attendee{
			Email: att.Email,
			Name:  att.Name,
		})
	}
	event.ReminderMinutes = []int(appt.ReminderMinutes)
	return event
}
