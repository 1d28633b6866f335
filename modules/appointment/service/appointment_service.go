package service

import (
	"context"

	"appointly/core/errors"
	"appointly/core/logger"
	"appointly/modules/appointment/dto"
	"appointly/modules/appointment/entity"
	"appointly/modules/appointment/repository"
	calendarDto "appointly/modules/calendar/dto"
	calendarService "appointly/modules/calendar/service"

	"github.com/google/uuid"
)

type AppointmentService interface {
	Create(ctx context.Context, userID uuid.UUID, req *dto.CreateAppointmentRequest) (*dto.AppointmentResponse, *errors.AppError)
	Get(ctx context.Context, userID uuid.UUID, id uuid.UUID) (*entity.Appointment, *errors.AppError)
	List(ctx context.Context, userID uuid.UUID) ([]entity.Appointment, *errors.AppError)
	Update(ctx context.Context, userID uuid.UUID, id uuid.UUID, req *dto.UpdateAppointmentRequest) (*dto.AppointmentResponse, *errors.AppError)
	Cancel(ctx context.Context, userID uuid.UUID, id uuid.UUID) (*dto.AppointmentResponse, *errors.AppError)
}

type appointmentService struct {
	repo repository.AppointmentRepository
	sync calendarService.SyncService
}

func NewAppointmentService(repo repository.AppointmentRepository, sync calendarService.SyncService) AppointmentService {
	return &appointmentService{repo: repo, sync: sync}
}

func (s *appointmentService) Create(ctx context.Context, userID uuid.UUID, req *dto.CreateAppointmentRequest) (*dto.AppointmentResponse, *errors.AppError) {
	if req.Title == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "title is required", nil)
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() || !req.EndTime.After(req.StartTime) {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "end_time must be after start_time", nil)
	}
	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	appt := &entity.Appointment{
		UserID:          userID,
		Title:           req.Title,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Timezone:        timezone,
		Status:          entity.StatusConfirmed,
		Attendees:       entity.AttendeeList(req.Attendees),
		ReminderMinutes: entity.ReminderList(req.ReminderMinutes),
	}
	if req.Description != "" {
		appt.Description = &req.Description
	}
	if req.Location != "" {
		appt.Location = &req.Location
	}
	if req.MeetingURL != "" {
		appt.MeetingURL = &req.MeetingURL
	}

	created, err := s.repo.Create(ctx, appt)
	if err != nil {
		logger.Error("AppointmentService:Create:Error", "error", err, "user_id", userID)
		return nil, errors.NewAppError(errors.ErrCreateFailed, "failed to create appointment", err)
	}
	logger.Info("AppointmentService:Create:Success", "appointment_id", created.ID, "user_id", userID)

	// Push to all connected calendars. Booking never fails on sync failure;
	// the per-provider outcomes ride along in the response.
	summary := s.sync.SyncAppointment(ctx, created.ID, nil)

	// The sync pass may have written external event ids onto the row.
	if fresh, err := s.repo.GetByID(ctx, created.ID); err == nil && fresh != nil {
		created = fresh
	}
	return &dto.AppointmentResponse{Appointment: created, Sync: summary}, nil
}

func (s *appointmentService) Get(ctx context.Context, userID uuid.UUID, id uuid.UUID) (*entity.Appointment, *errors.AppError) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load appointment", err)
	}
	if appt == nil || appt.UserID != userID {
		return nil, errors.NewAppError(errors.ErrNotFound, "appointment not found", nil)
	}
	return appt, nil
}

func (s *appointmentService) List(ctx context.Context, userID uuid.UUID) ([]entity.Appointment, *errors.AppError) {
	appointments, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to list appointments", err)
	}
	return appointments, nil
}

func (s *appointmentService) Update(ctx context.Context, userID uuid.UUID, id uuid.UUID, req *dto.UpdateAppointmentRequest) (*dto.AppointmentResponse, *errors.AppError) {
	appt, appErr := s.Get(ctx, userID, id)
	if appErr != nil {
		return nil, appErr
	}
	if appt.Status == entity.StatusCancelled {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "cancelled appointments cannot be updated", nil)
	}

	patch := applyUpdate(appt, req)

	if req.StartTime != nil || req.EndTime != nil {
		if !appt.EndTime.After(appt.StartTime) {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "end_time must be after start_time", nil)
		}
	}

	if err := s.repo.Update(ctx, appt); err != nil {
		logger.Error("AppointmentService:Update:Error", "error", err, "appointment_id", id)
		return nil, errors.NewAppError(errors.ErrUpdateFailed, "failed to update appointment", err)
	}

	var summary *calendarDto.SyncSummary
	if !patch.IsEmpty() {
		summary = s.sync.SyncAppointment(ctx, appt.ID, patch)
		if fresh, err := s.repo.GetByID(ctx, appt.ID); err == nil && fresh != nil {
			appt = fresh
		}
	}
	return &dto.AppointmentResponse{Appointment: appt, Sync: summary}, nil
}

func (s *appointmentService) Cancel(ctx context.Context, userID uuid.UUID, id uuid.UUID) (*dto.AppointmentResponse, *errors.AppError) {
	appt, appErr := s.Get(ctx, userID, id)
	if appErr != nil {
		return nil, appErr
	}
	if appt.Status == entity.StatusCancelled {
		return &dto.AppointmentResponse{Appointment: appt}, nil
	}

	// Remove provider copies before flipping the status so the coordinator
	// still sees the external event ids.
	summary := s.sync.DeleteAppointmentFromCalendars(ctx, appt.ID)

	if err := s.repo.UpdateStatus(ctx, id, entity.StatusCancelled); err != nil {
		logger.Error("AppointmentService:Cancel:Error", "error", err, "appointment_id", id)
		return nil, errors.NewAppError(errors.ErrUpdateFailed, "failed to cancel appointment", err)
	}
	appt.Status = entity.StatusCancelled
	logger.Info("AppointmentService:Cancel:Success", "appointment_id", id, "user_id", userID)

	if fresh, err := s.repo.GetByID(ctx, id); err == nil && fresh != nil {
		appt = fresh
	}
	return &dto.AppointmentResponse{Appointment: appt, Sync: summary}, nil
}

// applyUpdate copies the request's set fields onto the appointment and builds
// the matching calendar patch, so providers only receive what changed.
func applyUpdate(appt *entity.Appointment, req *dto.UpdateAppointmentRequest) *calendarDto.EventPatch {
	patch := &calendarDto.EventPatch{}

	if req.Title != nil && *req.Title != appt.Title {
		appt.Title = *req.Title
		patch.Title = req.Title
	}
	if req.Description != nil && *req.Description != derefString(appt.Description) {
		appt.Description = req.Description
		patch.Description = req.Description
	}
	if req.Location != nil && *req.Location != derefString(appt.Location) {
		appt.Location = req.Location
		patch.Location = req.Location
	}
	if req.MeetingURL != nil && *req.MeetingURL != derefString(appt.MeetingURL) {
		appt.MeetingURL = req.MeetingURL
		patch.MeetingURL = req.MeetingURL
	}
	if req.StartTime != nil && !req.StartTime.Equal(appt.StartTime) {
		appt.StartTime = *req.StartTime
		patch.StartTime = req.StartTime
	}
	if req.EndTime != nil && !req.EndTime.Equal(appt.EndTime) {
		appt.EndTime = *req.EndTime
		patch.EndTime = req.EndTime
	}
	if req.Timezone != nil && *req.Timezone != appt.Timezone {
		appt.Timezone = *req.Timezone
		patch.Timezone = req.Timezone
	}
	if req.Attendees != nil && !attendeesEqual(*req.Attendees, appt.Attendees) {
		appt.Attendees = entity.AttendeeList(*req.Attendees)
		converted := make([]calendarDto.Attendee, 0, len(*req.Attendees))
		for _, a := range *req.Attendees {
			converted = append(converted, calendarDto.Attendee{Email: a.Email, Name: a.Name})
		}
		patch.Attendees = &converted
	}
	if req.ReminderMinutes != nil && !remindersEqual(*req.ReminderMinutes, appt.ReminderMinutes) {
		appt.ReminderMinutes = entity.ReminderList(*req.ReminderMinutes)
		patch.ReminderMinutes = req.ReminderMinutes
	}
	return patch
}

func remindersEqual(a []int, b entity.ReminderList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func attendeesEqual(a []entity.Attendee, b entity.AttendeeList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
