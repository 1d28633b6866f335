package service

import (
	"context"
	"sync"
	"testing"
	"time"

	coreEntity "appointly/core/entity"
	"appointly/core/errors"
	apptEntity "appointly/modules/appointment/entity"
	"appointly/modules/calendar/dto"
	"appointly/modules/calendar/entity"
	"appointly/modules/calendar/provider"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*apptEntity.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: map[uuid.UUID]*apptEntity.Appointment{}}
}

func (r *fakeAppointmentRepo) Create(ctx context.Context, appt *apptEntity.Appointment) (*apptEntity.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt.ID = uuid.New()
	r.appointments[appt.ID] = appt
	return appt, nil
}

func (r *fakeAppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*apptEntity.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appointments[id], nil
}

func (r *fakeAppointmentRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]apptEntity.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []apptEntity.Appointment
	for _, appt := range r.appointments {
		if appt.UserID == userID {
			out = append(out, *appt)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) Update(ctx context.Context, appt *apptEntity.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments[appt.ID] = appt
	return nil
}

func (r *fakeAppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status apptEntity.AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if appt, ok := r.appointments[id]; ok {
		appt.Status = status
	}
	return nil
}

func (r *fakeAppointmentRepo) SetExternalEventID(ctx context.Context, id uuid.UUID, providerName string, externalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt := r.appointments[id]
	switch providerName {
	case dto.ProviderGoogle:
		appt.GoogleEventID = &externalID
	case dto.ProviderMicrosoft:
		appt.MicrosoftEventID = &externalID
	}
	return nil
}

func (r *fakeAppointmentRepo) ClearExternalEventID(ctx context.Context, id uuid.UUID, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt := r.appointments[id]
	switch providerName {
	case dto.ProviderGoogle:
		appt.GoogleEventID = nil
	case dto.ProviderMicrosoft:
		appt.MicrosoftEventID = nil
	}
	return nil
}

// fakeConnService hands out plaintext tokens keyed by connection id.
type fakeConnService struct {
	tokens map[uuid.UUID]string
}

func (s *fakeConnService) GetValidAccessToken(ctx context.Context, connectionID uuid.UUID) (string, error) {
	return s.tokens[connectionID], nil
}

func (s *fakeConnService) StoreConnection(ctx context.Context, userID uuid.UUID, providerName string, tokens *dto.OAuthTokens, email, calendarID string) dto.StoreConnectionResult {
	return dto.StoreConnectionResult{Success: true}
}

func (s *fakeConnService) DisconnectCalendar(ctx context.Context, userID uuid.UUID, connectionID uuid.UUID) *errors.AppError {
	return nil
}

func (s *fakeConnService) GetConnections(ctx context.Context, userID uuid.UUID) ([]dto.CalendarConnectionResponse, error) {
	return nil, nil
}

func (s *fakeConnService) ListEvents(ctx context.Context, userID uuid.UUID, providerName, timeMin, timeMax string, max int) ([]dto.CalendarEvent, *errors.AppError) {
	return nil, nil
}

type syncFixture struct {
	svc       SyncService
	calRepo   *fakeCalendarRepo
	apptRepo  *fakeAppointmentRepo
	conns     *fakeConnService
	google    *stubProvider
	microsoft *stubProvider
	userID    uuid.UUID
}

func newSyncFixture() *syncFixture {
	f := &syncFixture{
		calRepo:   newFakeCalendarRepo(),
		apptRepo:  newFakeAppointmentRepo(),
		conns:     &fakeConnService{tokens: map[uuid.UUID]string{}},
		google:    &stubProvider{name: dto.ProviderGoogle},
		microsoft: &stubProvider{name: dto.ProviderMicrosoft},
		userID:    uuid.New(),
	}
	f.svc = NewSyncService(f.calRepo, f.apptRepo, f.conns, provider.NewRegistry(f.google, f.microsoft))
	return f
}

func (f *syncFixture) addConnection(providerName, token string) *entity.CalendarConnection {
	conn := &entity.CalendarConnection{
		BaseEntity: coreEntity.BaseEntity{ID: uuid.New()},
		UserID:     f.userID,
		Provider:   providerName,
		IsActive:   true,
	}
	f.calRepo.add(conn)
	if token != "" {
		f.conns.tokens[conn.ID] = token
	}
	return conn
}

func (f *syncFixture) addAppointment() *apptEntity.Appointment {
	start := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	appt := &apptEntity.Appointment{
		BaseEntity:      coreEntity.BaseEntity{ID: uuid.New()},
		UserID:          f.userID,
		Title:           "Design review",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		Timezone:        "UTC",
		Status:          apptEntity.StatusConfirmed,
		Attendees:       apptEntity.AttendeeList{{Email: "guest@example.com", Name: "Guest"}},
		ReminderMinutes: apptEntity.ReminderList{30, 10},
	}
	f.apptRepo.appointments[appt.ID] = appt
	return appt
}

func TestSyncAppointmentCreatesOnBothProviders(t *testing.T) {
	f := newSyncFixture()
	f.addConnection(dto.ProviderGoogle, "g-token")
	f.addConnection(dto.ProviderMicrosoft, "m-token")
	f.google.createResult = dto.SyncResult{Success: true, ExternalID: "gev-1"}
	f.microsoft.createResult = dto.SyncResult{Success: true, ExternalID: "mev-1"}
	appt := f.addAppointment()

	summary := f.svc.SyncAppointment(context.Background(), appt.ID, nil)

	require.NotNil(t, summary.Google)
	require.NotNil(t, summary.Microsoft)
	assert.True(t, summary.Google.Success)
	assert.True(t, summary.Microsoft.Success)

	// External ids persisted immediately, so the next pass updates.
	stored := f.apptRepo.appointments[appt.ID]
	require.NotNil(t, stored.GoogleEventID)
	assert.Equal(t, "gev-1", *stored.GoogleEventID)
	require.NotNil(t, stored.MicrosoftEventID)
	assert.Equal(t, "mev-1", *stored.MicrosoftEventID)

	require.Len(t, f.google.createCalls, 1)
	assert.Equal(t, "Design review", f.google.createCalls[0].Title)
	assert.Equal(t, []int{30, 10}, f.google.createCalls[0].ReminderMinutes)
	assert.Empty(t, f.google.updateCalls)
}

func TestSyncAppointmentUpdatesWhenExternalIDExists(t *testing.T) {
	f := newSyncFixture()
	f.addConnection(dto.ProviderGoogle, "g-token")
	f.google.updateResult = dto.SyncResult{Success: true, ExternalID: "gev-1"}
	appt := f.addAppointment()
	gid := "gev-1"
	appt.GoogleEventID = &gid

	title := "Renamed"
	summary := f.svc.SyncAppointment(context.Background(), appt.ID, &dto.EventPatch{Title: &title})

	require.NotNil(t, summary.Google)
	assert.True(t, summary.Google.Success)
	assert.Empty(t, f.google.createCalls)
	require.Len(t, f.google.updateCalls, 1)
	assert.Equal(t, "gev-1", f.google.updateCalls[0])

	// Only the changed field travels.
	require.NotNil(t, f.google.lastPatch)
	assert.Equal(t, "Renamed", *f.google.lastPatch.Title)
	assert.Nil(t, f.google.lastPatch.StartTime)
	assert.Nil(t, f.google.lastPatch.Attendees)
}

func TestSyncAppointmentPartialSuccess(t *testing.T) {
	f := newSyncFixture()
	f.addConnection(dto.ProviderGoogle, "g-token")
	f.addConnection(dto.ProviderMicrosoft, "m-token")
	f.google.createResult = dto.SyncResult{Success: false, Error: "google api error: quota"}
	f.microsoft.createResult = dto.SyncResult{Success: true, ExternalID: "mev-1"}
	appt := f.addAppointment()

	summary := f.svc.SyncAppointment(context.Background(), appt.ID, nil)

	require.NotNil(t, summary.Google)
	assert.False(t, summary.Google.Success)
	assert.Contains(t, summary.Google.Error, "quota")
	require.NotNil(t, summary.Microsoft)
	assert.True(t, summary.Microsoft.Success)

	stored := f.apptRepo.appointments[appt.ID]
	assert.Nil(t, stored.GoogleEventID, "a failed create must not persist an external id")
	require.NotNil(t, stored.MicrosoftEventID)
}

func TestSyncAppointmentMissingAppointmentFailsEverySlot(t *testing.T) {
	f := newSyncFixture()
	summary := f.svc.SyncAppointment(context.Background(), uuid.New(), nil)

	require.NotNil(t, summary.Google)
	require.NotNil(t, summary.Microsoft)
	assert.False(t, summary.Google.Success)
	assert.False(t, summary.Microsoft.Success)
	assert.Equal(t, "appointment not found", summary.Google.Error)
	assert.Equal(t, "appointment not found", summary.Microsoft.Error)
}

func TestSyncAppointmentSkipsConnectionWithoutToken(t *testing.T) {
	f := newSyncFixture()
	f.addConnection(dto.ProviderGoogle, "")
	f.addConnection(dto.ProviderMicrosoft, "m-token")
	f.microsoft.createResult = dto.SyncResult{Success: true, ExternalID: "mev-1"}
	appt := f.addAppointment()

	summary := f.svc.SyncAppointment(context.Background(), appt.ID, nil)

	assert.Nil(t, summary.Google, "a tokenless connection is skipped, not failed")
	require.NotNil(t, summary.Microsoft)
	assert.True(t, summary.Microsoft.Success)
	assert.Empty(t, f.google.createCalls)
}

func TestSyncAppointmentNoConnections(t *testing.T) {
	f := newSyncFixture()
	appt := f.addAppointment()

	summary := f.svc.SyncAppointment(context.Background(), appt.ID, nil)
	assert.Nil(t, summary.Google)
	assert.Nil(t, summary.Microsoft)
}

func TestDeleteAppointmentFromCalendars(t *testing.T) {
	f := newSyncFixture()
	conn := f.addConnection(dto.ProviderGoogle, "g-token")
	f.google.deleteResult = dto.SyncResult{Success: true, ExternalID: "gev-1"}
	appt := f.addAppointment()
	gid := "gev-1"
	appt.GoogleEventID = &gid

	summary := f.svc.DeleteAppointmentFromCalendars(context.Background(), appt.ID)

	require.NotNil(t, summary.Google)
	assert.True(t, summary.Google.Success)
	require.Len(t, f.google.deleteCalls, 1)
	assert.Equal(t, "gev-1", f.google.deleteCalls[0])

	assert.Nil(t, f.apptRepo.appointments[appt.ID].GoogleEventID, "back-reference must be cleared on success")
	_, touched := f.calRepo.lastSync[conn.ID]
	assert.True(t, touched)
}

func TestDeleteAppointmentSkipsProvidersWithoutEventID(t *testing.T) {
	f := newSyncFixture()
	f.addConnection(dto.ProviderGoogle, "g-token")
	f.addConnection(dto.ProviderMicrosoft, "m-token")
	f.microsoft.deleteResult = dto.SyncResult{Success: true, ExternalID: "mev-1"}
	appt := f.addAppointment()
	mid := "mev-1"
	appt.MicrosoftEventID = &mid

	summary := f.svc.DeleteAppointmentFromCalendars(context.Background(), appt.ID)

	assert.Nil(t, summary.Google)
	require.NotNil(t, summary.Microsoft)
	assert.True(t, summary.Microsoft.Success)
	assert.Empty(t, f.google.deleteCalls)
}

func TestDeleteAppointmentFailureKeepsBackReference(t *testing.T) {
	f := newSyncFixture()
	f.addConnection(dto.ProviderGoogle, "g-token")
	f.google.deleteResult = dto.SyncResult{Success: false, Error: "google api error: backend"}
	appt := f.addAppointment()
	gid := "gev-1"
	appt.GoogleEventID = &gid

	summary := f.svc.DeleteAppointmentFromCalendars(context.Background(), appt.ID)

	require.NotNil(t, summary.Google)
	assert.False(t, summary.Google.Success)
	require.NotNil(t, f.apptRepo.appointments[appt.ID].GoogleEventID)
	assert.Equal(t, "gev-1", *f.apptRepo.appointments[appt.ID].GoogleEventID)
}
