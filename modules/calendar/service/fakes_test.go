package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"appointly/modules/calendar/dto"
	"appointly/modules/calendar/entity"

	"github.com/google/uuid"
)

// fakeVault prefixes plaintexts so tests can tell ciphertexts apart.
type fakeVault struct{}

func (v *fakeVault) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (v *fakeVault) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "enc:") {
		return "", fmt.Errorf("malformed ciphertext")
	}
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

type tokenUpdate struct {
	id              uuid.UUID
	accessToken     string
	refreshToken    *string
	expiresAt       time.Time
	expectedVersion int
}

type fakeCalendarRepo struct {
	mu sync.Mutex

	conns map[uuid.UUID]*entity.CalendarConnection
	// popped before the conns map on GetConnectionByID, for race scenarios
	getByIDQueue []*entity.CalendarConnection

	updateTokensResult bool
	tokenUpdates       []tokenUpdate
	markedInactive     []uuid.UUID
	lastSync           map[uuid.UUID]time.Time
	updatedConns       []*entity.CalendarConnection
	deletedIDs         []uuid.UUID
}

func newFakeCalendarRepo() *fakeCalendarRepo {
	return &fakeCalendarRepo{
		conns:              map[uuid.UUID]*entity.CalendarConnection{},
		updateTokensResult: true,
		lastSync:           map[uuid.UUID]time.Time{},
	}
}

func (r *fakeCalendarRepo) add(conn *entity.CalendarConnection) {
	r.conns[conn.ID] = conn
}

func (r *fakeCalendarRepo) CreateConnection(ctx context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn.ID = uuid.New()
	conn.CreatedAt = time.Now()
	conn.UpdatedAt = conn.CreatedAt
	r.conns[conn.ID] = conn
	return conn, nil
}

func (r *fakeCalendarRepo) GetConnectionByID(ctx context.Context, id uuid.UUID) (*entity.CalendarConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.getByIDQueue) > 0 {
		next := r.getByIDQueue[0]
		r.getByIDQueue = r.getByIDQueue[1:]
		return next, nil
	}
	return r.conns[id], nil
}

func (r *fakeCalendarRepo) GetConnectionByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*entity.CalendarConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		if conn.UserID == userID && conn.Provider == provider {
			return conn, nil
		}
	}
	return nil, nil
}

func (r *fakeCalendarRepo) GetActiveConnectionsByUserID(ctx context.Context, userID uuid.UUID) ([]entity.CalendarConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.CalendarConnection
	for _, conn := range r.conns {
		if conn.UserID == userID && conn.IsActive {
			out = append(out, *conn)
		}
	}
	return out, nil
}

func (r *fakeCalendarRepo) UpdateConnection(ctx context.Context, conn *entity.CalendarConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updatedConns = append(r.updatedConns, conn)
	r.conns[conn.ID] = conn
	return nil
}

func (r *fakeCalendarRepo) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt time.Time, expectedVersion int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenUpdates = append(r.tokenUpdates, tokenUpdate{
		id:              id,
		accessToken:     accessToken,
		refreshToken:    refreshToken,
		expiresAt:       expiresAt,
		expectedVersion: expectedVersion,
	})
	return r.updateTokensResult, nil
}

func (r *fakeCalendarRepo) MarkInactive(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markedInactive = append(r.markedInactive, id)
	if conn, ok := r.conns[id]; ok {
		conn.IsActive = false
	}
	return nil
}

func (r *fakeCalendarRepo) UpdateLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSync[id] = at
	return nil
}

func (r *fakeCalendarRepo) DeleteConnection(ctx context.Context, userID uuid.UUID, connectionID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[connectionID]
	if !ok || conn.UserID != userID {
		return 0, nil
	}
	delete(r.conns, connectionID)
	r.deletedIDs = append(r.deletedIDs, connectionID)
	return 1, nil
}

// stubProvider satisfies provider.CalendarProvider with canned behavior.
type stubProvider struct {
	mu sync.Mutex

	name        string
	refreshFunc func(ctx context.Context, refreshToken string) (*dto.OAuthTokens, error)

	createResult dto.SyncResult
	updateResult dto.SyncResult
	deleteResult dto.SyncResult

	refreshCalls []string
	createCalls  []*dto.CalendarEvent
	updateCalls  []string
	deleteCalls  []string
	lastPatch    *dto.EventPatch
	lastToken    string
}

func (p *stubProvider) Name() string                 { return p.name }
func (p *stubProvider) GetAuthURL(state string) string { return "https://auth.example/" + p.name + "?state=" + state }

func (p *stubProvider) ExchangeCode(ctx context.Context, code string) (*dto.OAuthTokens, error) {
	return &dto.OAuthTokens{AccessToken: "at-" + code, RefreshToken: "rt-" + code, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (p *stubProvider) RefreshToken(ctx context.Context, refreshToken string) (*dto.OAuthTokens, error) {
	p.mu.Lock()
	p.refreshCalls = append(p.refreshCalls, refreshToken)
	p.mu.Unlock()
	if p.refreshFunc != nil {
		return p.refreshFunc(ctx, refreshToken)
	}
	return &dto.OAuthTokens{AccessToken: "refreshed", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (p *stubProvider) GetUserInfo(ctx context.Context, accessToken string) (*dto.UserInfo, error) {
	return &dto.UserInfo{Email: p.name + "@example.com"}, nil
}

func (p *stubProvider) CreateEvent(ctx context.Context, accessToken string, event *dto.CalendarEvent, calendarID string) dto.SyncResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls = append(p.createCalls, event)
	p.lastToken = accessToken
	return p.createResult
}

func (p *stubProvider) UpdateEvent(ctx context.Context, accessToken string, eventID string, patch *dto.EventPatch, calendarID string) dto.SyncResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateCalls = append(p.updateCalls, eventID)
	p.lastPatch = patch
	p.lastToken = accessToken
	return p.updateResult
}

func (p *stubProvider) DeleteEvent(ctx context.Context, accessToken string, eventID string, calendarID string) dto.SyncResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteCalls = append(p.deleteCalls, eventID)
	return p.deleteResult
}

func (p *stubProvider) GetEvents(ctx context.Context, accessToken string, timeMin, timeMax string, max int) ([]dto.CalendarEvent, error) {
	return nil, nil
}

type reconnectCall struct {
	userID   uuid.UUID
	provider string
	email    string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []reconnectCall
}

func (n *fakeNotifier) NotifyReconnect(ctx context.Context, userID uuid.UUID, provider string, email string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, reconnectCall{userID: userID, provider: provider, email: email})
}
