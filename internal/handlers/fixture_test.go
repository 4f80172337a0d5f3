package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/teamz-workspace/apiserver/config"
	"github.com/teamz-workspace/apiserver/internal/mq"
	"github.com/teamz-workspace/apiserver/internal/notify"
	"github.com/teamz-workspace/apiserver/internal/services"
	"github.com/teamz-workspace/apiserver/internal/store"
	"github.com/teamz-workspace/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

type memPrincipals struct {
	mu   sync.Mutex
	rows map[uuid.UUID]types.Principal
}

func (m *memPrincipals) GetByID(_ context.Context, id uuid.UUID) (types.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[id]; ok {
		return p, nil
	}
	return types.Principal{}, store.ErrNotFound
}

func (m *memPrincipals) GetByEmail(_ context.Context, email string) (types.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return types.Principal{}, store.ErrNotFound
}

func (m *memPrincipals) Create(_ context.Context, p types.Principal) (types.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.rows[p.ID] = p
	return p, nil
}

type memSessions struct {
	mu   sync.Mutex
	rows map[uuid.UUID]types.Session
}

func (m *memSessions) Create(_ context.Context, userID uuid.UUID, ttl time.Duration) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := types.Session{ID: uuid.New(), UserID: userID, CreatedAt: time.Now()}
	s.ExpiresAt = s.CreatedAt.Add(ttl)
	m.rows[s.ID] = s
	return s, nil
}

func (m *memSessions) GetByID(_ context.Context, id uuid.UUID) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rows[id]; ok {
		return s, nil
	}
	return types.Session{}, store.ErrNotFound
}

func (m *memSessions) Revoke(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rows[id]; ok && s.RevokedAt == nil {
		now := time.Now()
		s.RevokedAt = &now
		m.rows[id] = s
	}
	return nil
}

func (m *memSessions) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, s := range m.rows {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			m.rows[id] = s
		}
	}
	return nil
}

type memProfiles struct {
	mu   sync.Mutex
	rows map[uuid.UUID]types.Profile
}

func (m *memProfiles) put(p types.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = p
}

func (m *memProfiles) GetByID(_ context.Context, id uuid.UUID) (types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[id]; ok {
		return p, nil
	}
	return types.Profile{}, store.ErrNotFound
}

func (m *memProfiles) List(_ context.Context, offset, limit int) ([]types.Profile, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]types.Profile, 0, len(m.rows))
	for _, p := range m.rows {
		all = append(all, p)
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *memProfiles) Patch(_ context.Context, id uuid.UUID, patch types.ProfilePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	if patch.FullName != nil {
		p.FullName = *patch.FullName
	}
	if patch.Department != nil {
		p.Department = *patch.Department
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.UpiID != nil {
		p.UpiID = *patch.UpiID
	}
	if patch.AvatarURL != nil {
		p.AvatarURL = *patch.AvatarURL
	}
	if patch.Bio != nil {
		p.Bio = *patch.Bio
	}
	if patch.Skills != nil {
		p.Skills = patch.Skills
	}
	m.rows[id] = p
	return nil
}

func (m *memProfiles) SetVerified(_ context.Context, id uuid.UUID, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Verified = verified
	m.rows[id] = p
	return nil
}

func (m *memProfiles) SetRole(_ context.Context, id uuid.UUID, role types.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Role = role
	m.rows[id] = p
	return nil
}

func (m *memProfiles) AddRankPoints(_ context.Context, id uuid.UUID, points int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	p.RankPoints += points
	m.rows[id] = p
	return p.RankPoints, nil
}

type memNotifications struct {
	mu   sync.Mutex
	rows []types.Notification
}

func (m *memNotifications) Insert(_ context.Context, n types.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, n)
	return nil
}

func (m *memNotifications) ListForUser(_ context.Context, userID uuid.UUID) ([]types.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Notification
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memNotifications) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.rows {
		if n.ID == id && n.UserID == userID {
			m.rows[i].Read = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memNotifications) MarkAllRead(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.rows {
		if n.UserID == userID {
			m.rows[i].Read = true
		}
	}
	return nil
}

func (m *memNotifications) Clear(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, n := range m.rows {
		if n.UserID != userID {
			kept = append(kept, n)
		}
	}
	m.rows = kept
	return nil
}

func (m *memNotifications) UnreadCount(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.rows {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

type memPosts struct {
	mu   sync.Mutex
	rows map[uuid.UUID]types.Post
}

func (m *memPosts) Create(_ context.Context, p types.Post) (types.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.rows[p.ID] = p
	return p, nil
}

func (m *memPosts) GetByID(_ context.Context, id uuid.UUID) (types.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[id]; ok {
		return p, nil
	}
	return types.Post{}, store.ErrNotFound
}

func (m *memPosts) List(_ context.Context, offset, limit int) ([]types.Post, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]types.Post, 0, len(m.rows))
	for _, p := range m.rows {
		all = append(all, p)
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *memPosts) Update(_ context.Context, p types.Post) (types.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; !ok {
		return types.Post{}, store.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	m.rows[p.ID] = p
	return p, nil
}

func (m *memPosts) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memPublisher struct {
	mu       sync.Mutex
	messages []mq.Message
}

func (m *memPublisher) Publish(_ context.Context, _ string, msg mq.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return uuid.NewString(), nil
}

// apiFixture wires the handlers the way the server does, over in-memory
// repositories instead of Postgres.
type apiFixture struct {
	router     chi.Router
	guard      *Guard
	sessions   *services.SessionService
	principals *memPrincipals
	profiles   *memProfiles
	hub        *notify.Hub
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zerolog.Nop()

	principals := &memPrincipals{rows: make(map[uuid.UUID]types.Principal)}
	sessions := &memSessions{rows: make(map[uuid.UUID]types.Session)}
	profiles := &memProfiles{rows: make(map[uuid.UUID]types.Profile)}
	publisher := &memPublisher{}
	hub := notify.NewHub(logger)

	profileSvc := services.NewProfileService(profiles, logger)
	sessionSvc := services.NewSessionService(
		principals,
		sessions,
		profileSvc,
		publisher,
		config.JWTConfig{Secret: "test-secret", TokenTTL: time.Hour},
		config.GuardConfig{ProfileWaitAttempts: 2, ProfileWaitInterval: 5 * time.Millisecond},
		logger,
	)
	guard := NewGuard(sessionSvc, logger)
	oauthSvc := services.NewOAuthService(config.OAuthConfig{}, logger)
	notificationSvc := services.NewNotificationService(&memNotifications{}, publisher, logger)
	postSvc := services.NewPostService(&memPosts{rows: make(map[uuid.UUID]types.Post)})

	authHandler := NewAuthHandler(sessionSvc, oauthSvc, hub, logger)
	profileHandler := NewProfileHandler(profileSvc, sessionSvc, notificationSvc, logger)
	notificationHandler := NewNotificationHandler(notificationSvc, hub, logger)
	postHandler := NewPostHandler(postSvc, logger)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authHandler, guard)
	})
	r.Route("/profiles", func(r chi.Router) {
		ProfileRouter(r, profileHandler, guard)
	})
	r.Route("/notifications", func(r chi.Router) {
		NotificationRouter(r, notificationHandler, guard)
	})
	r.Route("/posts", func(r chi.Router) {
		PostRouter(r, postHandler, guard)
	})

	return &apiFixture{
		router:     r,
		guard:      guard,
		sessions:   sessionSvc,
		principals: principals,
		profiles:   profiles,
		hub:        hub,
	}
}

// seedMember creates a principal with a password and a profile row, and
// returns a bearer token from a real login.
func (f *apiFixture) seedMember(t *testing.T, email string, role types.Role, verified bool) (types.Principal, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("workspace-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	principal, err := f.principals.Create(context.Background(), types.Principal{
		Email:        email,
		Provider:     types.ProviderPassword,
		PasswordHash: string(hash),
	})
	require.NoError(t, err)
	f.profiles.put(types.Profile{
		ID:       principal.ID,
		FullName: "Member " + email,
		Role:     role,
		Verified: verified,
	})

	result, err := f.sessions.Login(context.Background(), email, "workspace-pass")
	require.NoError(t, err)
	return principal, result.Token
}

func (f *apiFixture) do(t *testing.T, method, target, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
