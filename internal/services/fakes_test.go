package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teamz-workspace/apiserver/internal/mq"
	"github.com/teamz-workspace/apiserver/internal/store"
	"github.com/teamz-workspace/apiserver/types"
)

type fakePrincipals struct {
	mu   sync.Mutex
	rows map[uuid.UUID]types.Principal
}

func newFakePrincipals() *fakePrincipals {
	return &fakePrincipals{rows: make(map[uuid.UUID]types.Principal)}
}

func (f *fakePrincipals) GetByID(_ context.Context, id uuid.UUID) (types.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.rows[id]; ok {
		return p, nil
	}
	return types.Principal{}, store.ErrNotFound
}

func (f *fakePrincipals) GetByEmail(_ context.Context, email string) (types.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return types.Principal{}, store.ErrNotFound
}

func (f *fakePrincipals) Create(_ context.Context, p types.Principal) (types.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	f.rows[p.ID] = p
	return p, nil
}

type fakeSessions struct {
	mu   sync.Mutex
	rows map[uuid.UUID]types.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: make(map[uuid.UUID]types.Session)}
}

func (f *fakeSessions) Create(_ context.Context, userID uuid.UUID, ttl time.Duration) (types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := types.Session{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	s.ExpiresAt = s.CreatedAt.Add(ttl)
	f.rows[s.ID] = s
	return s, nil
}

func (f *fakeSessions) GetByID(_ context.Context, id uuid.UUID) (types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.rows[id]; ok {
		return s, nil
	}
	return types.Session{}, store.ErrNotFound
}

func (f *fakeSessions) Revoke(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.rows[id]; ok && s.RevokedAt == nil {
		now := time.Now()
		s.RevokedAt = &now
		f.rows[id] = s
	}
	return nil
}

func (f *fakeSessions) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for id, s := range f.rows {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			f.rows[id] = s
		}
	}
	return nil
}

// fakeProfiles implements ProfileRepository in memory. An optional gate
// channel lets tests hold a GetByID mid-flight to exercise the cache's
// stale-write guard.
type fakeProfiles struct {
	mu   sync.Mutex
	rows map[uuid.UUID]types.Profile
	err  error
	gate chan struct{}
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: make(map[uuid.UUID]types.Profile)}
}

func (f *fakeProfiles) put(p types.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[p.ID] = p
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (types.Profile, error) {
	f.mu.Lock()
	err := f.err
	p, ok := f.rows[id]
	f.mu.Unlock()
	if gate := f.gateChan(); gate != nil {
		<-gate
	}
	if err != nil {
		return types.Profile{}, err
	}
	if ok {
		return p, nil
	}
	return types.Profile{}, store.ErrNotFound
}

func (f *fakeProfiles) gateChan() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gate
}

func (f *fakeProfiles) List(_ context.Context, offset, limit int) ([]types.Profile, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]types.Profile, 0, len(f.rows))
	for _, p := range f.rows {
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

func (f *fakeProfiles) Patch(_ context.Context, id uuid.UUID, patch types.ProfilePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
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
	f.rows[id] = p
	return nil
}

func (f *fakeProfiles) SetVerified(_ context.Context, id uuid.UUID, verified bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Verified = verified
	f.rows[id] = p
	return nil
}

func (f *fakeProfiles) SetRole(_ context.Context, id uuid.UUID, role types.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Role = role
	f.rows[id] = p
	return nil
}

func (f *fakeProfiles) AddRankPoints(_ context.Context, id uuid.UUID, points int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	p.RankPoints += points
	f.rows[id] = p
	return p.RankPoints, nil
}

type publishedMessage struct {
	channel string
	msg     mq.Message
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, msg mq.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.messages = append(f.messages, publishedMessage{channel: channel, msg: msg})
	return uuid.NewString(), nil
}

func (f *fakePublisher) published(channel string) []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedMessage, 0, len(f.messages))
	for _, m := range f.messages {
		if m.channel == channel {
			out = append(out, m)
		}
	}
	return out
}
