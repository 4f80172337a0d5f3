package services

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamz-workspace/apiserver/internal/mq"
	"github.com/teamz-workspace/apiserver/internal/store"
	"github.com/teamz-workspace/apiserver/types"
)

type fakeNotifications struct {
	mu   sync.Mutex
	rows []types.Notification
}

func (f *fakeNotifications) Insert(_ context.Context, n types.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, n)
	return nil
}

func (f *fakeNotifications) ListForUser(_ context.Context, userID uuid.UUID) ([]types.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Notification
	for _, n := range f.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.rows {
		if n.ID == id && n.UserID == userID {
			f.rows[i].Read = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.rows {
		if n.UserID == userID {
			f.rows[i].Read = true
		}
	}
	return nil
}

func (f *fakeNotifications) Clear(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, n := range f.rows {
		if n.UserID != userID {
			kept = append(kept, n)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeNotifications) UnreadCount(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.rows {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func newNotificationFixture() (*NotificationService, *fakeNotifications, *fakePublisher) {
	repo := &fakeNotifications{}
	publisher := &fakePublisher{}
	return NewNotificationService(repo, publisher, zerolog.Nop()), repo, publisher
}

func TestNotificationAddAssignsIdentity(t *testing.T) {
	svc, _, publisher := newNotificationFixture()
	userID := uuid.New()

	n, err := svc.Add(context.Background(), userID, NotificationDraft{
		Title:   "Account verified",
		Message: "You now have full workspace access.",
		Type:    types.NotificationSuccess,
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, userID, n.UserID)
	assert.False(t, n.Read)
	assert.False(t, n.CreatedAt.IsZero())

	sent := publisher.published(mq.NotificationsChannel)
	require.Len(t, sent, 1)
	assert.Equal(t, userID.String(), sent[0].msg.Attributes["user_id"])
	assert.Equal(t, n.ID.String(), sent[0].msg.ID)
}

func TestNotificationAddDefaultsTypeToInfo(t *testing.T) {
	svc, _, _ := newNotificationFixture()

	n, err := svc.Add(context.Background(), uuid.New(), NotificationDraft{Title: "untyped"})
	require.NoError(t, err)
	assert.Equal(t, types.NotificationInfo, n.Type)
}

func TestNotificationUnreadRecomputed(t *testing.T) {
	svc, _, _ := newNotificationFixture()
	userID := uuid.New()

	first, err := svc.Add(context.Background(), userID, NotificationDraft{Title: "one"})
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), userID, NotificationDraft{Title: "two"})
	require.NoError(t, err)

	_, unread, err := svc.List(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	require.NoError(t, svc.MarkRead(context.Background(), userID, first.ID))
	_, unread, err = svc.List(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	require.NoError(t, svc.MarkAllRead(context.Background(), userID))
	feed, unread, err := svc.List(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
	assert.Len(t, feed, 2, "marking read keeps the entries")
}

func TestNotificationMarkReadScopedToOwner(t *testing.T) {
	svc, _, _ := newNotificationFixture()
	owner := uuid.New()

	n, err := svc.Add(context.Background(), owner, NotificationDraft{Title: "private"})
	require.NoError(t, err)

	err = svc.MarkRead(context.Background(), uuid.New(), n.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, unread, err := svc.List(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestNotificationClearOnlyOwnFeed(t *testing.T) {
	svc, _, _ := newNotificationFixture()
	alice := uuid.New()
	bob := uuid.New()

	_, err := svc.Add(context.Background(), alice, NotificationDraft{Title: "for alice"})
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), bob, NotificationDraft{Title: "for bob"})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(context.Background(), alice))

	feed, _, err := svc.List(context.Background(), alice)
	require.NoError(t, err)
	assert.Empty(t, feed)

	feed, _, err = svc.List(context.Background(), bob)
	require.NoError(t, err)
	assert.Len(t, feed, 1)
}

func TestNotificationPublishFailureStillPersists(t *testing.T) {
	svc, repo, publisher := newNotificationFixture()
	publisher.err = context.DeadlineExceeded
	userID := uuid.New()

	_, err := svc.Add(context.Background(), userID, NotificationDraft{Title: "offline"})
	require.NoError(t, err)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Len(t, repo.rows, 1)
}
