package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/internal/mq"
	"github.com/teamz-workspace/apiserver/types"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Insert(ctx context.Context, n types.Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]types.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationService maintains per-principal notification feeds and fans
// new entries out through the broker for live delivery.
type NotificationService struct {
	repo      NotificationRepository
	publisher EventPublisher
	logger    zerolog.Logger
}

func NewNotificationService(repo NotificationRepository, publisher EventPublisher, logger zerolog.Logger) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher, logger: logger}
}

// NotificationDraft is a notification before the service assigns identity.
type NotificationDraft struct {
	Title   string
	Message string
	Type    types.NotificationType
	Link    string
}

// Add assigns id, timestamp and read=false, persists the entry under the
// owning principal, and publishes it for live fan-out.
func (s *NotificationService) Add(ctx context.Context, userID uuid.UUID, draft NotificationDraft) (types.Notification, error) {
	kind := draft.Type
	if strings.TrimSpace(string(kind)) == "" {
		kind = types.NotificationInfo
	}

	n := types.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     draft.Title,
		Message:   draft.Message,
		Type:      kind,
		Link:      draft.Link,
		Read:      false,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Insert(ctx, n); err != nil {
		return types.Notification{}, err
	}

	s.publish(ctx, n)
	return n, nil
}

// List returns the feed newest-first together with the unread count. The
// count is recomputed from the read flags every time, never tracked as a
// separate number that could drift.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID) ([]types.Notification, int, error) {
	notifications, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return notifications, unread, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.repo.Clear(ctx, userID)
}

func (s *NotificationService) publish(ctx context.Context, n types.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal notification")
		return
	}
	_, err = s.publisher.Publish(ctx, mq.NotificationsChannel, mq.Message{
		ID:         n.ID.String(),
		Data:       payload,
		Attributes: map[string]string{"user_id": n.UserID.String()},
	})
	if err != nil {
		// Live delivery is best effort; the row is already persisted.
		s.logger.Warn().Err(err).Stringer("notification_id", n.ID).Msg("publish notification")
	}
}
