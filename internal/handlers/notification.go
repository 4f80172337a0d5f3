package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/internal/mq"
	"github.com/teamz-workspace/apiserver/internal/notify"
	"github.com/teamz-workspace/apiserver/internal/services"
	"github.com/teamz-workspace/apiserver/internal/store"
	"github.com/teamz-workspace/apiserver/types"
)

// NotificationHandler provides the per-principal notification feed.
type NotificationHandler struct {
	notifications *services.NotificationService
	hub           *notify.Hub
	logger        zerolog.Logger
}

func NewNotificationHandler(notifications *services.NotificationService, hub *notify.Hub, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, hub: hub, logger: logger}
}

// NotificationRouter registers notification routes. All of them work for
// any authenticated principal, verified or not, because the shell renders
// the feed on every view including verification-pending.
func NotificationRouter(r chi.Router, handler *NotificationHandler, guard *Guard) {
	auth := guard.RequireAuth()
	r.With(auth).Get("/", handler.List)
	r.With(auth).Post("/", handler.Add)
	r.With(auth).Get("/stream", handler.Stream)
	r.With(auth).Post("/read-all", handler.MarkAllRead)
	r.With(auth).Post("/{notificationID}/read", handler.MarkRead)
	r.With(auth).Delete("/", handler.Clear)
}

type AddNotificationRequest struct {
	Title   string                 `json:"title" validate:"required"`
	Message string                 `json:"message" validate:"required"`
	Type    types.NotificationType `json:"type" validate:"omitempty,oneof=info success warning error"`
	Link    string                 `json:"link"`
}

// NotificationListResponse pairs the feed with its recomputed unread count.
type NotificationListResponse struct {
	Items  []types.Notification `json:"items"`
	Unread int                  `json:"unread"`
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, unread, err := h.notifications.List(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("notification list failed")
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	writeJSON(w, http.StatusOK, NotificationListResponse{Items: items, Unread: unread})
}

func (h *NotificationHandler) Add(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AddNotificationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	notification, err := h.notifications.Add(r.Context(), principal.ID, services.NotificationDraft{
		Title:   req.Title,
		Message: req.Message,
		Type:    req.Type,
		Link:    req.Link,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("notification add failed")
		writeError(w, http.StatusInternalServerError, "failed to add notification")
		return
	}

	writeJSON(w, http.StatusCreated, notification)
}

// Stream delivers live notifications over SSE, the push-style channel next
// to the persisted feed.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	streamSSE(w, r, h.hub, mq.NotificationsChannel, principal.ID, h.logger)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.notifications.MarkRead(r.Context(), principal.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error().Err(err).Msg("notification mark read failed")
		writeError(w, http.StatusInternalServerError, "failed to mark notification")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.notifications.MarkAllRead(r.Context(), principal.ID); err != nil {
		h.logger.Error().Err(err).Msg("notification mark all failed")
		writeError(w, http.StatusInternalServerError, "failed to mark notifications")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.notifications.Clear(r.Context(), principal.ID); err != nil {
		h.logger.Error().Err(err).Msg("notification clear failed")
		writeError(w, http.StatusInternalServerError, "failed to clear notifications")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
