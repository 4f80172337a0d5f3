package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/internal/services"
	"github.com/teamz-workspace/apiserver/internal/store"
	"github.com/teamz-workspace/apiserver/types"
)

// ProfileHandler provides member directory and admin profile endpoints.
type ProfileHandler struct {
	profiles *services.ProfileService
	sessions *services.SessionService
	notifier *services.NotificationService
	logger   zerolog.Logger
}

func NewProfileHandler(
	profiles *services.ProfileService,
	sessions *services.SessionService,
	notifier *services.NotificationService,
	logger zerolog.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
	}
}

// ProfileRouter registers profile routes on the given router.
func ProfileRouter(r chi.Router, handler *ProfileHandler, guard *Guard) {
	// Own profile works before verification so new members can complete it.
	r.With(guard.RequireAuth()).Get("/me", handler.Me)
	r.With(guard.RequireAuth()).Patch("/me", handler.UpdateMe)

	r.With(guard.RequireVerified()).Get("/", handler.List)
	r.With(guard.RequireVerified()).Get("/{profileID}", handler.Get)

	admin := guard.RequireRole(types.RoleAdmin)
	r.With(admin).Post("/{profileID}/verify", handler.Verify)
	r.With(admin).Post("/{profileID}/role", handler.SetRole)
	r.With(admin).Post("/{profileID}/rank-points", handler.AddRankPoints)
}

// ProfileListResponse is the paginated directory payload.
type ProfileListResponse struct {
	Items []types.Profile `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int             `json:"total"`
}

// Me returns the caller's profile, or 202 while the row is still pending.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile := profileFromContext(r.Context())
	if profile == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "profile_pending"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateMe applies a partial update and returns the server's post-update
// row. Nothing is mutated locally until the backend confirms.
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var patch types.ProfilePatch
	if err := decodeAndValidate(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.sessions.UpdateProfile(r.Context(), principal.ID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.Error().Err(err).Msg("profile update failed")
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.profiles.List(r.Context(), offset, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("profile list failed")
		writeError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}

	writeJSON(w, http.StatusOK, ProfileListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseProfileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profiles.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Verify approves a member's account and notifies them.
func (h *ProfileHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := parseProfileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profiles.Verify(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.Error().Err(err).Msg("profile verify failed")
		writeError(w, http.StatusInternalServerError, "failed to verify profile")
		return
	}

	h.sessions.InvalidateProfile(id)
	if _, err := h.notifier.Add(r.Context(), id, services.NotificationDraft{
		Title:   "Account verified",
		Message: "An admin verified your account. The whole workspace is now available.",
		Type:    types.NotificationSuccess,
		Link:    dashboardPath,
	}); err != nil {
		h.logger.Warn().Err(err).Msg("verification notification failed")
	}

	writeJSON(w, http.StatusOK, profile)
}

type SetRoleRequest struct {
	Role types.Role `json:"role" validate:"required,oneof=admin manager employee"`
}

func (h *ProfileHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseProfileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SetRoleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profiles.SetRole(r.Context(), id, req.Role)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.Error().Err(err).Msg("role change failed")
		writeError(w, http.StatusInternalServerError, "failed to change role")
		return
	}

	h.sessions.InvalidateProfile(id)
	writeJSON(w, http.StatusOK, profile)
}

type AddRankPointsRequest struct {
	Points int `json:"points" validate:"required,gt=0"`
}

type RankPointsResponse struct {
	RankPoints int `json:"rank_points"`
}

// AddRankPoints awards points through the atomic database increment.
func (h *ProfileHandler) AddRankPoints(w http.ResponseWriter, r *http.Request) {
	id, err := parseProfileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AddRankPointsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	total, err := h.profiles.AddRankPoints(r.Context(), id, req.Points)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.Error().Err(err).Msg("rank points award failed")
		writeError(w, http.StatusInternalServerError, "failed to add rank points")
		return
	}

	h.sessions.InvalidateProfile(id)
	writeJSON(w, http.StatusOK, RankPointsResponse{RankPoints: total})
}

func parseProfileID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "profileID"))
	if err != nil {
		return uuid.Nil, errors.New("invalid profile id")
	}
	return id, nil
}
