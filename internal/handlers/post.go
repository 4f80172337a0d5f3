package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/internal/authz"
	"github.com/teamz-workspace/apiserver/internal/services"
	"github.com/teamz-workspace/apiserver/internal/store"
	"github.com/teamz-workspace/apiserver/types"
)

// PostHandler provides community post endpoints.
type PostHandler struct {
	posts  *services.PostService
	logger zerolog.Logger
}

func NewPostHandler(posts *services.PostService, logger zerolog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// PostRouter registers post routes on the given router.
func PostRouter(r chi.Router, handler *PostHandler, guard *Guard) {
	verified := guard.RequireVerified()
	r.With(verified).Get("/", handler.List)
	r.With(verified).Post("/", handler.Create)
	r.Route("/{postID}", func(r chi.Router) {
		r.With(verified).Get("/", handler.Get)
		r.With(verified).Put("/", handler.Update)
		r.With(verified).Delete("/", handler.Delete)
	})
}

type PostUpsertRequest struct {
	Title   string   `json:"title" validate:"required"`
	Content string   `json:"content" validate:"required"`
	Tags    []string `json:"tags"`
}

// PostListResponse is the paginated feed payload.
type PostListResponse struct {
	Items []types.Post `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.posts.List(r.Context(), offset, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("post list failed")
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}

	writeJSON(w, http.StatusOK, PostListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch post")
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PostUpsertRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.posts.Create(r.Context(), types.Post{
		AuthorID: principal.ID,
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("post create failed")
		writeError(w, http.StatusInternalServerError, "failed to create post")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// Update edits a post. Only the author or an admin may edit.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req PostUpsertRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch post")
		return
	}
	if !h.canMutate(r, existing) {
		writeError(w, http.StatusForbidden, "not the post author")
		return
	}

	existing.Title = req.Title
	existing.Content = req.Content
	existing.Tags = req.Tags

	updated, err := h.posts.Update(r.Context(), existing)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		h.logger.Error().Err(err).Msg("post update failed")
		writeError(w, http.StatusInternalServerError, "failed to update post")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch post")
		return
	}
	if !h.canMutate(r, existing) {
		writeError(w, http.StatusForbidden, "not the post author")
		return
	}

	if err := h.posts.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		h.logger.Error().Err(err).Msg("post delete failed")
		writeError(w, http.StatusInternalServerError, "failed to delete post")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PostHandler) canMutate(r *http.Request, post types.Post) bool {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		return false
	}
	if post.AuthorID == principal.ID {
		return true
	}
	profile := profileFromContext(r.Context())
	return profile != nil && authz.Satisfies(profile.Role, types.RoleAdmin)
}

func parsePostID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "postID"))
	if err != nil {
		return uuid.Nil, errors.New("invalid post id")
	}
	return id, nil
}
