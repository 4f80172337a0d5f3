package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/internal/authz"
	"github.com/teamz-workspace/apiserver/internal/services"
	"github.com/teamz-workspace/apiserver/internal/store"
	"github.com/teamz-workspace/apiserver/types"
)

const (
	maxUploadBytes     = 64 << 20
	maxMultipartMemory = 8 << 20
	formFieldFile      = "file"
)

// FileHandler provides file sharing endpoints.
type FileHandler struct {
	files  *services.FileService
	logger zerolog.Logger
}

func NewFileHandler(files *services.FileService, logger zerolog.Logger) *FileHandler {
	return &FileHandler{files: files, logger: logger}
}

// FileRouter registers file routes on the given router.
func FileRouter(r chi.Router, handler *FileHandler, guard *Guard) {
	verified := guard.RequireVerified()
	r.With(verified).Get("/", handler.List)
	r.With(verified).Post("/", handler.Upload)
	r.With(verified).Get("/{fileID}", handler.Download)
	r.With(verified).Delete("/{fileID}", handler.Delete)
}

// FileListResponse is the paginated file listing payload.
type FileListResponse struct {
	Items []types.File `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.files.List(r.Context(), offset, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("file list failed")
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	writeJSON(w, http.StatusOK, FileListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

// Upload stores a multipart file and returns its metadata including the
// public URL. Nothing is recorded until the object write succeeds.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	part, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer part.Close()

	file, err := h.files.Upload(
		r.Context(),
		principal.ID,
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		part,
	)
	if err != nil {
		h.logger.Error().Err(err).Msg("file upload failed")
		writeError(w, http.StatusInternalServerError, "failed to upload file")
		return
	}

	writeJSON(w, http.StatusCreated, file)
}

// Download streams the object bytes with the stored content type.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseFileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, reader, err := h.files.Open(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error().Err(err).Msg("file open failed")
		writeError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	if file.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprint(file.Size))
	}
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Debug().Err(err).Msg("file stream interrupted")
	}
}

// Delete removes a file. Only the owner or an admin may delete.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseFileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, err := h.files.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch file")
		return
	}

	profile := profileFromContext(r.Context())
	if file.OwnerID != principal.ID && (profile == nil || !authz.Satisfies(profile.Role, types.RoleAdmin)) {
		writeError(w, http.StatusForbidden, "not the file owner")
		return
	}

	if err := h.files.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error().Err(err).Msg("file delete failed")
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseFileID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		return uuid.Nil, errors.New("invalid file id")
	}
	return id, nil
}
