package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/internal/storage"
	"github.com/teamz-workspace/apiserver/types"
)

// FileRepository defines persistence operations for file metadata.
type FileRepository interface {
	Insert(ctx context.Context, f types.File) (types.File, error)
	GetByID(ctx context.Context, id uuid.UUID) (types.File, error)
	List(ctx context.Context, offset, limit int) ([]types.File, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// FileService stores uploaded objects and their metadata rows. The object
// write happens first; the metadata row is only committed once the bytes
// are safely stored, so a failed upload leaves no dangling row.
type FileService struct {
	repo    FileRepository
	storage *storage.Storage
	logger  zerolog.Logger
}

func NewFileService(repo FileRepository, st *storage.Storage, logger zerolog.Logger) *FileService {
	return &FileService{repo: repo, storage: st, logger: logger}
}

// Upload streams the object into storage and persists its metadata.
func (s *FileService) Upload(ctx context.Context, ownerID uuid.UUID, name, contentType string, size int64, r io.Reader) (types.File, error) {
	name = path.Base(strings.TrimSpace(name))
	if name == "" || name == "." {
		name = "file"
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("%s/%s-%s", ownerID, uuid.NewString(), name)

	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.File{}, fmt.Errorf("store object: %w", err)
	}

	file, err := s.repo.Insert(ctx, types.File{
		OwnerID:     ownerID,
		Name:        name,
		Key:         key,
		ContentType: contentType,
		Size:        size,
		URL:         s.storage.PublicURL(key),
	})
	if err != nil {
		// Metadata failed, avoid orphaning the object.
		if cleanupErr := s.storage.Delete(ctx, key); cleanupErr != nil {
			s.logger.Warn().Err(cleanupErr).Str("key", key).Msg("orphaned object not cleaned up")
		}
		return types.File{}, err
	}
	return file, nil
}

func (s *FileService) Get(ctx context.Context, id uuid.UUID) (types.File, error) {
	return s.repo.GetByID(ctx, id)
}

// Open returns the metadata row and a reader over the object bytes.
func (s *FileService) Open(ctx context.Context, id uuid.UUID) (types.File, io.ReadCloser, error) {
	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.File{}, nil, err
	}
	reader, err := s.storage.Get(ctx, file.Key)
	if err != nil {
		return types.File{}, nil, err
	}
	return file, reader, nil
}

func (s *FileService) List(ctx context.Context, offset, limit int) ([]types.File, int, error) {
	return s.repo.List(ctx, offset, limit)
}

// Delete removes the metadata row first, then the object. A missing object
// afterwards is only logged: the row was the source of truth.
func (s *FileService) Delete(ctx context.Context, id uuid.UUID) error {
	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, file.Key); err != nil {
		s.logger.Warn().Err(err).Str("key", file.Key).Msg("object delete failed")
	}
	return nil
}
