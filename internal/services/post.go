package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/teamz-workspace/apiserver/types"
)

// PostRepository defines persistence operations for community posts.
type PostRepository interface {
	Create(ctx context.Context, p types.Post) (types.Post, error)
	GetByID(ctx context.Context, id uuid.UUID) (types.Post, error)
	List(ctx context.Context, offset, limit int) ([]types.Post, int, error)
	Update(ctx context.Context, p types.Post) (types.Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PostService encapsulates community post use-cases.
type PostService struct {
	repo PostRepository
}

func NewPostService(repo PostRepository) *PostService {
	return &PostService{repo: repo}
}

func (s *PostService) Create(ctx context.Context, p types.Post) (types.Post, error) {
	return s.repo.Create(ctx, p)
}

func (s *PostService) Get(ctx context.Context, id uuid.UUID) (types.Post, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PostService) List(ctx context.Context, offset, limit int) ([]types.Post, int, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *PostService) Update(ctx context.Context, p types.Post) (types.Post, error) {
	return s.repo.Update(ctx, p)
}

func (s *PostService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
