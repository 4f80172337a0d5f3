package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/teamz-workspace/apiserver/types"
)

// PostRepository handles persistence for community posts.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, p types.Post) (types.Post, error) {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	const query = `
		INSERT INTO posts (id, author_id, title, content, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		p.ID,
		p.AuthorID,
		p.Title,
		p.Content,
		pq.Array(p.Tags),
		p.CreatedAt,
		p.UpdatedAt,
	); err != nil {
		return types.Post{}, err
	}
	return p, nil
}

func (r *PostRepository) GetByID(ctx context.Context, id uuid.UUID) (types.Post, error) {
	const query = `
		SELECT id, author_id, title, content, tags, created_at, updated_at
		FROM posts
		WHERE id = $1`
	var p types.Post
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.AuthorID,
		&p.Title,
		&p.Content,
		pq.Array(&p.Tags),
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return p, nil
}

func (r *PostRepository) List(ctx context.Context, offset, limit int) ([]types.Post, int, error) {
	const query = `
		SELECT id, author_id, title, content, tags, created_at, updated_at
		FROM posts
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	posts := make([]types.Post, 0, limit)
	for rows.Next() {
		var p types.Post
		if err := rows.Scan(
			&p.ID,
			&p.AuthorID,
			&p.Title,
			&p.Content,
			pq.Array(&p.Tags),
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepository) Update(ctx context.Context, p types.Post) (types.Post, error) {
	p.UpdatedAt = time.Now()

	const query = `
		UPDATE posts
		SET title = $1,
			content = $2,
			tags = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		p.Title,
		p.Content,
		pq.Array(p.Tags),
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return types.Post{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Post{}, err
	}
	if affected == 0 {
		return types.Post{}, ErrNotFound
	}
	return p, nil
}

func (r *PostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM posts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
