package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/teamz-workspace/apiserver/types"
)

// FileRepository handles persistence for file metadata. The bytes themselves
// live in object storage.
type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Insert(ctx context.Context, f types.File) (types.File, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	const query = `
		INSERT INTO files (id, owner_id, name, key, content_type, size, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		f.ID,
		f.OwnerID,
		f.Name,
		f.Key,
		f.ContentType,
		f.Size,
		f.URL,
		f.CreatedAt,
	); err != nil {
		return types.File{}, err
	}
	return f, nil
}

func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (types.File, error) {
	const query = `
		SELECT id, owner_id, name, key, content_type, size, url, created_at
		FROM files
		WHERE id = $1`
	var f types.File
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID,
		&f.OwnerID,
		&f.Name,
		&f.Key,
		&f.ContentType,
		&f.Size,
		&f.URL,
		&f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.File{}, ErrNotFound
		}
		return types.File{}, err
	}
	return f, nil
}

func (r *FileRepository) List(ctx context.Context, offset, limit int) ([]types.File, int, error) {
	const query = `
		SELECT id, owner_id, name, key, content_type, size, url, created_at
		FROM files
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	files := make([]types.File, 0, limit)
	for rows.Next() {
		var f types.File
		if err := rows.Scan(
			&f.ID,
			&f.OwnerID,
			&f.Name,
			&f.Key,
			&f.ContentType,
			&f.Size,
			&f.URL,
			&f.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM files`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

func (r *FileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM files WHERE id = $1`
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
