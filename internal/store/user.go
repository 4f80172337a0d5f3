package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teamz-workspace/apiserver/types"
)

// PrincipalRepository handles persistence for auth principals.
type PrincipalRepository struct {
	db *sql.DB
}

func NewPrincipalRepository(db *sql.DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

func (r *PrincipalRepository) GetByID(ctx context.Context, id uuid.UUID) (types.Principal, error) {
	const query = `
		SELECT id, email, provider, password_hash, created_at, updated_at
		FROM principals
		WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PrincipalRepository) GetByEmail(ctx context.Context, email string) (types.Principal, error) {
	const query = `
		SELECT id, email, provider, password_hash, created_at, updated_at
		FROM principals
		WHERE lower(email) = lower($1)`
	return r.scanOne(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
}

// Create inserts a principal. The matching profile row is created by a
// database trigger, possibly after this call returns.
func (r *PrincipalRepository) Create(ctx context.Context, p types.Principal) (types.Principal, error) {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	const query = `
		INSERT INTO principals (id, email, provider, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		p.ID,
		strings.TrimSpace(p.Email),
		p.Provider,
		p.PasswordHash,
		p.CreatedAt,
		p.UpdatedAt,
	); err != nil {
		return types.Principal{}, err
	}
	return p, nil
}

func (r *PrincipalRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM principals WHERE id = $1`
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

func (r *PrincipalRepository) scanOne(row *sql.Row) (types.Principal, error) {
	var p types.Principal
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.Provider,
		&p.PasswordHash,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Principal{}, ErrNotFound
		}
		return types.Principal{}, err
	}
	return p, nil
}
