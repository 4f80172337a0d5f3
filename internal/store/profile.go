package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/teamz-workspace/apiserver/types"
)

const profileColumns = `id, full_name, cubiz_id, role, department, location, upi_id,
		avatar_url, verified, joined_at, bio, skills, rank_points`

// ProfileRepository handles persistence for member profiles.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (types.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE id = $1`, profileColumns)
	return scanProfile(r.db.QueryRowContext(ctx, query, id))
}

func (r *ProfileRepository) List(ctx context.Context, offset, limit int) ([]types.Profile, int, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM profiles
		ORDER BY joined_at DESC
		OFFSET $1 LIMIT $2`, profileColumns)
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	profiles := make([]types.Profile, 0, limit)
	for rows.Next() {
		p, err := scanProfileRows(rows)
		if err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM profiles`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}

// Patch applies a partial update. Only non-nil fields are written; the
// caller re-reads the row afterwards so server defaults stay authoritative.
func (r *ProfileRepository) Patch(ctx context.Context, id uuid.UUID, patch types.ProfilePatch) error {
	assignments := make([]string, 0, 7)
	args := make([]any, 0, 8)

	set := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.FullName != nil {
		set("full_name", *patch.FullName)
	}
	if patch.Department != nil {
		set("department", *patch.Department)
	}
	if patch.Location != nil {
		set("location", *patch.Location)
	}
	if patch.UpiID != nil {
		set("upi_id", *patch.UpiID)
	}
	if patch.AvatarURL != nil {
		set("avatar_url", *patch.AvatarURL)
	}
	if patch.Bio != nil {
		set("bio", *patch.Bio)
	}
	if patch.Skills != nil {
		set("skills", pq.Array(patch.Skills))
	}

	if len(assignments) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE profiles SET %s WHERE id = $%d`,
		strings.Join(assignments, ", "),
		len(args),
	)
	result, err := r.db.ExecContext(ctx, query, args...)
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

func (r *ProfileRepository) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	const query = `UPDATE profiles SET verified = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, verified, id)
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

func (r *ProfileRepository) SetRole(ctx context.Context, id uuid.UUID, role types.Role) error {
	const query = `UPDATE profiles SET role = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, role, id)
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

// AddRankPoints increments atomically through the database function, so
// concurrent awards never lose updates.
func (r *ProfileRepository) AddRankPoints(ctx context.Context, id uuid.UUID, points int) (int, error) {
	const query = `SELECT add_rank_points($1, $2)`
	var total sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, id, points).Scan(&total); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, ErrNotFound
	}
	return int(total.Int64), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row *sql.Row) (types.Profile, error) {
	p, err := scanProfileRows(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, err
	}
	return p, nil
}

func scanProfileRows(row rowScanner) (types.Profile, error) {
	var p types.Profile
	err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.CubizID,
		&p.Role,
		&p.Department,
		&p.Location,
		&p.UpiID,
		&p.AvatarURL,
		&p.Verified,
		&p.JoinedAt,
		&p.Bio,
		pq.Array(&p.Skills),
		&p.RankPoints,
	)
	if err != nil {
		return types.Profile{}, err
	}
	return p, nil
}
