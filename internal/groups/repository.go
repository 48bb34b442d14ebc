package groups

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridscape/gridscape/internal/platform/db"
)

// ErrNotFound indicates the group does not exist.
var ErrNotFound = errors.New("groups: not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const groupColumns = `id, name, description, permissions, assigned_regions, is_active, created_at, updated_at`

// Get fetches a group with its membership lists.
func (r *Repository) Get(ctx context.Context, id int64) (*Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.Description, &g.Permissions, &g.AssignedRegions,
			&g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.attachMembers(ctx, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetByIDs fetches multiple groups. Missing ids are skipped, not
// errors: a stale membership row must not break resolution.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) ([]Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Permissions, &g.AssignedRegions,
			&g.IsActive, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

// List returns all groups with membership attached.
func (r *Repository) List(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+groupColumns+` FROM groups ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Permissions, &g.AssignedRegions,
			&g.IsActive, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		if err := r.attachMembers(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Create inserts a group and returns its id.
func (r *Repository) Create(ctx context.Context, g Group) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO groups (name, description, permissions, assigned_regions, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
		g.Name, g.Description, g.Permissions, g.AssignedRegions, g.IsActive).Scan(&id)
	return id, err
}

// Update applies the non-membership fields of g.
func (r *Repository) Update(ctx context.Context, g Group) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE groups
		 SET name = $2, description = $3, permissions = $4, assigned_regions = $5, is_active = $6, updated_at = NOW()
		 WHERE id = $1`,
		g.ID, g.Name, g.Description, g.Permissions, g.AssignedRegions, g.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMember inserts a membership row; duplicates are ignored.
func (r *Repository) AddMember(ctx context.Context, groupID, userID int64, isManager bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO group_members (group_id, user_id, is_manager)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (group_id, user_id) DO UPDATE SET is_manager = EXCLUDED.is_manager`,
		groupID, userID, isManager)
	return err
}

// RemoveMember deletes a membership row.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMembers replaces the full membership of a group atomically.
// Manager flags for retained members are carried by the new list.
func (r *Repository) SetMembers(ctx context.Context, groupID int64, memberIDs, managerIDs []int64) error {
	managers := make(map[int64]bool, len(managerIDs))
	for _, id := range managerIDs {
		managers[id] = true
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `SELECT 1 FROM groups WHERE id = $1 FOR UPDATE`, groupID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1`, groupID); err != nil {
			return err
		}
		for _, userID := range memberIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO group_members (group_id, user_id, is_manager) VALUES ($1, $2, $3)`,
				groupID, userID, managers[userID]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) attachMembers(ctx context.Context, g *Group) error {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, is_manager FROM group_members WHERE group_id = $1 ORDER BY user_id`, g.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var userID int64
		var isManager bool
		if err := rows.Scan(&userID, &isManager); err != nil {
			return err
		}
		g.MemberIDs = append(g.MemberIDs, userID)
		if isManager {
			g.ManagerIDs = append(g.ManagerIDs, userID)
		}
	}
	return rows.Err()
}
