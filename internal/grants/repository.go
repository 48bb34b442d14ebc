package grants

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates the grant does not exist.
	ErrNotFound = errors.New("grants: not found")
	// ErrNotActive indicates a mutation hit a grant that is already
	// revoked or expired.
	ErrNotActive = errors.New("grants: grant not active")
	// ErrConflict indicates a concurrent writer won; the caller should
	// re-read and retry if still relevant.
	ErrConflict = errors.New("grants: concurrent update conflict")
	// ErrDuplicate indicates an insert with an id that already exists.
	ErrDuplicate = errors.New("grants: duplicate grant id")
)

// Repository is the storage contract for the ledger. Mutations on an
// existing grant are conditional updates so concurrent revoke/extend
// on the same record cannot silently overwrite each other.
type Repository interface {
	Insert(ctx context.Context, grant Grant) error
	Get(ctx context.Context, id uuid.UUID) (*Grant, error)
	ListByUser(ctx context.Context, userID int64) ([]Grant, error)
	// Revoke marks the grant revoked iff it is still active at "at".
	// Returns false when the condition did not hold.
	Revoke(ctx context.Context, id uuid.UUID, at time.Time, by int64, reason *string) (bool, error)
	// Extend moves the expiry iff the stored expiry still equals
	// oldExpiresAt and the grant is unrevoked. Returns false when the
	// optimistic condition did not hold.
	Extend(ctx context.Context, id uuid.UUID, newExpiresAt, oldExpiresAt time.Time) (bool, error)
	// ActiveUserIDs lists distinct users holding at least one active
	// grant at "now". The reconciler sweeps over this set.
	ActiveUserIDs(ctx context.Context, now time.Time) ([]int64, error)
}

// PGRepository provides PostgreSQL backed persistence for grants.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const grantColumns = `id, user_id, region, granted_by, granted_at, expires_at, reason, revoked_at, revoked_by, revoked_reason`

// Insert stores a new grant.
func (r *PGRepository) Insert(ctx context.Context, grant Grant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO region_grants (`+grantColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		grant.ID, grant.UserID, grant.Region, grant.GrantedBy, grant.GrantedAt,
		grant.ExpiresAt, grant.Reason, grant.RevokedAt, grant.RevokedBy, grant.RevokedReason)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Get fetches a grant by id.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (*Grant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+grantColumns+` FROM region_grants WHERE id = $1`, id)
	grant, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return grant, nil
}

// ListByUser returns every grant for a user, newest first.
func (r *PGRepository) ListByUser(ctx context.Context, userID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+grantColumns+` FROM region_grants WHERE user_id = $1 ORDER BY granted_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *grant)
	}
	return grants, rows.Err()
}

// Revoke performs the conditional revocation update.
func (r *PGRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time, by int64, reason *string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE region_grants
		 SET revoked_at = $2, revoked_by = $3, revoked_reason = $4
		 WHERE id = $1 AND revoked_at IS NULL AND expires_at > $2`,
		id, at, by, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Extend performs the optimistic expiry update.
func (r *PGRepository) Extend(ctx context.Context, id uuid.UUID, newExpiresAt, oldExpiresAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE region_grants
		 SET expires_at = $2
		 WHERE id = $1 AND revoked_at IS NULL AND expires_at = $3`,
		id, newExpiresAt, oldExpiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ActiveUserIDs lists users with at least one active grant.
func (r *PGRepository) ActiveUserIDs(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM region_grants WHERE revoked_at IS NULL AND expires_at > $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanGrant(row pgx.Row) (*Grant, error) {
	var g Grant
	err := row.Scan(&g.ID, &g.UserID, &g.Region, &g.GrantedBy, &g.GrantedAt,
		&g.ExpiresAt, &g.Reason, &g.RevokedAt, &g.RevokedBy, &g.RevokedReason)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
