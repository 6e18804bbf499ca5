package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cloudgov-backend/internal/domain"
)

// GrantRepository persists JIT access requests and their role
// assignments. Approval and expiry each run as one transaction with a
// compare-and-swap on status, so concurrent approvers, repeated sweeps,
// and approve-versus-sweep races all settle with exactly one winner.
type GrantRepository struct {
	Store *Store
}

func NewGrantRepository(store *Store) *GrantRepository {
	return &GrantRepository{Store: store}
}

const grantColumns = `id, tenant_id, user_id, requested_role_id, justification, duration_minutes, status, COALESCE(approver_id, ''), created_at, expires_at`

func (r *GrantRepository) CreateRequest(ctx context.Context, grant domain.AccessGrant) (domain.AccessGrant, error) {
	grant.ID = uuid.NewString()
	grant.Status = domain.GrantPending
	grant.CreatedAt = time.Now().UTC()
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO jit_requests (id, tenant_id, user_id, requested_role_id, justification, duration_minutes, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		grant.ID, grant.TenantID, grant.UserID, grant.RequestedRoleID,
		grant.Justification, grant.DurationMinutes, grant.Status, grant.CreatedAt)
	if err != nil {
		return domain.AccessGrant{}, fmt.Errorf("create jit request: %w", err)
	}
	return grant, nil
}

func (r *GrantRepository) GetRequest(ctx context.Context, id string) (domain.AccessGrant, error) {
	row := r.Store.Pool.QueryRow(ctx, `SELECT `+grantColumns+` FROM jit_requests WHERE id=$1`, id)
	return scanGrant(row)
}

func (r *GrantRepository) ListRequests(ctx context.Context, tenantID string) ([]domain.AccessGrant, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT `+grantColumns+` FROM jit_requests WHERE tenant_id=$1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list jit requests: %w", err)
	}
	defer rows.Close()
	return collectGrants(rows)
}

// ApproveRequest flips PENDING to APPROVED and creates the role
// assignment in the same transaction. A request that is missing returns
// ErrNotFound; one that already left PENDING returns ErrInvalidState
// and no assignment is created.
func (r *GrantRepository) ApproveRequest(ctx context.Context, id, approverID string, now time.Time) (domain.AccessGrant, error) {
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return domain.AccessGrant{}, fmt.Errorf("begin approve: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE jit_requests
		SET status=$1, approver_id=$2, expires_at=$3 + duration_minutes * interval '1 minute'
		WHERE id=$4 AND status=$5
		RETURNING `+grantColumns,
		domain.GrantApproved, approverID, now.UTC(), id, domain.GrantPending)
	grant, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AccessGrant{}, r.requestFailure(ctx, id)
		}
		return domain.AccessGrant{}, fmt.Errorf("approve jit request: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_roles (id, tenant_id, user_id, role_id, grant_request_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.NewString(), grant.TenantID, grant.UserID, grant.RequestedRoleID, grant.ID, now.UTC())
	if err != nil {
		return domain.AccessGrant{}, fmt.Errorf("assign role for grant: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.AccessGrant{}, fmt.Errorf("commit approve: %w", err)
	}
	return grant, nil
}

// RejectRequest flips PENDING to REJECTED. No assignment is involved.
func (r *GrantRepository) RejectRequest(ctx context.Context, id, approverID string) (domain.AccessGrant, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		UPDATE jit_requests SET status=$1, approver_id=$2
		WHERE id=$3 AND status=$4
		RETURNING `+grantColumns,
		domain.GrantRejected, approverID, id, domain.GrantPending)
	grant, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AccessGrant{}, r.requestFailure(ctx, id)
		}
		return domain.AccessGrant{}, fmt.Errorf("reject jit request: %w", err)
	}
	return grant, nil
}

// ListExpired returns APPROVED grants whose expiry has passed.
func (r *GrantRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.AccessGrant, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT `+grantColumns+` FROM jit_requests
		WHERE status=$1 AND expires_at <= $2 ORDER BY expires_at`,
		domain.GrantApproved, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list expired grants: %w", err)
	}
	defer rows.Close()
	return collectGrants(rows)
}

// ExpireGrant flips APPROVED to EXPIRED and revokes the assignment the
// approval created, in one transaction. Sweeping a grant that was
// already expired is a no-op: the CAS matches zero rows and nothing is
// revoked again.
func (r *GrantRepository) ExpireGrant(ctx context.Context, id string) (bool, error) {
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin expire: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE jit_requests SET status=$1 WHERE id=$2 AND status=$3`,
		domain.GrantExpired, id, domain.GrantApproved)
	if err != nil {
		return false, fmt.Errorf("expire jit request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE grant_request_id=$1`, id); err != nil {
		return false, fmt.Errorf("revoke role for grant: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit expire: %w", err)
	}
	return true, nil
}

// requestFailure tells a missing request apart from one in the wrong
// state after a zero-row CAS update.
func (r *GrantRepository) requestFailure(ctx context.Context, id string) error {
	if _, err := r.GetRequest(ctx, id); errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	return domain.ErrInvalidState
}

func scanGrant(row pgx.Row) (domain.AccessGrant, error) {
	var grant domain.AccessGrant
	err := row.Scan(&grant.ID, &grant.TenantID, &grant.UserID, &grant.RequestedRoleID,
		&grant.Justification, &grant.DurationMinutes, &grant.Status, &grant.ApproverID,
		&grant.CreatedAt, &grant.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AccessGrant{}, domain.ErrNotFound
		}
		return domain.AccessGrant{}, err
	}
	return grant, nil
}

func collectGrants(rows pgx.Rows) ([]domain.AccessGrant, error) {
	results := []domain.AccessGrant{}
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, grant)
	}
	return results, rows.Err()
}
