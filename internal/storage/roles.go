package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cloudgov-backend/internal/domain"
)

// RoleRepository covers the RBAC side: roles, direct assignments and
// permission resolution.
type RoleRepository struct {
	Store *Store
}

func NewRoleRepository(store *Store) *RoleRepository {
	return &RoleRepository{Store: store}
}

func (r *RoleRepository) CreateRole(ctx context.Context, role domain.Role) (domain.Role, error) {
	role.ID = uuid.NewString()
	role.CreatedAt = time.Now().UTC()
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return domain.Role{}, err
	}
	_, err = r.Store.Pool.Exec(ctx, `
		INSERT INTO roles (id, tenant_id, name, permissions, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		role.ID, role.TenantID, role.Name, perms, role.CreatedAt)
	if err != nil {
		return domain.Role{}, fmt.Errorf("create role: %w", err)
	}
	return role, nil
}

// AssignRole creates a direct (non-JIT) assignment.
func (r *RoleRepository) AssignRole(ctx context.Context, tenantID, userID, roleID string) (domain.RoleAssignment, error) {
	assignment := domain.RoleAssignment{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		RoleID:    roleID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO user_roles (id, tenant_id, user_id, role_id, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		assignment.ID, assignment.TenantID, assignment.UserID, assignment.RoleID, assignment.CreatedAt)
	if err != nil {
		return domain.RoleAssignment{}, fmt.Errorf("assign role: %w", err)
	}
	return assignment, nil
}

// Permissions resolves the union of permissions over every role
// currently assigned to the user, JIT-granted roles included.
func (r *RoleRepository) Permissions(ctx context.Context, tenantID, userID string) ([]string, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT DISTINCT perm
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id,
		LATERAL jsonb_array_elements_text(ro.permissions) AS perm
		WHERE ur.tenant_id=$1 AND ur.user_id=$2
		ORDER BY perm`, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}
	defer rows.Close()
	perms := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
