package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/WooodHead/yeep/internal/authz"
	"github.com/WooodHead/yeep/internal/iam"
)

// AssignPermission records a direct user grant. An empty orgID is stored as
// NULL and means the grant is global.
func (s *Store) AssignPermission(ctx context.Context, userID, permissionKey, orgID string) (iam.PermissionAssignment, error) {
	if s.db == nil {
		return iam.PermissionAssignment{}, errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return iam.PermissionAssignment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var permID string
	err = tx.QueryRowContext(ctx, `select id from permissions where key = $1`, permissionKey).Scan(&permID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return iam.PermissionAssignment{}, fmt.Errorf("%w: permission %s not found", iam.ErrNotFound, permissionKey)
		}
		return iam.PermissionAssignment{}, err
	}

	assignment := iam.PermissionAssignment{UserID: userID, PermissionKey: permissionKey, OrgID: orgID}
	err = tx.QueryRowContext(ctx, `
		insert into permission_assignments (user_id, permission_id, org_id)
		values ($1, $2, nullif($3, ''))
		returning created_at
	`, userID, permID, orgID).Scan(&assignment.CreatedAt)
	if err != nil {
		return iam.PermissionAssignment{}, mapConstraintErr(err)
	}

	if err := tx.Commit(); err != nil {
		return iam.PermissionAssignment{}, err
	}
	return assignment, nil
}

func (s *Store) RevokePermission(ctx context.Context, userID, permissionKey, orgID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from permission_assignments pa
		using permissions p
		where p.id = pa.permission_id
		  and pa.user_id = $1
		  and p.key = $2
		  and pa.org_id is not distinct from nullif($3, '')
	`, userID, permissionKey, orgID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return iam.ErrNotFound
	}
	return nil
}

func (s *Store) AssignRole(ctx context.Context, userID, roleID, orgID string) (iam.RoleAssignment, error) {
	if s.db == nil {
		return iam.RoleAssignment{}, errors.New("database connection unavailable")
	}
	assignment := iam.RoleAssignment{UserID: userID, RoleID: roleID, OrgID: orgID}
	err := s.db.QueryRowContext(ctx, `
		insert into role_assignments (user_id, role_id, org_id)
		values ($1, $2, nullif($3, ''))
		returning created_at
	`, userID, roleID, orgID).Scan(&assignment.CreatedAt)
	if err != nil {
		return iam.RoleAssignment{}, mapConstraintErr(err)
	}
	return assignment, nil
}

func (s *Store) RevokeRole(ctx context.Context, userID, roleID, orgID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from role_assignments
		where user_id = $1
		  and role_id = $2
		  and org_id is not distinct from nullif($3, '')
	`, userID, roleID, orgID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return iam.ErrNotFound
	}
	return nil
}

// DirectGrants is the resolver's read side for direct assignments. A NULL
// org comes back as the empty string, the global scope marker.
func (s *Store) DirectGrants(ctx context.Context, userID string) ([]authz.Grant, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select p.key, coalesce(pa.org_id, '')
		from permission_assignments pa
		join permissions p on p.id = pa.permission_id
		where pa.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []authz.Grant
	for rows.Next() {
		var g authz.Grant
		if err := rows.Scan(&g.Name, &g.OrgID); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// RoleAssignments returns the user's role assignments with each role's
// permission list preloaded, so the resolver never issues per-role queries.
func (s *Store) RoleAssignments(ctx context.Context, userID string) ([]authz.RoleAssignment, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, coalesce(a.org_id, ''),
			coalesce(json_agg(p.key order by p.key) filter (where p.key is not null), '[]')
		from role_assignments a
		join roles r on r.id = a.role_id
		left join role_permissions rp on rp.role_id = r.id
		left join permissions p on p.id = rp.permission_id
		where a.user_id = $1
		group by r.id, r.name, a.org_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []authz.RoleAssignment
	for rows.Next() {
		var (
			a        authz.RoleAssignment
			rawPerms []byte
		)
		if err := rows.Scan(&a.Role.ID, &a.Role.Name, &a.OrgID, &rawPerms); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawPerms, &a.Role.Permissions); err != nil {
			return nil, fmt.Errorf("decode role permissions: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}
