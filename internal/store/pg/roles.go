package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/WooodHead/yeep/internal/authz"
	"github.com/WooodHead/yeep/internal/iam"
	"github.com/WooodHead/yeep/internal/ids"
)

const roleColumns = `
	r.id, coalesce(r.org_id, ''), r.name, coalesce(r.description, ''), r.is_system,
	r.created_at, r.updated_at,
	coalesce(json_agg(p.key order by p.key) filter (where p.key is not null), '[]')
`

const roleJoins = `
	left join role_permissions rp on rp.role_id = r.id
	left join permissions p on p.id = rp.permission_id
`

func (s *Store) CreateRole(ctx context.Context, orgID, name, description string, permissionKeys []string) (iam.Role, error) {
	if s.db == nil {
		return iam.Role{}, errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return iam.Role{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var role iam.Role
	row := tx.QueryRowContext(ctx, `
		insert into roles (id, org_id, name, description)
		values ($1, nullif($2, ''), $3, $4)
		returning id, coalesce(org_id, ''), name, coalesce(description, ''), is_system, created_at, updated_at
	`, ids.New(), orgID, name, nullIfEmpty(description))
	if err := row.Scan(&role.ID, &role.OrgID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return iam.Role{}, mapConstraintErr(err)
	}

	if err := replaceRolePermissions(ctx, tx, role.ID, permissionKeys); err != nil {
		return iam.Role{}, err
	}
	if err := tx.Commit(); err != nil {
		return iam.Role{}, err
	}
	role.Permissions = append([]string(nil), permissionKeys...)
	return role, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (iam.Role, error) {
	if s.db == nil {
		return iam.Role{}, errors.New("database connection unavailable")
	}
	var (
		role     iam.Role
		rawPerms []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select `+roleColumns+`
		from roles r
		`+roleJoins+`
		where r.id = $1
		group by r.id
	`, id).Scan(&role.ID, &role.OrgID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt, &rawPerms)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Role{}, iam.ErrNotFound
	}
	if err != nil {
		return iam.Role{}, err
	}
	if err := json.Unmarshal(rawPerms, &role.Permissions); err != nil {
		return iam.Role{}, fmt.Errorf("decode role permissions: %w", err)
	}
	return role, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, upd iam.RoleUpdate) (iam.Role, error) {
	if s.db == nil {
		return iam.Role{}, errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return iam.Role{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			sets = append(sets, "description = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("description = $%d", idx))
			args = append(args, *upd.Description)
			idx++
		}
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return iam.Role{}, mapConstraintErr(err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return iam.Role{}, err
		}
		if aff == 0 {
			return iam.Role{}, iam.ErrNotFound
		}
	} else {
		var exists int
		if err := tx.QueryRowContext(ctx, `select 1 from roles where id = $1`, id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return iam.Role{}, iam.ErrNotFound
			}
			return iam.Role{}, err
		}
	}

	if upd.Permissions != nil {
		if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, id); err != nil {
			return iam.Role{}, err
		}
		if err := replaceRolePermissions(ctx, tx, id, *upd.Permissions); err != nil {
			return iam.Role{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return iam.Role{}, err
	}
	return s.GetRole(ctx, id)
}

// ListRoles returns role definitions visible to the caller's scope set.
// Global definitions are visible from any scope; org-owned definitions only
// from their org.
func (s *Store) ListRoles(ctx context.Context, scopes authz.ScopeSet) ([]iam.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	query := `
		select ` + roleColumns + `
		from roles r
		` + roleJoins + `
		group by r.id
		order by r.name
	`
	var args []any
	if !scopes.Wildcard {
		query = `
			select ` + roleColumns + `
			from roles r
			` + roleJoins + `
			where r.org_id is null or r.org_id = any($1)
			group by r.id
			order by r.name
		`
		args = append(args, scopes.OrgIDs)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []iam.Role
	for rows.Next() {
		var (
			role     iam.Role
			rawPerms []byte
		)
		if err := rows.Scan(&role.ID, &role.OrgID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt, &rawPerms); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawPerms, &role.Permissions); err != nil {
			return nil, fmt.Errorf("decode role permissions: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func replaceRolePermissions(ctx context.Context, tx *sql.Tx, roleID string, permissionKeys []string) error {
	for _, key := range permissionKeys {
		var permID string
		err := tx.QueryRowContext(ctx, `select id from permissions where key = $1`, key).Scan(&permID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: permission %s not found", iam.ErrNotFound, key)
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
		`, roleID, permID); err != nil {
			return err
		}
	}
	return nil
}
