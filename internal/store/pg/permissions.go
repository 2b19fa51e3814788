package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/WooodHead/yeep/internal/iam"
	"github.com/WooodHead/yeep/internal/ids"
)

func (s *Store) CreatePermission(ctx context.Context, key, description string, scopeOrgIDs []string) (iam.Permission, error) {
	if s.db == nil {
		return iam.Permission{}, errors.New("database connection unavailable")
	}
	scopeJSON, err := encodeScopes(scopeOrgIDs)
	if err != nil {
		return iam.Permission{}, err
	}
	var (
		perm     iam.Permission
		desc     sql.NullString
		rawScope []byte
	)
	row := s.db.QueryRowContext(ctx, `
		insert into permissions (id, key, description, scope_org_ids, is_system)
		values ($1, $2, $3, $4, false)
		returning id, key, description, scope_org_ids, is_system, created_at, updated_at
	`, ids.New(), key, nullIfEmpty(description), scopeJSON)
	if err := row.Scan(&perm.ID, &perm.Key, &desc, &rawScope, &perm.IsSystem, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
		return iam.Permission{}, mapConstraintErr(err)
	}
	if desc.Valid {
		perm.Description = desc.String
	}
	perm.ScopeOrgIDs, err = decodeScopes(rawScope)
	if err != nil {
		return iam.Permission{}, err
	}
	return perm, nil
}

func (s *Store) GetPermissionByKey(ctx context.Context, key string) (iam.Permission, error) {
	if s.db == nil {
		return iam.Permission{}, errors.New("database connection unavailable")
	}
	var (
		perm     iam.Permission
		desc     sql.NullString
		rawScope []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select id, key, description, scope_org_ids, is_system, created_at, updated_at
		from permissions
		where key = $1
	`, key).Scan(&perm.ID, &perm.Key, &desc, &rawScope, &perm.IsSystem, &perm.CreatedAt, &perm.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Permission{}, iam.ErrNotFound
	}
	if err != nil {
		return iam.Permission{}, err
	}
	if desc.Valid {
		perm.Description = desc.String
	}
	perm.ScopeOrgIDs, err = decodeScopes(rawScope)
	if err != nil {
		return iam.Permission{}, err
	}
	return perm, nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]iam.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, key, description, scope_org_ids, is_system, created_at, updated_at
		from permissions
		order by key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []iam.Permission
	for rows.Next() {
		var (
			perm     iam.Permission
			desc     sql.NullString
			rawScope []byte
		)
		if err := rows.Scan(&perm.ID, &perm.Key, &desc, &rawScope, &perm.IsSystem, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			perm.Description = desc.String
		}
		perm.ScopeOrgIDs, err = decodeScopes(rawScope)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// EnsurePermissions seeds the given permissions, leaving existing rows
// untouched. Used for the system catalog at startup.
func (s *Store) EnsurePermissions(ctx context.Context, perms []iam.Permission) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, perm := range perms {
		scopeJSON, err := encodeScopes(perm.ScopeOrgIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			insert into permissions (id, key, description, scope_org_ids, is_system)
			values ($1, $2, $3, $4, $5)
			on conflict (key) do nothing
		`, ids.New(), perm.Key, nullIfEmpty(perm.Description), scopeJSON, perm.IsSystem); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func encodeScopes(scopeOrgIDs []string) ([]byte, error) {
	if len(scopeOrgIDs) == 0 {
		return []byte("[]"), nil
	}
	bytes, err := json.Marshal(scopeOrgIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal scope list: %w", err)
	}
	return bytes, nil
}

func decodeScopes(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var scopes []string
	if err := json.Unmarshal(raw, &scopes); err != nil {
		return nil, fmt.Errorf("decode scope list: %w", err)
	}
	if len(scopes) == 0 {
		return nil, nil
	}
	return scopes, nil
}
