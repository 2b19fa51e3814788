package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/WooodHead/yeep/internal/authz"
	"github.com/WooodHead/yeep/internal/iam"
	"github.com/WooodHead/yeep/internal/ids"
)

func (s *Store) CreateOrganization(ctx context.Context, name string) (iam.Organization, error) {
	if s.db == nil {
		return iam.Organization{}, errors.New("database connection unavailable")
	}
	var org iam.Organization
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name)
		values ($1, $2)
		returning id, name, created_at, updated_at
	`, ids.New(), name)
	if err := row.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return iam.Organization{}, mapConstraintErr(err)
	}
	return org, nil
}

func (s *Store) GetOrganization(ctx context.Context, id string) (iam.Organization, error) {
	if s.db == nil {
		return iam.Organization{}, errors.New("database connection unavailable")
	}
	var org iam.Organization
	err := s.db.QueryRowContext(ctx, `
		select id, name, created_at, updated_at
		from organizations
		where id = $1
	`, id).Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Organization{}, iam.ErrNotFound
	}
	if err != nil {
		return iam.Organization{}, err
	}
	return org, nil
}

// ListOrganizations returns orgs visible to the caller's scope set. A
// wildcard scope lists everything; otherwise only the named orgs.
func (s *Store) ListOrganizations(ctx context.Context, scopes authz.ScopeSet) ([]iam.Organization, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	query := `
		select id, name, created_at, updated_at
		from organizations
		order by name
	`
	var args []any
	if !scopes.Wildcard {
		query = `
			select id, name, created_at, updated_at
			from organizations
			where id = any($1)
			order by name
		`
		args = append(args, scopes.OrgIDs)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []iam.Organization
	for rows.Next() {
		var org iam.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, org)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) AddMember(ctx context.Context, orgID, userID string) (iam.Membership, error) {
	if s.db == nil {
		return iam.Membership{}, errors.New("database connection unavailable")
	}
	var m iam.Membership
	row := s.db.QueryRowContext(ctx, `
		insert into org_memberships (org_id, user_id)
		values ($1, $2)
		returning org_id, user_id, created_at
	`, orgID, userID)
	if err := row.Scan(&m.OrgID, &m.UserID, &m.CreatedAt); err != nil {
		return iam.Membership{}, mapConstraintErr(err)
	}
	return m, nil
}

// MembershipsForUser returns every org the user belongs to. A user with no
// memberships yields an empty result, not an error.
func (s *Store) MembershipsForUser(ctx context.Context, userID string) ([]iam.Membership, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select org_id, user_id, created_at
		from org_memberships
		where user_id = $1
		order by org_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []iam.Membership
	for rows.Next() {
		var m iam.Membership
		if err := rows.Scan(&m.OrgID, &m.UserID, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) RemoveMember(ctx context.Context, orgID, userID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from org_memberships
		where org_id = $1 and user_id = $2
	`, orgID, userID)
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
