package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/WooodHead/yeep/internal/authz"
	"github.com/WooodHead/yeep/internal/iam"
	"github.com/WooodHead/yeep/internal/ids"
)

func (s *Store) CreateUser(ctx context.Context, username, fullName, email string) (iam.User, error) {
	if s.db == nil {
		return iam.User{}, errors.New("database connection unavailable")
	}
	var (
		user iam.User
		full sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, username, full_name, email, status)
		values ($1, $2, $3, $4, $5)
		returning id, username, full_name, email, status, created_at, updated_at
	`, ids.New(), username, nullIfEmpty(fullName), email, iam.UserStatusActive)
	if err := row.Scan(&user.ID, &user.Username, &full, &user.Email, &user.Status, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return iam.User{}, mapConstraintErr(err)
	}
	if full.Valid {
		user.FullName = full.String
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (iam.User, error) {
	if s.db == nil {
		return iam.User{}, errors.New("database connection unavailable")
	}
	var (
		user iam.User
		full sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, username, full_name, email, status, created_at, updated_at
		from users
		where id = $1
	`, id).Scan(&user.ID, &user.Username, &full, &user.Email, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.User{}, iam.ErrNotFound
	}
	if err != nil {
		return iam.User{}, err
	}
	if full.Valid {
		user.FullName = full.String
	}
	return user, nil
}

// ListUsers returns users visible to the caller's scope set. Under a
// wildcard every user is visible; otherwise only users holding a membership
// in one of the named orgs.
func (s *Store) ListUsers(ctx context.Context, scopes authz.ScopeSet) ([]iam.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	query := `
		select id, username, full_name, email, status, created_at, updated_at
		from users
		order by username
	`
	var args []any
	if !scopes.Wildcard {
		query = `
			select u.id, u.username, u.full_name, u.email, u.status, u.created_at, u.updated_at
			from users u
			where exists (
				select 1 from org_memberships m
				where m.user_id = u.id and m.org_id = any($1)
			)
			order by u.username
		`
		args = append(args, scopes.OrgIDs)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []iam.User
	for rows.Next() {
		var (
			user iam.User
			full sql.NullString
		)
		if err := rows.Scan(&user.ID, &user.Username, &full, &user.Email, &user.Status, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		if full.Valid {
			user.FullName = full.String
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
