// Package pg implements the auth store interfaces over PostgreSQL using
// database/sql with the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"errors"

	"garnizon.org/internal/auth"
)

var (
	_ auth.UserStore       = (*Store)(nil)
	_ auth.UnitStore       = (*Store)(nil)
	_ auth.PermissionStore = (*Store)(nil)
)

// Store provides the persistence layer for the auth subsystem.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("pg: database connection is required")
	}
	return &Store{db: db}, nil
}

const userColumns = `id, username, password_hash, unit_id, is_super_user, status, created_at, updated_at`

func (s *Store) Find(ctx context.Context, id int64) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username = $1`, username)
	return scanUser(row)
}

func (s *Store) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash = $2, updated_at = now() where id = $1`,
		userID, passwordHash)
	if err != nil {
		return translate(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return translate(err)
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u      auth.User
		unitID sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &unitID, &u.IsSuperUser, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if unitID.Valid {
		u.UnitID = &unitID.Int64
	}
	return &u, nil
}
