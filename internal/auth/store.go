package auth

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when a record does not exist. Callers
// map it to the appropriate fault kind for their flow; it never reaches a
// client as-is.
var ErrNotFound = errors.New("auth: not found")

// UserStore manages user accounts.
type UserStore interface {
	Find(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// UnitStore exposes the unit tree. The scope resolver builds its own
// index from the flat lists.
type UnitStore interface {
	ListUnits(ctx context.Context) ([]Unit, error)
	ListClasses(ctx context.Context) ([]Class, error)
}

// PermissionStore resolves effective permissions via the
// user → roles → role_permissions → permissions joins.
type PermissionStore interface {
	// UserPermissions returns permission names formatted "resource:action".
	// Empty slice when the user has no roles.
	UserPermissions(ctx context.Context, userID int64) ([]string, error)
}
