package auth

import "time"

// Unit hierarchy levels. Battalions own company children; companies own
// classes directly.
const (
	UnitLevelBattalion = "battalion"
	UnitLevelCompany   = "company"
)

// User account statuses.
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is an operator account. UnitID is nil for accounts not attached to
// the unit tree (superusers typically).
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	UnitID       *int64    `json:"unit_id,omitempty"`
	IsSuperUser  bool      `json:"is_super_user"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Unit is a node of the two-level unit tree. ParentID is nil for
// battalion roots.
type Unit struct {
	ID       int64  `json:"id"`
	Alias    string `json:"alias"`
	Name     string `json:"name"`
	Level    string `json:"level"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// Class is the leaf of the tree and the finest-grained scope unit.
type Class struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	UnitID int64  `json:"unit_id"`
}

// Scope is the set of unit and class ids a caller may see or act upon.
type Scope struct {
	ClassIDs []int64 `json:"valid_class_ids"`
	UnitIDs  []int64 `json:"valid_unit_ids"`
}

// AuthData is the request-scoped identity reconstructed from a verified
// access token. It lives for one request.
type AuthData struct {
	UserID      int64
	IsSuperUser bool
	Status      string
	Permissions []string
	Scope       Scope
}

// HasPermission reports whether the caller's embedded permission list
// contains the given name.
func (d AuthData) HasPermission(name string) bool {
	for _, p := range d.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// TokenPair bundles the access and refresh tokens returned by login and
// refresh flows.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
