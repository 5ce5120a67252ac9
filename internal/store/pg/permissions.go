package pg

import (
	"context"
	"fmt"
)

// UserPermissions resolves a user's effective permission names through
// the role and permission joins, formatted "resource:action".
func (s *Store) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct res.name, act.name
		from user_roles ur
		join role_permissions rp on rp.role_id = ur.role_id
		join permissions p on p.id = rp.permission_id
		join resources res on res.id = p.resource_id
		join actions act on act.id = p.action_id
		where ur.user_id = $1
		order by res.name, act.name
	`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	permissions := []string{}
	for rows.Next() {
		var resource, action string
		if err := rows.Scan(&resource, &action); err != nil {
			return nil, translate(err)
		}
		permissions = append(permissions, fmt.Sprintf("%s:%s", resource, action))
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return permissions, nil
}
