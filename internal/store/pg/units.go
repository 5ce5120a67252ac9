package pg

import (
	"context"
	"database/sql"

	"garnizon.org/internal/auth"
)

func (s *Store) ListUnits(ctx context.Context) ([]auth.Unit, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, alias, name, level, parent_id from units order by id`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var units []auth.Unit
	for rows.Next() {
		var (
			u        auth.Unit
			parentID sql.NullInt64
		)
		if err := rows.Scan(&u.ID, &u.Alias, &u.Name, &u.Level, &parentID); err != nil {
			return nil, translate(err)
		}
		if parentID.Valid {
			u.ParentID = &parentID.Int64
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return units, nil
}

func (s *Store) ListClasses(ctx context.Context) ([]auth.Class, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, unit_id from classes order by id`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var classes []auth.Class
	for rows.Next() {
		var c auth.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.UnitID); err != nil {
			return nil, translate(err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return classes, nil
}
