package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/clubops/platform/internal/permission"
)

// Repository reads role levels and explicit per-user grants.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetPrincipalRole(ctx context.Context, userID int64) (int, error) {
	var roleLevel int
	row := r.db.WithContext(ctx).Raw(
		`SELECT role_level FROM users WHERE id = ?`, userID,
	).Row()
	if err := row.Scan(&roleLevel); err != nil {
		return 0, err
	}
	return roleLevel, nil
}

func (r *Repository) GetUserGrants(ctx context.Context, userID int64) ([]permission.Permission, error) {
	rows, err := r.db.WithContext(ctx).Raw(
		`SELECT resource, action FROM user_permissions WHERE user_id = ?`, userID,
	).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []permission.Permission
	for rows.Next() {
		var resource, action string
		if err := rows.Scan(&resource, &action); err != nil {
			return nil, err
		}
		grants = append(grants, permission.Permission{
			Resource: permission.Resource(resource),
			Action:   permission.Action(action),
		})
	}
	return grants, rows.Err()
}
