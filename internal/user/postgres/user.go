package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/clubops/platform/internal/user"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, userID int64) (*user.User, error) {
	var u user.User
	query := `SELECT id, tenant_id, email, name, role_level, is_active, created_at, updated_at
		FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &u, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (r *Repository) GetGrantNames(ctx context.Context, userID int64) ([]string, error) {
	var grants []string
	query := `SELECT resource || ':' || action FROM user_permissions WHERE user_id = $1 ORDER BY resource, action`
	if err := r.db.SelectContext(ctx, &grants, query, userID); err != nil {
		return nil, fmt.Errorf("select user grants: %w", err)
	}
	if grants == nil {
		grants = []string{}
	}
	return grants, nil
}
