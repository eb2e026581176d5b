package user

import (
	"context"
	"time"
)

// User is the profile view of an account, as returned to the account owner.
// Credential material never leaves the auth package.
type User struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  *int64    `json:"tenant_id,omitempty" db:"tenant_id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	RoleLevel int       `json:"role_level" db:"role_level"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	GetGrantNames(ctx context.Context, userID int64) ([]string, error)
}
