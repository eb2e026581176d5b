package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// allowedTables whitelists the resource tables the owner lookup may touch;
// the table name is interpolated into SQL and must never come from request
// input directly.
var allowedTables = map[string]struct{}{
	"members": {},
	"tickets": {},
	"tasks":   {},
	"orders":  {},
	"pages":   {},
}

// OwnerRepository resolves a resource's owning tenant with a single
// point-read.
type OwnerRepository struct {
	db *sqlx.DB
}

func NewOwnerRepository(db *sqlx.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// GetOwningTenant returns the tenant_id of the row, nil when the resource
// itself is tenantless. A missing row maps to sql.ErrNoRows for the caller
// to translate.
func (r *OwnerRepository) GetOwningTenant(ctx context.Context, table string, resourceID int64) (*int64, error) {
	if _, ok := allowedTables[table]; !ok {
		return nil, fmt.Errorf("owner lookup: unknown resource table %q", table)
	}

	var tenantID sql.NullInt64
	query := fmt.Sprintf("SELECT tenant_id FROM %s WHERE id = $1", table)
	if err := r.db.GetContext(ctx, &tenantID, query, resourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("owner lookup: %w", err)
	}
	if !tenantID.Valid {
		return nil, nil
	}
	v := tenantID.Int64
	return &v, nil
}
