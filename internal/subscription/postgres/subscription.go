package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"github.com/clubops/platform/internal/subscription"
)

// Repository reads tenant subscription state from the billing-owned tables.
// This core never writes them.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetActiveFeatures(ctx context.Context, tenantID int64) ([]subscription.Feature, error) {
	rows, err := r.db.WithContext(ctx).Raw(
		`SELECT tsf.feature FROM tenant_subscription_features tsf
		 JOIN tenant_subscriptions ts ON ts.id = tsf.subscription_id
		 WHERE ts.tenant_id = ? AND ts.status IN (?, ?)`,
		tenantID, subscription.StatusActive, subscription.StatusTrial,
	).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var features []subscription.Feature
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		features = append(features, subscription.Feature(f))
	}
	return features, rows.Err()
}

func (r *Repository) GetSubscriptionStatus(ctx context.Context, tenantID int64) (subscription.Status, error) {
	var status string
	row := r.db.WithContext(ctx).Raw(
		`SELECT status FROM tenant_subscriptions WHERE tenant_id = ?`, tenantID,
	).Row()
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No subscription row at all reads as inactive, not as an error.
			return subscription.StatusInactive, nil
		}
		return "", err
	}
	return subscription.Status(status), nil
}
