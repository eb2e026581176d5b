package subscription

import "context"

// Feature is a subscription-gated capability bundle a tenant may or may not
// have purchased. UI/API surfaces for a feature are atomic: either the whole
// module is available or none of it.
type Feature string

const (
	FeatureMembers  Feature = "members"
	FeatureBilling  Feature = "billing"
	FeatureStore    Feature = "store"
	FeatureTickets  Feature = "tickets"
	FeatureTasks    Feature = "tasks"
	FeatureSessions Feature = "sessions"
	FeatureCMS      Feature = "cms"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusTrial    Status = "TRIAL"
	StatusExpired  Status = "EXPIRED"
)

// State is a tenant's subscription snapshot, owned by the billing subsystem
// and read-only to this core.
type State struct {
	TenantID       int64     `json:"tenant_id"`
	ActiveFeatures []Feature `json:"active_features"`
	Status         Status    `json:"status"`
}

// BillingReader is the billing subsystem contract.
type BillingReader interface {
	GetActiveFeatures(ctx context.Context, tenantID int64) ([]Feature, error)
	GetSubscriptionStatus(ctx context.Context, tenantID int64) (Status, error)
}
