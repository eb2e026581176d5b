package subscription

import (
	"context"

	"github.com/clubops/platform/internal"
)

// Gate checks whether a tenant's subscription covers the feature modules an
// operation requires.
type Gate struct {
	billing BillingReader
}

func NewGate(billing BillingReader) *Gate {
	return &Gate{billing: billing}
}

// CheckModules requires ALL of required to be active for the tenant; one
// missing feature fails the whole check. A nil tenantID (platform-level
// principal) passes trivially — subscription gating only applies to
// tenant-scoped principals. The failure carries the missing feature list so
// the caller can render an actionable upsell instead of a bare denial.
func (g *Gate) CheckModules(ctx context.Context, tenantID *int64, required []Feature) error {
	if len(required) == 0 || tenantID == nil {
		return nil
	}

	active, err := g.billing.GetActiveFeatures(ctx, *tenantID)
	if err != nil {
		return internal.ErrDependencyUnavailable.WithCause(err)
	}

	activeSet := make(map[Feature]struct{}, len(active))
	for _, f := range active {
		activeSet[f] = struct{}{}
	}

	var missing []Feature
	for _, f := range required {
		if _, ok := activeSet[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return internal.ErrModuleNotLicensed.WithDetails(MissingFeatures{Missing: missing})
	}
	return nil
}

// MissingFeatures is the detail payload attached to a ModuleNotLicensed
// denial.
type MissingFeatures struct {
	Missing []Feature `json:"missing_features"`
}
