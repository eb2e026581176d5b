package subscription

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedBillingReader memoizes subscription reads for a short TTL so the
// pipeline does not hit the billing store on every request. Staleness is
// bounded by the TTL; entitlement changes are not latency-critical.
type CachedBillingReader struct {
	inner BillingReader
	cache *gocache.Cache
}

func NewCachedBillingReader(inner BillingReader, ttl time.Duration) *CachedBillingReader {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedBillingReader{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func featuresKey(tenantID int64) string { return fmt.Sprintf("features:%d", tenantID) }
func statusKey(tenantID int64) string   { return fmt.Sprintf("status:%d", tenantID) }

func (c *CachedBillingReader) GetActiveFeatures(ctx context.Context, tenantID int64) ([]Feature, error) {
	if cached, ok := c.cache.Get(featuresKey(tenantID)); ok {
		return cached.([]Feature), nil
	}

	features, err := c.inner.GetActiveFeatures(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(featuresKey(tenantID), features)
	return features, nil
}

func (c *CachedBillingReader) GetSubscriptionStatus(ctx context.Context, tenantID int64) (Status, error) {
	if cached, ok := c.cache.Get(statusKey(tenantID)); ok {
		return cached.(Status), nil
	}

	status, err := c.inner.GetSubscriptionStatus(ctx, tenantID)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(statusKey(tenantID), status)
	return status, nil
}

// Invalidate drops a tenant's cached entries, for use when billing signals
// a subscription change.
func (c *CachedBillingReader) Invalidate(tenantID int64) {
	c.cache.Delete(featuresKey(tenantID))
	c.cache.Delete(statusKey(tenantID))
}
