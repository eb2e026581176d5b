package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clubops/platform/internal"
	"github.com/clubops/platform/internal/subscription"
)

func TestSubscription(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Subscription Suite")
}

type mockBilling struct {
	features map[int64][]subscription.Feature
	status   map[int64]subscription.Status
	err      error
	calls    int
}

func (m *mockBilling) GetActiveFeatures(_ context.Context, tenantID int64) ([]subscription.Feature, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.features[tenantID], nil
}

func (m *mockBilling) GetSubscriptionStatus(_ context.Context, tenantID int64) (subscription.Status, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.status[tenantID], nil
}

var _ = Describe("Gate", func() {
	var (
		billing *mockBilling
		gate    *subscription.Gate
		ctx     context.Context

		tenantID int64 = 7
	)

	BeforeEach(func() {
		ctx = context.Background()
		billing = &mockBilling{
			features: map[int64][]subscription.Feature{
				tenantID: {subscription.FeatureMembers, subscription.FeatureStore},
			},
			status: map[int64]subscription.Status{tenantID: subscription.StatusActive},
		}
		gate = subscription.NewGate(billing)
	})

	It("passes when no features are required", func() {
		Expect(gate.CheckModules(ctx, &tenantID, nil)).To(Succeed())
		Expect(billing.calls).To(BeZero())
	})

	It("passes for a platform-level principal with no tenant", func() {
		err := gate.CheckModules(ctx, nil, []subscription.Feature{subscription.FeatureMembers})
		Expect(err).To(Succeed())
		Expect(billing.calls).To(BeZero())
	})

	It("passes when every required feature is active", func() {
		err := gate.CheckModules(ctx, &tenantID, []subscription.Feature{
			subscription.FeatureMembers, subscription.FeatureStore,
		})
		Expect(err).To(Succeed())
	})

	It("fails when any single required feature is missing", func() {
		err := gate.CheckModules(ctx, &tenantID, []subscription.Feature{
			subscription.FeatureMembers, subscription.FeatureBilling,
		})
		Expect(errors.Is(err, internal.ErrModuleNotLicensed)).To(BeTrue())
	})

	It("reports exactly the missing features", func() {
		err := gate.CheckModules(ctx, &tenantID, []subscription.Feature{
			subscription.FeatureMembers, subscription.FeatureBilling, subscription.FeatureTickets,
		})

		var appErr *internal.AppError
		Expect(errors.As(err, &appErr)).To(BeTrue())
		details, ok := appErr.Details.(subscription.MissingFeatures)
		Expect(ok).To(BeTrue())
		Expect(details.Missing).To(ConsistOf(subscription.FeatureBilling, subscription.FeatureTickets))
	})

	It("maps billing failures to a dependency error", func() {
		billing.err = errors.New("billing timeout")
		err := gate.CheckModules(ctx, &tenantID, []subscription.Feature{subscription.FeatureMembers})
		Expect(errors.Is(err, internal.ErrDependencyUnavailable)).To(BeTrue())
	})
})

var _ = Describe("CachedBillingReader", func() {
	var (
		billing *mockBilling
		cached  *subscription.CachedBillingReader
		ctx     context.Context

		tenantID int64 = 7
	)

	BeforeEach(func() {
		ctx = context.Background()
		billing = &mockBilling{
			features: map[int64][]subscription.Feature{tenantID: {subscription.FeatureMembers}},
			status:   map[int64]subscription.Status{tenantID: subscription.StatusTrial},
		}
		cached = subscription.NewCachedBillingReader(billing, time.Minute)
	})

	It("serves repeated reads from the cache", func() {
		for i := 0; i < 3; i++ {
			features, err := cached.GetActiveFeatures(ctx, tenantID)
			Expect(err).NotTo(HaveOccurred())
			Expect(features).To(ConsistOf(subscription.FeatureMembers))
		}
		Expect(billing.calls).To(Equal(1))
	})

	It("does not cache failures", func() {
		billing.err = errors.New("billing down")
		_, err := cached.GetActiveFeatures(ctx, tenantID)
		Expect(err).To(HaveOccurred())

		billing.err = nil
		features, err := cached.GetActiveFeatures(ctx, tenantID)
		Expect(err).NotTo(HaveOccurred())
		Expect(features).To(ConsistOf(subscription.FeatureMembers))
	})

	It("refetches after invalidation", func() {
		_, err := cached.GetActiveFeatures(ctx, tenantID)
		Expect(err).NotTo(HaveOccurred())

		billing.features[tenantID] = []subscription.Feature{subscription.FeatureMembers, subscription.FeatureBilling}
		cached.Invalidate(tenantID)

		features, err := cached.GetActiveFeatures(ctx, tenantID)
		Expect(err).NotTo(HaveOccurred())
		Expect(features).To(ConsistOf(subscription.FeatureMembers, subscription.FeatureBilling))
		Expect(billing.calls).To(Equal(2))
	})

	It("caches subscription status independently of features", func() {
		status, err := cached.GetSubscriptionStatus(ctx, tenantID)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(subscription.StatusTrial))

		_, err = cached.GetActiveFeatures(ctx, tenantID)
		Expect(err).NotTo(HaveOccurred())
		Expect(billing.calls).To(Equal(2))
	})
})
