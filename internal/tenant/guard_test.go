package tenant_test

import (
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clubops/platform/internal"
	"github.com/clubops/platform/internal/tenant"
)

func TestTenant(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Tenant Suite")
}

var _ = Describe("Guard", func() {
	var guard *tenant.Guard

	tenantA := int64(1)
	tenantB := int64(2)

	BeforeEach(func() {
		guard = tenant.NewGuard()
	})

	It("passes when the operation has no explicit target", func() {
		p := &internal.Principal{UserID: 1, TenantID: &tenantA}
		Expect(guard.EnsureTenantScope(p, nil)).To(Succeed())
	})

	It("passes when the target belongs to the principal's tenant", func() {
		p := &internal.Principal{UserID: 1, TenantID: &tenantA}
		Expect(guard.EnsureTenantScope(p, &tenantA)).To(Succeed())
	})

	It("denies cross-tenant access", func() {
		p := &internal.Principal{UserID: 1, TenantID: &tenantA}
		err := guard.EnsureTenantScope(p, &tenantB)
		Expect(errors.Is(err, internal.ErrCrossTenantAccessDenied)).To(BeTrue())
	})

	It("denies a tenantless principal reaching tenant-owned data", func() {
		p := &internal.Principal{UserID: 1}
		err := guard.EnsureTenantScope(p, &tenantA)
		Expect(errors.Is(err, internal.ErrCrossTenantAccessDenied)).To(BeTrue())
	})

	It("reports cross-tenant denial with the same wire shape as a permission denial", func() {
		p := &internal.Principal{UserID: 1, TenantID: &tenantA}
		err := guard.EnsureTenantScope(p, &tenantB)

		var appErr *internal.AppError
		Expect(errors.As(err, &appErr)).To(BeTrue())

		scopeStatus, scopeBody := appErr.ToHTTPResponse()
		forbiddenStatus, forbiddenBody := internal.ErrForbidden.ToHTTPResponse()
		Expect(scopeStatus).To(Equal(forbiddenStatus))
		Expect(scopeBody).To(Equal(forbiddenBody))
	})
})
