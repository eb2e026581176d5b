package permission_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clubops/platform/internal"
	"github.com/clubops/platform/internal/permission"
)

func TestPermission(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Suite")
}

type mockStore struct {
	roles  map[int64]int
	grants map[int64][]permission.Permission
	err    error
}

func (m *mockStore) GetPrincipalRole(_ context.Context, userID int64) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.roles[userID], nil
}

func (m *mockStore) GetUserGrants(_ context.Context, userID int64) ([]permission.Permission, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.grants[userID], nil
}

var _ = Describe("Resolver", func() {
	var (
		store    *mockStore
		resolver *permission.Resolver
		ctx      context.Context
	)

	staff := &internal.Principal{UserID: 1, RoleLevel: permission.RoleStaff}

	BeforeEach(func() {
		ctx = context.Background()
		store = &mockStore{
			roles:  map[int64]int{1: permission.RoleStaff},
			grants: map[int64][]permission.Permission{},
		}
		resolver = permission.NewResolver(store)
	})

	Describe("Load", func() {
		It("unions the role bundle with explicit grants", func() {
			store.grants[1] = []permission.Permission{
				{Resource: permission.ResourceBilling, Action: permission.ActionRead},
			}

			effective, grants, err := resolver.Load(ctx, staff)
			Expect(err).NotTo(HaveOccurred())

			// From the staff bundle
			Expect(effective.Has(permission.Permission{Resource: permission.ResourceMembers, Action: permission.ActionRead})).To(BeTrue())
			// From the explicit grant
			Expect(effective.Has(permission.Permission{Resource: permission.ResourceBilling, Action: permission.ActionRead})).To(BeTrue())
			// Bundle permissions do not leak into the raw grant set
			Expect(grants.Has(permission.Permission{Resource: permission.ResourceMembers, Action: permission.ActionRead})).To(BeFalse())
			Expect(grants.Has(permission.Permission{Resource: permission.ResourceBilling, Action: permission.ActionRead})).To(BeTrue())
		})

		It("propagates store failures", func() {
			store.err = errors.New("db down")
			_, _, err := resolver.Load(ctx, staff)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Authorize", func() {
		membersRead := permission.Permission{Resource: permission.ResourceMembers, Action: permission.ActionRead}
		billingRead := permission.Permission{Resource: permission.ResourceBilling, Action: permission.ActionRead}

		It("denies when both required sets are empty", func() {
			ok := permission.Authorize(staff, nil, nil, permission.NewSet(membersRead))
			Expect(ok).To(BeFalse())
		})

		It("allows via the role floor alone", func() {
			admin := &internal.Principal{UserID: 2, RoleLevel: permission.RoleAdmin}
			ok := permission.Authorize(admin, []permission.Permission{billingRead}, []int{permission.RoleAdmin}, permission.NewSet())
			Expect(ok).To(BeTrue())
		})

		It("uses the most privileged of the permitted roles as the floor", func() {
			// Staff is level 3; the floor across {Admin=2, Member=4} is 2, so
			// staff does not pass on role alone.
			ok := permission.Authorize(staff, nil, []int{permission.RoleMember, permission.RoleAdmin}, permission.NewSet())
			Expect(ok).To(BeFalse())

			admin := &internal.Principal{UserID: 2, RoleLevel: permission.RoleAdmin}
			Expect(permission.Authorize(admin, nil, []int{permission.RoleMember, permission.RoleAdmin}, permission.NewSet())).To(BeTrue())
		})

		It("allows via permissions when the role floor fails", func() {
			effective := permission.NewSet(billingRead)
			ok := permission.Authorize(staff, []permission.Permission{billingRead}, []int{permission.RoleAdmin}, effective)
			Expect(ok).To(BeTrue())
		})

		It("requires every listed permission, not just one", func() {
			effective := permission.NewSet(membersRead)
			ok := permission.Authorize(staff, []permission.Permission{membersRead, billingRead}, nil, effective)
			Expect(ok).To(BeFalse())

			effective.Add(billingRead)
			Expect(permission.Authorize(staff, []permission.Permission{membersRead, billingRead}, nil, effective)).To(BeTrue())
		})
	})

	Describe("RoleBundle", func() {
		It("gives platform owner and admin the full matrix", func() {
			Expect(permission.RoleBundle(permission.RolePlatformOwner)).To(ConsistOf(permission.RoleBundle(permission.RoleAdmin)))
		})

		It("limits members to read-only storefront resources", func() {
			bundle := permission.NewSet(permission.RoleBundle(permission.RoleMember)...)
			Expect(bundle.Has(permission.Permission{Resource: permission.ResourceStore, Action: permission.ActionRead})).To(BeTrue())
			Expect(bundle.Has(permission.Permission{Resource: permission.ResourceMembers, Action: permission.ActionRead})).To(BeFalse())
		})

		It("returns a copy callers can mutate safely", func() {
			bundle := permission.RoleBundle(permission.RoleMember)
			bundle[0] = permission.Permission{Resource: permission.ResourceTenants, Action: permission.ActionManage}

			fresh := permission.NewSet(permission.RoleBundle(permission.RoleMember)...)
			Expect(fresh.Has(permission.Permission{Resource: permission.ResourceTenants, Action: permission.ActionManage})).To(BeFalse())
		})
	})
})
