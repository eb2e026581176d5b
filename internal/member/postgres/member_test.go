package postgres

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clubops/platform/internal/member"
)

func TestMemberRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MemberRepository Suite")
}

var _ = Describe("MemberRepository", func() {
	var (
		db   *gorm.DB
		repo member.Repository
		ctx  context.Context
	)

	tenantA := int64(1)
	tenantB := int64(2)

	enroll := func(tenantID int64, email string) *member.Member {
		m := member.NewMember(tenantID, member.CreateMemberDTO{Email: email, FullName: "Test Member"})
		Expect(repo.Create(ctx, m)).To(Succeed())
		return m
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&member.Member{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewMemberRepository(db)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("GetByID", func() {
		It("returns a member of the requested tenant", func() {
			created := enroll(tenantA, "a@example.com")

			got, err := repo.GetByID(ctx, tenantA, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Email).To(Equal("a@example.com"))
			Expect(got.Status).To(Equal(member.StatusActive))
		})

		It("hides another tenant's member behind not found", func() {
			created := enroll(tenantA, "a@example.com")

			_, err := repo.GetByID(ctx, tenantB, created.ID)
			Expect(err).To(MatchError(member.ErrMemberNotFound))
		})

		It("returns not found for a missing id", func() {
			_, err := repo.GetByID(ctx, tenantA, 9999)
			Expect(err).To(MatchError(member.ErrMemberNotFound))
		})
	})

	Describe("ListByTenant", func() {
		It("lists only the tenant's members", func() {
			enroll(tenantA, "a1@example.com")
			enroll(tenantA, "a2@example.com")
			enroll(tenantB, "b1@example.com")

			members, err := repo.ListByTenant(ctx, tenantA, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(HaveLen(2))
			for _, m := range members {
				Expect(m.TenantID).To(Equal(tenantA))
			}
		})

		It("applies limit and offset", func() {
			for _, email := range []string{"m1@x.com", "m2@x.com", "m3@x.com"} {
				enroll(tenantA, email)
			}

			page, err := repo.ListByTenant(ctx, tenantA, 2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(2))

			rest, err := repo.ListByTenant(ctx, tenantA, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(rest).To(HaveLen(1))
		})
	})

	Describe("UpdateStatus", func() {
		It("updates status and departure time within the tenant", func() {
			created := enroll(tenantA, "a@example.com")

			leftAt := time.Now()
			Expect(repo.UpdateStatus(ctx, tenantA, created.ID, member.StatusCancelled, &leftAt)).To(Succeed())

			got, err := repo.GetByID(ctx, tenantA, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(member.StatusCancelled))
			Expect(got.LeftAt).NotTo(BeNil())
		})

		It("refuses to touch another tenant's member", func() {
			created := enroll(tenantA, "a@example.com")

			err := repo.UpdateStatus(ctx, tenantB, created.ID, member.StatusSuspended, nil)
			Expect(err).To(MatchError(member.ErrMemberNotFound))

			got, err := repo.GetByID(ctx, tenantA, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(member.StatusActive))
		})
	})

	Describe("Update", func() {
		It("persists detail changes", func() {
			created := enroll(tenantA, "a@example.com")

			created.FullName = "Renamed Member"
			Expect(repo.Update(ctx, created)).To(Succeed())

			got, err := repo.GetByID(ctx, tenantA, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FullName).To(Equal("Renamed Member"))
		})
	})
})
