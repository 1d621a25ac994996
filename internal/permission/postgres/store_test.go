package postgres_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	cabinetDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/cabinet"
	orgDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/organization"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/permission/postgres"
)

func TestPermissionStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Store Suite")
}

var _ = Describe("Store", func() {
	var (
		gdb   *gorm.DB
		store *postgres.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		var err error
		gdb, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := gdb.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(gdb.AutoMigrate(&orgDatamodel.Membership{}, &cabinetDatamodel.MemberPermission{})).To(Succeed())

		store = postgres.NewStore(sqlx.NewDb(sqlDB, "sqlite3"))
		ctx = context.Background()
	})

	AfterEach(func() {
		sqlDB, _ := gdb.DB()
		sqlDB.Close()
	})

	It("returns nil for unknown members", func() {
		m, err := store.Membership(ctx, 1, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(BeNil())
	})

	It("prefers the active membership and decodes overrides", func() {
		Expect(gdb.Create(&orgDatamodel.Membership{OrganizationID: 1, UserID: 2, Role: "owner", Status: "suspended"}).Error).To(Succeed())
		Expect(gdb.Create(&orgDatamodel.Membership{
			OrganizationID:    1,
			UserID:            2,
			Role:              "member_read",
			Status:            "active",
			CustomPermissions: datatypes.JSON(`{"delete_records":true}`),
		}).Error).To(Succeed())

		m, err := store.Membership(ctx, 1, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Role).To(Equal(permission.RoleMemberRead))
		Expect(m.Active()).To(BeTrue())
		v, ok := m.Custom.Lookup(permission.CapDeleteRecords)
		Expect(ok).To(BeTrue())
		Expect(v).To(BeTrue())
	})

	It("rejects unknown roles", func() {
		Expect(gdb.Create(&orgDatamodel.Membership{OrganizationID: 1, UserID: 3, Role: "wizard", Status: "active"}).Error).To(Succeed())
		_, err := store.Membership(ctx, 1, 3)
		Expect(err).To(HaveOccurred())
	})

	It("loads cabinet permissions", func() {
		Expect(gdb.Create(&cabinetDatamodel.MemberPermission{CabinetID: 5, UserID: 2, DeleteRecords: true, GrantedBy: 1}).Error).To(Succeed())

		cp, err := store.CabinetPermission(ctx, 5, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(cp.DeleteRecords).To(BeTrue())
		Expect(cp.ReadRecords).To(BeFalse())

		cp, err = store.CabinetPermission(ctx, 6, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(cp).To(BeNil())
	})
})
