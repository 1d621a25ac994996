package cabinet_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/cabinet"
	"github.com/frahmantamala/docflow/internal/cabinet/postgres"
	cabinetDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/cabinet"
	orgDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/organization"
	spaceDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/space"
	workflowDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
	"github.com/frahmantamala/docflow/internal/permission"
	permissionStore "github.com/frahmantamala/docflow/internal/permission/postgres"
	"github.com/frahmantamala/docflow/internal/workflow"
)

func TestCabinet(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cabinet Suite")
}

const (
	ownerID  = int64(1)
	readerID = int64(2)
	orgID    = int64(7)
)

func principal(id int64) permission.Principal {
	return permission.Principal{ID: id, Type: permission.PrincipalUser}
}

// The service runs against the real resolver so cabinet grants are seen
// exactly as the rest of the system sees them.
var _ = Describe("Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		resolver *permission.Resolver
		svc      *cabinet.Service
		spaceID  int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(
			&orgDatamodel.Membership{},
			&spaceDatamodel.Space{},
			&cabinetDatamodel.Cabinet{},
			&cabinetDatamodel.MemberPermission{},
		)).To(Succeed())

		Expect(db.Create(&orgDatamodel.Membership{OrganizationID: orgID, UserID: ownerID, Role: "owner", Status: "active"}).Error).To(Succeed())
		Expect(db.Create(&orgDatamodel.Membership{OrganizationID: orgID, UserID: readerID, Role: "member_read", Status: "active"}).Error).To(Succeed())
		sp := &spaceDatamodel.Space{
			OrganizationID: orgID,
			Name:           "Legal",
			ApprovalState:  workflowDatamodel.ApprovalState{Status: "approved", CreatorID: ownerID, Version: 1},
		}
		Expect(db.Create(sp).Error).To(Succeed())
		spaceID = sp.ID

		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		resolver = permission.NewResolver(permissionStore.NewStore(sqlx.NewDb(sqlDB, "sqlite3")), quiet)
		svc = cabinet.NewService(postgres.NewCabinetRepository(db), resolver, quiet)
	})

	AfterEach(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	It("creates cabinets in draft inside the space's organization", func() {
		c, err := svc.Create(ctx, principal(ownerID), cabinet.CreateCabinetDTO{SpaceID: spaceID, Name: "Contracts"})

		Expect(err).NotTo(HaveOccurred())
		Expect(c.OrganizationID).To(Equal(orgID))
		Expect(c.Status).To(Equal(workflow.StatusDraft))
	})

	It("refuses creation below member_full", func() {
		_, err := svc.Create(ctx, principal(readerID), cabinet.CreateCabinetDTO{SpaceID: spaceID, Name: "Contracts"})
		Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
	})

	It("reports a missing space", func() {
		_, err := svc.Create(ctx, principal(ownerID), cabinet.CreateCabinetDTO{SpaceID: 999, Name: "Contracts"})
		Expect(errors.Is(err, internal.ErrNotFound)).To(BeTrue())
	})

	Describe("member permissions", func() {
		var contracts, archive *cabinet.Cabinet

		BeforeEach(func() {
			var err error
			contracts, err = svc.Create(ctx, principal(ownerID), cabinet.CreateCabinetDTO{SpaceID: spaceID, Name: "Contracts"})
			Expect(err).NotTo(HaveOccurred())
			archive, err = svc.Create(ctx, principal(ownerID), cabinet.CreateCabinetDTO{SpaceID: spaceID, Name: "Archive"})
			Expect(err).NotTo(HaveOccurred())
		})

		recordIn := func(c *cabinet.Cabinet) permission.Target {
			return permission.Target{Kind: permission.KindRecord, ID: 1, OrganizationID: orgID, CabinetID: c.ID}
		}

		It("grants a capability inside one cabinet only", func() {
			Expect(resolver.Check(ctx, principal(readerID), recordIn(contracts), permission.CapDeleteRecords)).To(BeFalse())

			_, err := svc.SetMemberPermission(ctx, principal(ownerID), contracts.ID, readerID, cabinet.MemberPermissionDTO{ReadRecords: true, DeleteRecords: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(resolver.Check(ctx, principal(readerID), recordIn(contracts), permission.CapDeleteRecords)).To(BeTrue())
			Expect(resolver.Check(ctx, principal(readerID), recordIn(archive), permission.CapDeleteRecords)).To(BeFalse())
		})

		It("replaces the grant set on every write", func() {
			_, err := svc.SetMemberPermission(ctx, principal(ownerID), contracts.ID, readerID, cabinet.MemberPermissionDTO{ReadRecords: true, DeleteRecords: true})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.SetMemberPermission(ctx, principal(ownerID), contracts.ID, readerID, cabinet.MemberPermissionDTO{ReadRecords: true})
			Expect(err).NotTo(HaveOccurred())

			perms, err := svc.ListMemberPermissions(ctx, principal(ownerID), contracts.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(HaveLen(1))
			Expect(perms[0].DeleteRecords).To(BeFalse())
			Expect(perms[0].GrantedBy).To(Equal(ownerID))
			Expect(resolver.Check(ctx, principal(readerID), recordIn(contracts), permission.CapDeleteRecords)).To(BeFalse())
		})

		It("can revoke a role-granted capability for one cabinet", func() {
			Expect(resolver.Check(ctx, principal(readerID), recordIn(contracts), permission.CapReadRecords)).To(BeTrue())

			_, err := svc.SetMemberPermission(ctx, principal(ownerID), contracts.ID, readerID, cabinet.MemberPermissionDTO{})
			Expect(err).NotTo(HaveOccurred())

			Expect(resolver.Check(ctx, principal(readerID), recordIn(contracts), permission.CapReadRecords)).To(BeFalse())
			Expect(svc.RemoveMemberPermission(ctx, principal(ownerID), contracts.ID, readerID)).To(Succeed())
			Expect(resolver.Check(ctx, principal(readerID), recordIn(contracts), permission.CapReadRecords)).To(BeTrue())
		})

		It("lets a cabinet manager grant but not an ordinary reader", func() {
			_, err := svc.SetMemberPermission(ctx, principal(readerID), contracts.ID, readerID, cabinet.MemberPermissionDTO{DeleteRecords: true})
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

			_, err = svc.SetMemberPermission(ctx, principal(ownerID), contracts.ID, readerID, cabinet.MemberPermissionDTO{ReadRecords: true, ManageCabinet: true})
			Expect(err).NotTo(HaveOccurred())

			perms, err := svc.ListMemberPermissions(ctx, principal(readerID), contracts.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(HaveLen(1))
		})

		It("lists cabinets of a space", func() {
			list, err := svc.ListBySpace(ctx, principal(readerID), spaceID, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
		})
	})
})
