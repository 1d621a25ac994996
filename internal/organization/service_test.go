package organization_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/auth"
	cabinetDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/cabinet"
	orgDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/organization"
	"github.com/frahmantamala/docflow/internal/organization"
	"github.com/frahmantamala/docflow/internal/organization/postgres"
	"github.com/frahmantamala/docflow/internal/permission"
	permissionStore "github.com/frahmantamala/docflow/internal/permission/postgres"
)

func TestOrganization(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Organization Suite")
}

const (
	ownerID  = int64(1)
	adminID  = int64(2)
	memberID = int64(3)
)

func principal(id int64) permission.Principal {
	return permission.Principal{ID: id, Type: permission.PrincipalUser}
}

func boolPtr(v bool) *bool { return &v }

var _ = Describe("Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		resolver *permission.Resolver
		svc      *organization.Service
		org      *organization.Organization
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
			&orgDatamodel.Organization{},
			&orgDatamodel.Membership{},
			&cabinetDatamodel.MemberPermission{},
		)).To(Succeed())

		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		store := permissionStore.NewStore(sqlx.NewDb(sqlDB, "sqlite3"))
		resolver = permission.NewResolver(store, quiet)
		svc = organization.NewService(postgres.NewOrganizationRepository(db), resolver, store, quiet)

		org, err = svc.Create(ctx, principal(ownerID), organization.CreateOrganizationDTO{Name: " Acme "})
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.AddMember(ctx, principal(ownerID), org.ID, organization.AddMemberDTO{UserID: adminID, Role: permission.RoleCoOwner})
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.AddMember(ctx, principal(adminID), org.ID, organization.AddMemberDTO{UserID: memberID})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	orgTarget := func() permission.Target {
		return permission.Target{Kind: permission.KindOrganization, ID: org.ID, OrganizationID: org.ID}
	}

	It("makes the creator an active owner", func() {
		Expect(org.Name).To(Equal("Acme"))
		Expect(resolver.Check(ctx, principal(ownerID), orgTarget(), permission.CapManageOrganization)).To(BeTrue())

		orgs, err := svc.ListForUser(ctx, principal(memberID))
		Expect(err).NotTo(HaveOccurred())
		Expect(orgs).To(HaveLen(1))
	})

	It("defaults new members to member_read", func() {
		members, err := svc.ListMembers(ctx, principal(memberID), org.ID, 20, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(members).To(HaveLen(3))
		Expect(members[2].Role).To(Equal(permission.RoleMemberRead))
		Expect(*members[2].InvitedBy).To(Equal(adminID))
	})

	It("refuses to add an active member twice", func() {
		_, err := svc.AddMember(ctx, principal(ownerID), org.ID, organization.AddMemberDTO{UserID: memberID})
		Expect(errors.Is(err, internal.ErrDuplicate)).To(BeTrue())
	})

	It("requires manage_members", func() {
		_, err := svc.AddMember(ctx, principal(memberID), org.ID, organization.AddMemberDTO{UserID: 50})
		Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
	})

	It("reserves the owner role to owners", func() {
		_, err := svc.ChangeRole(ctx, principal(adminID), org.ID, memberID, organization.ChangeRoleDTO{Role: permission.RoleOwner})
		Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

		_, err = svc.ChangeRole(ctx, principal(adminID), org.ID, ownerID, organization.ChangeRoleDTO{Role: permission.RoleGuest})
		Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

		m, err := svc.ChangeRole(ctx, principal(ownerID), org.ID, memberID, organization.ChangeRoleDTO{Role: permission.RoleOwner})
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Role).To(Equal(permission.RoleOwner))
	})

	It("changes roles and the resolver follows", func() {
		Expect(resolver.Check(ctx, principal(memberID), orgTarget(), permission.CapCreateSpace)).To(BeFalse())

		_, err := svc.ChangeRole(ctx, principal(adminID), org.ID, memberID, organization.ChangeRoleDTO{Role: permission.RoleMemberFull})
		Expect(err).NotTo(HaveOccurred())

		Expect(resolver.Check(ctx, principal(memberID), orgTarget(), permission.CapCreateSpace)).To(BeTrue())
	})

	It("suspends a member out of every grant and back", func() {
		_, err := svc.SetStatus(ctx, principal(adminID), org.ID, memberID, organization.SetStatusDTO{Status: permission.MembershipSuspended})
		Expect(err).NotTo(HaveOccurred())
		Expect(resolver.Check(ctx, principal(memberID), orgTarget(), permission.CapViewSpace)).To(BeFalse())

		_, err = svc.SetStatus(ctx, principal(adminID), org.ID, memberID, organization.SetStatusDTO{Status: permission.MembershipActive})
		Expect(err).NotTo(HaveOccurred())
		Expect(resolver.Check(ctx, principal(memberID), orgTarget(), permission.CapViewSpace)).To(BeTrue())
	})

	It("refuses self suspension and suspending an owner without ownership", func() {
		_, err := svc.SetStatus(ctx, principal(adminID), org.ID, adminID, organization.SetStatusDTO{Status: permission.MembershipSuspended})
		Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

		_, err = svc.SetStatus(ctx, principal(adminID), org.ID, ownerID, organization.SetStatusDTO{Status: permission.MembershipSuspended})
		Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
	})

	Describe("custom permissions", func() {
		It("narrow and widen a role", func() {
			custom := permission.CustomPermissions{ReadRecords: boolPtr(false), CreateLetters: boolPtr(true)}
			_, err := svc.SetCustomPermissions(ctx, principal(adminID), org.ID, memberID, custom)
			Expect(err).NotTo(HaveOccurred())

			caps, err := svc.Effective(ctx, principal(memberID), org.ID, memberID, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(caps.Capabilities).To(ContainElement(permission.CapCreateLetters))
			Expect(caps.Capabilities).NotTo(ContainElement(permission.CapReadRecords))
			Expect(caps.Capabilities).To(ContainElement(permission.CapDownloadFiles))
		})

		It("clear back to the role when emptied", func() {
			_, err := svc.SetCustomPermissions(ctx, principal(adminID), org.ID, memberID, permission.CustomPermissions{ReadRecords: boolPtr(false)})
			Expect(err).NotTo(HaveOccurred())
			m, err := svc.SetCustomPermissions(ctx, principal(adminID), org.ID, memberID, permission.CustomPermissions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Custom.IsZero()).To(BeTrue())

			Expect(resolver.Check(ctx, principal(memberID), orgTarget(), permission.CapReadRecords)).To(BeTrue())
		})

		It("keep manage_organization overrides for owners", func() {
			_, err := svc.SetCustomPermissions(ctx, principal(adminID), org.ID, memberID, permission.CustomPermissions{ManageOrganization: boolPtr(true)})
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
		})
	})

	Describe("effective capabilities", func() {
		It("applies a cabinet grant when asked about that cabinet", func() {
			Expect(db.Create(&cabinetDatamodel.MemberPermission{CabinetID: 77, UserID: memberID, ReadRecords: true, DeleteRecords: true}).Error).To(Succeed())

			plain, err := svc.Effective(ctx, principal(adminID), org.ID, memberID, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(plain.Capabilities).NotTo(ContainElement(permission.CapDeleteRecords))

			scoped, err := svc.Effective(ctx, principal(adminID), org.ID, memberID, 77)
			Expect(err).NotTo(HaveOccurred())
			Expect(scoped.Capabilities).To(ContainElement(permission.CapDeleteRecords))
			Expect(scoped.Capabilities).NotTo(ContainElement(permission.CapDownloadFiles))
		})

		It("hides other members' capabilities from ordinary members", func() {
			_, err := svc.Effective(ctx, principal(memberID), org.ID, adminID, 0)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
		})
	})

	Describe("Handler", func() {
		var router chi.Router

		BeforeEach(func() {
			router = chi.NewRouter()
			router.Route("/organizations", organization.NewHandler(svc).Routes)
		})

		send := func(method, path, body string, actor int64) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(auth.ContextWithPrincipal(req.Context(), principal(actor)))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		It("changes a role by name", func() {
			resp := send(http.MethodPut, "/organizations/1/members/3/role", `{"role":"member_full"}`, adminID)
			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`"role":"member_full"`))
		})

		It("rejects unknown roles and unknown capabilities", func() {
			Expect(send(http.MethodPut, "/organizations/1/members/3/role", `{"role":"emperor"}`, adminID).Code).To(Equal(http.StatusBadRequest))
			Expect(send(http.MethodPut, "/organizations/1/members/3/permissions", `{"fly":true}`, adminID).Code).To(Equal(http.StatusBadRequest))
		})

		It("reports effective capabilities", func() {
			resp := send(http.MethodGet, "/organizations/1/members/3/capabilities", "", memberID)
			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`"read_records"`))
		})
	})
})
