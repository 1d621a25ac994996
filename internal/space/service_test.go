package space_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/docflow/internal"
	orgDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/organization"
	spaceDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/space"
	userDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/user"
	"github.com/frahmantamala/docflow/internal/core/events"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/space"
	"github.com/frahmantamala/docflow/internal/space/postgres"
	"github.com/frahmantamala/docflow/internal/workflow"
)

func TestSpace(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Space Suite")
}

type grants map[int64]map[permission.Capability]bool

func (g grants) Authorize(_ context.Context, p permission.Principal, _ permission.Target, c permission.Capability) error {
	if g[p.ID][c] {
		return nil
	}
	return internal.ErrNotAuthorized
}

type publisherFunc func(ctx context.Context, e events.Event) error

func (f publisherFunc) Publish(ctx context.Context, e events.Event) error { return f(ctx, e) }

const (
	admin   = int64(1)
	invitee = int64(2)
	nobody  = int64(3)
)

func principal(id int64) permission.Principal {
	return permission.Principal{ID: id, Type: permission.PrincipalUser}
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		svc       *space.Service
		published []events.Event
		mu        sync.Mutex
		sp        *space.Space
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(
			&userDatamodel.User{},
			&orgDatamodel.Membership{},
			&spaceDatamodel.Space{},
			&spaceDatamodel.Invitation{},
		)).To(Succeed())
		Expect(db.Create(&userDatamodel.User{ID: invitee, Email: "guest@example.com", Name: "Guest", PasswordHash: "x", Type: "user", IsActive: true}).Error).To(Succeed())

		published = nil
		pub := publisherFunc(func(_ context.Context, e events.Event) error {
			mu.Lock()
			defer mu.Unlock()
			published = append(published, e)
			return nil
		})
		g := grants{admin: {
			permission.CapCreateSpace:   true,
			permission.CapViewSpace:     true,
			permission.CapManageMembers: true,
		}}
		svc = space.NewService(postgres.NewSpaceRepository(db), g, pub, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

		sp, err = svc.Create(ctx, principal(admin), space.CreateSpaceDTO{OrganizationID: 1, Name: "  Finance  "})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	It("creates spaces in draft", func() {
		Expect(sp.ID).NotTo(BeZero())
		Expect(sp.Name).To(Equal("Finance"))
		Expect(sp.Status).To(Equal(workflow.StatusDraft))
		Expect(sp.Version).To(Equal(int64(1)))
	})

	It("requires create_space", func() {
		_, err := svc.Create(ctx, principal(nobody), space.CreateSpaceDTO{OrganizationID: 1, Name: "X"})
		Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
	})

	It("hides soft-deleted spaces", func() {
		Expect(db.Exec("UPDATE spaces SET deleted_at = ? WHERE id = ?", time.Now(), sp.ID).Error).To(Succeed())

		_, err := svc.Get(ctx, principal(admin), sp.ID)
		Expect(errors.Is(err, internal.ErrNotFound)).To(BeTrue())

		list, err := svc.List(ctx, principal(admin), 1, 20, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(BeEmpty())
	})

	Describe("invitations", func() {
		invite := func() (*space.Invitation, error) {
			return svc.Invite(ctx, principal(admin), sp.ID, space.CreateInvitationDTO{Email: "Guest@Example.com", Role: permission.RoleMemberFull})
		}

		It("creates one pending invitation per address and announces it", func() {
			inv, err := invite()
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.Email).To(Equal("guest@example.com"))
			Expect(inv.Token).NotTo(BeEmpty())
			Expect(inv.Status).To(Equal(space.InvitationPending))

			_, err = invite()
			Expect(errors.Is(err, internal.ErrDuplicate)).To(BeTrue())

			Expect(published).To(HaveLen(1))
			Expect(published[0].EventType()).To(Equal(events.EventTypeInvitationCreated))
		})

		It("replaces an invitation that has already expired", func() {
			first, err := invite()
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Model(&spaceDatamodel.Invitation{}).Where("id = ?", first.ID).Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error).To(Succeed())

			second, err := invite()
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).NotTo(Equal(first.ID))

			all, err := svc.ListInvitations(ctx, principal(admin), sp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(all[0].Status).To(Equal(space.InvitationExpired))
			Expect(all[1].Status).To(Equal(space.InvitationPending))
		})

		It("activates a membership when the invited user accepts", func() {
			inv, err := invite()
			Expect(err).NotTo(HaveOccurred())

			accepted, err := svc.Respond(ctx, principal(invitee), space.RespondInvitationDTO{Token: inv.Token, Accept: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(accepted.Status).To(Equal(space.InvitationAccepted))

			var m orgDatamodel.Membership
			Expect(db.Where("organization_id = ? AND user_id = ?", 1, invitee).First(&m).Error).To(Succeed())
			Expect(m.Role).To(Equal("member_full"))
			Expect(m.Status).To(Equal("active"))

			_, err = svc.Respond(ctx, principal(invitee), space.RespondInvitationDTO{Token: inv.Token, Accept: true})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvitationConsumed))
		})

		It("refuses someone else's invitation", func() {
			inv, err := invite()
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Create(&userDatamodel.User{ID: nobody, Email: "other@example.com", Name: "O", PasswordHash: "x", IsActive: true}).Error).To(Succeed())

			_, err = svc.Respond(ctx, principal(nobody), space.RespondInvitationDTO{Token: inv.Token, Accept: true})
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
		})

		It("reports expiry and marks the row", func() {
			inv, err := invite()
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Model(&spaceDatamodel.Invitation{}).Where("id = ?", inv.ID).Update("expires_at", time.Now().UTC().Add(-time.Second)).Error).To(Succeed())

			_, err = svc.Respond(ctx, principal(invitee), space.RespondInvitationDTO{Token: inv.Token, Accept: true})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvitationExpired))

			var row spaceDatamodel.Invitation
			Expect(db.First(&row, inv.ID).Error).To(Succeed())
			Expect(row.Status).To(Equal("expired"))
		})

		It("expires overdue invitations in bulk", func() {
			inv, err := invite()
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Model(&spaceDatamodel.Invitation{}).Where("id = ?", inv.ID).Update("expires_at", time.Now().UTC().Add(-time.Second)).Error).To(Succeed())

			n, err := svc.ExpireStale(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
		})

		It("revokes only pending invitations of the space", func() {
			inv, err := invite()
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.Revoke(ctx, principal(admin), sp.ID, inv.ID)).To(Succeed())
			err = svc.Revoke(ctx, principal(admin), sp.ID, inv.ID)
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvitationConsumed))

			Expect(errors.Is(svc.Revoke(ctx, principal(admin), sp.ID, 999), internal.ErrNotFound)).To(BeTrue())
		})

		It("declines without creating a membership", func() {
			inv, err := invite()
			Expect(err).NotTo(HaveOccurred())

			declined, err := svc.Respond(ctx, principal(invitee), space.RespondInvitationDTO{Token: inv.Token})
			Expect(err).NotTo(HaveOccurred())
			Expect(declined.Status).To(Equal(space.InvitationDeclined))

			var count int64
			Expect(db.Model(&orgDatamodel.Membership{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})
	})
})
