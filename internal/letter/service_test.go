package letter_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
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
	"github.com/frahmantamala/docflow/internal/approval"
	"github.com/frahmantamala/docflow/internal/auth"
	letterDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/letter"
	orgDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/organization"
	spaceDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/space"
	workflowDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
	"github.com/frahmantamala/docflow/internal/core/events"
	"github.com/frahmantamala/docflow/internal/letter"
	"github.com/frahmantamala/docflow/internal/letter/postgres"
	"github.com/frahmantamala/docflow/internal/permission"
	permissionStore "github.com/frahmantamala/docflow/internal/permission/postgres"
	"github.com/frahmantamala/docflow/internal/storage"
	"github.com/frahmantamala/docflow/internal/workflow"
	workflowStore "github.com/frahmantamala/docflow/internal/workflow/postgres"
)

func TestLetter(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Letter Suite")
}

const (
	orgID      = int64(4)
	authorID   = int64(20)
	reviewerA  = int64(21)
	reviewerB  = int64(22)
	directorID = int64(23)
	guestID    = int64(24)
	outsider   = int64(99)
)

func principal(id int64) permission.Principal {
	return permission.Principal{ID: id, Type: permission.PrincipalUser}
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		svc       *letter.Service
		approvals *approval.Service
		bus       *events.EventBus
		spaceID   int64
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
			&letterDatamodel.Letter{},
			&letterDatamodel.Approver{},
			&workflowDatamodel.Reassignment{},
			&workflowDatamodel.TransitionLog{},
		)).To(Succeed())

		roles := map[int64]string{
			authorID:   "member_full",
			reviewerA:  "member_read",
			reviewerB:  "member_read",
			directorID: "co_owner",
			guestID:    "guest",
		}
		for id, role := range roles {
			Expect(db.Create(&orgDatamodel.Membership{OrganizationID: orgID, UserID: id, Role: role, Status: "active"}).Error).To(Succeed())
		}
		sp := &spaceDatamodel.Space{
			OrganizationID: orgID,
			Name:           "Board",
			ApprovalState:  workflowDatamodel.ApprovalState{Status: "approved", CreatorID: directorID, Version: 1},
		}
		Expect(db.Create(sp).Error).To(Succeed())
		spaceID = sp.ID

		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		resolver := permission.NewResolver(permissionStore.NewStore(sqlx.NewDb(sqlDB, "sqlite3")), quiet)
		blobs, err := storage.NewLocalStore(GinkgoT().TempDir(), "http://files.local/blobs", 1<<20)
		Expect(err).NotTo(HaveOccurred())

		svc = letter.NewService(postgres.NewLetterRepository(db), resolver, blobs, quiet)
		bus = events.NewEventBus(quiet)
		machine := workflow.NewMachine(resolver, workflow.StaticManager(directorID))
		approvals = approval.NewService(workflowStore.NewStore(db), machine, resolver, bus, blobs, quiet)
	})

	AfterEach(func() {
		bus.Wait()
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	newLetter := func() letter.CreateLetterDTO {
		return letter.CreateLetterDTO{
			SpaceID: spaceID,
			Subject: "Budget approval",
			Body:    "Please review.",
			Approvers: []workflow.Approver{
				{UserID: reviewerA},
				{UserID: reviewerB},
			},
			FinalApproverID: directorID,
			Placements: []workflow.Placement{
				{Type: workflow.PlacementQRCode, Page: 1, X: 10, Y: 10, Value: "verify:1"},
			},
		}
	}

	It("numbers an unordered chain and stores it", func() {
		l, err := svc.Create(ctx, principal(authorID), newLetter(), nil)
		Expect(err).NotTo(HaveOccurred())

		got, err := svc.Get(ctx, principal(reviewerA), l.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(workflow.StatusDraft))
		Expect(got.Approvers).To(Equal([]workflow.Approver{{UserID: reviewerA, Order: 1}, {UserID: reviewerB, Order: 2}}))
		Expect(got.Placements).To(HaveLen(1))
		Expect(got.OrganizationID).To(Equal(orgID))
	})

	It("keeps the creator out of their own chain", func() {
		dto := newLetter()
		dto.Approvers = append(dto.Approvers, workflow.Approver{UserID: authorID})
		_, err := svc.Create(ctx, principal(authorID), dto, nil)
		Expect(internal.HasType(err, internal.ErrorTypeValidation)).To(BeTrue())

		dto = newLetter()
		dto.FinalApproverID = authorID
		_, err = svc.Create(ctx, principal(authorID), dto, nil)
		Expect(internal.HasType(err, internal.ErrorTypeValidation)).To(BeTrue())
	})

	It("refuses a final approver who also reviews", func() {
		dto := newLetter()
		dto.FinalApproverID = reviewerA
		_, err := svc.Create(ctx, principal(authorID), dto, nil)
		Expect(internal.HasType(err, internal.ErrorTypeValidation)).To(BeTrue())
	})

	It("requires create_letters", func() {
		_, err := svc.Create(ctx, principal(guestID), newLetter(), nil)
		Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
	})

	It("stores an attached document", func() {
		l, err := svc.Create(ctx, principal(authorID), newLetter(), &letter.Upload{Name: "budget.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF")})
		Expect(err).NotTo(HaveOccurred())

		_, body, err := svc.OpenFile(ctx, principal(guestID), l.ID, false)
		Expect(err).NotTo(HaveOccurred())
		defer body.Close()
		data, _ := io.ReadAll(body)
		Expect(string(data)).To(Equal("%PDF"))
	})

	Describe("public view", func() {
		var l *letter.Letter

		BeforeEach(func() {
			var err error
			l, err = svc.Create(ctx, principal(authorID), newLetter(), &letter.Upload{Name: "budget.pdf", Body: strings.NewReader("signed")})
			Expect(err).NotTo(HaveOccurred())
		})

		It("hides letters that are not approved", func() {
			_, err := svc.Public(ctx, permission.Principal{}, l.ID)
			Expect(errors.Is(err, internal.ErrNotFound)).To(BeTrue())

			_, err = svc.Get(ctx, principal(outsider), l.ID)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
		})

		It("publishes the letter once the whole chain has approved", func() {
			_, err := approvals.SubmitForReview(ctx, workflow.KindLetter, l.ID, principal(authorID))
			Expect(err).NotTo(HaveOccurred())
			_, err = approvals.Approve(ctx, workflow.KindLetter, l.ID, principal(reviewerA), "")
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Public(ctx, permission.Principal{}, l.ID)
			Expect(errors.Is(err, internal.ErrNotFound)).To(BeTrue())

			_, err = approvals.Approve(ctx, workflow.KindLetter, l.ID, principal(reviewerB), "ok")
			Expect(err).NotTo(HaveOccurred())
			out, err := approvals.FinalApprove(ctx, l.ID, principal(directorID), l.Placements, "signed")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.To).To(Equal(workflow.StatusApproved))

			pub, err := svc.Public(ctx, permission.Principal{}, l.ID)
			Expect(err).NotTo(HaveOccurred())
			view := letter.NewPublicView(pub)
			Expect(view.Subject).To(Equal("Budget approval"))
			Expect(view.FinalPlacements).To(HaveLen(1))
			Expect(view.HasFile).To(BeTrue())

			_, body, err := svc.OpenFile(ctx, principal(outsider), l.ID, true)
			Expect(err).NotTo(HaveOccurred())
			body.Close()

			_, err = svc.Get(ctx, principal(outsider), l.ID)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
			_, _, err = svc.OpenFile(ctx, principal(outsider), l.ID, false)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
		})

		It("keeps the chain and audit trail of a published letter to members", func() {
			Expect(db.Model(&letterDatamodel.Letter{}).Where("id = ?", l.ID).Update("status", "approved").Error).To(Succeed())
			_, err := svc.Public(ctx, permission.Principal{}, l.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = approvals.Get(ctx, workflow.KindLetter, l.ID, principal(outsider))
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
			_, err = approvals.History(ctx, workflow.KindLetter, l.ID, principal(outsider))
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
			_, err = approvals.Transitions(ctx, workflow.KindLetter, l.ID, principal(outsider))
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

			_, err = approvals.Transitions(ctx, workflow.KindLetter, l.ID, principal(guestID))
			Expect(err).NotTo(HaveOccurred())
		})

		It("withdraws the public view when the letter is deleted", func() {
			Expect(db.Model(&letterDatamodel.Letter{}).Where("id = ?", l.ID).Update("status", "approved").Error).To(Succeed())
			_, err := svc.Public(ctx, permission.Principal{}, l.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = approvals.Delete(ctx, workflow.KindLetter, l.ID, principal(authorID))
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Public(ctx, permission.Principal{}, l.ID)
			Expect(errors.Is(err, internal.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Handler", func() {
		var router chi.Router

		BeforeEach(func() {
			h := letter.NewHandler(svc)
			router = chi.NewRouter()
			router.Route("/letters", func(r chi.Router) {
				h.Routes(r)
				approval.NewHandler(workflow.KindLetter, approvals).Routes(r)
			})
			router.Route("/public/letters", h.PublicRoutes)
		})

		send := func(req *http.Request, actor int64) *httptest.ResponseRecorder {
			if actor != 0 {
				req = req.WithContext(auth.ContextWithPrincipal(req.Context(), principal(actor)))
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		It("creates from JSON and submits through the shared workflow routes", func() {
			body := `{"space_id":` + strconv.FormatInt(spaceID, 10) + `,"subject":"Memo","approvers":[{"user_id":21}],"final_approver_id":23}`
			req := httptest.NewRequest(http.MethodPost, "/letters", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			resp := send(req, authorID)
			Expect(resp.Code).To(Equal(http.StatusCreated))

			list, err := svc.ListBySpace(ctx, principal(authorID), spaceID, 20, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			id := strconv.FormatInt(list[0].ID, 10)

			resp = send(httptest.NewRequest(http.MethodPost, "/letters/"+id+"/submit", nil), authorID)
			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`"pending_review"`))
		})

		It("serves the public view without authentication only once approved", func() {
			l, err := svc.Create(ctx, principal(authorID), newLetter(), nil)
			Expect(err).NotTo(HaveOccurred())
			path := "/public/letters/" + strconv.FormatInt(l.ID, 10)

			Expect(send(httptest.NewRequest(http.MethodGet, path, nil), 0).Code).To(Equal(http.StatusNotFound))

			Expect(db.Model(&letterDatamodel.Letter{}).Where("id = ?", l.ID).Update("status", "approved").Error).To(Succeed())
			resp := send(httptest.NewRequest(http.MethodGet, path, nil), 0)
			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`"subject":"Budget approval"`))
			Expect(resp.Body.String()).NotTo(ContainSubstring("creator_id"))
		})

		It("requires authentication for the member view", func() {
			Expect(send(httptest.NewRequest(http.MethodGet, "/letters/1", nil), 0).Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
