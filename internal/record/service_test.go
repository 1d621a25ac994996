package record_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
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
	"github.com/frahmantamala/docflow/internal/auth"
	cabinetDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/cabinet"
	orgDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/organization"
	recordDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/record"
	workflowDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
	"github.com/frahmantamala/docflow/internal/permission"
	permissionStore "github.com/frahmantamala/docflow/internal/permission/postgres"
	"github.com/frahmantamala/docflow/internal/record"
	"github.com/frahmantamala/docflow/internal/record/postgres"
	"github.com/frahmantamala/docflow/internal/storage"
	"github.com/frahmantamala/docflow/internal/workflow"
)

func TestRecord(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Record Suite")
}

const (
	orgID    = int64(3)
	authorID = int64(10)
	readerID = int64(11)
	guestID  = int64(12)
	baseURL  = "http://files.local/blobs"
)

func principal(id int64) permission.Principal {
	return permission.Principal{ID: id, Type: permission.PrincipalUser}
}

type resubmitCall struct {
	id      int64
	content workflow.Content
}

// fakeResubmitter stands in for the approval service.
type fakeResubmitter struct {
	calls []resubmitCall
	err   error
}

func (f *fakeResubmitter) Resubmit(_ context.Context, kind workflow.Kind, id int64, actor permission.Principal, replacement workflow.Content) (*workflow.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, resubmitCall{id: id, content: replacement})
	res := workflow.Resource{Kind: kind, ID: id, Status: workflow.StatusPending, CreatorID: actor.ID, Version: 3, Content: replacement}
	return &workflow.Outcome{Resource: res, Action: workflow.ActionResubmit, From: workflow.StatusRejected, To: workflow.StatusPending, ActorID: actor.ID}, nil
}

func blobCount(dir string) int {
	entries, err := os.ReadDir(dir)
	Expect(err).NotTo(HaveOccurred())
	n := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			n++
		}
	}
	return n
}

var _ = Describe("Service", func() {
	var (
		ctx         context.Context
		db          *gorm.DB
		blobDir     string
		blobs       *storage.LocalStore
		resubmitter *fakeResubmitter
		svc         *record.Service
		cabinetID   int64
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
			&cabinetDatamodel.Cabinet{},
			&cabinetDatamodel.MemberPermission{},
			&recordDatamodel.Record{},
		)).To(Succeed())

		for id, role := range map[int64]string{authorID: "member_full", readerID: "member_read", guestID: "guest"} {
			Expect(db.Create(&orgDatamodel.Membership{OrganizationID: orgID, UserID: id, Role: role, Status: "active"}).Error).To(Succeed())
		}
		cab := &cabinetDatamodel.Cabinet{
			OrganizationID: orgID,
			SpaceID:        5,
			Name:           "Invoices",
			ApprovalState:  workflowDatamodel.ApprovalState{Status: "approved", CreatorID: authorID, Version: 1},
		}
		Expect(db.Create(cab).Error).To(Succeed())
		cabinetID = cab.ID

		blobDir = GinkgoT().TempDir()
		blobs, err = storage.NewLocalStore(blobDir, baseURL, 1024)
		Expect(err).NotTo(HaveOccurred())

		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		resolver := permission.NewResolver(permissionStore.NewStore(sqlx.NewDb(sqlDB, "sqlite3")), quiet)
		resubmitter = &fakeResubmitter{}
		svc = record.NewService(postgres.NewRecordRepository(db), resolver, blobs, resubmitter, quiet)
	})

	AfterEach(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	upload := func(name, body string) *record.Upload {
		return &record.Upload{Name: name, ContentType: "application/pdf", Body: strings.NewReader(body)}
	}

	It("creates a draft record with its file", func() {
		rec, err := svc.Create(ctx, principal(authorID), record.CreateRecordDTO{CabinetID: cabinetID, Title: "  Q3 invoice "}, upload("q3.pdf", "%PDF-1.7"))

		Expect(err).NotTo(HaveOccurred())
		Expect(rec.ID).NotTo(BeZero())
		Expect(rec.Title).To(Equal("Q3 invoice"))
		Expect(rec.Status).To(Equal(workflow.StatusDraft))
		Expect(rec.SpaceID).To(Equal(int64(5)))
		Expect(rec.FileURL).To(HavePrefix(baseURL + "/"))
		Expect(rec.FileName).To(Equal("q3.pdf"))
		Expect(rec.Size).To(Equal(int64(8)))
		Expect(blobCount(blobDir)).To(Equal(1))
	})

	It("refuses creation without create_records and stores nothing", func() {
		_, err := svc.Create(ctx, principal(readerID), record.CreateRecordDTO{CabinetID: cabinetID, Title: "Q3"}, upload("q3.pdf", "data"))

		Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
		Expect(blobCount(blobDir)).To(BeZero())
	})

	It("honours a cabinet grant over the role", func() {
		Expect(db.Create(&cabinetDatamodel.MemberPermission{CabinetID: cabinetID, UserID: readerID, ReadRecords: true, CreateRecords: true}).Error).To(Succeed())

		_, err := svc.Create(ctx, principal(readerID), record.CreateRecordDTO{CabinetID: cabinetID, Title: "Q3"}, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects oversized uploads as a validation error", func() {
		_, err := svc.Create(ctx, principal(authorID), record.CreateRecordDTO{CabinetID: cabinetID, Title: "Big"}, upload("big.pdf", strings.Repeat("x", 2048)))

		Expect(internal.HasType(err, internal.ErrorTypeValidation)).To(BeTrue())
		Expect(blobCount(blobDir)).To(BeZero())
	})

	It("reports a missing cabinet", func() {
		_, err := svc.Create(ctx, principal(authorID), record.CreateRecordDTO{CabinetID: 404, Title: "Q3"}, nil)
		Expect(errors.Is(err, internal.ErrNotFound)).To(BeTrue())
	})

	Describe("reading", func() {
		var rec *record.Record

		BeforeEach(func() {
			var err error
			rec, err = svc.Create(ctx, principal(authorID), record.CreateRecordDTO{CabinetID: cabinetID, Title: "Q3"}, upload("q3.pdf", "contents"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets readers list and download", func() {
			list, err := svc.ListByCabinet(ctx, principal(readerID), cabinetID, 20, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))

			got, body, err := svc.OpenFile(ctx, principal(readerID), rec.ID)
			Expect(err).NotTo(HaveOccurred())
			defer body.Close()
			data, err := io.ReadAll(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("contents"))
			Expect(got.FileName).To(Equal("q3.pdf"))
		})

		It("keeps guests out of records", func() {
			_, err := svc.Get(ctx, principal(guestID), rec.ID)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())

			_, _, err = svc.OpenFile(ctx, principal(guestID), rec.ID)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
		})

		It("can withhold downloads per cabinet while still allowing reads", func() {
			Expect(db.Create(&cabinetDatamodel.MemberPermission{CabinetID: cabinetID, UserID: readerID, ReadRecords: true}).Error).To(Succeed())

			_, err := svc.Get(ctx, principal(readerID), rec.ID)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = svc.OpenFile(ctx, principal(readerID), rec.ID)
			Expect(errors.Is(err, internal.ErrNotAuthorized)).To(BeTrue())
		})
	})

	Describe("resubmitting with a new file", func() {
		var rec *record.Record

		BeforeEach(func() {
			var err error
			rec, err = svc.Create(ctx, principal(authorID), record.CreateRecordDTO{CabinetID: cabinetID, Title: "Q3"}, upload("q3.pdf", "v1"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("hands the stored file to the workflow", func() {
			out, err := svc.ResubmitWithFile(ctx, principal(authorID), rec.ID, *upload("q3-fixed.pdf", "v2-longer"))

			Expect(err).NotTo(HaveOccurred())
			Expect(out.To).To(Equal(workflow.StatusPending))
			Expect(resubmitter.calls).To(HaveLen(1))
			Expect(resubmitter.calls[0].content.FileName).To(Equal("q3-fixed.pdf"))
			Expect(resubmitter.calls[0].content.FileURL).NotTo(Equal(rec.FileURL))
			Expect(blobCount(blobDir)).To(Equal(2))
		})

		It("removes the new file when the workflow refuses", func() {
			resubmitter.err = internal.ErrInvalidTransition

			_, err := svc.ResubmitWithFile(ctx, principal(authorID), rec.ID, *upload("q3-fixed.pdf", "v2"))

			Expect(errors.Is(err, internal.ErrInvalidTransition)).To(BeTrue())
			Expect(blobCount(blobDir)).To(Equal(1))
			_, err = os.Stat(filepath.Join(blobDir, strings.TrimPrefix(rec.FileURL, baseURL+"/")))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Handler", func() {
		var router chi.Router

		BeforeEach(func() {
			router = chi.NewRouter()
			router.Route("/records", record.NewHandler(svc).Routes)
		})

		send := func(req *http.Request, actor int64) *httptest.ResponseRecorder {
			if actor != 0 {
				req = req.WithContext(auth.ContextWithPrincipal(req.Context(), principal(actor)))
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		multipartCreate := func(fields map[string]string, fileName, content string) *http.Request {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			for k, v := range fields {
				Expect(mw.WriteField(k, v)).To(Succeed())
			}
			if fileName != "" {
				part, err := mw.CreateFormFile("file", fileName)
				Expect(err).NotTo(HaveOccurred())
				_, err = part.Write([]byte(content))
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(mw.Close()).To(Succeed())
			req := httptest.NewRequest(http.MethodPost, "/records", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			return req
		}

		It("uploads and downloads a file", func() {
			resp := send(multipartCreate(map[string]string{
				"cabinet_id": strconv.FormatInt(cabinetID, 10),
				"title":      "Scan",
			}, "scan.txt", "hello"), authorID)
			Expect(resp.Code).To(Equal(http.StatusCreated))
			Expect(resp.Body.String()).To(ContainSubstring(`"file_name":"scan.txt"`))

			list, err := svc.ListByCabinet(ctx, principal(authorID), cabinetID, 20, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))

			dl := send(httptest.NewRequest(http.MethodGet, "/records/"+strconv.FormatInt(list[0].ID, 10)+"/file", nil), readerID)
			Expect(dl.Code).To(Equal(http.StatusOK))
			Expect(dl.Body.String()).To(Equal("hello"))
			Expect(dl.Header().Get("Content-Disposition")).To(ContainSubstring(`filename="scan.txt"`))
		})

		It("validates form fields", func() {
			resp := send(multipartCreate(map[string]string{"cabinet_id": "abc", "title": "Scan"}, "", ""), authorID)
			Expect(resp.Code).To(Equal(http.StatusBadRequest))
		})

		It("accepts JSON for records without a file", func() {
			body := `{"cabinet_id":` + strconv.FormatInt(cabinetID, 10) + `,"title":"Memo"}`
			req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp := send(req, authorID)
			Expect(resp.Code).To(Equal(http.StatusCreated))
		})

		It("404s a download of a record without a file", func() {
			rec, err := svc.Create(ctx, principal(authorID), record.CreateRecordDTO{CabinetID: cabinetID, Title: "Memo"}, nil)
			Expect(err).NotTo(HaveOccurred())

			resp := send(httptest.NewRequest(http.MethodGet, "/records/"+strconv.FormatInt(rec.ID, 10)+"/file", nil), readerID)
			Expect(resp.Code).To(Equal(http.StatusNotFound))
		})

		It("requires authentication", func() {
			resp := send(httptest.NewRequest(http.MethodGet, "/records?cabinet_id=1", nil), 0)
			Expect(resp.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
