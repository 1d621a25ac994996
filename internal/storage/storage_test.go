package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/docflow/internal/storage"
)

func TestStorage(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Storage Suite")
}

var _ = Describe("LocalStore", func() {
	var (
		store *storage.LocalStore
		ctx   context.Context
	)

	BeforeEach(func() {
		var err error
		store, err = storage.NewLocalStore(GinkgoT().TempDir(), "http://files.local/blobs/", 16)
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	It("stores, opens and deletes blobs", func() {
		blob, err := store.Store(ctx, "scan.PDF", "application/pdf", strings.NewReader("%PDF-1.7"))
		Expect(err).NotTo(HaveOccurred())
		Expect(blob.URL).To(HavePrefix("http://files.local/blobs/"))
		Expect(blob.Key).To(HaveSuffix(".pdf"))
		Expect(blob.Size).To(Equal(int64(8)))

		rc, err := store.Open(ctx, blob.URL)
		Expect(err).NotTo(HaveOccurred())
		body, _ := io.ReadAll(rc)
		rc.Close()
		Expect(string(body)).To(Equal("%PDF-1.7"))

		Expect(store.Delete(ctx, blob.URL)).To(Succeed())
		_, err = store.Open(ctx, blob.URL)
		Expect(err).To(MatchError(storage.ErrNotFound))
		Expect(store.Delete(ctx, blob.URL)).To(Succeed())
	})

	It("refuses oversized uploads", func() {
		_, err := store.Store(ctx, "big.bin", "application/octet-stream", strings.NewReader(strings.Repeat("x", 17)))
		Expect(err).To(MatchError(storage.ErrTooLarge))
	})

	It("refuses keys that escape the root", func() {
		_, err := store.Open(ctx, "http://files.local/blobs/../etc/passwd")
		Expect(err).To(MatchError(storage.ErrInvalidKey))
		Expect(store.Delete(ctx, "http://elsewhere/x.pdf")).To(MatchError(storage.ErrInvalidKey))
	})
})
