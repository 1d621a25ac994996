package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chiMiddleware "github.com/go-chi/chi/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/transport/middleware"
	"github.com/frahmantamala/docflow/pkg/logger"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var _ = Describe("RequestID", func() {
	It("keeps an incoming id and exposes it to handlers", func() {
		var seen string
		h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = chiMiddleware.GetReqID(r.Context())
			Expect(logger.From(r.Context())).NotTo(BeNil())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(seen).To(Equal("abc-123"))
		Expect(rec.Header().Get("X-Request-ID")).To(Equal("abc-123"))
	})

	It("mints an id when none is sent", func() {
		rec := httptest.NewRecorder()
		middleware.RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Header().Get("X-Request-ID")).To(HaveLen(36))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("turns a panic into a JSON 500 without the panic value", func() {
		var logs bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&logs, nil))
		h := middleware.RecoveryMiddleware(lg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("secret detail")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).NotTo(ContainSubstring("secret detail"))
		var resp internal.Response
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Error).NotTo(BeNil())
		Expect(logs.String()).To(ContainSubstring("panic recovered"))
	})

	It("prefers the request logger when one is attached", func() {
		var fallbackLogs, requestLogs bytes.Buffer
		fallback := slog.New(slog.NewJSONHandler(&fallbackLogs, nil))
		h := middleware.RecoveryMiddleware(fallback)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		req := httptest.NewRequest(http.MethodGet, "/boom", nil)
		req = req.WithContext(logger.Into(req.Context(), slog.New(slog.NewJSONHandler(&requestLogs, nil))))
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(requestLogs.String()).To(ContainSubstring("panic recovered"))
		Expect(fallbackLogs.String()).To(BeEmpty())
	})

	It("lets http.ErrAbortHandler through", func() {
		h := middleware.RecoveryMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)))(
			http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) }))

		Expect(func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		}).To(PanicWith(http.ErrAbortHandler))
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("masks sensitive JSON fields and still hands the body to the handler", func() {
		var logs bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

		var body []byte
		h := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"access_token":"tok"}`))
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@b.c","password":"hunter2"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(string(body)).To(ContainSubstring("hunter2"))
		Expect(logs.String()).NotTo(ContainSubstring("hunter2"))
		Expect(logs.String()).NotTo(ContainSubstring(`"tok"`))
	})
})

var _ = Describe("CORS", func() {
	preflight := func(origins []string, origin string) *httptest.ResponseRecorder {
		h := middleware.CORS(origins)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/spaces", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	It("allows listed origins with credentials", func() {
		rec := preflight([]string{"https://app.example.com"}, "https://app.example.com")
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://app.example.com"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
	})

	It("never pairs a wildcard with credentials", func() {
		rec := preflight([]string{"*"}, "https://anywhere.example.com")
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(BeEmpty())
	})

	It("ignores unknown origins", func() {
		rec := preflight([]string{"https://app.example.com"}, "https://evil.example.com")
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})
