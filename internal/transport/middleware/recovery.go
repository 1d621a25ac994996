package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/pkg/logger"
)

// RecoveryMiddleware turns a panic into a 500 without leaking its value.
func RecoveryMiddleware(fallback *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					lg := fallback
					if l, ok := logger.FromContext(r.Context()); ok {
						lg = l
					}
					lg.Error("panic recovered",
						"error", rec,
						"method", r.Method,
						"url", r.URL.String(),
						"stack", string(debug.Stack()))

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(internal.Response{Error: internal.NewInternalError("internal server error", nil)})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
