package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/approval"
	"github.com/frahmantamala/docflow/internal/auth"
	"github.com/frahmantamala/docflow/internal/cabinet"
	"github.com/frahmantamala/docflow/internal/letter"
	"github.com/frahmantamala/docflow/internal/organization"
	"github.com/frahmantamala/docflow/internal/record"
	"github.com/frahmantamala/docflow/internal/space"
	"github.com/frahmantamala/docflow/internal/transport/middleware"
	"github.com/frahmantamala/docflow/internal/transport/swagger"
	"github.com/frahmantamala/docflow/internal/user"
	"github.com/frahmantamala/docflow/internal/workflow"
)

// Handlers groups everything RegisterAllRoutes mounts.
type Handlers struct {
	Health       *HealthHandler
	Auth         *auth.Handler
	User         *user.Handler
	Organization *organization.Handler
	Space        *space.Handler
	Cabinet      *cabinet.Handler
	Record       *record.Handler
	Letter       *letter.Handler
	Approvals    approval.ServiceAPI
}

func RegisterAllRoutes(router *chi.Mux, cfg internal.ServerConfig, h Handlers, logger *slog.Logger) {
	router.Use(middleware.CORS(cfg.Origins()))
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	openAPIPath := cfg.OpenAPIPath
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, openAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.Health)
		r.Get("/ping", h.Health.Ping)

		r.Route("/auth", func(ar chi.Router) {
			ar.Post("/login", h.Auth.Login)
			ar.Post("/refresh", h.Auth.RefreshToken)
			ar.Post("/logout", h.Auth.Logout)
		})

		r.Route("/public/letters", func(pr chi.Router) {
			pr.Use(h.Auth.OptionalAuth)
			h.Letter.PublicRoutes(pr)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Route("/users", h.User.Routes)
			pr.Route("/organizations", h.Organization.Routes)
			pr.Post("/invitations/respond", h.Space.RespondInvitation)

			pr.Route("/spaces", withWorkflow(workflow.KindSpace, h.Approvals, h.Space.Routes))
			pr.Route("/cabinets", withWorkflow(workflow.KindCabinet, h.Approvals, h.Cabinet.Routes))
			pr.Route("/records", withWorkflow(workflow.KindRecord, h.Approvals, h.Record.Routes))
			pr.Route("/letters", withWorkflow(workflow.KindLetter, h.Approvals, h.Letter.Routes))
		})
	})
}

// withWorkflow mounts a kind's own routes and its approval routes on one prefix.
func withWorkflow(kind workflow.Kind, svc approval.ServiceAPI, routes func(chi.Router)) func(chi.Router) {
	wf := approval.NewHandler(kind, svc)
	return func(r chi.Router) {
		routes(r)
		wf.Routes(r)
	}
}
