package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/docflow/internal/auth"
	"github.com/frahmantamala/docflow/internal/cabinet"
	"github.com/frahmantamala/docflow/internal/letter"
	"github.com/frahmantamala/docflow/internal/organization"
	"github.com/frahmantamala/docflow/internal/record"
	"github.com/frahmantamala/docflow/internal/space"
	"github.com/frahmantamala/docflow/internal/transport/rest"
	"github.com/frahmantamala/docflow/internal/user"
	"github.com/frahmantamala/docflow/pkg/logger"
)

const (
	pingTimeout     = 5 * time.Second
	shutdownTimeout = 30 * time.Second
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startHTTPServer(); err != nil {
			fmt.Fprintf(os.Stderr, "server: %v\n", err)
			os.Exit(1)
		}
	},
}

func startHTTPServer() error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	deps, err := initializeDependencies(cfg, lg)
	if err != nil {
		return err
	}
	defer deps.Close()

	stopNotifications := registerNotifications(deps)
	defer stopNotifications()

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, cfg.Server, newHandlers(deps, buildServices(deps)), lg)

	if doc, err := rest.LoadOpenAPI(context.Background(), cfg.Server.OpenAPIPath); err != nil {
		lg.Warn("openapi document unavailable", "path", cfg.Server.OpenAPIPath, "error", err)
	} else if missingInDoc, missingInRouter, err := rest.UndocumentedRoutes(doc, router, "/api/v1"); err == nil &&
		(len(missingInDoc) > 0 || len(missingInRouter) > 0) {
		lg.Warn("openapi document out of date", "undocumented", missingInDoc, "unrouted", missingInRouter)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		lg.Info("starting HTTP server", "address", addr)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	lg.Info("server stopped")
	return nil
}

func newHandlers(d *Dependencies, svc *Services) rest.Handlers {
	checks := map[string]rest.Checker{"postgres": d.DB}
	if d.NATS != nil {
		nc := d.NATS
		checks["nats"] = rest.CheckerFunc(func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		})
	}

	return rest.Handlers{
		Health:       rest.NewHealthHandler(checks),
		Auth:         auth.NewHandler(svc.Auth),
		User:         user.NewHandler(svc.User),
		Organization: organization.NewHandler(svc.Organization),
		Space:        space.NewHandler(svc.Space),
		Cabinet:      cabinet.NewHandler(svc.Cabinet),
		Record:       record.NewHandler(svc.Record),
		Letter:       letter.NewHandler(svc.Letter),
		Approvals:    svc.Approval,
	}
}
