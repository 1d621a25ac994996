package cmd

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/approval"
	"github.com/frahmantamala/docflow/internal/auth"
	authPostgres "github.com/frahmantamala/docflow/internal/auth/postgres"
	"github.com/frahmantamala/docflow/internal/cabinet"
	cabinetPostgres "github.com/frahmantamala/docflow/internal/cabinet/postgres"
	"github.com/frahmantamala/docflow/internal/core/events"
	"github.com/frahmantamala/docflow/internal/letter"
	letterPostgres "github.com/frahmantamala/docflow/internal/letter/postgres"
	"github.com/frahmantamala/docflow/internal/notification"
	"github.com/frahmantamala/docflow/internal/organization"
	organizationPostgres "github.com/frahmantamala/docflow/internal/organization/postgres"
	"github.com/frahmantamala/docflow/internal/permission"
	permissionPostgres "github.com/frahmantamala/docflow/internal/permission/postgres"
	"github.com/frahmantamala/docflow/internal/record"
	recordPostgres "github.com/frahmantamala/docflow/internal/record/postgres"
	"github.com/frahmantamala/docflow/internal/space"
	spacePostgres "github.com/frahmantamala/docflow/internal/space/postgres"
	"github.com/frahmantamala/docflow/internal/storage"
	"github.com/frahmantamala/docflow/internal/user"
	userPostgres "github.com/frahmantamala/docflow/internal/user/postgres"
	"github.com/frahmantamala/docflow/internal/workflow"
	workflowPostgres "github.com/frahmantamala/docflow/internal/workflow/postgres"
)

// Dependencies are the long-lived resources every command shares.
type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Bus      *events.EventBus
	Blobs    *storage.LocalStore
	Resolver *permission.Resolver
	NATS     *nats.Conn
	Logger   *slog.Logger
}

func initializeDependencies(cfg *internal.Config, logger *slog.Logger) (*Dependencies, error) {
	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	blobs, err := storage.NewLocalStore(cfg.Storage.RootDir, cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	deps := &Dependencies{
		Config:   cfg,
		DB:       db,
		Gorm:     gdb,
		Bus:      events.NewEventBus(logger),
		Blobs:    blobs,
		Resolver: permission.NewResolver(permissionPostgres.NewStore(db), logger),
		Logger:   logger,
	}

	if cfg.NATS.Enabled {
		nc, err := notification.ConnectNATS(cfg.NATS.URL, "docflow", logger)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.NATS = nc
	}

	return deps, nil
}

// Close drains in-flight event handlers before releasing connections.
func (d *Dependencies) Close() {
	d.Bus.Wait()
	if d.NATS != nil {
		if err := d.NATS.Drain(); err != nil {
			d.Logger.Error("nats drain error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

// Services is every domain service, wired to the shared dependencies.
type Services struct {
	Auth         *auth.Service
	User         *user.Service
	Organization *organization.Service
	Space        *space.Service
	Cabinet      *cabinet.Service
	Record       *record.Service
	Letter       *letter.Service
	Approval     *approval.Service
}

func buildServices(d *Dependencies) *Services {
	cfg := d.Config
	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)

	machine := workflow.NewMachine(d.Resolver, workflow.StaticManager(cfg.Workflow.FallbackManagerID))
	approvals := approval.NewService(workflowPostgres.NewStore(d.Gorm), machine, d.Resolver, d.Bus, d.Blobs, d.Logger)

	return &Services{
		Auth:         auth.NewService(authPostgres.NewRepository(d.Gorm), tokens, cfg.Security.BCryptCost, d.Logger),
		User:         user.NewService(userPostgres.NewUserRepository(d.Gorm), d.Logger),
		Organization: organization.NewService(organizationPostgres.NewOrganizationRepository(d.Gorm), d.Resolver, permissionPostgres.NewStore(d.DB), d.Logger),
		Space:        space.NewService(spacePostgres.NewSpaceRepository(d.Gorm), d.Resolver, d.Bus, cfg.Workflow.InvitationTTL, d.Logger),
		Cabinet:      cabinet.NewService(cabinetPostgres.NewCabinetRepository(d.Gorm), d.Resolver, d.Logger),
		Record:       record.NewService(recordPostgres.NewRecordRepository(d.Gorm), d.Resolver, d.Blobs, approvals, d.Logger),
		Letter:       letter.NewService(letterPostgres.NewLetterRepository(d.Gorm), d.Resolver, d.Blobs, d.Logger),
		Approval:     approvals,
	}
}

// registerNotifications routes bus events to delivery. With NATS enabled the
// server only forwards and the notification worker delivers; otherwise
// delivery happens in process. The returned func stops delivery.
func registerNotifications(d *Dependencies) func() {
	if d.NATS != nil {
		notification.NewForwarder(d.NATS, d.Config.NATS.SubjectPrefix, d.Logger).Register(d.Bus)
		return func() {}
	}
	dispatcher := newDispatcher(d.Config.Notification, d.Logger)
	notification.NewEventHandler(dispatcher, d.Logger).RegisterEventHandlers(d.Bus)
	return dispatcher.Shutdown
}

func newDispatcher(cfg internal.NotificationConfig, logger *slog.Logger) *notification.Dispatcher {
	var sink notification.Sink = notification.NewLogSink(logger)
	if cfg.WebhookURL != "" {
		sink = notification.NewWebhookSink(notification.WebhookConfig{
			URL:           cfg.WebhookURL,
			Timeout:       cfg.WebhookTimeout,
			RatePerSecond: cfg.RatePerSecond,
			Burst:         cfg.Burst,
		}, logger)
	}
	return notification.NewDispatcher(sink, notification.DispatcherConfig{
		MaxWorkers:   cfg.MaxWorkers,
		JobQueueSize: cfg.JobQueueSize,
	}, logger)
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	db, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
