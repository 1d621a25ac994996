package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/docflow/internal/core/events"
	"github.com/frahmantamala/docflow/internal/notification"
	"github.com/frahmantamala/docflow/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers for notification delivery and invitation housekeeping.`,
}

var notificationWorkerCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Deliver notifications forwarded over NATS",
	Long:  `Consume workflow and invitation events the server forwards to NATS and deliver their notifications.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startNotificationWorker(); err != nil {
			fmt.Fprintf(os.Stderr, "notification worker: %v\n", err)
			os.Exit(1)
		}
	},
}

var invitationWorkerCmd = &cobra.Command{
	Use:   "invitations",
	Short: "Expire stale space invitations",
	Long:  `Periodically move pending space invitations past their expiry to expired.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startInvitationWorker(); err != nil {
			fmt.Fprintf(os.Stderr, "invitation worker: %v\n", err)
			os.Exit(1)
		}
	},
}

var (
	maxWorkers        int
	jobQueueSize      int
	webhookURL        string
	consumerQueue     string
	expiryInterval    time.Duration
	expiryRunOnceOnly bool
)

func startNotificationWorker() error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.NATS.Enabled {
		return errors.New("nats is disabled; the server delivers notifications in process")
	}
	lg := logger.LoggerWrapper()

	notifyCfg := cfg.Notification
	notifyCfg.MaxWorkers = getIntFlag(maxWorkers, notifyCfg.MaxWorkers)
	notifyCfg.JobQueueSize = getIntFlag(jobQueueSize, notifyCfg.JobQueueSize)
	notifyCfg.WebhookURL = getStringFlag(webhookURL, notifyCfg.WebhookURL)

	lg.Info("starting notification worker",
		"max_workers", notifyCfg.MaxWorkers,
		"job_queue_size", notifyCfg.JobQueueSize,
		"webhook_url", notifyCfg.WebhookURL,
		"nats_url", cfg.NATS.URL)

	nc, err := notification.ConnectNATS(cfg.NATS.URL, "docflow-notification-worker", lg)
	if err != nil {
		return err
	}

	dispatcher := newDispatcher(notifyCfg, lg)
	bus := events.NewEventBus(lg)
	notification.NewEventHandler(dispatcher, lg).RegisterEventHandlers(bus)

	sub, err := notification.NewSubscriber(bus, cfg.NATS.SubjectPrefix, lg).Subscribe(nc, consumerQueue)
	if err != nil {
		nc.Close()
		dispatcher.Shutdown()
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	lg.Info("received signal, shutting down notification worker", "signal", sig)

	if err := sub.Drain(); err != nil {
		lg.Warn("subscription drain failed", "error", err)
	}
	if err := nc.Drain(); err != nil {
		lg.Warn("nats drain failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		dispatcher.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		lg.Info("notification worker shutdown complete")
	case <-ctx.Done():
		lg.Warn("shutdown timeout reached, forcing exit")
	}
	return nil
}

func startInvitationWorker() error {
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
	spaces := buildServices(deps).Space

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ExpireStale logs its own outcome.
	expire := func() { _, _ = spaces.ExpireStale(ctx) }

	expire()
	if expiryRunOnceOnly {
		return nil
	}

	lg.Info("invitation worker is running", "interval", expiryInterval)
	ticker := time.NewTicker(expiryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			lg.Info("invitation worker stopped")
			return nil
		case <-ticker.C:
			expire()
		}
	}
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	notificationWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	notificationWorkerCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "Webhook to deliver notifications to (overrides config)")
	notificationWorkerCmd.Flags().StringVar(&consumerQueue, "queue", "notifications", "NATS queue group shared by worker replicas")

	invitationWorkerCmd.Flags().DurationVar(&expiryInterval, "interval", 10*time.Minute, "How often to look for expired invitations")
	invitationWorkerCmd.Flags().BoolVar(&expiryRunOnceOnly, "once", false, "Expire once and exit")

	workerCmd.AddCommand(notificationWorkerCmd)
	workerCmd.AddCommand(invitationWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
