package main

import (
	"os"
	"os/signal"
	"syscall"

	"support_plan_notifier/internal/app"
	"support_plan_notifier/internal/domain/alert"
	"support_plan_notifier/internal/infra/calendar"
	"support_plan_notifier/internal/infra/config"
	idb "support_plan_notifier/internal/infra/database"
	"support_plan_notifier/internal/infra/logger"
	"support_plan_notifier/internal/infra/mailer"
	"support_plan_notifier/internal/infra/scheduler"
	"support_plan_notifier/internal/infra/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Get()

	log.WithField("environment", cfg.Environment).Info("Support plan notifier starting...")

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully.")

	planRepo := idb.NewPostgresPlanRepository(db)
	recipientRepo := idb.NewPostgresRecipientRepository(db)
	officeRepo := idb.NewPostgresOfficeRepository(db)
	auditLog := idb.NewPostgresAuditLogger(db)
	log.Info("Repositories initialized.")

	alertService := app.NewAlertService(planRepo, recipientRepo, alert.DefaultAssessmentPolicy)
	sender := mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	businessCalendar := calendar.New()

	dispatcher := app.NewDispatchService(officeRepo, alertService, sender, auditLog, businessCalendar, log, cfg.DashboardURL).
		WithThreshold(cfg.AlertThresholdDays)

	if cfg.TelegramToken != "" && cfg.OpsChatID != 0 {
		summary, err := telegram.NewSummaryNotifier(cfg.TelegramToken, cfg.OpsChatID)
		if err != nil {
			log.Fatalf("FATAL: Could not create ops summary notifier: %v", err)
		}
		dispatcher.WithSummaryNotifier(summary)
		log.Info("Ops run-summary notifier enabled.")
	}

	dispatchScheduler := scheduler.NewDispatchScheduler(dispatcher, log, cfg.CronSpecDaily, cfg.DryRun)
	if err := dispatchScheduler.Start(); err != nil {
		log.Fatalf("FATAL: Could not start dispatch scheduler: %v", err)
	}

	log.Info("Application setup complete. Scheduler is running.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	dispatchScheduler.Stop()
	log.Info("Application shut down gracefully.")
}
