package scheduler

import (
	"context"
	"time"

	"support_plan_notifier/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DispatchScheduler triggers the notification dispatcher once per day at a
// fixed time. The dispatcher's own business-calendar gate decides whether
// the day is a working day; the scheduler fires unconditionally.
type DispatchScheduler struct {
	cronEngine    *cron.Cron
	dispatcher    *app.DispatchService
	logger        *logrus.Logger
	cronSpecDaily string
	dryRun        bool
}

func NewDispatchScheduler(
	dispatcher *app.DispatchService,
	logger *logrus.Logger,
	cronSpecDaily string, // e.g. "0 9 * * *" (9:00 daily)
	dryRun bool,
) *DispatchScheduler {
	return &DispatchScheduler{
		cronEngine:    cron.New(cron.WithLocation(time.Local)),
		dispatcher:    dispatcher,
		logger:        logger,
		cronSpecDaily: cronSpecDaily,
		dryRun:        dryRun,
	}
}

func (s *DispatchScheduler) Start() error {
	s.logger.Info("Starting dispatch scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecDaily, func() {
		s.logger.Info("Cron job triggered for daily deadline notification run.")
		// One run should comfortably finish well inside an hour; the
		// timeout guards against a wedged mail collaborator.
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()

		now := time.Now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

		report, err := s.dispatcher.Run(ctx, today, s.dryRun)
		if err != nil {
			s.logger.WithError(err).Error("Deadline notification run failed")
			return
		}
		s.logger.Info(report.String())
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Info("Dispatch scheduler started.")
	return nil
}

func (s *DispatchScheduler) Stop() {
	s.logger.Info("Stopping dispatch scheduler...")
	ctx := s.cronEngine.Stop() // waits for a running job to finish
	<-ctx.Done()
	s.logger.Info("Dispatch scheduler gracefully stopped.")
}
