// internal/app/dispatch_service.go
package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"support_plan_notifier/internal/domain/alert"
	"support_plan_notifier/internal/domain/audit"
	"support_plan_notifier/internal/domain/mail"
	"support_plan_notifier/internal/domain/office"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	dispatchThresholdDays = 30
	defaultMaxInFlight    = 5
	defaultSendTimeout    = 30 * time.Second
	defaultSendInterval   = 100 * time.Millisecond
)

// AlertCalculator is the slice of AlertService the dispatcher consumes.
type AlertCalculator interface {
	ComputeAlerts(ctx context.Context, officeID int64, today time.Time, thresholdDays, limit int) ([]*alert.Alert, int, error)
}

// BusinessCalendar gates the daily run on working days.
type BusinessCalendar interface {
	IsNonWorkingDay(d time.Time) bool
}

// RunSummaryNotifier receives a one-line summary after each run. Optional.
type RunSummaryNotifier interface {
	NotifyRunSummary(ctx context.Context, report DispatchReport) error
}

// DispatchReport summarizes one dispatcher run. HolidaySkip distinguishes a
// legitimately empty run from "zero offices had alerts".
type DispatchReport struct {
	Date        time.Time
	DryRun      bool
	HolidaySkip bool
	Offices     int
	Sent        int
	Failed      int
}

func (r DispatchReport) String() string {
	if r.HolidaySkip {
		return fmt.Sprintf("deadline notification %s: skipped (non-working day)", r.Date.Format("2006-01-02"))
	}
	mode := "sent"
	if r.DryRun {
		mode = "would send"
	}
	return fmt.Sprintf("deadline notification %s: %s %d emails (%d failed) across %d offices",
		r.Date.Format("2006-01-02"), mode, r.Sent, r.Failed, r.Offices)
}

// DispatchService runs the daily deadline-alert notification batch: one
// alert computation per office, then a bounded concurrent email fan-out to
// the office's staff with per-send timeout, retry and pacing.
type DispatchService struct {
	officeRepo office.Repository
	calculator AlertCalculator
	mailer     mail.Sender
	auditLog   audit.Logger
	calendar   BusinessCalendar
	summary    RunSummaryNotifier // may be nil
	logger     *logrus.Logger

	dashboardURL  string
	thresholdDays int
	retry         RetryPolicy
	maxInFlight   int
	sendTimeout   time.Duration
	sendInterval  time.Duration
}

func NewDispatchService(
	or office.Repository,
	calc AlertCalculator,
	mailer mail.Sender,
	auditLog audit.Logger,
	cal BusinessCalendar,
	logger *logrus.Logger,
	dashboardURL string,
) *DispatchService {
	return &DispatchService{
		officeRepo:    or,
		calculator:    calc,
		mailer:        mailer,
		auditLog:      auditLog,
		calendar:      cal,
		logger:        logger,
		dashboardURL:  dashboardURL,
		thresholdDays: dispatchThresholdDays,
		retry:         DefaultRetryPolicy(),
		maxInFlight:   defaultMaxInFlight,
		sendTimeout:   defaultSendTimeout,
		sendInterval:  defaultSendInterval,
	}
}

// WithThreshold overrides the default 30-day renewal-alert window.
func (d *DispatchService) WithThreshold(days int) *DispatchService {
	if days > 0 {
		d.thresholdDays = days
	}
	return d
}

// WithSummaryNotifier attaches an optional run-summary channel.
func (d *DispatchService) WithSummaryNotifier(n RunSummaryNotifier) *DispatchService {
	d.summary = n
	return d
}

// Run executes one daily dispatch for the given date. It returns an error
// only for run-level failures (office enumeration, cancellation between
// offices); individual send failures are counted and logged, never raised.
func (d *DispatchService) Run(ctx context.Context, today time.Time, dryRun bool) (DispatchReport, error) {
	report := DispatchReport{Date: today, DryRun: dryRun}

	if d.calendar.IsNonWorkingDay(today) {
		report.HolidaySkip = true
		d.logger.WithField("date", today.Format("2006-01-02")).
			Info("Skipping deadline notification run: non-working day")
		d.notifySummary(ctx, report)
		return report, nil
	}

	offices, err := d.officeRepo.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list offices: %w", err)
	}
	report.Offices = len(offices)
	d.logger.WithField("offices", len(offices)).Info("Starting deadline notification run")

	var sent, failed atomic.Int64

	for _, o := range offices {
		// Graceful abort point: between offices only.
		if err := ctx.Err(); err != nil {
			report.Sent = int(sent.Load())
			report.Failed = int(failed.Load())
			return report, err
		}
		d.runOffice(ctx, o, today, dryRun, &sent, &failed)
	}

	report.Sent = int(sent.Load())
	report.Failed = int(failed.Load())
	d.logger.WithFields(logrus.Fields{
		"sent":    report.Sent,
		"failed":  report.Failed,
		"dry_run": dryRun,
	}).Info("Deadline notification run completed")
	d.notifySummary(ctx, report)
	return report, nil
}

func (d *DispatchService) runOffice(ctx context.Context, o *office.Office, today time.Time, dryRun bool, sent, failed *atomic.Int64) {
	log := d.logger.WithFields(logrus.Fields{"office_id": o.ID, "office": o.Name})

	alerts, total, err := d.calculator.ComputeAlerts(ctx, o.ID, today, d.thresholdDays, 0)
	if err != nil {
		log.WithError(err).Error("Failed to compute alerts, skipping office")
		return
	}
	if total == 0 {
		log.Debug("No alerts, skipping office")
		return
	}

	var renewal, assessment []*alert.Alert
	for _, a := range alerts {
		switch a.Kind {
		case alert.KindRenewalDeadline:
			renewal = append(renewal, a)
		case alert.KindAssessmentIncomplete:
			assessment = append(assessment, a)
		}
	}
	log.WithFields(logrus.Fields{
		"renewal_alerts":    len(renewal),
		"assessment_alerts": len(assessment),
	}).Info("Office has deadline alerts")

	staffs, err := d.officeRepo.ListNotifiableStaff(ctx, o.ID)
	if err != nil {
		log.WithError(err).Error("Failed to list staff, skipping office")
		return
	}
	if len(staffs) == 0 {
		log.Warn("No staff with email address, skipping office")
		return
	}

	if dryRun {
		for _, st := range staffs {
			log.WithField("email", st.Email.String).Info("[DRY RUN] Would send deadline alert email")
			sent.Add(1)
		}
		return
	}

	g := &errgroup.Group{}
	g.SetLimit(d.maxInFlight)
	for _, st := range staffs {
		st := st
		g.Go(func() error {
			if d.sendToStaff(ctx, o, st, renewal, assessment) {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
			// Minimum interval before this slot issues another send, so a
			// fully free pool does not burst the mail collaborator.
			select {
			case <-ctx.Done():
			case <-time.After(d.sendInterval):
			}
			return nil
		})
	}
	g.Wait()
}

// sendToStaff delivers one email under the per-send timeout and retry
// policy, then records a best-effort audit row. Returns true on success.
func (d *DispatchService) sendToStaff(ctx context.Context, o *office.Office, st *office.Staff, renewal, assessment []*alert.Alert) bool {
	log := d.logger.WithFields(logrus.Fields{"office_id": o.ID, "email": st.Email.String})

	msg := mail.Message{
		To:      st.Email.String,
		Subject: fmt.Sprintf("【期限アラート】%s", o.Name),
		Body:    composeAlertBody(st.FullName(), o.Name, renewal, assessment, d.dashboardURL),
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	err := d.retry.Do(sendCtx, func(c context.Context) error {
		return d.mailer.Send(c, msg)
	})
	if err != nil {
		// Exhausted retries and timeouts are both terminal for this send
		// only; the run continues.
		log.WithError(err).Error("Failed to send deadline alert email")
		return false
	}
	log.Info("Deadline alert email sent")

	if auditErr := d.auditLog.Append(ctx, audit.ActionDeadlineNotificationSent, st.ID, o.ID, map[string]any{
		"recipient_email":        st.Email.String,
		"staff_name":             st.FullName(),
		"office_name":            o.Name,
		"renewal_alert_count":    len(renewal),
		"assessment_alert_count": len(assessment),
	}); auditErr != nil {
		log.WithError(auditErr).Warn("Failed to append audit record for sent notification")
	}
	return true
}

func (d *DispatchService) notifySummary(ctx context.Context, report DispatchReport) {
	if d.summary == nil {
		return
	}
	if err := d.summary.NotifyRunSummary(ctx, report); err != nil {
		d.logger.WithError(err).Warn("Failed to push run summary")
	}
}

func composeAlertBody(staffName, officeName string, renewal, assessment []*alert.Alert, dashboardURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s様\n\n%sの支援計画に対応が必要な利用者がいます。\n", staffName, officeName)
	if len(renewal) > 0 {
		b.WriteString("\n■ 更新期限が近い利用者\n")
		for _, a := range renewal {
			fmt.Fprintf(&b, "・%s（残り%d日、期限 %s）\n",
				a.RecipientName, a.DaysRemaining, a.NextRenewalDeadline.Format("2006-01-02"))
		}
	}
	if len(assessment) > 0 {
		b.WriteString("\n■ アセスメント未完了の利用者\n")
		for _, a := range assessment {
			fmt.Fprintf(&b, "・%s\n", a.RecipientName)
		}
	}
	if dashboardURL != "" {
		fmt.Fprintf(&b, "\n詳細はダッシュボードをご確認ください: %s/dashboard\n", dashboardURL)
	}
	return b.String()
}
