// internal/app/alert_service.go
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"support_plan_notifier/internal/domain/alert"
	"support_plan_notifier/internal/domain/plan"
	"support_plan_notifier/internal/domain/recipient"
)

// AlertService computes deadline-driven alerts for an office. ComputeAlerts
// is deterministic given store state, today and thresholdDays, and has no
// side effects.
type AlertService struct {
	planRepo      plan.Repository
	recipientRepo recipient.Repository
	policy        alert.AssessmentPolicy
}

func NewAlertService(pr plan.Repository, rr recipient.Repository, policy alert.AssessmentPolicy) *AlertService {
	if policy == nil {
		policy = alert.DefaultAssessmentPolicy
	}
	return &AlertService{planRepo: pr, recipientRepo: rr, policy: policy}
}

// ComputeAlerts returns the office's actionable alerts sorted ascending by
// days remaining (assessment alerts, which carry none, sort after all
// renewal alerts, stable by recipient registration order), plus the total
// count before limit is applied. limit <= 0 means no limit.
func (s *AlertService) ComputeAlerts(ctx context.Context, officeID int64, today time.Time, thresholdDays, limit int) ([]*alert.Alert, int, error) {
	cycles, err := s.planRepo.CurrentCyclesByOffice(ctx, officeID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list current cycles for office %d: %w", officeID, err)
	}

	today = dateOf(today)
	alerts := make([]*alert.Alert, 0)

	for _, cycle := range cycles {
		rec, err := s.recipientRepo.GetByID(ctx, cycle.RecipientID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load recipient %d: %w", cycle.RecipientID, err)
		}
		name := rec.FullName()

		// The two alert kinds are evaluated independently; a recipient may
		// contribute zero, one or both.
		if cycle.NextRenewalDeadline.Valid {
			days := daysBetween(today, dateOf(cycle.NextRenewalDeadline.Time))
			if days >= 0 && days <= thresholdDays {
				alerts = append(alerts, &alert.Alert{
					RecipientID:         rec.ID,
					RecipientName:       name,
					Kind:                alert.KindRenewalDeadline,
					Message:             fmt.Sprintf("%sの更新期限が近づいています（残り%d日）", name, days),
					NextRenewalDeadline: dateOf(cycle.NextRenewalDeadline.Time),
					DaysRemaining:       days,
					HasDaysRemaining:    true,
					CycleNumber:         cycle.CycleNumber,
				})
			}
		}

		if s.policy(cycle) {
			has, err := s.planRepo.HasDeliverable(ctx, cycle.ID, plan.DeliverableAssessmentSheet)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to check assessment deliverable for cycle %d: %w", cycle.ID, err)
			}
			if !has {
				alerts = append(alerts, &alert.Alert{
					RecipientID:   rec.ID,
					RecipientName: name,
					Kind:          alert.KindAssessmentIncomplete,
					Message:       fmt.Sprintf("%sのアセスメントが完了していません", name),
					CycleNumber:   cycle.CycleNumber,
				})
			}
		}
	}

	// Renewal alerts ascending by days remaining; alerts without a
	// days-remaining value after all of them. SliceStable keeps the
	// registration order within ties.
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.HasDaysRemaining != b.HasDaysRemaining {
			return a.HasDaysRemaining
		}
		if !a.HasDaysRemaining {
			return false
		}
		return a.DaysRemaining < b.DaysRemaining
	})

	total := len(alerts)
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, total, nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole calendar days from a to b (both date-only).
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}
