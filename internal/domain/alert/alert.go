package alert

import (
	"time"

	"support_plan_notifier/internal/domain/plan"
)

// Kind distinguishes the two alert flavours the calculator can emit.
type Kind string

const (
	KindRenewalDeadline      Kind = "RENEWAL_DEADLINE"
	KindAssessmentIncomplete Kind = "ASSESSMENT_INCOMPLETE"
)

// Alert is an ephemeral, never-persisted signal that a recipient's plan
// needs staff attention.
type Alert struct {
	RecipientID   int64
	RecipientName string
	Kind          Kind
	Message       string
	// NextRenewalDeadline and DaysRemaining are set only for
	// KindRenewalDeadline.
	NextRenewalDeadline time.Time
	DaysRemaining       int
	HasDaysRemaining    bool
	CycleNumber         int
}

// AssessmentPolicy decides whether a cycle is eligible for an
// assessment-incomplete alert before the deliverable check. The exact
// trigger condition is a compliance question, so it is injectable rather
// than hard-coded.
type AssessmentPolicy func(c *plan.Cycle) bool

// DefaultAssessmentPolicy: the recipient's first cycle always needs an
// assessment; later cycles only when they were opened by a scheduled
// plan-start trigger.
func DefaultAssessmentPolicy(c *plan.Cycle) bool {
	return c.CycleNumber == 1 || c.PlanStartTriggerDays.Valid
}
