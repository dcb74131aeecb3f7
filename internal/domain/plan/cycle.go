package plan

import (
	"database/sql"
	"time"
)

// Cycle represents one renewal period (roughly six months) of a recipient's
// individual support plan at an office.
// Corresponds to the 'support_plan_cycles' table.
type Cycle struct {
	ID                  int64
	RecipientID         int64
	OfficeID            int64
	CycleNumber         int // 1, 2, 3, ...
	StartDate           sql.NullTime
	NextRenewalDeadline sql.NullTime
	// PlanStartTriggerDays, when set, marks the cycle as opened by a
	// scheduled plan-start trigger; it feeds assessment-alert eligibility.
	PlanStartTriggerDays sql.NullInt64
	IsCurrent            bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// StepStatus tracks one step instance within a Cycle.
// Corresponds to the 'support_plan_step_statuses' table.
type StepStatus struct {
	ID           int64
	CycleID      int64
	Kind         StepKind
	IsCurrent    bool
	Completed    bool
	CompletedAt  sql.NullTime // set once, never cleared
	CompletedBy  sql.NullInt64
	DueDate      sql.NullTime
	DeadlineDays sql.NullInt64 // drives due-date recomputation; 7 when unset
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DefaultDeadlineDays applies when a step has no explicit deadline-days.
const DefaultDeadlineDays = 7

// RenewalPeriodDays is the span from cycle start to the next renewal deadline.
const RenewalPeriodDays = 180
