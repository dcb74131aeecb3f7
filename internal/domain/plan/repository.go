package plan

import (
	"context"
	"time"
)

// CycleSchedule is a cycle's start date together with its renewal deadline.
type CycleSchedule struct {
	Start           time.Time
	RenewalDeadline time.Time
}

// Submission carries everything a single deliverable submission mutates.
type Submission struct {
	CycleID     int64
	Expected    StepKind
	Deliverable *Deliverable
	CompletedBy int64
	// OpenSchedule, when non-nil, records the cycle's start date and
	// renewal deadline if they are still unset.
	OpenSchedule *CycleSchedule
}

// SubmissionResult reports the outcome of one applied submission.
type SubmissionResult struct {
	Completed *StepStatus
	// Next is the step that became current, in NewCycle when Terminal.
	Next *StepStatus
	// NewCycle is the rollover cycle, set only when Terminal is true.
	NewCycle *Cycle
	// Terminal is true when the completed step ended the cycle's sequence.
	Terminal bool
}

// Repository defines the Plan-Cycle Store: queries over cycles, step
// statuses and deliverables, plus the mutation primitives consumed by the
// intake gate. CreateCycle and ApplySubmission are each atomic with respect
// to concurrent readers; no partial state is ever observable.
type Repository interface {
	// CreateCycle creates the next cycle for a recipient (number = existing
	// count + 1) together with its full step set, first step current. The
	// new cycle starts at startDate with the renewal deadline 180 days out.
	CreateCycle(ctx context.Context, recipientID, officeID int64, startDate time.Time) (*Cycle, error)

	GetCycleByID(ctx context.Context, id int64) (*Cycle, error)
	CurrentCycle(ctx context.Context, recipientID int64) (*Cycle, error)
	CyclesForRecipient(ctx context.Context, recipientID int64) ([]*Cycle, error)
	// CurrentCyclesByOffice lists every recipient's current cycle belonging
	// to the office, ordered by recipient registration order.
	CurrentCyclesByOffice(ctx context.Context, officeID int64) ([]*Cycle, error)

	CurrentStep(ctx context.Context, cycleID int64) (*StepStatus, error)
	StepsForCycle(ctx context.Context, cycleID int64) ([]*StepStatus, error)

	// SetCycleSchedule records the cycle start date and renewal deadline.
	SetCycleSchedule(ctx context.Context, cycleID int64, start, renewalDeadline time.Time) error

	// UpdateStepDeadline sets a step's deadline-days and recomputed due date.
	UpdateStepDeadline(ctx context.Context, stepID int64, deadlineDays int, dueDate time.Time) error

	// ApplySubmission records a deliverable against the cycle's current
	// step: schedule opening, deliverable insert, step completion,
	// promotion of the next step and, when the completed step is terminal,
	// rollover into the next cycle (number+1, renewal sequence, monitoring
	// current and due DefaultDeadlineDays after completion) commit or fail
	// together. The current step is re-checked against Expected inside the
	// same transaction; a mismatch (e.g. a racing submission already
	// advanced past it) fails with a conflict error and mutates nothing.
	ApplySubmission(ctx context.Context, sub Submission, now time.Time) (*SubmissionResult, error)

	CreateDeliverable(ctx context.Context, d *Deliverable) error
	HasDeliverable(ctx context.Context, cycleID int64, kind DeliverableKind) (bool, error)
	ListDeliverables(ctx context.Context, cycleID int64) ([]*Deliverable, error)
}
