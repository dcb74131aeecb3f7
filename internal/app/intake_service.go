// internal/app/intake_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"support_plan_notifier/internal/domain/access"
	"support_plan_notifier/internal/domain/plan"

	"github.com/sirupsen/logrus"
)

// Client errors surfaced by the intake gate. All of them leave cycle and
// step state untouched.
var ErrStepOrderViolation = errors.New("deliverable does not match the cycle's current step")
var ErrAccessDenied = errors.New("staff member is not authorized for the cycle's office")
var ErrNotCurrentCycle = errors.New("cycle is not the recipient's current cycle")
var ErrUnknownDeliverableKind = errors.New("unknown deliverable kind")

// SubmitResult is returned to the caller for display after a successful
// submission.
type SubmitResult struct {
	Deliverable *plan.Deliverable
	// CurrentStep is the step that became current, possibly in a newly
	// created cycle after rollover.
	CurrentStep *plan.StepStatus
	// NewCycle is set when the submission completed the terminal step and
	// rolled the plan over.
	NewCycle *plan.Cycle
}

// IntakeService is the deliverable intake gate: it validates an incoming
// document submission against the plan-cycle store, applies step
// completion, and performs cycle rollover when the terminal step completes.
type IntakeService struct {
	planRepo plan.Repository
	checker  access.Checker
	logger   *logrus.Logger
	now      func() time.Time
}

func NewIntakeService(pr plan.Repository, ac access.Checker, logger *logrus.Logger) *IntakeService {
	return &IntakeService{
		planRepo: pr,
		checker:  ac,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit validates and records a deliverable against the cycle's current
// step. Exactly one step transitions to completed and exactly one other
// step (possibly in a new cycle) becomes current; a failed submission
// mutates nothing.
func (s *IntakeService) Submit(ctx context.Context, staffID, cycleID int64, kind plan.DeliverableKind, artifact plan.Artifact) (*SubmitResult, error) {
	targetStep, ok := kind.StepFor()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDeliverableKind, kind)
	}

	cycle, err := s.planRepo.GetCycleByID(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle %d: %w", cycleID, err)
	}
	if !cycle.IsCurrent {
		return nil, ErrNotCurrentCycle
	}

	allowed, err := s.checker.CanAccessOffice(ctx, staffID, cycle.OfficeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check office access: %w", err)
	}
	if !allowed {
		return nil, ErrAccessDenied
	}

	current, err := s.planRepo.CurrentStep(ctx, cycle.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current step for cycle %d: %w", cycle.ID, err)
	}
	if current.Kind != targetStep {
		s.logger.WithFields(logrus.Fields{
			"cycle_id": cycle.ID,
			"current":  current.Kind,
			"got":      targetStep,
		}).Warn("Deliverable rejected: step order violation")
		return nil, fmt.Errorf("%w: current step is %s, got %s", ErrStepOrderViolation, current.Kind, targetStep)
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	sub := plan.Submission{
		CycleID:     cycle.ID,
		Expected:    targetStep,
		CompletedBy: staffID,
		Deliverable: &plan.Deliverable{
			CycleID:          cycle.ID,
			Kind:             kind,
			FilePath:         artifact.FilePath,
			OriginalFilename: artifact.OriginalFilename,
			UploadedBy:       staffID,
		},
	}
	// An assessment or monitoring submission opens the cycle's schedule if
	// it has not been set yet.
	if (targetStep == plan.StepAssessment || targetStep == plan.StepMonitoring) && !cycle.StartDate.Valid {
		sub.OpenSchedule = &plan.CycleSchedule{
			Start:           today,
			RenewalDeadline: today.AddDate(0, 0, plan.RenewalPeriodDays),
		}
	}

	// The store applies the whole submission in one transaction; a failure
	// anywhere (rollover included) leaves no trace.
	outcome, err := s.planRepo.ApplySubmission(ctx, sub, now)
	if err != nil {
		return nil, fmt.Errorf("failed to apply submission to cycle %d: %w", cycle.ID, err)
	}

	result := &SubmitResult{Deliverable: sub.Deliverable, CurrentStep: outcome.Next}

	if outcome.Terminal {
		result.NewCycle = outcome.NewCycle
		s.logger.WithFields(logrus.Fields{
			"recipient_id": cycle.RecipientID,
			"old_cycle":    cycle.CycleNumber,
			"new_cycle":    outcome.NewCycle.CycleNumber,
		}).Info("Support plan cycle rolled over")
	}

	s.logger.WithFields(logrus.Fields{
		"cycle_id":  cycle.ID,
		"completed": targetStep,
		"current":   result.CurrentStep.Kind,
	}).Info("Deliverable accepted")
	return result, nil
}

// CreateInitialPlan creates the recipient's next cycle together with its
// full step set; called on recipient registration. Cycle 1 starts at
// assessment, later registrations open with monitoring.
func (s *IntakeService) CreateInitialPlan(ctx context.Context, recipientID, officeID int64) (*plan.Cycle, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	cycle, err := s.planRepo.CreateCycle(ctx, recipientID, officeID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial plan for recipient %d: %w", recipientID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"recipient_id": recipientID,
		"cycle_number": cycle.CycleNumber,
	}).Info("Initial support plan created")
	return cycle, nil
}

// UpdateStepDeadline sets a step's deadline-in-days and recomputes its due
// date from the previous step's completion timestamp (the cycle start date
// for the first step). deadlineDays <= 0 resets to the default of 7.
func (s *IntakeService) UpdateStepDeadline(ctx context.Context, staffID, cycleID int64, kind plan.StepKind, deadlineDays int) (*plan.StepStatus, error) {
	cycle, err := s.planRepo.GetCycleByID(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle %d: %w", cycleID, err)
	}

	allowed, err := s.checker.CanAccessOffice(ctx, staffID, cycle.OfficeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check office access: %w", err)
	}
	if !allowed {
		return nil, ErrAccessDenied
	}

	steps, err := s.planRepo.StepsForCycle(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps for cycle %d: %w", cycleID, err)
	}
	byKind := make(map[plan.StepKind]*plan.StepStatus, len(steps))
	for _, st := range steps {
		byKind[st.Kind] = st
	}
	target, ok := byKind[kind]
	if !ok {
		return nil, fmt.Errorf("cycle %d has no step %s", cycleID, kind)
	}

	if deadlineDays <= 0 {
		deadlineDays = plan.DefaultDeadlineDays
	}

	var base time.Time
	seq := plan.SequenceFor(cycle.CycleNumber)
	if seq[0] == kind {
		if !cycle.StartDate.Valid {
			return nil, fmt.Errorf("cycle %d has no start date to anchor the due date", cycleID)
		}
		base = cycle.StartDate.Time
	} else {
		var prior plan.StepKind
		for i := 1; i < len(seq); i++ {
			if seq[i] == kind {
				prior = seq[i-1]
				break
			}
		}
		priorStep, ok := byKind[prior]
		if !ok || !priorStep.CompletedAt.Valid {
			return nil, fmt.Errorf("step %s of cycle %d is not completed yet, cannot anchor due date for %s", prior, cycleID, kind)
		}
		base = priorStep.CompletedAt.Time
	}

	due := base.AddDate(0, 0, deadlineDays)
	if err := s.planRepo.UpdateStepDeadline(ctx, target.ID, deadlineDays, due); err != nil {
		return nil, fmt.Errorf("failed to update deadline for step %d: %w", target.ID, err)
	}
	target.DeadlineDays.Int64 = int64(deadlineDays)
	target.DeadlineDays.Valid = true
	target.DueDate.Time = due
	target.DueDate.Valid = true
	return target, nil
}
