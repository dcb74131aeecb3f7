// internal/infra/database/postgres_plan_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"support_plan_notifier/internal/domain/plan"
)

// Custom errors specific to the plan repository
var ErrCycleNotFound = fmt.Errorf("support plan cycle not found")
var ErrStepStatusNotFound = fmt.Errorf("support plan step status not found")

// ErrStepConflict is returned when ApplySubmission finds the cycle's current
// step is no longer the expected one, i.e. a concurrent submission got there
// first.
var ErrStepConflict = fmt.Errorf("support plan step advanced concurrently")

type PostgresPlanRepository struct {
	db *sql.DB
}

func NewPostgresPlanRepository(db *sql.DB) *PostgresPlanRepository {
	return &PostgresPlanRepository{db: db}
}

const cycleColumns = `id, recipient_id, office_id, cycle_number, start_date,
       next_renewal_deadline, plan_start_trigger_days, is_current, created_at, updated_at`

const stepColumns = `id, cycle_id, step_kind, is_current, completed, completed_at,
       completed_by, due_date, deadline_days, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(row rowScanner) (*plan.Cycle, error) {
	c := plan.Cycle{}
	err := row.Scan(&c.ID, &c.RecipientID, &c.OfficeID, &c.CycleNumber, &c.StartDate,
		&c.NextRenewalDeadline, &c.PlanStartTriggerDays, &c.IsCurrent, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanStep(row rowScanner) (*plan.StepStatus, error) {
	s := plan.StepStatus{}
	err := row.Scan(&s.ID, &s.CycleID, &s.Kind, &s.IsCurrent, &s.Completed, &s.CompletedAt,
		&s.CompletedBy, &s.DueDate, &s.DeadlineDays, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// --- Cycle creation ---

func (r *PostgresPlanRepository) CreateCycle(ctx context.Context, recipientID, officeID int64, startDate time.Time) (*plan.Cycle, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for cycle creation: %w", err)
	}
	defer txn.Rollback()

	var existing int
	err = txn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM support_plan_cycles WHERE recipient_id = $1`, recipientID).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("error counting cycles for recipient %d: %w", recipientID, err)
	}
	cycleNumber := existing + 1

	// Keep the single-current-cycle invariant before inserting the new one.
	if _, err = txn.ExecContext(ctx,
		`UPDATE support_plan_cycles SET is_current = FALSE, updated_at = NOW()
          WHERE recipient_id = $1 AND is_current = TRUE`, recipientID); err != nil {
		return nil, fmt.Errorf("error clearing current flag for recipient %d: %w", recipientID, err)
	}

	deadline := startDate.AddDate(0, 0, plan.RenewalPeriodDays)
	cycle := &plan.Cycle{
		RecipientID:         recipientID,
		OfficeID:            officeID,
		CycleNumber:         cycleNumber,
		StartDate:           sql.NullTime{Time: startDate, Valid: true},
		NextRenewalDeadline: sql.NullTime{Time: deadline, Valid: true},
		IsCurrent:           true,
	}
	err = txn.QueryRowContext(ctx,
		`INSERT INTO support_plan_cycles (recipient_id, office_id, cycle_number, start_date, next_renewal_deadline, is_current)
          VALUES ($1, $2, $3, $4, $5, TRUE)
          RETURNING id, created_at, updated_at`,
		recipientID, officeID, cycleNumber, cycle.StartDate, cycle.NextRenewalDeadline,
	).Scan(&cycle.ID, &cycle.CreatedAt, &cycle.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating support plan cycle: %w", err)
	}

	if err = insertStepSet(ctx, txn, cycle.ID, cycleNumber, nil); err != nil {
		return nil, err
	}

	if err = txn.Commit(); err != nil {
		return nil, fmt.Errorf("error committing cycle creation: %w", err)
	}
	return cycle, nil
}

// insertStepSet creates all step statuses for a cycle in sequence order,
// first step current. monitoringDue, when non-nil, sets the due date of a
// leading monitoring step.
func insertStepSet(ctx context.Context, txn *sql.Tx, cycleID int64, cycleNumber int, monitoringDue *time.Time) error {
	stmt, err := txn.PrepareContext(ctx,
		`INSERT INTO support_plan_step_statuses (cycle_id, step_kind, is_current, completed, due_date, deadline_days)
          VALUES ($1, $2, $3, FALSE, $4, $5)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for step set: %w", err)
	}
	defer stmt.Close()

	for i, kind := range plan.SequenceFor(cycleNumber) {
		var due sql.NullTime
		var deadlineDays sql.NullInt64
		if i == 0 && kind == plan.StepMonitoring && monitoringDue != nil {
			due = sql.NullTime{Time: *monitoringDue, Valid: true}
			deadlineDays = sql.NullInt64{Int64: plan.DefaultDeadlineDays, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, cycleID, kind, i == 0, due, deadlineDays); err != nil {
			return fmt.Errorf("error inserting step %s for cycle %d: %w", kind, cycleID, err)
		}
	}
	return nil
}

// --- Queries ---

func (r *PostgresPlanRepository) GetCycleByID(ctx context.Context, id int64) (*plan.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM support_plan_cycles WHERE id = $1`
	c, err := scanCycle(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting cycle by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresPlanRepository) CurrentCycle(ctx context.Context, recipientID int64) (*plan.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM support_plan_cycles
               WHERE recipient_id = $1 AND is_current = TRUE`
	c, err := scanCycle(r.db.QueryRowContext(ctx, query, recipientID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting current cycle for recipient %d: %w", recipientID, err)
	}
	return c, nil
}

func (r *PostgresPlanRepository) CyclesForRecipient(ctx context.Context, recipientID int64) ([]*plan.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM support_plan_cycles
               WHERE recipient_id = $1 ORDER BY cycle_number`
	rows, err := r.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("error listing cycles for recipient %d: %w", recipientID, err)
	}
	defer rows.Close()
	return collectCycles(rows)
}

func (r *PostgresPlanRepository) CurrentCyclesByOffice(ctx context.Context, officeID int64) ([]*plan.Cycle, error) {
	query := `SELECT c.id, c.recipient_id, c.office_id, c.cycle_number, c.start_date,
                      c.next_renewal_deadline, c.plan_start_trigger_days, c.is_current, c.created_at, c.updated_at
               FROM support_plan_cycles c
               JOIN welfare_recipients r ON r.id = c.recipient_id
               WHERE c.office_id = $1 AND c.is_current = TRUE AND r.is_active = TRUE
               ORDER BY r.id`
	rows, err := r.db.QueryContext(ctx, query, officeID)
	if err != nil {
		return nil, fmt.Errorf("error listing current cycles for office %d: %w", officeID, err)
	}
	defer rows.Close()
	return collectCycles(rows)
}

func collectCycles(rows *sql.Rows) ([]*plan.Cycle, error) {
	cycles := make([]*plan.Cycle, 0)
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning cycle row: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle rows: %w", err)
	}
	return cycles, nil
}

func (r *PostgresPlanRepository) CurrentStep(ctx context.Context, cycleID int64) (*plan.StepStatus, error) {
	query := `SELECT ` + stepColumns + ` FROM support_plan_step_statuses
               WHERE cycle_id = $1 AND is_current = TRUE`
	s, err := scanStep(r.db.QueryRowContext(ctx, query, cycleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrStepStatusNotFound
		}
		return nil, fmt.Errorf("error getting current step for cycle %d: %w", cycleID, err)
	}
	return s, nil
}

func (r *PostgresPlanRepository) StepsForCycle(ctx context.Context, cycleID int64) ([]*plan.StepStatus, error) {
	query := `SELECT ` + stepColumns + ` FROM support_plan_step_statuses
               WHERE cycle_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("error listing steps for cycle %d: %w", cycleID, err)
	}
	defer rows.Close()

	steps := make([]*plan.StepStatus, 0)
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning step row: %w", err)
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step rows: %w", err)
	}
	return steps, nil
}

// --- Schedule edits ---

func (r *PostgresPlanRepository) SetCycleSchedule(ctx context.Context, cycleID int64, start, renewalDeadline time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE support_plan_cycles
          SET start_date = $1, next_renewal_deadline = $2, updated_at = NOW()
          WHERE id = $3`, start, renewalDeadline, cycleID)
	if err != nil {
		return fmt.Errorf("error setting schedule for cycle %d: %w", cycleID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCycleNotFound
	}
	return nil
}

func (r *PostgresPlanRepository) UpdateStepDeadline(ctx context.Context, stepID int64, deadlineDays int, dueDate time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE support_plan_step_statuses
          SET deadline_days = $1, due_date = $2, updated_at = NOW()
          WHERE id = $3`, deadlineDays, dueDate, stepID)
	if err != nil {
		return fmt.Errorf("error updating deadline for step %d: %w", stepID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStepStatusNotFound
	}
	return nil
}

// --- Mutation primitive ---

// ApplySubmission runs the whole submission in one transaction: an aborted
// rollover (or any other failure) rolls every earlier write back, so no
// partial cycle or step state ever commits.
func (r *PostgresPlanRepository) ApplySubmission(ctx context.Context, sub plan.Submission, now time.Time) (*plan.SubmissionResult, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for submission: %w", err)
	}
	defer txn.Rollback()

	// Lock the cycle row so concurrent submissions serialize here.
	cycle, err := scanCycle(txn.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM support_plan_cycles WHERE id = $1 FOR UPDATE`, sub.CycleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("error locking cycle %d: %w", sub.CycleID, err)
	}

	current, err := scanStep(txn.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM support_plan_step_statuses
          WHERE cycle_id = $1 AND is_current = TRUE FOR UPDATE`, sub.CycleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrStepStatusNotFound
		}
		return nil, fmt.Errorf("error locking current step for cycle %d: %w", sub.CycleID, err)
	}

	if current.Kind != sub.Expected {
		return nil, ErrStepConflict
	}

	if sub.OpenSchedule != nil {
		if _, err = txn.ExecContext(ctx,
			`UPDATE support_plan_cycles
	          SET start_date = $1, next_renewal_deadline = $2, updated_at = NOW()
	          WHERE id = $3 AND start_date IS NULL`,
			sub.OpenSchedule.Start, sub.OpenSchedule.RenewalDeadline, sub.CycleID); err != nil {
			return nil, fmt.Errorf("error opening schedule for cycle %d: %w", sub.CycleID, err)
		}
	}

	d := sub.Deliverable
	err = txn.QueryRowContext(ctx,
		`INSERT INTO plan_deliverables (cycle_id, deliverable_kind, file_path, original_filename, uploaded_by)
          VALUES ($1, $2, $3, $4, $5)
          RETURNING id, uploaded_at`,
		d.CycleID, d.Kind, d.FilePath, d.OriginalFilename, d.UploadedBy).Scan(&d.ID, &d.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating plan deliverable: %w", err)
	}

	err = txn.QueryRowContext(ctx,
		`UPDATE support_plan_step_statuses
          SET completed = TRUE, completed_at = $1, completed_by = $2, is_current = FALSE, updated_at = NOW()
          WHERE id = $3
          RETURNING updated_at`, now, sub.CompletedBy, current.ID).Scan(&current.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error completing step %d: %w", current.ID, err)
	}
	current.Completed = true
	current.CompletedAt = sql.NullTime{Time: now, Valid: true}
	current.CompletedBy = sql.NullInt64{Int64: sub.CompletedBy, Valid: true}
	current.IsCurrent = false

	result := &plan.SubmissionResult{Completed: current}

	nextKind, ok := plan.NextStep(cycle.CycleNumber, sub.Expected)
	if ok {
		next, err := scanStep(txn.QueryRowContext(ctx,
			`UPDATE support_plan_step_statuses
	          SET is_current = TRUE, updated_at = NOW()
	          WHERE cycle_id = $1 AND step_kind = $2
	          RETURNING `+stepColumns, sub.CycleID, nextKind))
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, ErrStepStatusNotFound
			}
			return nil, fmt.Errorf("error promoting next step %s for cycle %d: %w", nextKind, sub.CycleID, err)
		}
		result.Next = next
	} else {
		result.Terminal = true
		newCycle, err := rolloverTx(ctx, txn, cycle, now)
		if err != nil {
			return nil, err
		}
		monitoring, err := scanStep(txn.QueryRowContext(ctx,
			`SELECT `+stepColumns+` FROM support_plan_step_statuses
	          WHERE cycle_id = $1 AND is_current = TRUE`, newCycle.ID))
		if err != nil {
			return nil, fmt.Errorf("error loading current step of rollover cycle %d: %w", newCycle.ID, err)
		}
		result.NewCycle = newCycle
		result.Next = monitoring
	}

	if err = txn.Commit(); err != nil {
		return nil, fmt.Errorf("error committing submission: %w", err)
	}
	return result, nil
}

// rolloverTx demotes the completed cycle and creates its successor inside
// the caller's transaction: renewal sequence, monitoring current and due
// DefaultDeadlineDays after the final step's completion timestamp.
func rolloverTx(ctx context.Context, txn *sql.Tx, prior *plan.Cycle, now time.Time) (*plan.Cycle, error) {
	if _, err := txn.ExecContext(ctx,
		`UPDATE support_plan_cycles SET is_current = FALSE, updated_at = NOW() WHERE id = $1`,
		prior.ID); err != nil {
		return nil, fmt.Errorf("error demoting prior cycle %d: %w", prior.ID, err)
	}

	startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	deadline := startDate.AddDate(0, 0, plan.RenewalPeriodDays)
	next := &plan.Cycle{
		RecipientID:         prior.RecipientID,
		OfficeID:            prior.OfficeID,
		CycleNumber:         prior.CycleNumber + 1,
		StartDate:           sql.NullTime{Time: startDate, Valid: true},
		NextRenewalDeadline: sql.NullTime{Time: deadline, Valid: true},
		IsCurrent:           true,
	}
	err := txn.QueryRowContext(ctx,
		`INSERT INTO support_plan_cycles (recipient_id, office_id, cycle_number, start_date, next_renewal_deadline, is_current)
          VALUES ($1, $2, $3, $4, $5, TRUE)
          RETURNING id, created_at, updated_at`,
		next.RecipientID, next.OfficeID, next.CycleNumber, next.StartDate, next.NextRenewalDeadline,
	).Scan(&next.ID, &next.CreatedAt, &next.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating rollover cycle: %w", err)
	}

	monitoringDue := now.AddDate(0, 0, plan.DefaultDeadlineDays)
	if err := insertStepSet(ctx, txn, next.ID, next.CycleNumber, &monitoringDue); err != nil {
		return nil, err
	}
	return next, nil
}

// --- Deliverables ---

func (r *PostgresPlanRepository) CreateDeliverable(ctx context.Context, d *plan.Deliverable) error {
	query := `INSERT INTO plan_deliverables (cycle_id, deliverable_kind, file_path, original_filename, uploaded_by)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, uploaded_at`
	err := r.db.QueryRowContext(ctx, query, d.CycleID, d.Kind, d.FilePath, d.OriginalFilename, d.UploadedBy).
		Scan(&d.ID, &d.UploadedAt)
	if err != nil {
		return fmt.Errorf("error creating plan deliverable: %w", err)
	}
	return nil
}

func (r *PostgresPlanRepository) HasDeliverable(ctx context.Context, cycleID int64, kind plan.DeliverableKind) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plan_deliverables WHERE cycle_id = $1 AND deliverable_kind = $2`,
		cycleID, kind).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error checking deliverable existence: %w", err)
	}
	return count > 0, nil
}

func (r *PostgresPlanRepository) ListDeliverables(ctx context.Context, cycleID int64) ([]*plan.Deliverable, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, cycle_id, deliverable_kind, file_path, original_filename, uploaded_by, uploaded_at
          FROM plan_deliverables WHERE cycle_id = $1 ORDER BY uploaded_at`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("error listing deliverables for cycle %d: %w", cycleID, err)
	}
	defer rows.Close()

	ds := make([]*plan.Deliverable, 0)
	for rows.Next() {
		d := plan.Deliverable{}
		if err := rows.Scan(&d.ID, &d.CycleID, &d.Kind, &d.FilePath, &d.OriginalFilename, &d.UploadedBy, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("error scanning deliverable row: %w", err)
		}
		ds = append(ds, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deliverable rows: %w", err)
	}
	return ds, nil
}
