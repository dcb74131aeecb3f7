package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"support_plan_notifier/internal/domain/mail"
	"support_plan_notifier/internal/domain/office"
	"support_plan_notifier/internal/domain/plan"
	"support_plan_notifier/internal/domain/recipient"
	idb "support_plan_notifier/internal/infra/database"
)

// memPlanRepo is an in-memory plan.Repository with the same observable
// semantics as the Postgres implementation.
type memPlanRepo struct {
	mu           sync.Mutex
	cycles       map[int64]*plan.Cycle
	steps        map[int64]*plan.StepStatus
	deliverables []*plan.Deliverable
	nextID       int64
	// rolloverErr makes a terminal submission fail. Like the Postgres
	// implementation's aborted transaction, the failed submission must
	// leave no trace.
	rolloverErr error
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{
		cycles: make(map[int64]*plan.Cycle),
		steps:  make(map[int64]*plan.StepStatus),
	}
}

func (m *memPlanRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memPlanRepo) CreateCycle(ctx context.Context, recipientID, officeID int64, startDate time.Time) (*plan.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	number := 1
	for _, c := range m.cycles {
		if c.RecipientID == recipientID {
			number++
			if c.IsCurrent {
				c.IsCurrent = false
			}
		}
	}
	c := &plan.Cycle{
		ID:          m.id(),
		RecipientID: recipientID,
		OfficeID:    officeID,
		CycleNumber: number,
		IsCurrent:   true,
		CreatedAt:   startDate,
	}
	c.StartDate.Time, c.StartDate.Valid = startDate, true
	c.NextRenewalDeadline.Time = startDate.AddDate(0, 0, plan.RenewalPeriodDays)
	c.NextRenewalDeadline.Valid = true
	m.cycles[c.ID] = c
	m.insertStepSet(c.ID, number, nil)
	cp := *c
	return &cp, nil
}

func (m *memPlanRepo) insertStepSet(cycleID int64, cycleNumber int, monitoringDue *time.Time) {
	for i, kind := range plan.SequenceFor(cycleNumber) {
		s := &plan.StepStatus{
			ID:        m.id(),
			CycleID:   cycleID,
			Kind:      kind,
			IsCurrent: i == 0,
		}
		if i == 0 && kind == plan.StepMonitoring && monitoringDue != nil {
			s.DueDate.Time, s.DueDate.Valid = *monitoringDue, true
			s.DeadlineDays.Int64, s.DeadlineDays.Valid = plan.DefaultDeadlineDays, true
		}
		m.steps[s.ID] = s
	}
}

func (m *memPlanRepo) GetCycleByID(ctx context.Context, id int64) (*plan.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cycles[id]
	if !ok {
		return nil, idb.ErrCycleNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memPlanRepo) CurrentCycle(ctx context.Context, recipientID int64) (*plan.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cycles {
		if c.RecipientID == recipientID && c.IsCurrent {
			cp := *c
			return &cp, nil
		}
	}
	return nil, idb.ErrCycleNotFound
}

func (m *memPlanRepo) CyclesForRecipient(ctx context.Context, recipientID int64) ([]*plan.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*plan.Cycle
	for _, c := range m.cycles {
		if c.RecipientID == recipientID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CycleNumber < out[j].CycleNumber })
	return out, nil
}

func (m *memPlanRepo) CurrentCyclesByOffice(ctx context.Context, officeID int64) ([]*plan.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*plan.Cycle
	for _, c := range m.cycles {
		if c.OfficeID == officeID && c.IsCurrent {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientID < out[j].RecipientID })
	return out, nil
}

func (m *memPlanRepo) currentStepLocked(cycleID int64) *plan.StepStatus {
	for _, s := range m.steps {
		if s.CycleID == cycleID && s.IsCurrent {
			return s
		}
	}
	return nil
}

func (m *memPlanRepo) CurrentStep(ctx context.Context, cycleID int64) (*plan.StepStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.currentStepLocked(cycleID); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, idb.ErrStepStatusNotFound
}

func (m *memPlanRepo) StepsForCycle(ctx context.Context, cycleID int64) ([]*plan.StepStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*plan.StepStatus
	for _, s := range m.steps {
		if s.CycleID == cycleID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memPlanRepo) SetCycleSchedule(ctx context.Context, cycleID int64, start, renewalDeadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cycles[cycleID]
	if !ok {
		return idb.ErrCycleNotFound
	}
	c.StartDate.Time, c.StartDate.Valid = start, true
	c.NextRenewalDeadline.Time, c.NextRenewalDeadline.Valid = renewalDeadline, true
	return nil
}

func (m *memPlanRepo) UpdateStepDeadline(ctx context.Context, stepID int64, deadlineDays int, dueDate time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[stepID]
	if !ok {
		return idb.ErrStepStatusNotFound
	}
	s.DeadlineDays.Int64, s.DeadlineDays.Valid = int64(deadlineDays), true
	s.DueDate.Time, s.DueDate.Valid = dueDate, true
	return nil
}

func (m *memPlanRepo) ApplySubmission(ctx context.Context, sub plan.Submission, now time.Time) (*plan.SubmissionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cycles[sub.CycleID]
	if !ok {
		return nil, idb.ErrCycleNotFound
	}
	current := m.currentStepLocked(sub.CycleID)
	if current == nil {
		return nil, idb.ErrStepStatusNotFound
	}
	if current.Kind != sub.Expected {
		return nil, idb.ErrStepConflict
	}

	nextKind, hasNext := plan.NextStep(c.CycleNumber, sub.Expected)

	// Commit-or-nothing: fail before mutating anything, the way an aborted
	// transaction discards all earlier writes.
	if !hasNext && m.rolloverErr != nil {
		return nil, m.rolloverErr
	}

	if sub.OpenSchedule != nil && !c.StartDate.Valid {
		c.StartDate.Time, c.StartDate.Valid = sub.OpenSchedule.Start, true
		c.NextRenewalDeadline.Time, c.NextRenewalDeadline.Valid = sub.OpenSchedule.RenewalDeadline, true
	}

	sub.Deliverable.ID = m.id()
	sub.Deliverable.UploadedAt = now
	dcp := *sub.Deliverable
	m.deliverables = append(m.deliverables, &dcp)

	current.Completed = true
	current.CompletedAt.Time, current.CompletedAt.Valid = now, true
	current.CompletedBy.Int64, current.CompletedBy.Valid = sub.CompletedBy, true
	current.IsCurrent = false
	completed := *current
	result := &plan.SubmissionResult{Completed: &completed}

	if hasNext {
		for _, s := range m.steps {
			if s.CycleID == sub.CycleID && s.Kind == nextKind {
				s.IsCurrent = true
				cp := *s
				result.Next = &cp
				return result, nil
			}
		}
		return nil, idb.ErrStepStatusNotFound
	}

	result.Terminal = true
	c.IsCurrent = false

	startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	next := &plan.Cycle{
		ID:          m.id(),
		RecipientID: c.RecipientID,
		OfficeID:    c.OfficeID,
		CycleNumber: c.CycleNumber + 1,
		IsCurrent:   true,
	}
	next.StartDate.Time, next.StartDate.Valid = startDate, true
	next.NextRenewalDeadline.Time = startDate.AddDate(0, 0, plan.RenewalPeriodDays)
	next.NextRenewalDeadline.Valid = true
	m.cycles[next.ID] = next

	due := now.AddDate(0, 0, plan.DefaultDeadlineDays)
	m.insertStepSet(next.ID, next.CycleNumber, &due)

	ccp := *next
	result.NewCycle = &ccp
	monitoring := m.currentStepLocked(next.ID)
	mcp := *monitoring
	result.Next = &mcp
	return result, nil
}

func (m *memPlanRepo) CreateDeliverable(ctx context.Context, d *plan.Deliverable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = m.id()
	d.UploadedAt = time.Now()
	cp := *d
	m.deliverables = append(m.deliverables, &cp)
	return nil
}

func (m *memPlanRepo) HasDeliverable(ctx context.Context, cycleID int64, kind plan.DeliverableKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deliverables {
		if d.CycleID == cycleID && d.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPlanRepo) ListDeliverables(ctx context.Context, cycleID int64) ([]*plan.Deliverable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*plan.Deliverable
	for _, d := range m.deliverables {
		if d.CycleID == cycleID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- collaborator fakes ---

type memRecipientRepo struct {
	mu         sync.Mutex
	recipients map[int64]*recipient.Recipient
	nextID     int64
}

func newMemRecipientRepo() *memRecipientRepo {
	return &memRecipientRepo{recipients: make(map[int64]*recipient.Recipient)}
}

func (m *memRecipientRepo) Create(ctx context.Context, r *recipient.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	cp := *r
	m.recipients[r.ID] = &cp
	return nil
}

func (m *memRecipientRepo) GetByID(ctx context.Context, id int64) (*recipient.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[id]
	if !ok {
		return nil, idb.ErrRecipientNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRecipientRepo) ListActiveByOffice(ctx context.Context, officeID int64) ([]*recipient.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*recipient.Recipient
	for _, r := range m.recipients {
		if r.OfficeID == officeID && r.IsActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memOfficeRepo struct {
	offices   []*office.Office
	staff     map[int64][]*office.Staff
	listCalls int
}

func (m *memOfficeRepo) GetByID(ctx context.Context, id int64) (*office.Office, error) {
	for _, o := range m.offices {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, idb.ErrOfficeNotFound
}

func (m *memOfficeRepo) ListActive(ctx context.Context) ([]*office.Office, error) {
	m.listCalls++
	return m.offices, nil
}

func (m *memOfficeRepo) ListNotifiableStaff(ctx context.Context, officeID int64) ([]*office.Staff, error) {
	return m.staff[officeID], nil
}

type allowAllChecker struct{}

func (allowAllChecker) CanAccessOffice(ctx context.Context, staffID, officeID int64) (bool, error) {
	return true, nil
}

type denyAllChecker struct{}

func (denyAllChecker) CanAccessOffice(ctx context.Context, staffID, officeID int64) (bool, error) {
	return false, nil
}

// recordingMailer records sends and tracks in-flight concurrency. sendFn,
// when set, decides the outcome per attempt.
type recordingMailer struct {
	mu          sync.Mutex
	sent        []mail.Message
	times       []time.Time
	attempts    int
	inFlight    int
	maxInFlight int
	holdFor     time.Duration
	sendFn      func(attempt int) error
}

func (m *recordingMailer) Send(ctx context.Context, msg mail.Message) error {
	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	m.times = append(m.times, time.Now())
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	hold := m.holdFor
	m.mu.Unlock()

	if hold > 0 {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.inFlight--
			m.mu.Unlock()
			return ctx.Err()
		case <-time.After(hold):
		}
	}

	var err error
	if m.sendFn != nil {
		err = m.sendFn(attempt)
	}

	m.mu.Lock()
	m.inFlight--
	if err == nil {
		m.sent = append(m.sent, msg)
	}
	m.mu.Unlock()
	return err
}

type auditRecord struct {
	action   string
	staffID  int64
	officeID int64
	details  map[string]any
}

type recordingAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (a *recordingAudit) Append(ctx context.Context, action string, staffID, officeID int64, details map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, auditRecord{action, staffID, officeID, details})
	return nil
}

type stubCalendar struct {
	nonWorking bool
}

func (c stubCalendar) IsNonWorkingDay(d time.Time) bool { return c.nonWorking }

type recordingSummary struct {
	mu      sync.Mutex
	reports []DispatchReport
}

func (s *recordingSummary) NotifyRunSummary(ctx context.Context, report DispatchReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}
