package plan

import "time"

// DeliverableKind identifies the artifact type evidencing a step.
type DeliverableKind string

const (
	DeliverableAssessmentSheet     DeliverableKind = "ASSESSMENT_SHEET"
	DeliverableDraftPlanPDF        DeliverableKind = "DRAFT_PLAN_PDF"
	DeliverableStaffMeetingMinutes DeliverableKind = "STAFF_MEETING_MINUTES"
	DeliverableFinalPlanSignedPDF  DeliverableKind = "FINAL_PLAN_SIGNED_PDF"
	DeliverableMonitoringReportPDF DeliverableKind = "MONITORING_REPORT_PDF"
)

// deliverableStepMap binds each artifact type to the step it evidences.
var deliverableStepMap = map[DeliverableKind]StepKind{
	DeliverableAssessmentSheet:     StepAssessment,
	DeliverableDraftPlanPDF:        StepDraftPlan,
	DeliverableStaffMeetingMinutes: StepStaffMeeting,
	DeliverableFinalPlanSignedPDF:  StepFinalPlanSigned,
	DeliverableMonitoringReportPDF: StepMonitoring,
}

// StepFor resolves the step a deliverable kind evidences.
func (k DeliverableKind) StepFor() (StepKind, bool) {
	s, ok := deliverableStepMap[k]
	return s, ok
}

// Deliverable is an uploaded artifact associated with a cycle and step.
// Rows are append-only; existence of a deliverable of a given kind against
// a cycle is the authoritative signal that the step has evidence.
// Corresponds to the 'plan_deliverables' table.
type Deliverable struct {
	ID               int64
	CycleID          int64
	Kind             DeliverableKind
	FilePath         string
	OriginalFilename string
	UploadedBy       int64
	UploadedAt       time.Time
}

// Artifact carries the caller-supplied fields of a new deliverable.
type Artifact struct {
	FilePath         string
	OriginalFilename string
}
