package plan

// StepKind identifies one stage of the support-plan workflow.
type StepKind string

const (
	StepAssessment      StepKind = "ASSESSMENT"
	StepDraftPlan       StepKind = "DRAFT_PLAN"
	StepStaffMeeting    StepKind = "STAFF_MEETING"
	StepFinalPlanSigned StepKind = "FINAL_PLAN_SIGNED"
	StepMonitoring      StepKind = "MONITORING"
)

// firstCycleSequence is the step order for a recipient's very first cycle.
// Renewal cycles open with monitoring of the previous plan instead of a
// fresh assessment.
var firstCycleSequence = []StepKind{
	StepAssessment,
	StepDraftPlan,
	StepStaffMeeting,
	StepFinalPlanSigned,
}

var renewalCycleSequence = []StepKind{
	StepMonitoring,
	StepDraftPlan,
	StepStaffMeeting,
	StepFinalPlanSigned,
}

// SequenceFor returns the ordered step kinds a cycle of the given number
// must pass through. This is the single source of truth for step order;
// no caller may hard-code its own sequence.
func SequenceFor(cycleNumber int) []StepKind {
	if cycleNumber <= 1 {
		return append([]StepKind(nil), firstCycleSequence...)
	}
	return append([]StepKind(nil), renewalCycleSequence...)
}

// NextStep returns the step following kind in the given cycle's sequence,
// or false when kind is the terminal step.
func NextStep(cycleNumber int, kind StepKind) (StepKind, bool) {
	seq := SequenceFor(cycleNumber)
	for i, s := range seq {
		if s == kind && i < len(seq)-1 {
			return seq[i+1], true
		}
	}
	return "", false
}

// TerminalStep reports whether kind ends the given cycle's sequence.
func TerminalStep(cycleNumber int, kind StepKind) bool {
	seq := SequenceFor(cycleNumber)
	return len(seq) > 0 && seq[len(seq)-1] == kind
}
