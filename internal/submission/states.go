package submission

import "github.com/clearcite/integrity-engine/internal/domain"

type Event string

const (
	EventUpload        Event = "upload"
	EventAnalysisDone  Event = "analysis_done"
	EventAnalysisError Event = "analysis_error"
	EventRetry         Event = "retry"
	EventSubmit        Event = "submit"
	EventResubmit      Event = "resubmit"
	EventSubmitAnyway  Event = "submit_anyway"
	EventGrade         Event = "grade"
)

// transitions is the full lifecycle table. analysis_done is absent here
// because its target depends on the flag outcome; see OutcomeState. Any
// (state, event) pair without a row is rejected with no state change.
var transitions = map[domain.SubmissionState]map[Event]domain.SubmissionState{
	domain.StateDraft: {
		EventUpload: domain.StateAnalyzing,
	},
	domain.StateAnalyzing: {
		EventAnalysisError: domain.StateAnalysisFailed,
	},
	domain.StateAnalysisFailed: {
		EventRetry: domain.StateAnalyzing,
	},
	domain.StateClear: {
		EventSubmit: domain.StateSubmitted,
	},
	domain.StateFlagged: {
		EventResubmit:     domain.StateDraft,
		EventSubmitAnyway: domain.StateSubmitted,
	},
	domain.StateSubmitted: {
		EventGrade: domain.StateGraded,
	},
}

// Next returns the target state for an event, or false when the event is not
// legal from the given state.
func Next(from domain.SubmissionState, ev Event) (domain.SubmissionState, bool) {
	row, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := row[ev]
	return to, ok
}

// OutcomeState is the analysis_done branch: the configured threshold already
// decided the flag, so the state machine only mirrors it.
func OutcomeState(flagged bool) domain.SubmissionState {
	if flagged {
		return domain.StateFlagged
	}
	return domain.StateClear
}
