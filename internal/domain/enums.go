package domain

// Intent is the classified category of a user request.
type Intent string

const (
	IntentNote    Intent = "note"
	IntentTask    Intent = "task"
	IntentEvent   Intent = "event"
	IntentUnknown Intent = "unknown"
)

// ParseIntent maps a raw classifier value to an Intent, falling back to
// IntentUnknown for anything outside the enum.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentNote, IntentTask, IntentEvent:
		return Intent(s)
	default:
		return IntentUnknown
	}
}

// OutcomeKind tags the result of a dispatched agent request.
type OutcomeKind string

const (
	OutcomeCompleted          OutcomeKind = "completed"
	OutcomeNeedsClarification OutcomeKind = "needs_clarification"
	OutcomeRejected           OutcomeKind = "rejected"
)

// Outcome is the tagged result of processing one user request. Exactly one
// of the sections applies, selected by Kind.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	// Completed
	AffectedIDs []int64         `json:"affected_ids,omitempty"`
	CreatedIDs  []int64         `json:"created_ids,omitempty"`
	SkipReason  string          `json:"skip_reason,omitempty"`
	Candidates  []NoteCandidate `json:"candidates,omitempty"`
	// Answer is the assistant text for chat requests.
	Answer string `json:"answer,omitempty"`

	// NeedsClarification
	Question string         `json:"question,omitempty"`
	Pending  *PendingAction `json:"-"`

	// Rejected
	Reason string `json:"reason,omitempty"`
}

// Completed builds a success outcome.
func Completed(affected, created []int64) Outcome {
	return Outcome{Kind: OutcomeCompleted, AffectedIDs: affected, CreatedIDs: created}
}

// Skipped builds a success outcome where the agent chose not to save.
func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeCompleted, SkipReason: reason}
}

// NeedsClarification builds an outcome suspending the request on a question.
func NeedsClarification(question string, pending *PendingAction) Outcome {
	return Outcome{Kind: OutcomeNeedsClarification, Question: question, Pending: pending}
}

// Rejected builds a refusal outcome.
func Rejected(reason string) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}
