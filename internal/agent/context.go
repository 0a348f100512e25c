package agent

import (
	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/store"
)

// ExecContext carries per-request state into tool handlers. Handlers record
// the ids they touch so executors can report them without parsing tool
// output.
type ExecContext struct {
	UserID    int64
	SessionID string
	Store     *store.SQLiteStore

	CreatedIDs  []int64
	AffectedIDs []int64

	// NoteID is set when the request targets a specific note.
	NoteID *int64

	// FallbackQuery seeds search_notes when the model passes empty query
	// lists.
	FallbackQuery string

	// SkipReason is set by skip_save.
	SkipReason string

	// Clarification is set when a tool suspends the request on a question.
	Clarification *Clarification

	// Candidates is set by request_note_selection.
	Candidates []domain.NoteCandidate

	// Progress receives intermediate events. Never nil once a request is
	// running.
	Progress func(ev domain.AgentEvent)
}

// Clarification captures a tool's request to ask the user before acting.
type Clarification struct {
	Question string
	Tool     string
	Params   map[string]interface{}
	Context  map[string]interface{}
}

func (e *ExecContext) emit(phase string, data map[string]interface{}) {
	if e.Progress != nil {
		e.Progress(domain.AgentEvent{Phase: phase, Data: data})
	}
}

// RecordCreated notes a newly created entity id.
func (e *ExecContext) RecordCreated(id int64) {
	e.CreatedIDs = append(e.CreatedIDs, id)
}

// RecordAffected notes a modified entity id.
func (e *ExecContext) RecordAffected(id int64) {
	e.AffectedIDs = append(e.AffectedIDs, id)
}
