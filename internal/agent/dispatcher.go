package agent

import (
	"context"
	"errors"

	"github.com/ainotes/backend/internal/domain"
)

// ErrUnknownIntent is returned when the classifier could not map the input
// to any executor. The message is user-facing.
var ErrUnknownIntent = errors.New("Не понял запрос. Попробуйте переформулировать.")

// Dispatcher routes a classified request to the matching executor.
type Dispatcher struct {
	notes Executor
	task  Executor
	event Executor
}

func NewDispatcher(notes, task, event Executor) *Dispatcher {
	return &Dispatcher{notes: notes, task: task, event: event}
}

// Dispatch picks an executor by intent. A request bound to a concrete note
// always goes to the notes executor regardless of intent: the user is
// editing that note, not creating tasks or events.
func (d *Dispatcher) Dispatch(ctx context.Context, intent domain.Intent, req *Request) (domain.Outcome, error) {
	if req.NoteID != nil {
		return d.notes.Execute(ctx, req)
	}
	switch intent {
	case domain.IntentNote:
		return d.notes.Execute(ctx, req)
	case domain.IntentTask:
		return d.task.Execute(ctx, req)
	case domain.IntentEvent:
		return d.event.Execute(ctx, req)
	default:
		return domain.Outcome{}, ErrUnknownIntent
	}
}
