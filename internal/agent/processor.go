package agent

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/store"
)

// ErrNoPending is returned on resume when no clarification is waiting for
// the session.
var ErrNoPending = errors.New("No pending action found")

// Processor is the write-path entry point: it classifies raw input,
// dispatches to an executor and persists clarification state between turns.
type Processor struct {
	classifier *Classifier
	dispatcher *Dispatcher
	store      *store.SQLiteStore
	pendingTTL time.Duration
	log        zerolog.Logger
}

func NewProcessor(classifier *Classifier, dispatcher *Dispatcher, st *store.SQLiteStore, pendingTTL time.Duration, log zerolog.Logger) *Processor {
	return &Processor{
		classifier: classifier,
		dispatcher: dispatcher,
		store:      st,
		pendingTTL: pendingTTL,
		log:        log.With().Str("component", "processor").Logger(),
	}
}

// Process handles a fresh request. If a clarification is pending for the
// session the input is treated as the user's reply and routed to the
// executor that asked, skipping classification.
func (p *Processor) Process(ctx context.Context, req *Request) (domain.Outcome, error) {
	pending, err := p.store.GetPendingAction(ctx, req.UserID, req.SessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Outcome{}, err
	}
	if pending != nil {
		return p.resume(ctx, req, pending)
	}

	userContext := ""
	if req.NoteID != nil {
		userContext = "редактирует заметку"
	}
	intent := p.classifier.Classify(ctx, req.Input, userContext)
	p.log.Debug().Int64("user_id", req.UserID).Str("intent", string(intent)).Msg("classified")

	outcome, err := p.dispatcher.Dispatch(ctx, intent, req)
	return p.finish(ctx, req, outcome, err)
}

// Resume explicitly answers a pending clarification. Unlike Process it
// fails when nothing is pending instead of starting a fresh turn.
func (p *Processor) Resume(ctx context.Context, req *Request) (domain.Outcome, error) {
	pending, err := p.store.GetPendingAction(ctx, req.UserID, req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Outcome{}, ErrNoPending
		}
		return domain.Outcome{}, err
	}
	if pending == nil {
		return domain.Outcome{}, ErrNoPending
	}
	return p.resume(ctx, req, pending)
}

func (p *Processor) resume(ctx context.Context, req *Request, pending *domain.PendingAction) (domain.Outcome, error) {
	if err := p.store.UpdatePendingContext(ctx, req.UserID, req.SessionID, map[string]interface{}{
		"clarification_reply": req.Input,
	}); err != nil {
		p.log.Warn().Err(err).Msg("updating pending context failed")
	}

	// Replay through the executor that asked. The reply becomes the new
	// input; the note binding is dropped so the model re-resolves it.
	resumed := &Request{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Input:     req.Input,
		Context:   pending.Context,
		Progress:  req.Progress,
	}
	outcome, err := p.dispatcher.Dispatch(ctx, pending.Intent, resumed)
	if err != nil {
		return outcome, err
	}
	if outcome.Kind != domain.OutcomeNeedsClarification {
		if derr := p.store.DeletePendingAction(ctx, req.UserID, req.SessionID); derr != nil {
			p.log.Warn().Err(derr).Msg("deleting pending action failed")
		}
	}
	return p.finish(ctx, req, outcome, nil)
}

func (p *Processor) finish(ctx context.Context, req *Request, outcome domain.Outcome, err error) (domain.Outcome, error) {
	if err != nil {
		return outcome, err
	}
	if outcome.Kind == domain.OutcomeNeedsClarification && outcome.Pending != nil {
		if serr := p.store.SetPendingAction(ctx, req.UserID, req.SessionID, outcome.Pending, p.pendingTTL); serr != nil {
			return domain.Outcome{}, serr
		}
	}
	return outcome, nil
}
