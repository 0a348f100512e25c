package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/llm"
	"github.com/ainotes/backend/internal/store"
)

// Request is one user message handed to an executor.
type Request struct {
	UserID    int64
	SessionID string
	Input     string
	// NoteID pins the request to a note the user has open.
	NoteID *int64
	// Context carries data accumulated across a clarification round trip.
	Context map[string]interface{}
	// Progress receives intermediate events. May be nil.
	Progress func(ev domain.AgentEvent)
}

// Executor processes one request end to end.
type Executor interface {
	Execute(ctx context.Context, req *Request) (domain.Outcome, error)
}

// ModelParams are the LLM parameters an executor calls with.
type ModelParams struct {
	Model            string
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	MaxTokens        int
}

// withOverrides applies stored per-user settings on top of the defaults.
func (p ModelParams) withOverrides(s *domain.AgentSettings) ModelParams {
	if s == nil {
		return p
	}
	if s.Model != "" {
		p.Model = s.Model
	}
	if s.Temperature != nil {
		p.Temperature = *s.Temperature
	}
	if s.TopP != nil {
		p.TopP = *s.TopP
	}
	if s.FrequencyPenalty != nil {
		p.FrequencyPenalty = *s.FrequencyPenalty
	}
	if s.MaxTokens != nil {
		p.MaxTokens = *s.MaxTokens
	}
	return p
}

func (p ModelParams) request(messages []llm.ChatMessage) *llm.ChatCompletionRequest {
	temperature := p.Temperature
	topP := p.TopP
	freqPenalty := p.FrequencyPenalty
	maxTokens := p.MaxTokens
	return &llm.ChatCompletionRequest{
		Model:            p.Model,
		Messages:         messages,
		Temperature:      &temperature,
		TopP:             &topP,
		FrequencyPenalty: &freqPenalty,
		MaxTokens:        &maxTokens,
	}
}

// ExecutorDeps bundles everything executors share.
type ExecutorDeps struct {
	Client             LLMClient
	Store              *store.SQLiteStore
	Params             ModelParams
	Policy             ToolPolicy
	MaxToolOutputChars int
	NoteTools          NoteToolConfig
	Log                zerolog.Logger
	Now                func() time.Time
}

func (d *ExecutorDeps) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

// singleShot runs executors that make one non-streaming model call and then
// execute the returned tool calls inside a transaction.
type singleShot struct {
	name     string
	intent   domain.Intent
	client   LLMClient
	store    *store.SQLiteStore
	registry *Registry
	sandbox  *Sandbox
	params   ModelParams
	log      zerolog.Logger
	now      func() time.Time

	systemPrompt func(today, profileBlock string) string
	userMessage  func(contextStr, input string) string
	callingMsg   string
	display      map[string]string
}

const selectionQuestion = "Выберите заметку для изменения."

// errClarificationPending aborts the tool transaction when a clarification
// suspends the turn, so writes made by earlier calls roll back and nothing
// persists until the user answers.
var errClarificationPending = errors.New("clarification pending")

func (e *singleShot) Execute(ctx context.Context, req *Request) (domain.Outcome, error) {
	exec := &ExecContext{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Store:     e.store,
		NoteID:    req.NoteID,
		Progress:  req.Progress,
	}
	exec.emit("building_context", map[string]interface{}{"message": "Загрузка контекста…"})

	contextStr, profileBlock, err := buildContext(ctx, e.store, req.UserID, req.NoteID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("%s: build context: %w", e.name, err)
	}

	messages := []llm.ChatMessage{
		{Role: "system", Content: e.systemPrompt(todayLine(e.now), profileBlock)},
		{Role: "user", Content: e.userMessage(contextStr, req.Input)},
	}

	params := e.params
	if settings, err := e.store.GetAgentSettings(ctx, req.UserID, "notes"); err != nil {
		e.log.Warn().Err(err).Msg("loading agent settings failed, using defaults")
	} else {
		params = params.withOverrides(settings)
	}

	exec.emit("calling_llm", map[string]interface{}{"message": e.callingMsg})

	llmReq := params.request(messages)
	llmReq.Tools = e.registry.OpenAITools()
	resp, err := e.client.CreateChatCompletion(ctx, llmReq)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("%s: model call: %w", e.name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return domain.Outcome{}, fmt.Errorf("%s: model returned no choices", e.name)
	}
	calls := resp.Choices[0].Message.ToolCalls

	if len(calls) == 0 {
		exec.emit("done", doneData(exec))
		return domain.Completed(nil, nil), nil
	}

	var clarification *domain.Outcome
	err = e.store.WithTx(ctx, func(tx *store.SQLiteStore) error {
		exec.Store = tx
		for _, tc := range calls {
			name := tc.Function.Name
			if !e.registry.Has(name) {
				continue
			}
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(orEmptyObject(tc.Function.Arguments)), &args); err != nil {
				e.log.Error().Err(err).Str("tool", name).Msg("tool args parse error")
				continue
			}

			display := e.display[name]
			if display == "" {
				display = name
			}
			exec.emit("executing_tool", map[string]interface{}{"tool": name, "message": display})

			if name == "request_note_selection" && req.NoteID == nil {
				e.sandbox.Execute(ctx, tc, exec)
				if len(exec.Candidates) > 0 {
					out := domain.NeedsClarification(selectionQuestion, &domain.PendingAction{
						Intent:   e.intent,
						Tool:     name,
						Params:   args,
						Awaiting: "note_selection",
						Context:  map[string]interface{}{"user_input": req.Input},
					})
					out.Candidates = exec.Candidates
					clarification = &out
					return errClarificationPending
				}
				continue
			}

			e.sandbox.Execute(ctx, tc, exec)
		}
		return nil
	})
	exec.Store = e.store
	if err != nil && !errors.Is(err, errClarificationPending) {
		return domain.Outcome{}, fmt.Errorf("%s: %w", e.name, err)
	}

	if clarification != nil {
		// The transaction rolled back, so ids recorded before the
		// clarification no longer exist.
		exec.CreatedIDs = nil
		exec.AffectedIDs = nil
		exec.emit("done", map[string]interface{}{
			"affected_ids":            []int64{},
			"created_ids":             []int64{},
			"created_note_ids":        []int64{},
			"requires_note_selection": true,
			"question":                clarification.Question,
			"candidates":              exec.Candidates,
		})
		return *clarification, nil
	}

	if exec.SkipReason != "" && len(exec.AffectedIDs) == 0 && len(exec.CreatedIDs) == 0 {
		exec.emit("done", map[string]interface{}{
			"affected_ids":     []int64{},
			"created_ids":      []int64{},
			"created_note_ids": []int64{},
			"skipped":          true,
			"reason":           exec.SkipReason,
		})
		return domain.Skipped(exec.SkipReason), nil
	}

	exec.emit("saving", map[string]interface{}{"message": "Сохраняю…"})
	exec.emit("done", doneData(exec))
	return domain.Completed(exec.AffectedIDs, exec.CreatedIDs), nil
}

func doneData(exec *ExecContext) map[string]interface{} {
	return map[string]interface{}{
		"affected_ids":     orEmptyIDs(exec.AffectedIDs),
		"created_ids":      orEmptyIDs(exec.CreatedIDs),
		"created_note_ids": orEmptyIDs(exec.CreatedIDs),
	}
}

func orEmptyIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func orEmptyObject(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
