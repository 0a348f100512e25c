package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/llm"
	"github.com/ainotes/backend/internal/store"
)

const chatSystemPrompt = `Ты — помощник по обсуждению идей на основе заметок пользователя. У тебя есть доступ к поиску по заметкам.

Когда пользователь задаёт вопрос или хочет обсудить тему:
1. Если спрашивает «что у меня есть», «какие папки», «структура заметок», «обзор» — вызови get_notes_tree.
2. Если уже есть id заметок (из get_notes_tree/search_notes) и нужен полный текст — read_notes с note_ids.
3. Иначе: search_notes с exact_queries и semantic_queries. snippet из search_notes краткий — если нужен полный текст, вызови read_notes.
4. Если поиск ничего не нашёл — честно скажи. Не выдумывай содержимое заметок.`

// ChatExecutor streams a discussion turn backed by the read-only note tools.
// Unlike the single-shot executors it loops: tool results are fed back to
// the model until it answers in plain text or the iteration cap is reached.
type ChatExecutor struct {
	client   LLMClient
	store    *store.SQLiteStore
	registry *Registry
	engine   *Engine
	params   ModelParams
	log      zerolog.Logger
	now      func() time.Time
}

func NewChatExecutor(deps ExecutorDeps, maxIterations int) *ChatExecutor {
	registry := NewRegistry()
	RegisterChatTools(registry, ChatToolConfig{Log: deps.Log})

	log := deps.Log.With().Str("executor", "chat").Logger()
	sandbox := NewSandbox(registry, deps.Policy, deps.MaxToolOutputChars, log)
	return &ChatExecutor{
		client:   deps.Client,
		store:    deps.Store,
		registry: registry,
		engine:   NewEngine(deps.Client, registry, sandbox, maxIterations, log),
		params:   deps.Params,
		log:      log,
		now:      deps.clock(),
	}
}

func (e *ChatExecutor) systemPrompt() string {
	currentTime := e.now().UTC().Format("2006-01-02 15:04")
	toolsSection := fmt.Sprintf(
		"search_notes - %s (exact_queries, semantic_queries)\nget_notes_tree - %s\nread_notes - %s (note_ids)",
		e.registry.Get("search_notes").Description,
		e.registry.Get("get_notes_tree").Description,
		e.registry.Get("read_notes").Description)
	reminder := fmt.Sprintf(
		"Текущая дата: %s (год %s). Отвечай на том же языке, на котором пишет пользователь.",
		currentTime, currentTime[:4])
	return chatSystemPrompt + "\n\n" + toolsSection + "\n\n" + reminder
}

// Execute streams one chat turn. Assistant text goes out as content_delta
// events; the final outcome carries the full answer.
func (e *ChatExecutor) Execute(ctx context.Context, req *Request) (domain.Outcome, error) {
	exec := &ExecContext{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Store:     e.store,
		Progress:  req.Progress,
		// Raw input seeds search_notes when the model passes empty queries.
		FallbackQuery: req.Input,
	}

	params := e.params
	if settings, err := e.store.GetAgentSettings(ctx, req.UserID, "chat"); err != nil {
		e.log.Warn().Err(err).Msg("loading agent settings failed, using defaults")
	} else {
		params = params.withOverrides(settings)
	}

	messages := []llm.ChatMessage{
		{Role: "system", Content: e.systemPrompt()},
		{Role: "user", Content: req.Input},
	}
	llmReq := params.request(messages)

	result, err := e.engine.Run(ctx, llmReq, exec, func(delta string) {
		exec.emit("content_delta", map[string]interface{}{"delta": delta})
	})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("chat: %w", err)
	}

	exec.emit("done", map[string]interface{}{
		"content":          result.Content,
		"tool_calls_saved": result.ToolCallsSaved,
	})
	out := domain.Completed(nil, nil)
	out.Answer = result.Content
	return out, nil
}
