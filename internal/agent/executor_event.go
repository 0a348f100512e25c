package agent

import (
	"fmt"

	"github.com/ainotes/backend/internal/domain"
)

const eventSystemPrompt = `Ты — агент событий календаря. Пользователь просит напоминание, встречу, добавить в календарь.

Твоя задача: извлечь дату/время, оформить заметку + событие. starts_at/ends_at в ISO 8601.
Дефолты: 09:00 для «только дата», 30 мин длительность если не указано.

Шаблон content: ## Событие (что, когда, где) | ## Заметка пользователя | ## Детали

ВАЖНО: Только для запросов С датой/временем. Без даты — не обрабатывай.

После create_note_with_event — ОБЯЗАТЕЛЬНО проверь: есть ли в запросе сфера/контекст (работа, встреча, проект). Если да и её нет в «Известно о пользователе» — вызови update_user_profile.
Отвечай ТОЛЬКО вызовами create_note_with_event (и update_user_profile).`

var eventToolDisplay = map[string]string{
	"create_note_with_event": "Создаю событие в календаре",
	"update_user_profile":    "Обновляю профиль",
}

// EventExecutor creates calendar events: create_note_with_event,
// update_user_profile.
type EventExecutor struct {
	singleShot
}

func NewEventExecutor(deps ExecutorDeps) *EventExecutor {
	registry := NewRegistry()
	RegisterEventTools(registry, deps.NoteTools)
	RegisterProfileTools(registry)

	log := deps.Log.With().Str("executor", "event").Logger()
	return &EventExecutor{singleShot{
		name:     "event",
		intent:   domain.IntentEvent,
		client:   deps.Client,
		store:    deps.Store,
		registry: registry,
		sandbox:  NewSandbox(registry, deps.Policy, deps.MaxToolOutputChars, log),
		params:   deps.Params,
		log:      log,
		now:      deps.clock(),
		systemPrompt: func(today, profileBlock string) string {
			return eventSystemPrompt + "\n\nСегодня: " + today + profileBlock
		},
		userMessage: func(contextStr, input string) string {
			return fmt.Sprintf("Контекст:\n%s\n\nЗапрос события:\n%s", contextStr, input)
		},
		callingMsg: "Добавляю событие…",
		display:    eventToolDisplay,
	}}
}
