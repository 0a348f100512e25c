package agent

import (
	"fmt"

	"github.com/ainotes/backend/internal/domain"
)

const taskSystemPrompt = `Ты — агент задач. Пользователь просит создать ЗАДАЧУ (без даты/времени).

Твоя задача: извлечь суть, оформить в Markdown.
- content: ОБЯЗАТЕЛЬНО заполняй — описание задачи, контекст, детали. Весь осмысленный текст из запроса.
- category: Работа, Дом, Здоровье, Учёба, Проект X.
- subtasks: [{text, done: false}] — если есть отдельные пункты/шаги/чекбоксы.

ВАЖНО: Только задачи БЕЗ даты/времени. Если пользователь указал дату/время — не обрабатывай, верни ошибку.
Отвечай ТОЛЬКО вызовами инструментов.`

var taskToolDisplay = map[string]string{
	"create_task":         "Создаю задачу",
	"update_user_profile": "Обновляю профиль",
}

// TaskExecutor creates undated tasks: create_task, update_user_profile.
type TaskExecutor struct {
	singleShot
}

func NewTaskExecutor(deps ExecutorDeps) *TaskExecutor {
	registry := NewRegistry()
	RegisterTaskTools(registry, deps.NoteTools)
	RegisterProfileTools(registry)

	log := deps.Log.With().Str("executor", "task").Logger()
	return &TaskExecutor{singleShot{
		name:     "task",
		intent:   domain.IntentTask,
		client:   deps.Client,
		store:    deps.Store,
		registry: registry,
		sandbox:  NewSandbox(registry, deps.Policy, deps.MaxToolOutputChars, log),
		params:   deps.Params,
		log:      log,
		now:      deps.clock(),
		systemPrompt: func(today, profileBlock string) string {
			return taskSystemPrompt + "\n\nСегодня: " + today + profileBlock
		},
		userMessage: func(contextStr, input string) string {
			return fmt.Sprintf("Контекст:\n%s\n\nЗапрос задачи:\n%s", contextStr, input)
		},
		callingMsg: "Создаю задачу…",
		display:    taskToolDisplay,
	}}
}
