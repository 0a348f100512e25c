package agent

import (
	"fmt"

	"github.com/ainotes/backend/internal/domain"
)

const notesSystemPrompt = `Ты — агент организации заметок. Пользователь пишет сырые идеи, черновики.

Твоя задача: извлечь суть, переформулировать структурированно в Markdown. НЕ копировать verbatim.

Правила:
1. Если есть блок «Заметка для редактирования» — используй append_to_note или patch_note.
2. Если запрос изменить/дополнить заметку и подходят НЕСКОЛЬКО — request_note_selection с candidates.
3. Иначе — create_note (folder_id или folder_name для новой папки).
4. Для новой сферы (работа, компания, учёба) — create_folder_with_note.
5. После создания — update_user_profile при новой сфере.
6. Если нечего сохранять (приветствие, «спасибо», тест) — skip_save.

Шаблон заметки:
## Кратко | ## Основное | ## Ключевые пункты | ## Задачи (опц) | ## Связи (опц)
При append добавляй "\n\n---\n\n" перед новым блоком.
Отвечай ТОЛЬКО вызовами инструментов.`

var notesToolDisplay = map[string]string{
	"create_note":             "Создаю заметку",
	"append_to_note":          "Добавляю в заметку",
	"patch_note":              "Редактирую заметку",
	"create_folder":           "Создаю папку",
	"create_folder_with_note": "Создаю папку и заметку",
	"request_note_selection":  "Уточняю заметку",
	"update_user_profile":     "Обновляю профиль",
	"skip_save":               "Пропускаю сохранение",
}

// NotesExecutor creates and edits notes: create_note, append_to_note,
// patch_note, create_folder, create_folder_with_note, request_note_selection,
// update_user_profile, skip_save.
type NotesExecutor struct {
	singleShot
}

func NewNotesExecutor(deps ExecutorDeps) *NotesExecutor {
	registry := NewRegistry()
	RegisterNoteTools(registry, deps.NoteTools)
	RegisterProfileTools(registry)

	log := deps.Log.With().Str("executor", "notes").Logger()
	return &NotesExecutor{singleShot{
		name:     "notes",
		intent:   domain.IntentNote,
		client:   deps.Client,
		store:    deps.Store,
		registry: registry,
		sandbox:  NewSandbox(registry, deps.Policy, deps.MaxToolOutputChars, log),
		params:   deps.Params,
		log:      log,
		now:      deps.clock(),
		systemPrompt: func(today, profileBlock string) string {
			return notesSystemPrompt + profileBlock
		},
		userMessage: func(contextStr, input string) string {
			return fmt.Sprintf("Контекст:\n%s\n\nСырой ввод:\n%s", contextStr, input)
		},
		callingMsg: "Анализирую…",
		display:    notesToolDisplay,
	}}
}
