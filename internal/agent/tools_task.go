package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ainotes/backend/internal/domain"
)

// tasksFolderName is the root folder every task lands under.
const tasksFolderName = "Задачи"

// RegisterTaskTools adds create_task to the registry.
func RegisterTaskTools(r *Registry, cfg NoteToolConfig) {
	r.MustRegister(&ToolDefinition{
		Name:        "create_task",
		Description: "Создать ЗАДАЧУ (без даты/времени). content: описание задачи в Markdown — ОБЯЗАТЕЛЬНО заполняй. category: Работа, Дом, Здоровье, Учёба. subtasks: [{text, done}] — подзадачи/чекбоксы.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"title":    map[string]interface{}{"type": "string", "description": "Заголовок задачи (кратко)"},
				"content":  map[string]interface{}{"type": "string", "description": "Описание задачи (Markdown)"},
				"category": map[string]interface{}{"type": []interface{}{"string", "null"}, "description": "Категория: Работа, Дом, Здоровье, Учёба, Проект X. null — без категории."},
				"subtasks": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"text": map[string]interface{}{"type": "string"},
							"done": map[string]interface{}{"type": "boolean"},
						},
						"required": []interface{}{"text"},
					},
					"description": "Подзадачи (опционально). Каждая: {text: 'описание', done: false}",
				},
			},
			"required": []interface{}{"title", "content"},
		},
		Timeout: 30 * time.Second,
		Handler: cfg.createTask,
	})
}

// createTask files the task note under the "Задачи" root folder, inside a
// category subfolder when one is given. Both folders are created on demand.
func (c *NoteToolConfig) createTask(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	title := argString(args, "title")
	if title == "" {
		return "Error: title required", nil
	}

	tasksFolderID, err := exec.Store.GetOrCreateFolder(ctx, exec.UserID, nil, tasksFolderName)
	if err != nil {
		return "", err
	}
	targetFolderID := tasksFolderID
	if category := strings.TrimSpace(argString(args, "category")); category != "" {
		targetFolderID, err = exec.Store.GetOrCreateFolder(ctx, exec.UserID, &tasksFolderID, category)
		if err != nil {
			return "", err
		}
	}

	noteID, err := exec.Store.CreateNote(ctx, &domain.Note{
		UserID:   exec.UserID,
		FolderID: &targetFolderID,
		Title:    title,
		Content:  fmt.Sprintf(createdPrefix, c.ts()) + argString(args, "content"),
		IsTask:   true,
		Subtasks: normalizeSubtasks(args["subtasks"]),
	})
	if err != nil {
		return "", err
	}
	exec.RecordCreated(noteID)
	exec.RecordAffected(noteID)
	return fmt.Sprintf("Created task id=%d", noteID), nil
}

// normalizeSubtasks keeps entries with non-empty text and coerces done to a
// bool, dropping everything else the model may have invented.
func normalizeSubtasks(raw interface{}) []domain.Subtask {
	items, ok := raw.([]interface{})
	if !ok || len(items) == 0 {
		return nil
	}
	var out []domain.Subtask
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		text := argString(m, "text")
		if text == "" {
			continue
		}
		out = append(out, domain.Subtask{Text: text, Done: argBool(m["done"])})
	}
	return out
}
