package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/store"
)

// RegisterEventTools adds create_note_with_event to the registry.
func RegisterEventTools(r *Registry, cfg NoteToolConfig) {
	r.MustRegister(&ToolDefinition{
		Name:        "create_note_with_event",
		Description: "Создать заметку + событие в календаре. starts_at/ends_at в ISO 8601. Для напоминаний, встреч, «завтра в 15:00».",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"folder_id": map[string]interface{}{"type": []interface{}{"integer", "null"}, "description": "ID папки или null для корня"},
				"title":     map[string]interface{}{"type": "string", "description": "Краткий заголовок события (для календаря)"},
				"content":   map[string]interface{}{"type": "string", "description": "Markdown по шаблону событий: ## Событие (что, когда, где), ## Заметка пользователя, ## Детали."},
				"starts_at": map[string]interface{}{"type": "string", "description": "ISO 8601 начало (например 2025-02-18T15:00:00)"},
				"ends_at":   map[string]interface{}{"type": "string", "description": "ISO 8601 конец (например 2025-02-18T16:00:00)"},
			},
			"required": []interface{}{"title", "content", "starts_at", "ends_at"},
		},
		Timeout: 30 * time.Second,
		Handler: cfg.createNoteWithEvent,
	})
}

func (c *NoteToolConfig) createNoteWithEvent(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	title := argString(args, "title")
	startsRaw := argString(args, "starts_at")
	endsRaw := argString(args, "ends_at")
	if title == "" || startsRaw == "" || endsRaw == "" {
		return "Error: title, starts_at, ends_at required", nil
	}

	folderID := argOptionalID(args, "folder_id")
	if folderID != nil {
		if _, err := exec.Store.GetFolder(ctx, exec.UserID, *folderID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "Error: folder not found", nil
			}
			return "", err
		}
	}

	startsAt, err := parseEventTime(startsRaw)
	if err != nil {
		return fmt.Sprintf("Error: invalid datetime: %v", err), nil
	}
	endsAt, err := parseEventTime(endsRaw)
	if err != nil {
		return fmt.Sprintf("Error: invalid datetime: %v", err), nil
	}

	noteID, err := exec.Store.CreateNote(ctx, &domain.Note{
		UserID:   exec.UserID,
		FolderID: folderID,
		Title:    title,
		Content:  fmt.Sprintf(createdPrefix, c.ts()) + argString(args, "content"),
	})
	if err != nil {
		return "", err
	}
	if _, err := exec.Store.CreateEvent(ctx, &domain.Event{
		UserID:   exec.UserID,
		NoteID:   noteID,
		Title:    title,
		StartsAt: startsAt,
		EndsAt:   endsAt,
	}); err != nil {
		return "", err
	}
	exec.RecordCreated(noteID)
	exec.RecordAffected(noteID)
	return fmt.Sprintf("Created note+event id=%d", noteID), nil
}

var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseEventTime accepts ISO 8601 with or without an offset. A trailing Z
// and missing offsets both mean UTC.
func parseEventTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range eventTimeLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
