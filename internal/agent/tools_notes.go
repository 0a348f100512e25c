package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/store"
)

const (
	appendSeparator = "\n\n--- %s ---\n\n"
	createdPrefix   = "Создано: %s\n\n"

	maxSelectionCandidates = 20
)

// NoteToolConfig tunes note tool behavior.
type NoteToolConfig struct {
	// PatchSimilarity is the minimum ratio for fuzzy patch_note matches.
	PatchSimilarity float64
	// Now is swappable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (c *NoteToolConfig) clock() func() time.Time {
	if c.Now != nil {
		return c.Now
	}
	return time.Now
}

func (c *NoteToolConfig) ts() string {
	return c.clock()().UTC().Format(domain.TimestampFormat)
}

// RegisterProfileTools adds update_user_profile to the registry. Every
// executor carries it so the agent can remember new facts mid-request.
func RegisterProfileTools(r *Registry) {
	r.MustRegister(&ToolDefinition{
		Name:        "update_user_profile",
		Description: "Добавить факт о пользователе. Формат: «Пользователь X. Идеи по Y класть в папку Z.»",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"fact": map[string]interface{}{"type": "string", "description": "Краткий факт: сфера + куда класть заметки (папка)."},
			},
			"required": []interface{}{"fact"},
		},
		Timeout: 15 * time.Second,
		Handler: updateUserProfile,
	})
}

// RegisterNoteTools adds create_note, append_to_note, patch_note,
// create_folder, create_folder_with_note, request_note_selection and
// skip_save to the registry.
func RegisterNoteTools(r *Registry, cfg NoteToolConfig) {
	r.MustRegister(&ToolDefinition{
		Name:        "create_note",
		Description: "Создать заметку. folder_id — id существующей папки или null. folder_name — создать новую папку (parent_folder_id — родитель для подпапки). Если ничего не указано — корень.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"folder_id":        map[string]interface{}{"type": []interface{}{"integer", "null"}, "description": "ID папки или null для корня"},
				"folder_name":      map[string]interface{}{"type": []interface{}{"string", "null"}, "description": "Имя новой папки"},
				"parent_folder_id": map[string]interface{}{"type": []interface{}{"integer", "null"}, "description": "ID родителя для подпапки; null = корень"},
				"title":            map[string]interface{}{"type": "string", "description": "Заголовок"},
				"content":          map[string]interface{}{"type": "string", "description": "Markdown по шаблону: Кратко, Основное, Ключевые пункты, Задачи (опционально), Связи/Выводы (опционально). Не копировать verbatim."},
			},
			"required": []interface{}{"title"},
		},
		Timeout: 30 * time.Second,
		Handler: cfg.createNote,
	})

	r.MustRegister(&ToolDefinition{
		Name:        "append_to_note",
		Description: "Добавить блок в конец существующей заметки",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"note_id": map[string]interface{}{"type": "integer"},
				"content": map[string]interface{}{"type": "string", "description": "Markdown-блок по той же структуре шаблона. Не копировать verbatim."},
			},
			"required": []interface{}{"note_id", "content"},
		},
		Timeout: 30 * time.Second,
		Handler: cfg.appendToNote,
	})

	r.MustRegister(&ToolDefinition{
		Name:        "patch_note",
		Description: "Заменить конкретный фрагмент текста (str_replace семантика)",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"note_id":  map[string]interface{}{"type": "integer"},
				"old_text": map[string]interface{}{"type": "string", "description": "Точная строка из заметки"},
				"new_text": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"note_id", "old_text", "new_text"},
		},
		Timeout: 30 * time.Second,
		Handler: cfg.patchNote,
	})

	r.MustRegister(&ToolDefinition{
		Name:        "create_folder",
		Description: "Создать папку. parent_folder_id — ID родительской папки для подпапки; null — корень.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"name":             map[string]interface{}{"type": "string"},
				"parent_folder_id": map[string]interface{}{"type": []interface{}{"integer", "null"}, "description": "ID родителя для подпапки; null = корень"},
			},
			"required": []interface{}{"name"},
		},
		Timeout: 30 * time.Second,
		Handler: cfg.createFolder,
	})

	r.MustRegister(&ToolDefinition{
		Name:        "create_folder_with_note",
		Description: "Создать папку (или подпапку) и поместить в неё заметку. parent_folder_id — ID родителя для подпапки; null — корень.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"folder_name":      map[string]interface{}{"type": "string", "description": "Имя папки/подпапки"},
				"parent_folder_id": map[string]interface{}{"type": []interface{}{"integer", "null"}, "description": "ID родительской папки для подпапки; null — создать в корне"},
				"title":            map[string]interface{}{"type": "string", "description": "Заголовок заметки"},
				"content":          map[string]interface{}{"type": "string", "description": "Markdown по шаблону: Кратко, Основное, Ключевые пункты."},
			},
			"required": []interface{}{"folder_name", "title", "content"},
		},
		Timeout: 30 * time.Second,
		Handler: cfg.createFolderWithNote,
	})

	r.MustRegister(&ToolDefinition{
		Name:        "request_note_selection",
		Description: "Пользователь просит изменить заметку, но не указал какую. Подходят несколько. Верни candidates: [{note_id, title}]. Только когда 2+ заметок подходят.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"candidates": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"note_id": map[string]interface{}{"type": "integer"},
							"title":   map[string]interface{}{"type": "string"},
						},
						"required": []interface{}{"note_id"},
					},
					"description": "Список заметок для выбора пользователем",
				},
			},
			"required": []interface{}{"candidates"},
		},
		Timeout: 15 * time.Second,
		Handler: requestNoteSelection,
	})

	r.MustRegister(&ToolDefinition{
		Name:        "skip_save",
		Description: "Не сохранять. Вызывай, когда ввод не содержит ничего полезного для долговременной памяти: приветствие, благодарность, неполная мысль, мелкий вопрос, тест.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"reason": map[string]interface{}{"type": "string", "description": "Краткая причина: приветствие, нечего сохранять, тест и т.д."},
			},
			"required": []interface{}{"reason"},
		},
		Timeout: 15 * time.Second,
		Handler: skipSave,
	})
}

func (c *NoteToolConfig) createNote(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	title := argString(args, "title")
	if title == "" {
		return "Error: title required", nil
	}
	content := argString(args, "content")

	targetFolderID := argOptionalID(args, "folder_id")
	folderName := strings.TrimSpace(argString(args, "folder_name"))
	if folderName != "" {
		parentID := argOptionalID(args, "parent_folder_id")
		if parentID != nil {
			if _, err := exec.Store.GetFolder(ctx, exec.UserID, *parentID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return "Error: parent folder not found", nil
				}
				return "", err
			}
		}
		folderID, err := exec.Store.CreateFolder(ctx, exec.UserID, parentID, folderName)
		if err != nil {
			return "", err
		}
		targetFolderID = &folderID
		exec.RecordCreated(folderID)
		exec.RecordAffected(folderID)
	} else if targetFolderID != nil {
		if _, err := exec.Store.GetFolder(ctx, exec.UserID, *targetFolderID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "Error: folder not found", nil
			}
			return "", err
		}
	}

	noteID, err := exec.Store.CreateNote(ctx, &domain.Note{
		UserID:   exec.UserID,
		FolderID: targetFolderID,
		Title:    title,
		Content:  fmt.Sprintf(createdPrefix, c.ts()) + content,
	})
	if err != nil {
		return "", err
	}
	exec.RecordCreated(noteID)
	exec.RecordAffected(noteID)
	return fmt.Sprintf("Created note id=%d", noteID), nil
}

func (c *NoteToolConfig) appendToNote(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	noteID := argOptionalID(args, "note_id")
	if noteID == nil {
		return "Error: note not found", nil
	}
	note, err := exec.Store.GetNote(ctx, exec.UserID, *noteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "Error: note not found", nil
		}
		return "", err
	}
	content := note.Content + fmt.Sprintf(appendSeparator, c.ts()) + argString(args, "content")
	if err := exec.Store.UpdateNoteContent(ctx, exec.UserID, note.ID, content); err != nil {
		return "", err
	}
	exec.RecordAffected(note.ID)
	return fmt.Sprintf("Appended to note id=%d", note.ID), nil
}

func (c *NoteToolConfig) patchNote(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	oldText := argString(args, "old_text")
	if oldText == "" {
		return "Error: old_text required", nil
	}
	noteID := argOptionalID(args, "note_id")
	if noteID == nil {
		return "Error: note not found", nil
	}
	note, err := exec.Store.GetNote(ctx, exec.UserID, *noteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "Error: note not found", nil
		}
		return "", err
	}
	patched, _, err := applyPatch(note.Content, oldText, argString(args, "new_text"), c.PatchSimilarity)
	if err != nil {
		return "", err
	}
	if err := exec.Store.UpdateNoteContent(ctx, exec.UserID, note.ID, patched); err != nil {
		return "", err
	}
	exec.RecordAffected(note.ID)
	return fmt.Sprintf("Patched note id=%d", note.ID), nil
}

func (c *NoteToolConfig) createFolder(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	name := argString(args, "name")
	if name == "" {
		return "Error: name required", nil
	}
	parentID := argOptionalID(args, "parent_folder_id")
	if parentID != nil {
		if _, err := exec.Store.GetFolder(ctx, exec.UserID, *parentID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "Error: parent folder not found", nil
			}
			return "", err
		}
	}
	folderID, err := exec.Store.CreateFolder(ctx, exec.UserID, parentID, name)
	if err != nil {
		return "", err
	}
	exec.RecordCreated(folderID)
	exec.RecordAffected(folderID)
	return fmt.Sprintf("Created folder id=%d", folderID), nil
}

func (c *NoteToolConfig) createFolderWithNote(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	folderName := argString(args, "folder_name")
	title := argString(args, "title")
	if folderName == "" || title == "" {
		return "Error: folder_name and title required", nil
	}
	parentID := argOptionalID(args, "parent_folder_id")
	if parentID != nil {
		if _, err := exec.Store.GetFolder(ctx, exec.UserID, *parentID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "Error: parent folder not found", nil
			}
			return "", err
		}
	}
	folderID, err := exec.Store.CreateFolder(ctx, exec.UserID, parentID, folderName)
	if err != nil {
		return "", err
	}
	exec.RecordCreated(folderID)
	exec.RecordAffected(folderID)

	noteID, err := exec.Store.CreateNote(ctx, &domain.Note{
		UserID:   exec.UserID,
		FolderID: &folderID,
		Title:    title,
		Content:  fmt.Sprintf(createdPrefix, c.ts()) + argString(args, "content"),
	})
	if err != nil {
		return "", err
	}
	exec.RecordCreated(noteID)
	exec.RecordAffected(noteID)
	return fmt.Sprintf("Created folder id=%d and note id=%d", folderID, noteID), nil
}

// requestNoteSelection validates the model's candidate list against live
// notes and records it on the context. The executor turns a non-empty list
// into a clarification outcome.
func requestNoteSelection(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	raw, _ := args["candidates"].([]interface{})
	if len(raw) > maxSelectionCandidates {
		raw = raw[:maxSelectionCandidates]
	}
	validated := make([]domain.NoteCandidate, 0, len(raw))
	for _, item := range raw {
		c, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		v, ok := c["note_id"]
		if !ok || v == nil {
			continue
		}
		id, ok := argInt64(v)
		if !ok {
			continue
		}
		note, err := exec.Store.GetNote(ctx, exec.UserID, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return "", err
		}
		title := argString(c, "title")
		if title == "" {
			title = note.Title
		}
		validated = append(validated, domain.NoteCandidate{ID: id, Title: title})
	}
	exec.Candidates = validated

	items := make([]map[string]interface{}, 0, len(validated))
	for _, c := range validated {
		items = append(items, map[string]interface{}{"note_id": c.ID, "title": c.Title})
	}
	out, err := json.Marshal(map[string]interface{}{"candidates": items})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// updateUserProfile stores a fact unless an equal one (case-insensitive,
// trimmed) already exists.
func updateUserProfile(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	fact := strings.TrimSpace(argString(args, "fact"))
	if fact == "" {
		return "No fact to add", nil
	}
	existing, err := exec.Store.ListProfileFacts(ctx, exec.UserID)
	if err != nil {
		return "", err
	}
	normalized := strings.ToLower(fact)
	for _, f := range existing {
		if strings.ToLower(strings.TrimSpace(f.Fact)) == normalized {
			return "Profile updated", nil
		}
	}
	if _, err := exec.Store.AddProfileFact(ctx, exec.UserID, fact); err != nil {
		return "", err
	}
	return "Profile updated", nil
}

func skipSave(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	reason := argString(args, "reason")
	if reason == "" {
		reason = "нечего сохранять"
	}
	exec.SkipReason = reason
	return "Skipped", nil
}
