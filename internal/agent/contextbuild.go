package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/store"
)

const notePreviewChars = 400

// buildContext renders the user's folders, notes and events for the model.
// Returns the context body and a profile block to append to the system
// prompt. When noteID is set, the full text of that note leads the context
// so the model can append or patch it.
func buildContext(ctx context.Context, st *store.SQLiteStore, userID int64, noteID *int64) (string, string, error) {
	facts, err := st.ListProfileFacts(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("list profile facts: %w", err)
	}
	var profileBlock string
	if len(facts) > 0 {
		var b strings.Builder
		b.WriteString("\n\nИзвестно о пользователе (используй для выбора папки):")
		for _, f := range facts {
			b.WriteString("\n- ")
			b.WriteString(f.Fact)
		}
		profileBlock = b.String()
	}

	var noteForEdit string
	if noteID != nil {
		note, err := st.GetNote(ctx, userID, *noteID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", "", fmt.Errorf("get note for edit: %w", err)
		}
		if err == nil {
			noteForEdit = fmt.Sprintf(
				"--- Заметка для редактирования (пользователь с ней работает, дополняй или меняй через append_to_note/patch_note) ---\nid=%d folder_id=%s title=%q\n\nПолный текст:\n%s\n---",
				note.ID, formatFolderID(note.FolderID), note.Title, note.Content)
		}
	}

	folders, err := st.ListFolders(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("list folders: %w", err)
	}

	parts := []string{"Папки (иерархия; id для parent_folder_id):"}
	parts = append(parts, folderTreeLines(folders)...)

	notes, err := st.ListNotes(ctx, userID, 0)
	if err != nil {
		return "", "", fmt.Errorf("list notes: %w", err)
	}
	parts = append(parts, "\nЗаметки (id, title, preview 400):")
	for _, n := range notes {
		preview := n.Content
		if runes := []rune(preview); len(runes) > notePreviewChars {
			preview = string(runes[:notePreviewChars])
		}
		preview = strings.ReplaceAll(preview, "\n", " ")
		parts = append(parts, fmt.Sprintf("  - id=%d folder_id=%s title=%q preview=%q",
			n.ID, formatFolderID(n.FolderID), n.Title, preview))
	}

	events, err := st.ListUpcomingEvents(ctx, userID, 0)
	if err != nil {
		return "", "", fmt.Errorf("list events: %w", err)
	}
	parts = append(parts, "\nСобытия (id, note_id, title, starts_at, ends_at):")
	for _, e := range events {
		parts = append(parts, fmt.Sprintf("  - id=%d note_id=%d title=%q starts=%s ends=%s",
			e.ID, e.NoteID, e.Title, e.StartsAt.Format(time.RFC3339), e.EndsAt.Format(time.RFC3339)))
	}

	contextStr := strings.Join(parts, "\n")
	if noteForEdit != "" {
		contextStr = noteForEdit + "\n\n" + contextStr
	}
	return contextStr, profileBlock, nil
}

// folderTreeLines renders the folder hierarchy depth-first, two spaces per
// level.
func folderTreeLines(folders []domain.Folder) []string {
	childrenOf := map[int64][]domain.Folder{}
	var roots []domain.Folder
	for _, f := range folders {
		if f.ParentID == nil {
			roots = append(roots, f)
		} else {
			childrenOf[*f.ParentID] = append(childrenOf[*f.ParentID], f)
		}
	}
	for id := range childrenOf {
		kids := childrenOf[id]
		sort.Slice(kids, func(i, j int) bool { return kids[i].ID < kids[j].ID })
	}

	var lines []string
	var walk func(items []domain.Folder, indent int)
	walk = func(items []domain.Folder, indent int) {
		prefix := strings.Repeat("  ", indent)
		for _, f := range items {
			lines = append(lines, fmt.Sprintf("%s- id=%d name=%q", prefix, f.ID, f.Name))
			walk(childrenOf[f.ID], indent+1)
		}
	}
	walk(roots, 0)
	return lines
}

func formatFolderID(id *int64) string {
	if id == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *id)
}

// todayLine renders the current date the way system prompts expect it, e.g.
// "2025-02-18, Tuesday".
func todayLine(now func() time.Time) string {
	return now().UTC().Format("2006-01-02, Monday")
}
