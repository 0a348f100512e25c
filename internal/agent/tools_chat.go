package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/search"
)

// ChatToolConfig wires read-only discussion tools.
type ChatToolConfig struct {
	Log zerolog.Logger
}

// RegisterChatTools adds search_notes, get_notes_tree and read_notes to the
// registry.
func RegisterChatTools(r *Registry, cfg ChatToolConfig) {
	r.MustRegister(&ToolDefinition{
		Name:        "search_notes",
		Description: "Поиск по заметкам пользователя. Обязательно включи в exact_queries точные термины из запроса (ключевые слова, аббревиатуры, имена). Добавь варианты написания. semantic_queries — переформулировки и синонимы. Каждый список — массив строк.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"exact_queries":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"semantic_queries": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			},
			"required": []interface{}{"exact_queries", "semantic_queries"},
		},
		Timeout: 30 * time.Second,
		Handler: cfg.searchNotes,
	})

	r.MustRegister(&ToolDefinition{
		Name:        "get_notes_tree",
		Description: "Обзор всех папок и заметок пользователя: дерево папок с вложенными заметками (id, title). Без содержимого.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		Timeout: 15 * time.Second,
		Handler: getNotesTree,
	})

	r.MustRegister(&ToolDefinition{
		Name:        "read_notes",
		Description: "Прочитать полный текст заметок по id (из search_notes или get_notes_tree).",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"note_ids": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "integer"}, "description": "ID заметок"},
			},
			"required": []interface{}{"note_ids"},
		},
		Timeout: 15 * time.Second,
		Handler: readNotes,
	})
}

// searchNotes merges exact and semantic queries with RRF. When the model
// passes empty lists and the request carries a fallback query, that query is
// normalized and used as the exact list.
func (c *ChatToolConfig) searchNotes(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	exact := search.NormalizeQueries(args["exact_queries"])
	semantic := search.NormalizeQueries(args["semantic_queries"])
	if len(exact) == 0 && len(semantic) == 0 && strings.TrimSpace(exec.FallbackQuery) != "" {
		exact = search.NormalizeQueries(strings.TrimSpace(exec.FallbackQuery))
		c.Log.Info().Str("fallback", preview(exec.FallbackQuery, 80)).Msg("search_notes using fallback query")
	}

	searcher := search.NewSearcher(exec.Store, c.Log)
	results, err := searcher.Search(ctx, exec.UserID, exact, semantic)
	if err != nil {
		return "", err
	}
	if results == nil {
		results = []search.Result{}
	}
	out, err := json.Marshal(results)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

type treeFolder struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Children []treeFolder `json:"children"`
	Notes    []treeNote   `json:"notes"`
}

type treeNote struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// getNotesTree renders the full folder hierarchy with note titles.
func getNotesTree(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	folders, err := exec.Store.ListFolders(ctx, exec.UserID)
	if err != nil {
		return "", err
	}
	notes, err := exec.Store.ListNotes(ctx, exec.UserID, 0)
	if err != nil {
		return "", err
	}

	notesByFolder := map[int64][]treeNote{}
	var rootNotes []treeNote
	for _, n := range notes {
		ref := treeNote{ID: n.ID, Title: n.Title}
		if n.FolderID == nil {
			rootNotes = append(rootNotes, ref)
		} else {
			notesByFolder[*n.FolderID] = append(notesByFolder[*n.FolderID], ref)
		}
	}

	childrenOf := map[int64][]domain.Folder{}
	var roots []domain.Folder
	for _, f := range folders {
		if f.ParentID == nil {
			roots = append(roots, f)
		} else {
			childrenOf[*f.ParentID] = append(childrenOf[*f.ParentID], f)
		}
	}

	var build func(f domain.Folder) treeFolder
	build = func(f domain.Folder) treeFolder {
		node := treeFolder{
			ID:       f.ID,
			Name:     f.Name,
			Children: []treeFolder{},
			Notes:    notesByFolder[f.ID],
		}
		if node.Notes == nil {
			node.Notes = []treeNote{}
		}
		for _, child := range childrenOf[f.ID] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}

	tree := make([]treeFolder, 0, len(roots))
	for _, f := range roots {
		tree = append(tree, build(f))
	}
	if rootNotes == nil {
		rootNotes = []treeNote{}
	}
	out, err := json.Marshal(map[string]interface{}{"roots": tree, "root_notes": rootNotes})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// readNotes returns the full text of the requested notes. Unknown ids are
// skipped.
func readNotes(ctx context.Context, args map[string]interface{}, exec *ExecContext) (string, error) {
	raw, _ := args["note_ids"].([]interface{})
	var parts []string
	for _, v := range raw {
		id, ok := argInt64(v)
		if !ok {
			continue
		}
		note, err := exec.Store.GetNote(ctx, exec.UserID, id)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("=== id=%d title=%q ===\n%s", note.ID, note.Title, note.Content))
	}
	if len(parts) == 0 {
		return "No notes found", nil
	}
	return strings.Join(parts, "\n\n"), nil
}
