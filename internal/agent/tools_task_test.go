package agent

import (
	"context"
	"testing"

	"github.com/ainotes/backend/internal/domain"
)

func TestCreateTaskFilesUnderTasksFolder(t *testing.T) {
	cfg, exec := newToolFixture(t)
	ctx := context.Background()

	got, err := cfg.createTask(ctx, map[string]interface{}{
		"title":   "Сходить в магазин",
		"content": "список покупок",
	}, exec)
	if err != nil {
		t.Fatalf("createTask failed: %v", err)
	}
	if got != "Created task id=1" {
		t.Errorf("result = %q", got)
	}

	folders, _ := exec.Store.ListFolders(ctx, 1)
	if len(folders) != 1 || folders[0].Name != tasksFolderName {
		t.Fatalf("folders = %+v", folders)
	}
	note, _ := exec.Store.GetNote(ctx, 1, 1)
	if !note.IsTask {
		t.Error("note is not marked as task")
	}
	if note.FolderID == nil || *note.FolderID != folders[0].ID {
		t.Errorf("note folder = %v", note.FolderID)
	}
}

func TestCreateTaskCategorySubfolderReused(t *testing.T) {
	cfg, exec := newToolFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := cfg.createTask(ctx, map[string]interface{}{
			"title":    "Задача",
			"content":  "x",
			"category": "Работа",
		}, exec)
		if err != nil {
			t.Fatalf("createTask failed: %v", err)
		}
	}

	folders, _ := exec.Store.ListFolders(ctx, 1)
	// "Задачи" root plus one "Работа" subfolder, not duplicated.
	if len(folders) != 2 {
		t.Fatalf("folders = %+v", folders)
	}
	var root, sub domain.Folder
	for _, f := range folders {
		if f.Name == tasksFolderName {
			root = f
		} else {
			sub = f
		}
	}
	if sub.Name != "Работа" || sub.ParentID == nil || *sub.ParentID != root.ID {
		t.Errorf("subfolder = %+v", sub)
	}
}

func TestCreateTaskNormalizesSubtasks(t *testing.T) {
	cfg, exec := newToolFixture(t)
	ctx := context.Background()

	_, err := cfg.createTask(ctx, map[string]interface{}{
		"title":   "Уборка",
		"content": "по дому",
		"subtasks": []interface{}{
			map[string]interface{}{"text": "пропылесосить"},
			map[string]interface{}{"text": "помыть полы", "done": true},
			map[string]interface{}{"text": ""},
			"мусор",
			map[string]interface{}{"done": true},
		},
	}, exec)
	if err != nil {
		t.Fatalf("createTask failed: %v", err)
	}

	note, _ := exec.Store.GetNote(ctx, 1, 1)
	if len(note.Subtasks) != 2 {
		t.Fatalf("subtasks = %+v", note.Subtasks)
	}
	if note.Subtasks[0].Text != "пропылесосить" || note.Subtasks[0].Done {
		t.Errorf("subtask 0 = %+v", note.Subtasks[0])
	}
	if note.Subtasks[1].Text != "помыть полы" || !note.Subtasks[1].Done {
		t.Errorf("subtask 1 = %+v", note.Subtasks[1])
	}
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	cfg, exec := newToolFixture(t)

	got, _ := cfg.createTask(context.Background(), map[string]interface{}{"content": "x"}, exec)
	if got != "Error: title required" {
		t.Errorf("result = %q", got)
	}
}
