// Package domain defines the core domain models for the backend.
package domain

import (
	"encoding/json"
	"time"
)

// TimestampFormat is the canonical timestamp layout used in note bodies
// and API payloads.
const TimestampFormat = "2006-01-02 15:04:05"

// Folder is a container for notes. Folders form a tree via ParentID.
type Folder struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	ParentID  *int64     `json:"parent_id,omitempty"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Note is a document in a folder. Tasks are notes with IsTask set and an
// optional subtask checklist.
type Note struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	FolderID  *int64     `json:"folder_id,omitempty"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	IsTask    bool       `json:"is_task"`
	Subtasks  []Subtask  `json:"subtasks,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Subtask is a single checklist item on a task note.
type Subtask struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Event is a calendar entry attached to a note.
type Event struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	NoteID   int64     `json:"note_id"`
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// ProfileFact is a single remembered fact about the user, fed into agent
// context.
type ProfileFact struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Fact      string    `json:"fact"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentSettings carries per-agent LLM overrides stored for a user.
type AgentSettings struct {
	Agent            string   `json:"agent"`
	BaseURL          string   `json:"base_url,omitempty"`
	Model            string   `json:"model,omitempty"`
	APIKey           string   `json:"api_key,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
}

// PendingAction is a tool invocation suspended on a clarifying question,
// keyed by (user, session) and expiring after a TTL.
type PendingAction struct {
	Intent    Intent                 `json:"intent"`
	Tool      string                 `json:"tool"`
	Params    map[string]interface{} `json:"params"`
	Awaiting  string                 `json:"awaiting"`
	Context   map[string]interface{} `json:"context,omitempty"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// NoteCandidate is one option offered to the user when several notes match
// an ambiguous edit request.
type NoteCandidate struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// AgentEvent is a single progress event emitted while an agent request is
// being processed.
type AgentEvent struct {
	Phase string                 `json:"phase"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// RawParams decodes loosely-typed tool parameters from JSON.
func RawParams(raw json.RawMessage) map[string]interface{} {
	var m map[string]interface{}
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return map[string]interface{}{}
	}
	return m
}
