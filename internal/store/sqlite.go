// Package store persists notes, folders, events and agent state in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ainotes/backend/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteStore implements persistence using SQLite.
type SQLiteStore struct {
	db *sql.DB
	q  dbtx

	// now is swappable for TTL tests.
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	s.q = db
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS folders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			parent_id INTEGER,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at DATETIME,
			FOREIGN KEY (parent_id) REFERENCES folders(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_folders_user ON folders(user_id, parent_id)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			folder_id INTEGER,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			is_task INTEGER NOT NULL DEFAULT 0,
			subtasks TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at DATETIME,
			FOREIGN KEY (folder_id) REFERENCES folders(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_user_updated ON notes(user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			note_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			starts_at DATETIME NOT NULL,
			ends_at DATETIME NOT NULL,
			FOREIGN KEY (note_id) REFERENCES notes(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_starts ON events(user_id, starts_at)`,
		`CREATE TABLE IF NOT EXISTS profile_facts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			fact TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profile_facts_user ON profile_facts(user_id)`,
		`CREATE TABLE IF NOT EXISTS agent_settings (
			user_id INTEGER NOT NULL,
			agent TEXT NOT NULL,
			base_url TEXT,
			model TEXT,
			api_key TEXT,
			temperature REAL,
			top_p REAL,
			frequency_penalty REAL,
			max_tokens INTEGER,
			PRIMARY KEY (user_id, agent)
		)`,
		`CREATE TABLE IF NOT EXISTS pending_actions (
			user_id INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			expires_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS disabled_tools (
			user_id INTEGER NOT NULL,
			tool TEXT NOT NULL,
			PRIMARY KEY (user_id, tool)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// WithTx runs fn against a transaction-scoped view of the store. The
// transaction commits only when fn returns nil.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx *SQLiteStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txStore := &SQLiteStore{db: s.db, q: tx, now: s.now}
	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SetClock overrides the store clock. Intended for tests.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

// CreateFolder creates a folder and returns its id.
func (s *SQLiteStore) CreateFolder(ctx context.Context, userID int64, parentID *int64, name string) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO folders (user_id, parent_id, name, created_at) VALUES (?, ?, ?, ?)`,
		userID, parentID, name, s.now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetFolder retrieves a folder owned by the user.
func (s *SQLiteStore) GetFolder(ctx context.Context, userID, folderID int64) (*domain.Folder, error) {
	var f domain.Folder
	var parentID sql.NullInt64
	err := s.q.QueryRowContext(ctx,
		`SELECT id, user_id, parent_id, name, created_at FROM folders WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		folderID, userID).Scan(&f.ID, &f.UserID, &parentID, &f.Name, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		f.ParentID = &parentID.Int64
	}
	return &f, nil
}

// ListFolders lists all live folders for a user, parents before children.
func (s *SQLiteStore) ListFolders(ctx context.Context, userID int64) ([]domain.Folder, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, user_id, parent_id, name, created_at FROM folders WHERE user_id = ? AND deleted_at IS NULL ORDER BY parent_id IS NOT NULL, id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []domain.Folder
	for rows.Next() {
		var f domain.Folder
		var parentID sql.NullInt64
		if err := rows.Scan(&f.ID, &f.UserID, &parentID, &f.Name, &f.CreatedAt); err != nil {
			return nil, err
		}
		if parentID.Valid {
			f.ParentID = &parentID.Int64
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// GetOrCreateFolder returns the id of the folder with the given name under
// parentID, creating it when absent.
func (s *SQLiteStore) GetOrCreateFolder(ctx context.Context, userID int64, parentID *int64, name string) (int64, error) {
	var id int64
	var err error
	if parentID == nil {
		err = s.q.QueryRowContext(ctx,
			`SELECT id FROM folders WHERE user_id = ? AND parent_id IS NULL AND name = ? AND deleted_at IS NULL`,
			userID, name).Scan(&id)
	} else {
		err = s.q.QueryRowContext(ctx,
			`SELECT id FROM folders WHERE user_id = ? AND parent_id = ? AND name = ? AND deleted_at IS NULL`,
			userID, *parentID, name).Scan(&id)
	}
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	return s.CreateFolder(ctx, userID, parentID, name)
}

// CreateNote creates a note and returns its id.
func (s *SQLiteStore) CreateNote(ctx context.Context, note *domain.Note) (int64, error) {
	var subtasks sql.NullString
	if len(note.Subtasks) > 0 {
		data, err := json.Marshal(note.Subtasks)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal subtasks: %w", err)
		}
		subtasks = sql.NullString{String: string(data), Valid: true}
	}
	now := s.now()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO notes (user_id, folder_id, title, content, is_task, subtasks, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		note.UserID, note.FolderID, note.Title, note.Content, note.IsTask, subtasks, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetNote retrieves a live note owned by the user.
func (s *SQLiteStore) GetNote(ctx context.Context, userID, noteID int64) (*domain.Note, error) {
	var n domain.Note
	var folderID sql.NullInt64
	var subtasks sql.NullString
	err := s.q.QueryRowContext(ctx,
		`SELECT id, user_id, folder_id, title, content, is_task, subtasks, created_at, updated_at FROM notes WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		noteID, userID).Scan(&n.ID, &n.UserID, &folderID, &n.Title, &n.Content, &n.IsTask, &subtasks, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if folderID.Valid {
		n.FolderID = &folderID.Int64
	}
	if subtasks.Valid {
		if err := json.Unmarshal([]byte(subtasks.String), &n.Subtasks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subtasks: %w", err)
		}
	}
	return &n, nil
}

// UpdateNoteContent replaces the content of a note and bumps updated_at.
func (s *SQLiteStore) UpdateNoteContent(ctx context.Context, userID, noteID int64, content string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE notes SET content = ?, updated_at = ? WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		content, s.now(), noteID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListNotes lists live notes for a user, most recently updated first.
func (s *SQLiteStore) ListNotes(ctx context.Context, userID int64, limit int) ([]domain.Note, error) {
	query := `SELECT id, user_id, folder_id, title, content, is_task, subtasks, created_at, updated_at FROM notes WHERE user_id = ? AND deleted_at IS NULL ORDER BY updated_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		var folderID sql.NullInt64
		var subtasks sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &folderID, &n.Title, &n.Content, &n.IsTask, &subtasks, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		if folderID.Valid {
			n.FolderID = &folderID.Int64
		}
		if subtasks.Valid {
			if err := json.Unmarshal([]byte(subtasks.String), &n.Subtasks); err != nil {
				return nil, fmt.Errorf("failed to unmarshal subtasks: %w", err)
			}
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// FilterExistingNotes returns the subset of ids that are live notes of the
// user, preserving order.
func (s *SQLiteStore) FilterExistingNotes(ctx context.Context, userID int64, ids []int64) ([]domain.NoteCandidate, error) {
	var out []domain.NoteCandidate
	for _, id := range ids {
		var title string
		err := s.q.QueryRowContext(ctx,
			`SELECT title FROM notes WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
			id, userID).Scan(&title)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, domain.NoteCandidate{ID: id, Title: title})
	}
	return out, nil
}

// SearchNotes ranks live notes of the user matching the query with LIKE,
// title matches before content matches, recent first.
func (s *SQLiteStore) SearchNotes(ctx context.Context, userID int64, query string, limit int) ([]domain.Note, error) {
	pattern := "%" + query + "%"
	q := `SELECT id, user_id, folder_id, title, content, is_task, subtasks, created_at, updated_at
		FROM notes
		WHERE user_id = ? AND deleted_at IS NULL AND (title LIKE ? OR content LIKE ?)
		ORDER BY (title LIKE ?) DESC, updated_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.q.QueryContext(ctx, q, userID, pattern, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		var folderID sql.NullInt64
		var subtasks sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &folderID, &n.Title, &n.Content, &n.IsTask, &subtasks, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		if folderID.Valid {
			n.FolderID = &folderID.Int64
		}
		if subtasks.Valid {
			if err := json.Unmarshal([]byte(subtasks.String), &n.Subtasks); err != nil {
				return nil, fmt.Errorf("failed to unmarshal subtasks: %w", err)
			}
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// CreateEvent creates a calendar event attached to a note.
func (s *SQLiteStore) CreateEvent(ctx context.Context, ev *domain.Event) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO events (user_id, note_id, title, starts_at, ends_at) VALUES (?, ?, ?, ?, ?)`,
		ev.UserID, ev.NoteID, ev.Title, ev.StartsAt, ev.EndsAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListUpcomingEvents lists events starting at or after now, soonest first.
func (s *SQLiteStore) ListUpcomingEvents(ctx context.Context, userID int64, limit int) ([]domain.Event, error) {
	query := `SELECT id, user_id, note_id, title, starts_at, ends_at FROM events WHERE user_id = ? AND starts_at >= ? ORDER BY starts_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.q.QueryContext(ctx, query, userID, s.now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.NoteID, &ev.Title, &ev.StartsAt, &ev.EndsAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListProfileFacts lists remembered facts for a user, oldest first.
func (s *SQLiteStore) ListProfileFacts(ctx context.Context, userID int64) ([]domain.ProfileFact, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, user_id, fact, created_at FROM profile_facts WHERE user_id = ? ORDER BY id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []domain.ProfileFact
	for rows.Next() {
		var f domain.ProfileFact
		if err := rows.Scan(&f.ID, &f.UserID, &f.Fact, &f.CreatedAt); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// AddProfileFact stores a new fact and returns its id.
func (s *SQLiteStore) AddProfileFact(ctx context.Context, userID int64, fact string) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO profile_facts (user_id, fact, created_at) VALUES (?, ?, ?)`,
		userID, fact, s.now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateProfileFact rewrites an existing fact.
func (s *SQLiteStore) UpdateProfileFact(ctx context.Context, userID, factID int64, fact string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE profile_facts SET fact = ? WHERE id = ? AND user_id = ?`,
		fact, factID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProfileFact removes a fact.
func (s *SQLiteStore) DeleteProfileFact(ctx context.Context, userID, factID int64) error {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM profile_facts WHERE id = ? AND user_id = ?`,
		factID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAgentSettings retrieves stored LLM overrides for an agent, or nil when
// none are stored.
func (s *SQLiteStore) GetAgentSettings(ctx context.Context, userID int64, agent string) (*domain.AgentSettings, error) {
	var as domain.AgentSettings
	var baseURL, model, apiKey sql.NullString
	var temperature, topP, freqPenalty sql.NullFloat64
	var maxTokens sql.NullInt64
	err := s.q.QueryRowContext(ctx,
		`SELECT agent, base_url, model, api_key, temperature, top_p, frequency_penalty, max_tokens FROM agent_settings WHERE user_id = ? AND agent = ?`,
		userID, agent).Scan(&as.Agent, &baseURL, &model, &apiKey, &temperature, &topP, &freqPenalty, &maxTokens)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if baseURL.Valid {
		as.BaseURL = baseURL.String
	}
	if model.Valid {
		as.Model = model.String
	}
	if apiKey.Valid {
		as.APIKey = apiKey.String
	}
	if temperature.Valid {
		as.Temperature = &temperature.Float64
	}
	if topP.Valid {
		as.TopP = &topP.Float64
	}
	if freqPenalty.Valid {
		as.FrequencyPenalty = &freqPenalty.Float64
	}
	if maxTokens.Valid {
		v := int(maxTokens.Int64)
		as.MaxTokens = &v
	}
	return &as, nil
}

// UpsertAgentSettings stores LLM overrides for an agent.
func (s *SQLiteStore) UpsertAgentSettings(ctx context.Context, userID int64, as *domain.AgentSettings) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT OR REPLACE INTO agent_settings (user_id, agent, base_url, model, api_key, temperature, top_p, frequency_penalty, max_tokens) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, as.Agent, nullString(as.BaseURL), nullString(as.Model), nullString(as.APIKey), as.Temperature, as.TopP, as.FrequencyPenalty, as.MaxTokens)
	return err
}

// ListDisabledTools returns the tools explicitly disabled for a user.
func (s *SQLiteStore) ListDisabledTools(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT tool FROM disabled_tools WHERE user_id = ? ORDER BY tool`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tools []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, rows.Err()
}

// SetToolDisabled records or clears a per-user tool block.
func (s *SQLiteStore) SetToolDisabled(ctx context.Context, userID int64, tool string, disabled bool) error {
	if disabled {
		_, err := s.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO disabled_tools (user_id, tool) VALUES (?, ?)`,
			userID, tool)
		return err
	}
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM disabled_tools WHERE user_id = ? AND tool = ?`,
		userID, tool)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
