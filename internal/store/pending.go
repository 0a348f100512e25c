package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ainotes/backend/internal/domain"
)

// SetPendingAction stores a suspended tool invocation for (user, session),
// replacing any previous one. The record expires after ttl.
func (s *SQLiteStore) SetPendingAction(ctx context.Context, userID int64, sessionID string, pa *domain.PendingAction, ttl time.Duration) error {
	pa.ExpiresAt = s.now().Add(ttl)
	payload, err := json.Marshal(pa)
	if err != nil {
		return fmt.Errorf("failed to marshal pending action: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT OR REPLACE INTO pending_actions (user_id, session_id, payload, expires_at) VALUES (?, ?, ?, ?)`,
		userID, sessionID, string(payload), pa.ExpiresAt)
	return err
}

// GetPendingAction retrieves the live pending action for (user, session).
// Expired records are deleted on read and reported as absent.
func (s *SQLiteStore) GetPendingAction(ctx context.Context, userID int64, sessionID string) (*domain.PendingAction, error) {
	var payload string
	var expiresAt time.Time
	err := s.q.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM pending_actions WHERE user_id = ? AND session_id = ?`,
		userID, sessionID).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.now().Before(expiresAt) {
		if err := s.DeletePendingAction(ctx, userID, sessionID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	var pa domain.PendingAction
	if err := json.Unmarshal([]byte(payload), &pa); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending action: %w", err)
	}
	pa.ExpiresAt = expiresAt
	return &pa, nil
}

// DeletePendingAction removes the pending action for (user, session).
func (s *SQLiteStore) DeletePendingAction(ctx context.Context, userID int64, sessionID string) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM pending_actions WHERE user_id = ? AND session_id = ?`,
		userID, sessionID)
	return err
}

// UpdatePendingContext merges extra keys into the stored context of a live
// pending action without touching its expiry.
func (s *SQLiteStore) UpdatePendingContext(ctx context.Context, userID int64, sessionID string, extra map[string]interface{}) error {
	pa, err := s.GetPendingAction(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if pa == nil {
		return ErrNotFound
	}
	if pa.Context == nil {
		pa.Context = map[string]interface{}{}
	}
	for k, v := range extra {
		pa.Context[k] = v
	}
	payload, err := json.Marshal(pa)
	if err != nil {
		return fmt.Errorf("failed to marshal pending action: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`UPDATE pending_actions SET payload = ? WHERE user_id = ? AND session_id = ?`,
		string(payload), userID, sessionID)
	return err
}
