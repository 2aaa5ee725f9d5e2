package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoSession is returned by GetSession when no session exists for a task.
var ErrNoSession = errors.New("no session found")

// SessionRecord is one persisted resume target.
type SessionRecord struct {
	TaskID    string
	AgentID   string
	SessionID string
}

// SaveSession upserts the session recorded for a task. A task keeps at most
// one session row; resumes overwrite it.
func (s *SQLiteStore) SaveSession(ctx context.Context, taskID, agentID, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (task_id, agent_id, session_id)
		VALUES (?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			agent_id = excluded.agent_id,
			session_id = excluded.session_id,
			updated_at = CURRENT_TIMESTAMP
	`, taskID, agentID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSession retrieves the session recorded for a task. Returns a wrapped
// ErrNoSession when the task has no session.
func (s *SQLiteStore) GetSession(ctx context.Context, taskID string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var agentID, sessionID string
	err := s.db.QueryRowContext(ctx, `
		SELECT agent_id, session_id
		FROM sessions
		WHERE task_id = ?
	`, taskID).Scan(&agentID, &sessionID)

	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("task %q: %w", taskID, ErrNoSession)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get session: %w", err)
	}
	return agentID, sessionID, nil
}

// ListSessions returns every persisted session, oldest first. Used at
// startup to rebuild resumable tasks from a previous run.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, agent_id, session_id
		FROM sessions
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.TaskID, &rec.AgentID, &rec.SessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return records, nil
}

// DeleteSession removes the session row for a task, if any.
func (s *SQLiteStore) DeleteSession(ctx context.Context, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
