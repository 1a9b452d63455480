package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

func scanTrace(sc scanner) (*TraceRow, error) {
	var t TraceRow
	var info sql.NullString

	err := sc.Scan(&t.TraceID, &t.UserID, &t.CreatedAt, &t.Action, &info)
	if err != nil {
		return nil, err
	}
	if info.Valid && info.String != "" {
		if err := json.Unmarshal([]byte(info.String), &t.Info); err != nil {
			return nil, fmt.Errorf("unmarshal trace info: %w", err)
		}
	}
	return &t, nil
}

func (s *Store) queryTraces(query string, args ...any) ([]*TraceRow, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var traces []*TraceRow
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

// Traces returns the newest trace rows, capped at limit.
func (s *Store) Traces(limit int64) ([]*TraceRow, error) {
	return s.queryTraces(`
		SELECT trace_id, user_id, created_at, action, info
		FROM trace ORDER BY trace_id DESC LIMIT ?
	`, limit)
}

// UserTraces returns a user's trace rows in commit order, optionally
// filtered to the given actions.
func (s *Store) UserTraces(userID int64, actions ...string) ([]*TraceRow, error) {
	query := `SELECT trace_id, user_id, created_at, action, info FROM trace WHERE user_id = ?`
	args := []any{userID}
	if len(actions) > 0 {
		query += ` AND action IN (` + placeholders(len(actions)) + `)`
		for _, a := range actions {
			args = append(args, a)
		}
	}
	query += ` ORDER BY trace_id`
	return s.queryTraces(query, args...)
}

// TraceCount returns the number of trace rows, optionally filtered to
// one action.
func (s *Store) TraceCount(action string) (int64, error) {
	var n int64
	var err error
	if action == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM trace`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM trace WHERE action = ?`, action).Scan(&n)
	}
	return n, err
}

// insertTrace appends the audit row and backfills its assigned id. Only
// Mutate calls this, so every committed mutation carries exactly one.
func insertTrace(tx *sql.Tx, t *TraceRow) error {
	info := t.Info
	if info == nil {
		info = map[string]any{}
	}
	blob, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal info: %w", err)
	}

	res, err := tx.Exec(`
		INSERT INTO trace (user_id, created_at, action, info) VALUES (?, ?, ?, ?)
	`, t.UserID, t.CreatedAt, t.Action, string(blob))
	if err != nil {
		return err
	}
	t.TraceID, err = res.LastInsertId()
	return err
}
