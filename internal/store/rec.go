package store

import (
	"context"
	"fmt"
)

// RecPostIDs returns the user's current candidate slate.
func (s *Store) RecPostIDs(userID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT post_id FROM rec WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RewriteRec replaces the whole rec table with the given pairs in one
// transaction. If anything fails the previous slates stay intact.
func (s *Store) RewriteRec(ctx context.Context, rows []RecRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM rec`); err != nil {
		return fmt.Errorf("clear rec: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO rec (user_id, post_id) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.UserID, r.PostID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
