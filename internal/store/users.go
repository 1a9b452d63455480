package store

import (
	"database/sql"
	"errors"
)

// scanner abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scanner interface {
	Scan(dest ...any) error
}

const userColumns = `user_id, agent_id, user_name, name, bio, created_at, num_followings, num_followers`

func scanUser(sc scanner) (*User, error) {
	var u User
	err := sc.Scan(&u.UserID, &u.AgentID, &u.UserName, &u.Name, &u.Bio,
		&u.CreatedAt, &u.NumFollowings, &u.NumFollowers)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user row by id. Returns nil, nil when no such user
// exists.
func (s *Store) GetUser(userID int64) (*User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM user WHERE user_id = ?`, userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// AllUsers returns every user row ordered by id.
func (s *Store) AllUsers() ([]*User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM user ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SearchUsers matches the query as a substring of the handle, display
// name, or bio, or against the stringified user id.
func (s *Store) SearchUsers(query string) ([]*User, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT `+userColumns+` FROM user
		WHERE user_name LIKE ? OR name LIKE ? OR bio LIKE ? OR CAST(user_id AS TEXT) LIKE ?
	`, pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FolloweeIDs returns the ids of every user the given user follows.
func (s *Store) FolloweeIDs(userID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT followee_id FROM follow WHERE follower_id = ?`, userID)
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

// FollowID returns the id of the follow edge follower -> followee, or 0
// when none exists.
func (s *Store) FollowID(followerID, followeeID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		SELECT follow_id FROM follow WHERE follower_id = ? AND followee_id = ?
	`, followerID, followeeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// MuteID returns the id of the mute edge muter -> mutee, or 0 when none
// exists.
func (s *Store) MuteID(muterID, muteeID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		SELECT mute_id FROM mute WHERE muter_id = ? AND mutee_id = ?
	`, muterID, muteeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// InsertUser creates the user row during sign-up.
func InsertUser(tx *sql.Tx, u *User) error {
	_, err := tx.Exec(`
		INSERT INTO user (user_id, agent_id, user_name, name, bio, created_at, num_followings, num_followers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.UserID, u.AgentID, u.UserName, u.Name, u.Bio, u.CreatedAt, u.NumFollowings, u.NumFollowers)
	return err
}

// InsertFollow records a follow edge and returns its id.
func InsertFollow(tx *sql.Tx, followerID, followeeID int64, at string) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO follow (follower_id, followee_id, created_at) VALUES (?, ?, ?)
	`, followerID, followeeID, at)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteFollow removes a follow edge by id.
func DeleteFollow(tx *sql.Tx, followID int64) error {
	_, err := tx.Exec(`DELETE FROM follow WHERE follow_id = ?`, followID)
	return err
}

// BumpFollowings adjusts a user's following counter by delta.
func BumpFollowings(tx *sql.Tx, userID, delta int64) error {
	_, err := tx.Exec(`UPDATE user SET num_followings = num_followings + ? WHERE user_id = ?`, delta, userID)
	return err
}

// BumpFollowers adjusts a user's follower counter by delta.
func BumpFollowers(tx *sql.Tx, userID, delta int64) error {
	_, err := tx.Exec(`UPDATE user SET num_followers = num_followers + ? WHERE user_id = ?`, delta, userID)
	return err
}

// InsertMute records a mute edge and returns its id.
func InsertMute(tx *sql.Tx, muterID, muteeID int64, at string) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO mute (muter_id, mutee_id, created_at) VALUES (?, ?, ?)
	`, muterID, muteeID, at)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteMute removes the mute edge muter -> mutee.
func DeleteMute(tx *sql.Tx, muterID, muteeID int64) error {
	_, err := tx.Exec(`DELETE FROM mute WHERE muter_id = ? AND mutee_id = ?`, muterID, muteeID)
	return err
}
