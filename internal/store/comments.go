package store

import (
	"database/sql"
	"errors"
)

const commentColumns = `comment_id, post_id, user_id, content, created_at, num_likes, num_dislikes`

func scanComment(sc scanner) (*Comment, error) {
	var c Comment
	err := sc.Scan(&c.CommentID, &c.PostID, &c.UserID, &c.Content,
		&c.CreatedAt, &c.NumLikes, &c.NumDislikes)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetComment retrieves a comment row by id. Returns nil, nil when no
// such comment exists.
func (s *Store) GetComment(commentID int64) (*Comment, error) {
	row := s.db.QueryRow(`SELECT `+commentColumns+` FROM comment WHERE comment_id = ?`, commentID)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// CommentsForPost returns a post's comments in creation order.
func (s *Store) CommentsForPost(postID int64) ([]*Comment, error) {
	rows, err := s.db.Query(`
		SELECT `+commentColumns+` FROM comment WHERE post_id = ? ORDER BY comment_id
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CommentLikeID returns the id of the user's like on the comment, or 0
// when none exists.
func (s *Store) CommentLikeID(userID, commentID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		SELECT comment_like_id FROM comment_like WHERE user_id = ? AND comment_id = ?
	`, userID, commentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// CommentDislikeID returns the id of the user's dislike on the comment,
// or 0 when none exists.
func (s *Store) CommentDislikeID(userID, commentID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		SELECT comment_dislike_id FROM comment_dislike WHERE user_id = ? AND comment_id = ?
	`, userID, commentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// InsertComment creates a comment row and returns its id.
func InsertComment(tx *sql.Tx, c *Comment) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO comment (post_id, user_id, content, created_at, num_likes, num_dislikes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.PostID, c.UserID, c.Content, c.CreatedAt, c.NumLikes, c.NumDislikes)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// BumpCommentLikes adjusts a comment's like counter by delta.
func BumpCommentLikes(tx *sql.Tx, commentID, delta int64) error {
	_, err := tx.Exec(`UPDATE comment SET num_likes = num_likes + ? WHERE comment_id = ?`, delta, commentID)
	return err
}

// BumpCommentDislikes adjusts a comment's dislike counter by delta.
func BumpCommentDislikes(tx *sql.Tx, commentID, delta int64) error {
	_, err := tx.Exec(`UPDATE comment SET num_dislikes = num_dislikes + ? WHERE comment_id = ?`, delta, commentID)
	return err
}

// InsertCommentLike records a comment like and returns its id.
func InsertCommentLike(tx *sql.Tx, userID, commentID int64, at string) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO comment_like (user_id, comment_id, created_at) VALUES (?, ?, ?)
	`, userID, commentID, at)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteCommentLike removes a comment like by id.
func DeleteCommentLike(tx *sql.Tx, commentLikeID int64) error {
	_, err := tx.Exec(`DELETE FROM comment_like WHERE comment_like_id = ?`, commentLikeID)
	return err
}

// InsertCommentDislike records a comment dislike and returns its id.
func InsertCommentDislike(tx *sql.Tx, userID, commentID int64, at string) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO comment_dislike (user_id, comment_id, created_at) VALUES (?, ?, ?)
	`, userID, commentID, at)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteCommentDislike removes a comment dislike by id.
func DeleteCommentDislike(tx *sql.Tx, commentDislikeID int64) error {
	_, err := tx.Exec(`DELETE FROM comment_dislike WHERE comment_dislike_id = ?`, commentDislikeID)
	return err
}
