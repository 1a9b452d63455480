package store

import (
	"database/sql"
	"errors"
	"strings"
)

const postColumns = `post_id, user_id, original_post_id, content, quote_content, created_at, num_likes, num_dislikes, num_shares, num_reports`

func scanPost(sc scanner) (*Post, error) {
	var p Post
	var content, quote sql.NullString
	var original sql.NullInt64

	err := sc.Scan(&p.PostID, &p.UserID, &original, &content, &quote,
		&p.CreatedAt, &p.NumLikes, &p.NumDislikes, &p.NumShares, &p.NumReports)
	if err != nil {
		return nil, err
	}

	p.Content = content.String
	if original.Valid {
		p.OriginalPostID = &original.Int64
	}
	if quote.Valid {
		p.QuoteContent = &quote.String
	}
	return &p, nil
}

func (s *Store) queryPosts(query string, args ...any) ([]*Post, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// placeholders returns n comma-joined ? markers for an IN clause.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// GetPost retrieves a post row by id. Returns nil, nil when no such post
// exists.
func (s *Store) GetPost(postID int64) (*Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM post WHERE post_id = ?`, postID)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ResolvePost returns the post that engagement on postID should land on:
// a repost forwards to its original, anything else is itself. Returns
// nil, nil when postID does not exist.
func (s *Store) ResolvePost(postID int64) (*Post, error) {
	p, err := s.GetPost(postID)
	if err != nil || p == nil {
		return nil, err
	}
	if p.Kind() == KindRepost {
		return s.GetPost(*p.OriginalPostID)
	}
	return p, nil
}

// AllPosts returns every post row ordered by id.
func (s *Store) AllPosts() ([]*Post, error) {
	return s.queryPosts(`SELECT ` + postColumns + ` FROM post ORDER BY post_id`)
}

// AllPostIDs returns every post id ordered by id.
func (s *Store) AllPostIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT post_id FROM post ORDER BY post_id`)
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

// PostsByIDs returns the posts with the given ids, in id order. Missing
// ids are silently skipped.
func (s *Store) PostsByIDs(ids []int64) ([]*Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + postColumns + ` FROM post WHERE post_id IN (` + placeholders(len(ids)) + `) ORDER BY post_id`
	return s.queryPosts(query, int64Args(ids)...)
}

// SearchPosts matches the query as a substring of post content or quote
// text, or against the stringified post id.
func (s *Store) SearchPosts(query string) ([]*Post, error) {
	pattern := "%" + query + "%"
	return s.queryPosts(`
		SELECT `+postColumns+` FROM post
		WHERE content LIKE ? OR quote_content LIKE ? OR CAST(post_id AS TEXT) LIKE ?
	`, pattern, pattern, pattern)
}

// TrendingPosts returns the most-liked posts created at or after since,
// capped at limit. since is an opaque clock value: an int64 tick or a
// formatted datetime string, matching whatever the rows were stamped
// with.
func (s *Store) TrendingPosts(since any, limit int64) ([]*Post, error) {
	return s.queryPosts(`
		SELECT `+postColumns+` FROM post
		WHERE created_at >= ?
		ORDER BY num_likes DESC
		LIMIT ?
	`, since, limit)
}

// TopPostsByUsers returns the most-liked posts authored by any of the
// given users, capped at limit.
func (s *Store) TopPostsByUsers(userIDs []int64, limit int64) ([]*Post, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + postColumns + ` FROM post WHERE user_id IN (` + placeholders(len(userIDs)) + `) ORDER BY num_likes DESC LIMIT ?`
	args := append(int64Args(userIDs), limit)
	return s.queryPosts(query, args...)
}

// LatestPostByUser returns the user's most recently committed post, or
// nil, nil when the user has none.
func (s *Store) LatestPostByUser(userID int64) (*Post, error) {
	row := s.db.QueryRow(`
		SELECT `+postColumns+` FROM post WHERE user_id = ? ORDER BY post_id DESC LIMIT 1
	`, userID)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// LikedPostContents returns the contents of the user's most recently
// liked posts, newest first, capped at limit.
func (s *Store) LikedPostContents(userID int64, limit int64) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT p.content FROM "like" l
		JOIN post p ON p.post_id = l.post_id
		WHERE l.user_id = ?
		ORDER BY l.like_id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var c sql.NullString
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		contents = append(contents, c.String)
	}
	return contents, rows.Err()
}

// RepostID returns the id of the user's existing repost of the given
// root post, or 0 when none exists. Quotes do not count.
func (s *Store) RepostID(userID, rootID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		SELECT post_id FROM post
		WHERE user_id = ? AND original_post_id = ? AND quote_content IS NULL
	`, userID, rootID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// LikeID returns the id of the user's like on the post, or 0 when none
// exists.
func (s *Store) LikeID(userID, postID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		SELECT like_id FROM "like" WHERE user_id = ? AND post_id = ?
	`, userID, postID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// DislikeID returns the id of the user's dislike on the post, or 0 when
// none exists.
func (s *Store) DislikeID(userID, postID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		SELECT dislike_id FROM dislike WHERE user_id = ? AND post_id = ?
	`, userID, postID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// ReportID returns the id of the user's report on the post, or 0 when
// none exists.
func (s *Store) ReportID(userID, postID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		SELECT report_id FROM report WHERE user_id = ? AND post_id = ?
	`, userID, postID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// InsertPost creates a post row and returns its id. Repost rows store
// NULL content so the derived type stays readable straight off the
// table.
func InsertPost(tx *sql.Tx, p *Post) (int64, error) {
	var content any = p.Content
	if p.Kind() == KindRepost {
		content = nil
	}
	var quote any
	if p.QuoteContent != nil {
		quote = *p.QuoteContent
	}
	var original any
	if p.OriginalPostID != nil {
		original = *p.OriginalPostID
	}

	res, err := tx.Exec(`
		INSERT INTO post (user_id, original_post_id, content, quote_content, created_at, num_likes, num_dislikes, num_shares, num_reports)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.UserID, original, content, quote, p.CreatedAt,
		p.NumLikes, p.NumDislikes, p.NumShares, p.NumReports)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// BumpPostLikes adjusts a post's like counter by delta.
func BumpPostLikes(tx *sql.Tx, postID, delta int64) error {
	_, err := tx.Exec(`UPDATE post SET num_likes = num_likes + ? WHERE post_id = ?`, delta, postID)
	return err
}

// BumpPostDislikes adjusts a post's dislike counter by delta.
func BumpPostDislikes(tx *sql.Tx, postID, delta int64) error {
	_, err := tx.Exec(`UPDATE post SET num_dislikes = num_dislikes + ? WHERE post_id = ?`, delta, postID)
	return err
}

// BumpPostShares adjusts a post's share counter by delta.
func BumpPostShares(tx *sql.Tx, postID, delta int64) error {
	_, err := tx.Exec(`UPDATE post SET num_shares = num_shares + ? WHERE post_id = ?`, delta, postID)
	return err
}

// BumpPostReports adjusts a post's report counter by delta.
func BumpPostReports(tx *sql.Tx, postID, delta int64) error {
	_, err := tx.Exec(`UPDATE post SET num_reports = num_reports + ? WHERE post_id = ?`, delta, postID)
	return err
}

// InsertLike records a like and returns its id.
func InsertLike(tx *sql.Tx, userID, postID int64, at string) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO "like" (user_id, post_id, created_at) VALUES (?, ?, ?)
	`, userID, postID, at)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteLike removes a like by id.
func DeleteLike(tx *sql.Tx, likeID int64) error {
	_, err := tx.Exec(`DELETE FROM "like" WHERE like_id = ?`, likeID)
	return err
}

// InsertDislike records a dislike and returns its id.
func InsertDislike(tx *sql.Tx, userID, postID int64, at string) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO dislike (user_id, post_id, created_at) VALUES (?, ?, ?)
	`, userID, postID, at)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteDislike removes a dislike by id.
func DeleteDislike(tx *sql.Tx, dislikeID int64) error {
	_, err := tx.Exec(`DELETE FROM dislike WHERE dislike_id = ?`, dislikeID)
	return err
}

// InsertReport records a report and returns its id.
func InsertReport(tx *sql.Tx, userID, postID int64, reason, at string) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO report (user_id, post_id, reason, created_at) VALUES (?, ?, ?, ?)
	`, userID, postID, reason, at)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
