// Package store owns the simulation database: the schema, typed row
// structs, and the queries the platform handlers run. The platform
// goroutine is the only writer, so nothing here takes a lock; readers
// outside the platform (recommender refresh, inspection tooling) see
// committed state only.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the simulation database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path with WAL
// journaling and a busy timeout, then ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// New wraps an already-open handle and ensures the schema exists.
// Tests use it with an in-memory database.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for read-only inspection tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Table and column names are fixed: downstream analysis reads the file by
// name. "like" is quoted everywhere because it is an SQL keyword.
// Timestamp columns are NUMERIC, not DATETIME: integer ticks land as
// integers and datetime strings as text, and neither sqlite driver applies
// its time.Time auto-parsing to them.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user (
		user_id INTEGER PRIMARY KEY,
		agent_id INTEGER,
		user_name TEXT,
		name TEXT,
		bio TEXT,
		created_at NUMERIC,
		num_followings INTEGER DEFAULT 0,
		num_followers INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS post (
		post_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		original_post_id INTEGER,
		content TEXT DEFAULT '',
		quote_content TEXT,
		created_at NUMERIC,
		num_likes INTEGER DEFAULT 0,
		num_dislikes INTEGER DEFAULT 0,
		num_shares INTEGER DEFAULT 0,
		num_reports INTEGER DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES user(user_id)
	);

	CREATE TABLE IF NOT EXISTS follow (
		follow_id INTEGER PRIMARY KEY AUTOINCREMENT,
		follower_id INTEGER,
		followee_id INTEGER,
		created_at NUMERIC
	);

	CREATE TABLE IF NOT EXISTS mute (
		mute_id INTEGER PRIMARY KEY AUTOINCREMENT,
		muter_id INTEGER,
		mutee_id INTEGER,
		created_at NUMERIC
	);

	CREATE TABLE IF NOT EXISTS "like" (
		like_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		post_id INTEGER,
		created_at NUMERIC
	);

	CREATE TABLE IF NOT EXISTS dislike (
		dislike_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		post_id INTEGER,
		created_at NUMERIC
	);

	CREATE TABLE IF NOT EXISTS comment (
		comment_id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		content TEXT DEFAULT '',
		created_at NUMERIC,
		num_likes INTEGER DEFAULT 0,
		num_dislikes INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS comment_like (
		comment_like_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		comment_id INTEGER,
		created_at NUMERIC
	);

	CREATE TABLE IF NOT EXISTS comment_dislike (
		comment_dislike_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		comment_id INTEGER,
		created_at NUMERIC
	);

	CREATE TABLE IF NOT EXISTS report (
		report_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		post_id INTEGER,
		reason TEXT,
		created_at NUMERIC
	);

	CREATE TABLE IF NOT EXISTS chat_group (
		group_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		created_at NUMERIC
	);

	CREATE TABLE IF NOT EXISTS group_members (
		group_id INTEGER,
		agent_id INTEGER,
		joined_at NUMERIC,
		PRIMARY KEY (group_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS group_messages (
		message_id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id INTEGER,
		sender_id INTEGER,
		content TEXT,
		sent_at NUMERIC
	);

	CREATE TABLE IF NOT EXISTS rec (
		user_id INTEGER,
		post_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS trace (
		trace_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		created_at NUMERIC,
		action TEXT,
		info TEXT
	);

	CREATE TABLE IF NOT EXISTS product (
		product_id INTEGER PRIMARY KEY,
		product_name TEXT UNIQUE,
		sales INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_post_user_id ON post(user_id);
	CREATE INDEX IF NOT EXISTS idx_post_original ON post(original_post_id);
	CREATE INDEX IF NOT EXISTS idx_follow_follower ON follow(follower_id);
	CREATE INDEX IF NOT EXISTS idx_follow_followee ON follow(followee_id);
	CREATE INDEX IF NOT EXISTS idx_like_user_post ON "like"(user_id, post_id);
	CREATE INDEX IF NOT EXISTS idx_dislike_user_post ON dislike(user_id, post_id);
	CREATE INDEX IF NOT EXISTS idx_comment_post_id ON comment(post_id);
	CREATE INDEX IF NOT EXISTS idx_comment_like_user ON comment_like(user_id, comment_id);
	CREATE INDEX IF NOT EXISTS idx_comment_dislike_user ON comment_dislike(user_id, comment_id);
	CREATE INDEX IF NOT EXISTS idx_rec_user_id ON rec(user_id);
	CREATE INDEX IF NOT EXISTS idx_trace_user_id ON trace(user_id);
	CREATE INDEX IF NOT EXISTS idx_trace_action ON trace(action);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Mutate runs fn inside a transaction and, when fn succeeds, appends the
// trace row in the same transaction before committing. A failing fn rolls
// everything back and leaves no trace behind, which is the contract every
// handler relies on: one trace row per committed action, none otherwise.
// A nil trace commits the mutation without an audit row.
func (s *Store) Mutate(ctx context.Context, trace *TraceRow, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if fn != nil {
		if err := fn(tx); err != nil {
			return err
		}
	}
	if trace != nil {
		if err := insertTrace(tx, trace); err != nil {
			return fmt.Errorf("record trace: %w", err)
		}
	}
	return tx.Commit()
}
