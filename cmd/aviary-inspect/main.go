// Command aviary-inspect summarizes a simulation database.
//
// Usage:
//
//	aviary-inspect -db aviary.db
//	aviary-inspect -db aviary.db -traces 25
//	aviary-inspect -db aviary.db -user 3 -action create_post
//
// It prints row counts per table, the registered users, the top posts
// by likes, and a tail of the action trace. With -user it expands that
// user instead: profile, latest post, recent likes, and their traces.
// The database is opened with the same driver the simulator uses, so it
// is safe to point at the file of a finished run.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/aviarysim/aviary/internal/store"
)

// tables lists every schema table in display order. "like" is quoted
// because it is an SQL keyword.
var tables = []string{
	"user", "post", "comment", "follow", "mute",
	`"like"`, "dislike", "comment_like", "comment_dislike", "report",
	"chat_group", "group_members", "group_messages",
	"product", "rec", "trace",
}

func main() {
	dbPath := flag.String("db", "aviary.db", "Path to the simulation database")
	traceTail := flag.Int64("traces", 10, "How many trace rows to print")
	userID := flag.Int64("user", -1, "Only show traces for this user id")
	action := flag.String("action", "", "Only show traces for this action")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		logger.Error("database not found", "path", *dbPath)
		os.Exit(1)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		logger.Error("open database failed", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	fmt.Printf("=== %s ===\n", *dbPath)
	printTableCounts(st)
	if *userID >= 0 {
		printUserDetail(st, logger, *userID)
	} else {
		printUsers(st, logger)
	}
	printTopPosts(st, logger)
	printTraces(st, logger, *traceTail, *userID, *action)
}

func printTableCounts(st *store.Store) {
	fmt.Printf("\nTables:\n")
	for _, table := range tables {
		var n int64
		if err := st.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			fmt.Printf("  %-16s ?\n", table)
			continue
		}
		if n == 0 {
			continue
		}
		fmt.Printf("  %-16s %d\n", table, n)
	}
}

func printUsers(st *store.Store, logger *slog.Logger) {
	users, err := st.AllUsers()
	if err != nil {
		logger.Warn("listing users failed", "error", err)
		return
	}
	if len(users) == 0 {
		return
	}

	const maxRows = 20
	fmt.Printf("\nUsers:\n")
	for i, u := range users {
		if i == maxRows {
			fmt.Printf("  (and %d more)\n", len(users)-maxRows)
			break
		}
		fmt.Printf("  %4d  @%-20s %4d following, %4d followers\n",
			u.UserID, u.UserName, u.NumFollowings, u.NumFollowers)
	}
}

func printUserDetail(st *store.Store, logger *slog.Logger, userID int64) {
	u, err := st.GetUser(userID)
	if err != nil {
		logger.Warn("loading user failed", "user", userID, "error", err)
		return
	}
	if u == nil {
		fmt.Printf("\nUser %d: not registered\n", userID)
		return
	}

	fmt.Printf("\nUser %d:\n", u.UserID)
	fmt.Printf("  @%s (%s), %d following, %d followers\n",
		u.UserName, u.Name, u.NumFollowings, u.NumFollowers)
	if u.Bio != "" {
		fmt.Printf("  bio: %s\n", clip(u.Bio, 70))
	}
	if p, err := st.LatestPostByUser(userID); err == nil && p != nil {
		fmt.Printf("  latest post: #%d %s\n", p.PostID, clip(p.Content, 60))
	}
	liked, err := st.LikedPostContents(userID, 5)
	if err != nil {
		logger.Warn("loading liked posts failed", "user", userID, "error", err)
		return
	}
	for _, content := range liked {
		fmt.Printf("  liked: %s\n", clip(content, 60))
	}
}

func printTopPosts(st *store.Store, logger *slog.Logger) {
	posts, err := st.AllPosts()
	if err != nil {
		logger.Warn("listing posts failed", "error", err)
		return
	}
	if len(posts) == 0 {
		return
	}

	sort.Slice(posts, func(i, j int) bool {
		if posts[i].NumLikes != posts[j].NumLikes {
			return posts[i].NumLikes > posts[j].NumLikes
		}
		return posts[i].PostID < posts[j].PostID
	})

	const maxRows = 5
	fmt.Printf("\nTop posts by likes:\n")
	for i, p := range posts {
		if i == maxRows {
			break
		}
		fmt.Printf("  #%-4d user %-4d %3d likes, %3d dislikes  %s\n",
			p.PostID, p.UserID, p.NumLikes, p.NumDislikes, clip(p.Content, 60))
	}
}

func printTraces(st *store.Store, logger *slog.Logger, limit, userID int64, action string) {
	var rows []*store.TraceRow
	var err error
	if userID >= 0 {
		var actions []string
		if action != "" {
			actions = []string{action}
		}
		// UserTraces returns oldest first; keep the tail.
		rows, err = st.UserTraces(userID, actions...)
		if err == nil && int64(len(rows)) > limit {
			rows = rows[int64(len(rows))-limit:]
		}
	} else {
		rows, err = st.Traces(limit)
		if err == nil && action != "" {
			filtered := rows[:0]
			for _, r := range rows {
				if r.Action == action {
					filtered = append(filtered, r)
				}
			}
			rows = filtered
		}
	}
	if err != nil {
		logger.Warn("listing traces failed", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	fmt.Printf("\nTraces:\n")
	for _, r := range rows {
		info := ""
		if len(r.Info) > 0 {
			if b, err := json.Marshal(r.Info); err == nil {
				info = clip(string(b), 80)
			}
		}
		fmt.Printf("  %6d  %-12s user %-4d %-20s %s\n",
			r.TraceID, r.CreatedAt, r.UserID, r.Action, info)
	}
}

// clip shortens s to at most n bytes for single-line display.
func clip(s string, n int) string {
	for i, r := range s {
		if r == '\n' {
			s = s[:i] + " ..."
			break
		}
	}
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
