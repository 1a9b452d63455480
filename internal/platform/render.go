package platform

import (
	"fmt"

	"github.com/aviarysim/aviary/internal/store"
)

// renderPosts projects post rows into reply payloads, hydrated with
// comments. Repost rows carry no text of their own, so they render as a
// pointer at the root with the root's content inlined; agents otherwise
// see an empty post in their feed.
func (p *Platform) renderPosts(posts []*store.Post) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		m, err := p.renderPost(post)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (p *Platform) renderPost(post *store.Post) (map[string]any, error) {
	content := post.Content
	if post.Kind() == store.KindRepost {
		root, err := p.store.GetPost(*post.OriginalPostID)
		if err != nil {
			return nil, err
		}
		if root != nil {
			content = fmt.Sprintf("User %d reposted a post from user %d. Original post: %s",
				post.UserID, root.UserID, root.Content)
		}
	}

	m := map[string]any{
		"post_id":    post.PostID,
		"user_id":    post.UserID,
		"content":    content,
		"created_at": post.CreatedAt,
		"num_shares": post.NumShares,
	}
	if post.QuoteContent != nil {
		m["quote_content"] = *post.QuoteContent
	}
	p.renderEngagement(m, post.NumLikes, post.NumDislikes)

	comments, err := p.store.CommentsForPost(post.PostID)
	if err != nil {
		return nil, err
	}
	rendered := make([]map[string]any, 0, len(comments))
	for _, c := range comments {
		cm := map[string]any{
			"comment_id": c.CommentID,
			"post_id":    c.PostID,
			"user_id":    c.UserID,
			"content":    c.Content,
			"created_at": c.CreatedAt,
		}
		p.renderEngagement(cm, c.NumLikes, c.NumDislikes)
		rendered = append(rendered, cm)
	}
	m["comments"] = rendered

	return m, nil
}

// renderEngagement writes either a single score (reddit style) or
// separate like/dislike counts, per the show_score switch.
func (p *Platform) renderEngagement(m map[string]any, likes, dislikes int64) {
	if p.cfg.ShowScore {
		m["score"] = likes - dislikes
	} else {
		m["num_likes"] = likes
		m["num_dislikes"] = dislikes
	}
}

func renderUsers(users []*store.User) []map[string]any {
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, map[string]any{
			"user_id":        u.UserID,
			"user_name":      u.UserName,
			"name":           u.Name,
			"bio":            u.Bio,
			"created_at":     u.CreatedAt,
			"num_followings": u.NumFollowings,
			"num_followers":  u.NumFollowers,
		})
	}
	return out
}

func postIDs(posts []*store.Post) []int64 {
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.PostID)
	}
	return ids
}
