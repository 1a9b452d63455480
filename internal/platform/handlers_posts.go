package platform

import (
	"context"
	"database/sql"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/store"
)

func (p *Platform) createPost(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	content, ok := payloadString(payload, "content")
	if !ok {
		return failure("content is required")
	}

	now := p.clock.Now()
	var postID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.CreatePost}
	err := p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		var err error
		postID, err = store.InsertPost(tx, &store.Post{
			UserID:    userID,
			Content:   content,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		trace.Info = map[string]any{"content": content, "post_id": postID}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"post_id": postID})
}

// repost records a share of the root post. Reposting a repost attaches
// to the root, so share counts never fragment across copies.
func (p *Platform) repost(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	postID, ok := payloadInt(payload, "post_id")
	if !ok {
		return failure("post_id is required")
	}
	root, err := p.store.ResolvePost(postID)
	if err != nil {
		return failure(err.Error())
	}
	if root == nil {
		return failure(reasonPostNotFound)
	}
	if existing, err := p.store.RepostID(userID, root.PostID); err != nil {
		return failure(err.Error())
	} else if existing != 0 {
		return failure(reasonRepostExists)
	}

	now := p.clock.Now()
	var newPostID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.Repost}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		var err error
		newPostID, err = store.InsertPost(tx, &store.Post{
			UserID:         userID,
			OriginalPostID: &root.PostID,
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		if err := store.BumpPostShares(tx, root.PostID, 1); err != nil {
			return err
		}
		trace.Info = map[string]any{"reposted_id": root.PostID, "new_post_id": newPostID}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"post_id": newPostID})
}

// quotePost copies the root content next to the quoter's own words. A
// quote is a post in its own right and may be quoted again.
func (p *Platform) quotePost(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	postID, ok := payloadInt(payload, "post_id")
	if !ok {
		return failure("post_id is required")
	}
	quoteContent, ok := payloadString(payload, "quote_content")
	if !ok {
		return failure("quote_content is required")
	}
	root, err := p.store.ResolvePost(postID)
	if err != nil {
		return failure(err.Error())
	}
	if root == nil {
		return failure(reasonPostNotFound)
	}

	now := p.clock.Now()
	var newPostID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.QuotePost}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		var err error
		newPostID, err = store.InsertPost(tx, &store.Post{
			UserID:         userID,
			OriginalPostID: &root.PostID,
			Content:        root.Content,
			QuoteContent:   &quoteContent,
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		if err := store.BumpPostShares(tx, root.PostID, 1); err != nil {
			return err
		}
		trace.Info = map[string]any{
			"quoted_id":     root.PostID,
			"new_post_id":   newPostID,
			"quote_content": quoteContent,
		}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"post_id": newPostID})
}

func (p *Platform) likePost(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	postID, ok := payloadInt(payload, "post_id")
	if !ok {
		return failure("post_id is required")
	}
	post, err := p.store.ResolvePost(postID)
	if err != nil {
		return failure(err.Error())
	}
	if post == nil {
		return failure(reasonPostNotFound)
	}
	if existing, err := p.store.LikeID(userID, post.PostID); err != nil {
		return failure(err.Error())
	} else if existing != 0 {
		return failure(reasonLikeExists)
	}
	if !p.cfg.AllowSelfRating && post.UserID == userID {
		return failure(reasonSelfLikePost)
	}

	now := p.clock.Now()
	var likeID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.LikePost}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		if err := store.BumpPostLikes(tx, post.PostID, 1); err != nil {
			return err
		}
		var err error
		likeID, err = store.InsertLike(tx, userID, post.PostID, now)
		if err != nil {
			return err
		}
		trace.Info = map[string]any{"post_id": post.PostID, "like_id": likeID}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"like_id": likeID})
}

func (p *Platform) unlikePost(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	postID, ok := payloadInt(payload, "post_id")
	if !ok {
		return failure("post_id is required")
	}
	post, err := p.store.ResolvePost(postID)
	if err != nil {
		return failure(err.Error())
	}
	if post == nil {
		return failure(reasonPostNotFound)
	}
	likeID, err := p.store.LikeID(userID, post.PostID)
	if err != nil {
		return failure(err.Error())
	}
	if likeID == 0 {
		return failure(reasonLikeMissing)
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.UnlikePost,
		Info: map[string]any{"post_id": post.PostID, "like_id": likeID},
	}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		if err := store.BumpPostLikes(tx, post.PostID, -1); err != nil {
			return err
		}
		return store.DeleteLike(tx, likeID)
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"like_id": likeID})
}

func (p *Platform) dislikePost(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	postID, ok := payloadInt(payload, "post_id")
	if !ok {
		return failure("post_id is required")
	}
	post, err := p.store.ResolvePost(postID)
	if err != nil {
		return failure(err.Error())
	}
	if post == nil {
		return failure(reasonPostNotFound)
	}
	if existing, err := p.store.DislikeID(userID, post.PostID); err != nil {
		return failure(err.Error())
	} else if existing != 0 {
		return failure(reasonDislikeExists)
	}
	if !p.cfg.AllowSelfRating && post.UserID == userID {
		return failure(reasonSelfDislikePost)
	}

	now := p.clock.Now()
	var dislikeID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.DislikePost}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		if err := store.BumpPostDislikes(tx, post.PostID, 1); err != nil {
			return err
		}
		var err error
		dislikeID, err = store.InsertDislike(tx, userID, post.PostID, now)
		if err != nil {
			return err
		}
		trace.Info = map[string]any{"post_id": post.PostID, "dislike_id": dislikeID}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"dislike_id": dislikeID})
}

func (p *Platform) undoDislikePost(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	postID, ok := payloadInt(payload, "post_id")
	if !ok {
		return failure("post_id is required")
	}
	post, err := p.store.ResolvePost(postID)
	if err != nil {
		return failure(err.Error())
	}
	if post == nil {
		return failure(reasonPostNotFound)
	}
	dislikeID, err := p.store.DislikeID(userID, post.PostID)
	if err != nil {
		return failure(err.Error())
	}
	if dislikeID == 0 {
		return failure(reasonDislikeMissing)
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.UndoDislikePost,
		Info: map[string]any{"post_id": post.PostID, "dislike_id": dislikeID},
	}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		if err := store.BumpPostDislikes(tx, post.PostID, -1); err != nil {
			return err
		}
		return store.DeleteDislike(tx, dislikeID)
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"dislike_id": dislikeID})
}

func (p *Platform) reportPost(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	postID, ok := payloadInt(payload, "post_id")
	if !ok {
		return failure("post_id is required")
	}
	reason, ok := payloadString(payload, "reason")
	if !ok {
		return failure("reason is required")
	}
	post, err := p.store.ResolvePost(postID)
	if err != nil {
		return failure(err.Error())
	}
	if post == nil {
		return failure(reasonPostNotFound)
	}
	if existing, err := p.store.ReportID(userID, post.PostID); err != nil {
		return failure(err.Error())
	} else if existing != 0 {
		return failure(reasonReportExists)
	}

	now := p.clock.Now()
	var reportID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.ReportPost}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		if err := store.BumpPostReports(tx, post.PostID, 1); err != nil {
			return err
		}
		var err error
		reportID, err = store.InsertReport(tx, userID, post.PostID, reason, now)
		if err != nil {
			return err
		}
		trace.Info = map[string]any{"post_id": post.PostID, "report_id": reportID}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"report_id": reportID})
}

func (p *Platform) searchPosts(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	query, ok := payloadString(payload, "query")
	if !ok {
		return failure("query is required")
	}
	posts, err := p.store.SearchPosts(query)
	if err != nil {
		return failure(err.Error())
	}
	if len(posts) == 0 {
		return failure(reasonNoPostMatches)
	}
	rendered, err := p.renderPosts(posts)
	if err != nil {
		return failure(err.Error())
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.SearchPosts,
		Info: map[string]any{"query": query},
	}
	if err := p.store.Mutate(ctx, trace, nil); err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"posts": rendered})
}
