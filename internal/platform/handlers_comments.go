package platform

import (
	"context"
	"database/sql"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/store"
)

// createComment attaches the comment to the root post, so comments on a
// repost land on the post everyone else sees.
func (p *Platform) createComment(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	postID, ok := payloadInt(payload, "post_id")
	if !ok {
		return failure("post_id is required")
	}
	content, ok := payloadString(payload, "content")
	if !ok {
		return failure("content is required")
	}
	root, err := p.store.ResolvePost(postID)
	if err != nil {
		return failure(err.Error())
	}
	if root == nil {
		return failure(reasonPostNotFound)
	}

	now := p.clock.Now()
	var commentID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.CreateComment}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		var err error
		commentID, err = store.InsertComment(tx, &store.Comment{
			PostID:    root.PostID,
			UserID:    userID,
			Content:   content,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		trace.Info = map[string]any{"content": content, "comment_id": commentID}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"comment_id": commentID})
}

func (p *Platform) likeComment(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	commentID, ok := payloadInt(payload, "comment_id")
	if !ok {
		return failure("comment_id is required")
	}
	comment, err := p.store.GetComment(commentID)
	if err != nil {
		return failure(err.Error())
	}
	if comment == nil {
		return failure(reasonCommentNotFound)
	}
	if existing, err := p.store.CommentLikeID(userID, commentID); err != nil {
		return failure(err.Error())
	} else if existing != 0 {
		return failure(reasonCommentLikeExists)
	}
	if !p.cfg.AllowSelfRating && comment.UserID == userID {
		return failure(reasonSelfLikeComment)
	}

	now := p.clock.Now()
	var likeID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.LikeComment}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		if err := store.BumpCommentLikes(tx, commentID, 1); err != nil {
			return err
		}
		var err error
		likeID, err = store.InsertCommentLike(tx, userID, commentID, now)
		if err != nil {
			return err
		}
		trace.Info = map[string]any{"comment_id": commentID, "comment_like_id": likeID}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"comment_like_id": likeID})
}

func (p *Platform) unlikeComment(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	commentID, ok := payloadInt(payload, "comment_id")
	if !ok {
		return failure("comment_id is required")
	}
	comment, err := p.store.GetComment(commentID)
	if err != nil {
		return failure(err.Error())
	}
	if comment == nil {
		return failure(reasonCommentNotFound)
	}
	likeID, err := p.store.CommentLikeID(userID, commentID)
	if err != nil {
		return failure(err.Error())
	}
	if likeID == 0 {
		return failure(reasonCommentLikeMissing)
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.UnlikeComment,
		Info: map[string]any{"comment_id": commentID, "comment_like_id": likeID},
	}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		if err := store.BumpCommentLikes(tx, commentID, -1); err != nil {
			return err
		}
		return store.DeleteCommentLike(tx, likeID)
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"comment_like_id": likeID})
}

func (p *Platform) dislikeComment(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	commentID, ok := payloadInt(payload, "comment_id")
	if !ok {
		return failure("comment_id is required")
	}
	comment, err := p.store.GetComment(commentID)
	if err != nil {
		return failure(err.Error())
	}
	if comment == nil {
		return failure(reasonCommentNotFound)
	}
	if existing, err := p.store.CommentDislikeID(userID, commentID); err != nil {
		return failure(err.Error())
	} else if existing != 0 {
		return failure(reasonCommentDislikeExists)
	}
	if !p.cfg.AllowSelfRating && comment.UserID == userID {
		return failure(reasonSelfDislikeComment)
	}

	now := p.clock.Now()
	var dislikeID int64
	trace := &store.TraceRow{UserID: userID, CreatedAt: now, Action: action.DislikeComment}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		if err := store.BumpCommentDislikes(tx, commentID, 1); err != nil {
			return err
		}
		var err error
		dislikeID, err = store.InsertCommentDislike(tx, userID, commentID, now)
		if err != nil {
			return err
		}
		trace.Info = map[string]any{"comment_id": commentID, "comment_dislike_id": dislikeID}
		return nil
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"comment_dislike_id": dislikeID})
}

func (p *Platform) undoDislikeComment(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	commentID, ok := payloadInt(payload, "comment_id")
	if !ok {
		return failure("comment_id is required")
	}
	comment, err := p.store.GetComment(commentID)
	if err != nil {
		return failure(err.Error())
	}
	if comment == nil {
		return failure(reasonCommentNotFound)
	}
	dislikeID, err := p.store.CommentDislikeID(userID, commentID)
	if err != nil {
		return failure(err.Error())
	}
	if dislikeID == 0 {
		return failure(reasonCommentDislikeMissing)
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.UndoDislikeComment,
		Info: map[string]any{"comment_id": commentID, "comment_dislike_id": dislikeID},
	}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		if err := store.BumpCommentDislikes(tx, commentID, -1); err != nil {
			return err
		}
		return store.DeleteCommentDislike(tx, dislikeID)
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"comment_dislike_id": dislikeID})
}
