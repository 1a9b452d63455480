package platform

import (
	"context"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/clock"
	"github.com/aviarysim/aviary/internal/store"
)

// refresh assembles the sender's feed: a uniform sample from their rec
// slate, plus top-liked followee posts when the clock ticks (follow
// edges drive the home timeline there; the scaled clock profile leans
// on the recommender alone).
func (p *Platform) refresh(ctx context.Context, userID int64) map[string]any {
	slate, err := p.store.RecPostIDs(userID)
	if err != nil {
		return failure(err.Error())
	}
	ids := p.sampleIDs(slate, p.cfg.RefreshRecPostCount)

	if p.clock.Ticking() {
		followees, err := p.store.FolloweeIDs(userID)
		if err != nil {
			return failure(err.Error())
		}
		if len(followees) > 0 {
			followed, err := p.store.TopPostsByUsers(followees, int64(p.cfg.FollowingPostCount))
			if err != nil {
				return failure(err.Error())
			}
			seen := make(map[int64]bool, len(ids))
			for _, id := range ids {
				seen[id] = true
			}
			for _, post := range followed {
				if !seen[post.PostID] {
					seen[post.PostID] = true
					ids = append(ids, post.PostID)
				}
			}
		}
	}

	posts, err := p.store.PostsByIDs(ids)
	if err != nil {
		return failure(err.Error())
	}
	if len(posts) == 0 {
		return failure(reasonNoPosts)
	}
	rendered, err := p.renderPosts(posts)
	if err != nil {
		return failure(err.Error())
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.Refresh,
		Info: map[string]any{"posts": postIDs(posts)},
	}
	if err := p.store.Mutate(ctx, trace, nil); err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"posts": rendered})
}

// trend returns the most-liked posts created inside the trailing
// window. In tick mode the window is counted in ticks at one minute
// each; in scaled mode it is days of virtual datetime.
func (p *Platform) trend(ctx context.Context, userID int64) map[string]any {
	var since any
	if p.clock.Ticking() {
		since = p.clock.TimeStep() - int64(p.cfg.TrendNumDays)*24*60
	} else {
		since = p.clock.VirtualNow().AddDate(0, 0, -p.cfg.TrendNumDays).Format(clock.TimestampLayout)
	}
	posts, err := p.store.TrendingPosts(since, int64(p.cfg.TrendTopK))
	if err != nil {
		return failure(err.Error())
	}
	if len(posts) == 0 {
		return failure(reasonNoTrending)
	}
	rendered, err := p.renderPosts(posts)
	if err != nil {
		return failure(err.Error())
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.Trend,
		Info: map[string]any{"posts": postIDs(posts)},
	}
	if err := p.store.Mutate(ctx, trace, nil); err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"posts": rendered})
}
