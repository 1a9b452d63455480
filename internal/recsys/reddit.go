package recsys

import (
	"math"
	"time"

	"github.com/aviarysim/aviary/internal/clock"
	"github.com/aviarysim/aviary/internal/store"
)

// redditEpoch anchors the time component of the hot score, following
// the published Reddit ranking formula.
var redditEpoch = time.Date(2005, 12, 8, 7, 46, 43, 0, time.UTC)

// hotScore ranks a post by vote balance and recency. Ten times the
// votes buys one unit of score; 45000 seconds of age costs one.
func hotScore(likes, dislikes int64, createdAt time.Time) float64 {
	s := float64(likes - dislikes)
	order := math.Log10(math.Max(math.Abs(s), 1))
	var sign float64
	switch {
	case s > 0:
		sign = 1
	case s < 0:
		sign = -1
	}
	seconds := createdAt.Sub(redditEpoch).Seconds()
	return sign*order + seconds/45000
}

// redditSlates computes one shared hot slate: every user sees the same
// top posts.
func (e *Engine) redditSlates(users []*store.User, posts []*store.Post) ([]store.RecRow, error) {
	scores := make([]float64, len(posts))
	for i, p := range posts {
		tick, createdAt, err := clock.ParseTimestamp(p.CreatedAt)
		if err != nil {
			return nil, err
		}
		if createdAt.IsZero() {
			// Tick stamps rank as minute offsets from the epoch.
			createdAt = redditEpoch.Add(time.Duration(tick) * time.Minute)
		}
		scores[i] = hotScore(p.NumLikes, p.NumDislikes, createdAt)
	}

	top := topIndices(scores, e.cfg.MaxRecPostLen)
	rows := make([]store.RecRow, 0, len(users)*len(top))
	for _, u := range users {
		for _, idx := range top {
			rows = append(rows, store.RecRow{UserID: u.UserID, PostID: posts[idx].PostID})
		}
	}
	return rows, nil
}
