package recsys

import (
	"context"
	"math"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/clock"
	"github.com/aviarysim/aviary/internal/embeddings"
	"github.com/aviarysim/aviary/internal/store"
)

// twhinHorizon is the age, in virtual minutes, past which a post's
// time score would leave the log's domain.
const twhinHorizon = 271.8

// recentPostMarker introduces the latest-post suffix appended to user
// profiles. Matching on the marker keeps one suffix per profile as new
// posts replace old ones.
const recentPostMarker = "# Recent post:"

// likeHistoryLen is how many recent likes feed the affinity score.
const likeHistoryLen = 5

// twhinState carries what the twhin strategy accumulates across
// rebuilds. Post scores freeze at first sight; profiles track each
// user's newest post.
type twhinState struct {
	followers   map[int64]int64
	profileBase map[int64]string
	latestPost  map[int64]string
	lastPostID  int64
	prior       map[int64]float64
	profileVecs map[int64][]float32
	profileText map[int64]string
}

// twhinTimeScore decays with age. The argument is floored so posts
// older than the horizon stay scored, deeply buried.
func twhinTimeScore(age float64) float64 {
	remaining := twhinHorizon - age
	if remaining < 0.1 {
		remaining = 0.1
	}
	return math.Log(remaining / 100)
}

// twhinAudienceScore grows with the author's reach and never drops
// below one, so a small following cannot zero out the prior.
func twhinAudienceScore(followers int64) float64 {
	return math.Max(1, math.Log(float64(followers+1))/math.Log(1000))
}

// postAge returns the post's age in virtual minutes.
func (e *Engine) postAge(createdAt string) float64 {
	tick, t, err := clock.ParseTimestamp(createdAt)
	if err != nil {
		return 0
	}
	if t.IsZero() {
		return float64(e.clock.TimeStep() - tick)
	}
	return e.clock.VirtualNow().Sub(t).Minutes()
}

// twhinSlates scores cosine(profile, post) times a frozen
// recency-audience prior, with optional like-history affinity.
func (e *Engine) twhinSlates(ctx context.Context, users []*store.User, posts []*store.Post) ([]store.RecRow, error) {
	if e.twhin == nil {
		e.twhin = &twhinState{
			followers:   make(map[int64]int64),
			profileBase: make(map[int64]string),
			latestPost:  make(map[int64]string),
			prior:       make(map[int64]float64),
			profileVecs: make(map[int64][]float32),
			profileText: make(map[int64]string),
		}
	}
	st := e.twhin

	// Follower counts and base profiles refresh only when the
	// population changes, once per simulation in practice.
	if len(st.followers) != len(users) {
		for _, u := range users {
			st.followers[u.UserID] = u.NumFollowers
			if u.Bio == "" {
				st.profileBase[u.UserID] = "This user does not have profile"
			} else {
				st.profileBase[u.UserID] = u.Bio
			}
		}
	}

	// Ingest posts past the high-water mark. Their priors freeze at
	// first sight.
	for _, p := range posts {
		if p.PostID <= st.lastPostID {
			continue
		}
		st.lastPostID = p.PostID
		st.latestPost[p.UserID] = p.Content
		prior := twhinTimeScore(e.postAge(p.CreatedAt)) * twhinAudienceScore(st.followers[p.UserID])
		st.prior[p.PostID] = prior
	}

	profileFor := func(userID int64) string {
		return profileWithRecentPost(st.profileBase[userID], st.latestPost[userID])
	}

	// Embed only what changed: new posts, and profiles whose
	// latest-post suffix moved.
	var missing []string
	var missingPosts []int64
	for _, p := range posts {
		if _, ok := e.postVecs[p.PostID]; !ok {
			missing = append(missing, p.Content)
			missingPosts = append(missingPosts, p.PostID)
		}
	}
	var missingUsers []int64
	for _, u := range users {
		text := profileFor(u.UserID)
		if st.profileText[u.UserID] != text {
			missing = append(missing, text)
			missingUsers = append(missingUsers, u.UserID)
			st.profileText[u.UserID] = text
		}
	}
	if len(missing) > 0 {
		vectors, err := e.embed.Embed(ctx, missing)
		if err != nil {
			return nil, err
		}
		for i, postID := range missingPosts {
			e.postVecs[postID] = vectors[i]
		}
		for i, userID := range missingUsers {
			st.profileVecs[userID] = vectors[len(missingPosts)+i]
		}
	}

	rows := make([]store.RecRow, 0, len(users)*e.cfg.MaxRecPostLen)
	scores := make([]float64, len(posts))
	for _, u := range users {
		profileVec := st.profileVecs[u.UserID]

		var likedVecs [][]float32
		if e.cfg.EnableLikeScore {
			var err error
			likedVecs, err = e.likedVectors(u.UserID, profileVec)
			if err != nil {
				return nil, err
			}
		}

		for i, p := range posts {
			postVec := e.postVecs[p.PostID]
			score := float64(embeddings.CosineSimilarity(profileVec, postVec)) * st.prior[p.PostID]
			if len(likedVecs) > 0 {
				var affinity float64
				for _, lv := range likedVecs {
					affinity += float64(embeddings.CosineSimilarity(postVec, lv))
				}
				score += affinity / float64(len(likedVecs))
			}
			scores[i] = score
		}

		for _, idx := range topIndices(scores, e.cfg.MaxRecPostLen) {
			rows = append(rows, store.RecRow{UserID: u.UserID, PostID: posts[idx].PostID})
		}
	}
	return rows, nil
}

// likedVectors returns the vectors of the user's five most recent
// liked posts, repeating the last like to fill. A user with no likes
// falls back to their own profile vector.
func (e *Engine) likedVectors(userID int64, profileVec []float32) ([][]float32, error) {
	traces, err := e.store.UserTraces(userID, action.LikePost)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, tr := range traces {
		if id, ok := infoInt(tr.Info, "post_id"); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) > likeHistoryLen {
		ids = ids[len(ids)-likeHistoryLen:]
	}
	for len(ids) > 0 && len(ids) < likeHistoryLen {
		ids = append(ids, ids[len(ids)-1])
	}

	if len(ids) == 0 {
		return [][]float32{profileVec}, nil
	}
	vecs := make([][]float32, 0, len(ids))
	for _, id := range ids {
		if v, ok := e.postVecs[id]; ok {
			vecs = append(vecs, v)
		} else {
			vecs = append(vecs, profileVec)
		}
	}
	return vecs, nil
}

// infoInt reads an integer out of a trace info map, which carries
// float64 numbers after the JSON round trip.
func infoInt(info map[string]any, key string) (int64, bool) {
	switch v := info[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// profileWithRecentPost appends the user's newest post to their base
// profile, replacing any earlier suffix.
func profileWithRecentPost(base, latest string) string {
	if latest == "" {
		return base
	}
	return base + " " + recentPostMarker + latest
}
