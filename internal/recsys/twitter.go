package recsys

import (
	"context"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/embeddings"
	"github.com/aviarysim/aviary/internal/store"
)

// traceIDKeys are the info keys under which trace rows record post
// ids. Interaction history is the union across them.
var traceIDKeys = []string{"post_id", "reposted_id", "quoted_id", "new_post_id"}

// twitterSlates ranks candidates by bio-content similarity, pulls them
// toward liked history and away from disliked history, then swaps a
// fraction of each slate with unseen posts for diversity.
func (e *Engine) twitterSlates(ctx context.Context, users []*store.User, posts []*store.Post) ([]store.RecRow, error) {
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
		if _, ok := e.bioVecs[u.UserID]; !ok {
			missing = append(missing, u.Bio)
			missingUsers = append(missingUsers, u.UserID)
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
			e.bioVecs[userID] = vectors[len(missingPosts)+i]
		}
	}

	var rows []store.RecRow
	for _, u := range users {
		likeVecs, err := e.traceVectors(u.UserID, action.LikePost)
		if err != nil {
			return nil, err
		}
		dislikeVecs, err := e.traceVectors(u.UserID, action.DislikePost)
		if err != nil {
			return nil, err
		}
		interacted, err := e.interactedPostIDs(u.UserID)
		if err != nil {
			return nil, err
		}

		bioVec := e.bioVecs[u.UserID]
		var candidates []int
		var base []float64
		for i, p := range posts {
			if p.UserID == u.UserID {
				continue
			}
			candidates = append(candidates, i)
			base = append(base, float64(embeddings.CosineSimilarity(bioVec, e.postVecs[p.PostID])))
		}
		if len(candidates) == 0 {
			continue
		}

		minBase, maxBase := base[0], base[0]
		for _, b := range base[1:] {
			if b < minBase {
				minBase = b
			}
			if b > maxBase {
				maxBase = b
			}
		}
		scoreRange := maxBase - minBase

		adjusted := make([]float64, len(candidates))
		for j, i := range candidates {
			postVec := e.postVecs[posts[i].PostID]
			like := meanCosine(postVec, likeVecs)
			dislike := meanCosine(postVec, dislikeVecs)
			adjusted[j] = adjustSimilarity(base[j], like, dislike, scoreRange)
		}

		slate := make([]int64, 0, e.cfg.MaxRecPostLen)
		for _, idx := range topIndices(adjusted, e.cfg.MaxRecPostLen) {
			slate = append(slate, posts[candidates[idx]].PostID)
		}
		if e.cfg.SwapRate > 0 {
			slate = e.swapRandom(slate, posts, interacted)
		}
		for _, postID := range slate {
			rows = append(rows, store.RecRow{UserID: u.UserID, PostID: postID})
		}
	}
	return rows, nil
}

// adjustSimilarity nudges a base similarity by the like-dislike gap,
// scaled to half the candidate score range so history can close a gap
// but not invent one.
func adjustSimilarity(base, like, dislike, scoreRange float64) float64 {
	return base + (like-dislike)*scoreRange/2
}

// meanCosine averages the similarity between target and each vector.
// No history means no adjustment.
func meanCosine(target []float32, vecs [][]float32) float64 {
	if len(vecs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vecs {
		sum += float64(embeddings.CosineSimilarity(target, v))
	}
	return sum / float64(len(vecs))
}

// traceVectors returns vectors of the posts a user touched with the
// given action. Posts whose vector is unknown are skipped.
func (e *Engine) traceVectors(userID int64, act string) ([][]float32, error) {
	traces, err := e.store.UserTraces(userID, act)
	if err != nil {
		return nil, err
	}
	var vecs [][]float32
	for _, tr := range traces {
		id, ok := infoInt(tr.Info, "post_id")
		if !ok {
			continue
		}
		if v, ok := e.postVecs[id]; ok {
			vecs = append(vecs, v)
		}
	}
	return vecs, nil
}

// interactedPostIDs collects every post id in the user's trace rows.
func (e *Engine) interactedPostIDs(userID int64) (map[int64]bool, error) {
	traces, err := e.store.UserTraces(userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool)
	for _, tr := range traces {
		for _, key := range traceIDKeys {
			if id, ok := infoInt(tr.Info, key); ok {
				seen[id] = true
			}
		}
	}
	return seen, nil
}

// swapRandom replaces a swap_rate fraction of the slate with random
// posts the user has neither been shown nor touched.
func (e *Engine) swapRandom(slate []int64, posts []*store.Post, interacted map[int64]bool) []int64 {
	num := int(float64(len(slate)) * e.cfg.SwapRate)
	if num == 0 {
		return slate
	}

	inSlate := make(map[int64]bool, len(slate))
	for _, id := range slate {
		inSlate[id] = true
	}
	var pool []int64
	for _, p := range posts {
		if !inSlate[p.PostID] && !interacted[p.PostID] {
			pool = append(pool, p.PostID)
		}
	}
	if num > len(pool) {
		num = len(pool)
	}
	if num == 0 {
		return slate
	}

	poolPerm := e.rng.Perm(len(pool))
	slatePerm := e.rng.Perm(len(slate))
	for k := 0; k < num; k++ {
		slate[slatePerm[k]] = pool[poolPerm[k]]
	}
	return slate
}
