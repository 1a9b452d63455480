// Package recsys rebuilds the recommendation table that feeds each
// user's refresh. A rebuild reads the whole user and post tables,
// scores posts per strategy, and rewrites the rec table in one
// transaction. The platform loop is the only caller, so the engine
// keeps its caches without locking.
package recsys

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/aviarysim/aviary/internal/clock"
	"github.com/aviarysim/aviary/internal/config"
	"github.com/aviarysim/aviary/internal/embeddings"
	"github.com/aviarysim/aviary/internal/events"
	"github.com/aviarysim/aviary/internal/store"
)

// Strategy names accepted in config.
const (
	TypeRandom  = "random"
	TypeReddit  = "reddit"
	TypeTwhin   = "twhin"
	TypeTwitter = "twitter"
)

// RandSource yields permutations for sampling. Tests inject a fixed
// source to pin slate contents.
type RandSource interface {
	Perm(n int) []int
}

type defaultRand struct{}

func (defaultRand) Perm(n int) []int { return rand.Perm(n) }

// Deps carries the engine's collaborators.
type Deps struct {
	Store  *store.Store
	Clock  *clock.Clock
	Embed  embeddings.Client // required for twhin and twitter
	Logger *slog.Logger
	Bus    *events.Bus // nil disables event publishing
	Rand   RandSource  // nil uses math/rand default
}

// Engine computes per-user recommendation slates.
type Engine struct {
	cfg    config.RecsysConfig
	store  *store.Store
	clock  *clock.Clock
	embed  embeddings.Client
	logger *slog.Logger
	bus    *events.Bus
	rng    RandSource

	twhin    *twhinState
	bioVecs  map[int64][]float32
	postVecs map[int64][]float32
}

// New validates the strategy selection and builds an engine.
func New(cfg config.RecsysConfig, deps Deps) (*Engine, error) {
	switch cfg.Type {
	case TypeRandom, TypeReddit:
	case TypeTwhin, TypeTwitter:
		if deps.Embed == nil {
			return nil, fmt.Errorf("recsys type %q requires an embedding client", cfg.Type)
		}
	default:
		return nil, fmt.Errorf("unknown recsys type: %q", cfg.Type)
	}
	if cfg.MaxRecPostLen <= 0 {
		return nil, fmt.Errorf("max_rec_post_len must be positive, got %d", cfg.MaxRecPostLen)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := deps.Rand
	if rng == nil {
		rng = defaultRand{}
	}
	return &Engine{
		cfg:      cfg,
		store:    deps.Store,
		clock:    deps.Clock,
		embed:    deps.Embed,
		logger:   logger,
		bus:      deps.Bus,
		rng:      rng,
		bioVecs:  make(map[int64][]float32),
		postVecs: make(map[int64][]float32),
	}, nil
}

// Rebuild recomputes every user's slate and rewrites the rec table.
// When the corpus fits inside max_rec_post_len, everyone sees
// everything and no strategy runs.
func (e *Engine) Rebuild(ctx context.Context) error {
	start := time.Now()
	users, err := e.store.AllUsers()
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	posts, err := e.store.AllPosts()
	if err != nil {
		return err
	}

	var rows []store.RecRow
	if len(posts) <= e.cfg.MaxRecPostLen {
		rows = slatesForAll(users, posts)
	} else {
		switch e.cfg.Type {
		case TypeRandom:
			rows = e.randomSlates(users, posts)
		case TypeReddit:
			rows, err = e.redditSlates(users, posts)
		case TypeTwhin:
			rows, err = e.twhinSlates(ctx, users, posts)
		case TypeTwitter:
			rows, err = e.twitterSlates(ctx, users, posts)
		}
		if err != nil {
			return err
		}
	}

	if err := e.store.RewriteRec(ctx, rows); err != nil {
		return err
	}
	e.logger.Debug("rec table rebuilt",
		"strategy", e.cfg.Type,
		"users", len(users),
		"posts", len(posts),
		"duration", time.Since(start))
	e.bus.Publish(events.Event{
		Source: events.SourceRecsys,
		Kind:   events.KindRecRefresh,
		Data: map[string]any{
			"strategy":    e.cfg.Type,
			"users":       len(users),
			"posts":       len(posts),
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})
	return nil
}

// slatesForAll gives every user the full post table.
func slatesForAll(users []*store.User, posts []*store.Post) []store.RecRow {
	rows := make([]store.RecRow, 0, len(users)*len(posts))
	for _, u := range users {
		for _, p := range posts {
			rows = append(rows, store.RecRow{UserID: u.UserID, PostID: p.PostID})
		}
	}
	return rows
}

// randomSlates samples max_rec_post_len posts uniformly without
// replacement, independently per user.
func (e *Engine) randomSlates(users []*store.User, posts []*store.Post) []store.RecRow {
	rows := make([]store.RecRow, 0, len(users)*e.cfg.MaxRecPostLen)
	for _, u := range users {
		perm := e.rng.Perm(len(posts))
		for _, idx := range perm[:e.cfg.MaxRecPostLen] {
			rows = append(rows, store.RecRow{UserID: u.UserID, PostID: posts[idx].PostID})
		}
	}
	return rows
}

// topIndices returns the indices of the k largest scores, descending.
// Ties keep candidate order.
func topIndices(scores []float64, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}
