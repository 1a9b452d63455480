// Package platform implements the serializing actor that owns the
// simulation state. One goroutine consumes the request channel, applies
// each action to the store, appends the audit trace, and replies. All
// writes flow through that single consumer, so handlers never lock.
package platform

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/channel"
	"github.com/aviarysim/aviary/internal/clock"
	"github.com/aviarysim/aviary/internal/config"
	"github.com/aviarysim/aviary/internal/events"
	"github.com/aviarysim/aviary/internal/store"
)

// Recommender rebuilds the rec table from current platform state. The
// platform runs it synchronously inside the consumer loop when the
// update_rec_table control tag arrives, so strategies read a quiescent
// store.
type Recommender interface {
	Rebuild(ctx context.Context) error
}

// EdgeMirror receives follow-graph changes as they commit. The platform
// calls it from the consumer loop, so implementations observe edges in
// commit order and stay consistent with the follow table.
type EdgeMirror interface {
	AddEdge(from, to int64)
	RemoveEdge(from, to int64)
}

// RandSource abstracts randomness for deterministic testing.
type RandSource interface {
	// Perm returns a pseudo-random permutation of [0, n).
	Perm(n int) []int
}

// defaultRand uses math/rand's global source.
type defaultRand struct{}

func (defaultRand) Perm(n int) []int { return rand.Perm(n) }

// Deps holds injected dependencies for the platform loop. Using a struct
// avoids a growing parameter list as the simulation evolves.
type Deps struct {
	Store   *store.Store
	Channel *channel.Channel
	Clock   *clock.Clock
	Rec     Recommender // nil disables rec rebuilds
	Bus     *events.Bus // nil disables event publishing
	Graph   EdgeMirror  // nil disables follow-graph mirroring
	Logger  *slog.Logger
	Rand    RandSource // nil uses math/rand default
}

// Platform is the single-writer actor. Create with New, drive with Run.
type Platform struct {
	cfg    config.PlatformConfig
	store  *store.Store
	ch     *channel.Channel
	clock  *clock.Clock
	rec    Recommender
	bus    *events.Bus
	graph  EdgeMirror
	logger *slog.Logger
	rng    RandSource
}

// New assembles a platform around the given dependencies.
func New(cfg config.PlatformConfig, deps Deps) *Platform {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Rand == nil {
		deps.Rand = defaultRand{}
	}
	return &Platform{
		cfg:    cfg,
		store:  deps.Store,
		ch:     deps.Channel,
		clock:  deps.Clock,
		rec:    deps.Rec,
		bus:    deps.Bus,
		graph:  deps.Graph,
		logger: deps.Logger,
		rng:    deps.Rand,
	}
}

// Run consumes the channel until the exit tag arrives or ctx is
// canceled. It must be the only goroutine mutating the store.
func (p *Platform) Run(ctx context.Context) error {
	p.logger.Info("platform running", "tick_mode", p.clock.Ticking())

	for {
		req, err := p.ch.Receive(ctx)
		if err != nil {
			return err
		}

		if req.Action == action.Exit {
			traces, _ := p.store.TraceCount("")
			p.logger.Info("platform exiting", "pending", p.ch.Pending(), "traces", traces)
			p.bus.Publish(events.Event{
				Source: events.SourcePlatform,
				Kind:   events.KindShutdown,
				Data:   map[string]any{"traces": traces},
			})
			return nil
		}

		result := p.dispatch(ctx, req)
		p.ch.Reply(channel.Response{ID: req.ID, AgentID: req.AgentID, Result: result})
	}
}

func (p *Platform) dispatch(ctx context.Context, req channel.Request) map[string]any {
	payload, _ := req.Payload.(map[string]any)
	userID := req.AgentID

	var result map[string]any
	switch req.Action {
	case action.SignUp:
		result = p.signUp(ctx, userID, payload)
	case action.SignUpProduct:
		result = p.signUpProduct(ctx, userID, payload)
	case action.PurchaseProduct:
		result = p.purchaseProduct(ctx, userID, payload)
	case action.Refresh:
		result = p.refresh(ctx, userID)
	case action.CreatePost:
		result = p.createPost(ctx, userID, payload)
	case action.Repost:
		result = p.repost(ctx, userID, payload)
	case action.QuotePost:
		result = p.quotePost(ctx, userID, payload)
	case action.LikePost:
		result = p.likePost(ctx, userID, payload)
	case action.UnlikePost:
		result = p.unlikePost(ctx, userID, payload)
	case action.DislikePost:
		result = p.dislikePost(ctx, userID, payload)
	case action.UndoDislikePost:
		result = p.undoDislikePost(ctx, userID, payload)
	case action.Follow:
		result = p.follow(ctx, userID, payload)
	case action.Unfollow:
		result = p.unfollow(ctx, userID, payload)
	case action.Mute:
		result = p.mute(ctx, userID, payload)
	case action.Unmute:
		result = p.unmute(ctx, userID, payload)
	case action.SearchPosts:
		result = p.searchPosts(ctx, userID, payload)
	case action.SearchUser:
		result = p.searchUser(ctx, userID, payload)
	case action.Trend:
		result = p.trend(ctx, userID)
	case action.CreateComment:
		result = p.createComment(ctx, userID, payload)
	case action.LikeComment:
		result = p.likeComment(ctx, userID, payload)
	case action.UnlikeComment:
		result = p.unlikeComment(ctx, userID, payload)
	case action.DislikeComment:
		result = p.dislikeComment(ctx, userID, payload)
	case action.UndoDislikeComment:
		result = p.undoDislikeComment(ctx, userID, payload)
	case action.DoNothing:
		result = p.doNothing(ctx, userID)
	case action.Interview:
		result = p.interview(ctx, userID, payload)
	case action.ReportPost:
		result = p.reportPost(ctx, userID, payload)
	case action.CreateGroup:
		result = p.createGroup(ctx, userID, payload)
	case action.JoinGroup:
		result = p.joinGroup(ctx, userID, payload)
	case action.LeaveGroup:
		result = p.leaveGroup(ctx, userID, payload)
	case action.SendToGroup:
		result = p.sendToGroup(ctx, userID, payload)
	case action.ListenFromGroup:
		result = p.listenFromGroup(userID)
	case action.UpdateRecTable:
		result = p.updateRecTable(ctx)
	default:
		result = failure(reasonUnknownAction)
	}

	ok, _ := result["success"].(bool)
	p.logger.Log(ctx, config.LevelTrace, "request handled",
		"action", req.Action, "agent_id", req.AgentID, "success", ok)

	kind := events.KindActionCommitted
	if !ok {
		kind = events.KindActionRejected
	}
	p.bus.Publish(events.Event{
		Source: events.SourcePlatform,
		Kind:   kind,
		Data:   map[string]any{"action": req.Action, "agent_id": req.AgentID},
	})

	return result
}

func (p *Platform) updateRecTable(ctx context.Context) map[string]any {
	if p.rec == nil {
		return success(nil)
	}
	if err := p.rec.Rebuild(ctx); err != nil {
		p.logger.Error("rec table rebuild failed", "error", err)
		return failure(err.Error())
	}
	return success(nil)
}

func success(fields map[string]any) map[string]any {
	result := map[string]any{"success": true}
	for k, v := range fields {
		result[k] = v
	}
	return result
}

func failure(reason string) map[string]any {
	return map[string]any{"success": false, "error": reason}
}

// payloadInt reads an integer argument. Tool-call arguments arrive as
// JSON numbers (float64) and occasionally as digit strings, so both are
// accepted.
func payloadInt(payload map[string]any, key string) (int64, bool) {
	switch v := payload[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func payloadString(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key].(string)
	return v, ok
}

// sampleIDs draws up to n ids uniformly without replacement.
func (p *Platform) sampleIDs(ids []int64, n int) []int64 {
	if len(ids) <= n {
		return ids
	}
	perm := p.rng.Perm(len(ids))
	out := make([]int64, 0, n)
	for _, i := range perm[:n] {
		out = append(out, ids[i])
	}
	return out
}
