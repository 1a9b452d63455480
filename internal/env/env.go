// Package env implements the simulation driver. It seeds the population,
// owns the platform goroutine, and advances the world one timestep at a
// time: scripted interventions first, then a recommendation refresh,
// then the activated agents' turns under a concurrency cap, then the
// clock tick.
package env

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/agent"
	"github.com/aviarysim/aviary/internal/channel"
	"github.com/aviarysim/aviary/internal/clock"
	"github.com/aviarysim/aviary/internal/events"
	"github.com/aviarysim/aviary/internal/graph"
	"github.com/aviarysim/aviary/internal/platform"
	"github.com/aviarysim/aviary/internal/prompts"
	"github.com/aviarysim/aviary/internal/store"
)

// DefaultMaxConcurrentTurns caps simultaneous model turns when Deps
// leaves MaxConcurrentTurns unset.
const DefaultMaxConcurrentTurns = 128

// controlSenderID tags control requests (update_rec_table, exit) that no
// persona issued. Agent ids start at zero, so a negative sender stays
// out of the identity space.
const controlSenderID = -1

// ManualAction is one scripted platform action attributed to an agent.
type ManualAction struct {
	AgentID int64
	Action  string
	Args    map[string]any
}

// StepAction configures one timestep.
type StepAction struct {
	// ActivateAgents lists the agents that take a model turn this step.
	// Nil activates every registered agent; an empty non-nil slice
	// activates none.
	ActivateAgents []int64
	// Interventions are scripted actions applied before the
	// recommendation refresh and the agent turns. An interview
	// intervention runs the persona's model; everything else goes
	// straight to the platform.
	Interventions []ManualAction
}

// Deps holds injected dependencies for the driver.
type Deps struct {
	Store    *store.Store
	Channel  *channel.Channel
	Platform *platform.Platform
	Clock    *clock.Clock
	Graph    *graph.Graph
	Bus      *events.Bus  // nil disables event publishing
	Logger   *slog.Logger // nil uses slog.Default

	// Mode selects the platform flavor the personas were prompted for.
	// prompts.ModeReddit switches Reset to channel sign-up; anything
	// else uses the bulk seeding path.
	Mode string

	// MaxConcurrentTurns caps simultaneous model turns per step. Zero
	// means DefaultMaxConcurrentTurns.
	MaxConcurrentTurns int64
}

// Env drives the simulation. Create with New, prepare with Reset, then
// call Step until done and Close to shut the platform down.
type Env struct {
	store    *store.Store
	ch       *channel.Channel
	platform *platform.Platform
	clock    *clock.Clock
	graph    *graph.Graph
	bus      *events.Bus
	logger   *slog.Logger
	sem      *semaphore.Weighted
	mode     string

	// steps counts completed timesteps. The tick clock counts these too,
	// but the scaled clock does not, so the driver keeps its own.
	steps int64

	// platformErr receives the platform loop's return value. Non-nil
	// only between Reset and Close.
	platformErr chan error
}

// New assembles a driver around the given dependencies.
func New(deps Deps) *Env {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	limit := deps.MaxConcurrentTurns
	if limit <= 0 {
		limit = DefaultMaxConcurrentTurns
	}
	return &Env{
		store:    deps.Store,
		ch:       deps.Channel,
		platform: deps.Platform,
		clock:    deps.Clock,
		graph:    deps.Graph,
		bus:      deps.Bus,
		logger:   deps.Logger,
		sem:      semaphore.NewWeighted(limit),
		mode:     deps.Mode,
	}
}

// Reset prepares the world for stepping: it seeds the population into
// the store, starts the platform actor, and in reddit mode signs every
// agent up through the channel. The ctx given here bounds the platform
// goroutine's lifetime.
func (e *Env) Reset(ctx context.Context) error {
	if e.platformErr != nil {
		return fmt.Errorf("environment already running")
	}
	agents := e.graph.Agents()

	// Bulk seeding writes the store directly, so it must finish before
	// the platform goroutine becomes the single writer.
	if e.mode != prompts.ModeReddit {
		if err := e.seedProfiles(ctx, agents); err != nil {
			return fmt.Errorf("seed profiles: %w", err)
		}
	}

	done := make(chan error, 1)
	e.platformErr = done
	go func() {
		done <- e.platform.Run(ctx)
	}()

	if e.mode == prompts.ModeReddit {
		if err := e.signUpAll(ctx, agents); err != nil {
			return fmt.Errorf("sign up agents: %w", err)
		}
	}

	e.logger.Info("environment ready",
		"agents", len(agents), "edges", e.graph.NumEdges(), "mode", e.mode)
	return nil
}

// Step advances the simulation by one timestep.
func (e *Env) Step(ctx context.Context, act StepAction) error {
	if e.platformErr == nil {
		return fmt.Errorf("environment not running; call Reset first")
	}

	step := e.steps
	start := time.Now()
	active := e.resolveActive(act.ActivateAgents)

	e.bus.Publish(events.Event{
		Timestamp: start,
		Source:    events.SourceEnv,
		Kind:      events.KindStepStart,
		Data: map[string]any{
			"step":          step,
			"interventions": len(act.Interventions),
			"activated":     len(active),
		},
	})

	if len(act.Interventions) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, m := range act.Interventions {
			m := m
			g.Go(func() error { return e.intervene(gctx, m) })
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("interventions: %w", err)
		}
	}

	// Rebuild the rec table after interventions so freshly injected
	// posts can reach this step's feeds.
	if _, err := e.ch.Send(ctx, controlSenderID, action.UpdateRecTable, nil); err != nil {
		return fmt.Errorf("update rec table: %w", err)
	}

	failed := e.runTurns(ctx, active)
	if err := ctx.Err(); err != nil {
		return err
	}

	e.clock.Advance()
	e.steps++

	e.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceEnv,
		Kind:      events.KindStepDone,
		Data: map[string]any{
			"step":          step,
			"failed_agents": failed,
			"duration_ms":   time.Since(start).Milliseconds(),
		},
	})
	return nil
}

// StepManual advances one timestep applying only scripted actions, no
// model calls. Each agent's list runs in order; different agents run
// concurrently, like the fan-out of a model step.
func (e *Env) StepManual(ctx context.Context, acts map[int64][]ManualAction) error {
	if e.platformErr == nil {
		return fmt.Errorf("environment not running; call Reset first")
	}

	step := e.steps
	start := time.Now()
	total := 0
	for _, seq := range acts {
		total += len(seq)
	}

	e.bus.Publish(events.Event{
		Timestamp: start,
		Source:    events.SourceEnv,
		Kind:      events.KindStepStart,
		Data: map[string]any{
			"step":          step,
			"interventions": total,
			"activated":     0,
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	for agentID, seq := range acts {
		agentID, seq := agentID, seq
		g.Go(func() error {
			for _, m := range seq {
				m.AgentID = agentID
				if err := e.intervene(gctx, m); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("manual step: %w", err)
	}

	e.clock.Advance()
	e.steps++

	e.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceEnv,
		Kind:      events.KindStepDone,
		Data: map[string]any{
			"step":          step,
			"failed_agents": int64(0),
			"duration_ms":   time.Since(start).Milliseconds(),
		},
	})
	return nil
}

// Steps returns how many timesteps have completed since Reset.
func (e *Env) Steps() int64 {
	return e.steps
}

// Close enqueues the exit tag and waits for the platform loop to drain
// and return. Safe to call more than once; later calls are no-ops.
func (e *Env) Close(ctx context.Context) error {
	if e.platformErr == nil {
		return nil
	}
	done := e.platformErr
	e.platformErr = nil

	if err := e.ch.Put(ctx, controlSenderID, action.Exit, nil); err != nil {
		// The platform may already be gone; still wait for its result.
		e.logger.Warn("exit enqueue failed", "error", err)
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveActive maps an activation list to agents. Nil means everyone.
func (e *Env) resolveActive(ids []int64) []*agent.SocialAgent {
	if ids == nil {
		return e.graph.Agents()
	}
	if len(ids) == 0 {
		return nil
	}
	return e.graph.Agents(ids...)
}

// runTurns fans the activated agents out under the turn semaphore and
// waits for all of them, returning how many turns failed. Individual
// failures are tolerated: the agent just skips the step.
func (e *Env) runTurns(ctx context.Context, active []*agent.SocialAgent) int64 {
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	for _, a := range active {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(a *agent.SocialAgent) {
			defer wg.Done()
			defer e.sem.Release(1)
			if err := a.ActByLLM(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				failed.Add(1)
				e.logger.Warn("agent turn failed", "agent_id", a.ID, "error", err)
				e.bus.Publish(events.Event{
					Timestamp: time.Now(),
					Source:    events.SourceAgent,
					Kind:      events.KindTurnFailed,
					Data:      map[string]any{"agent_id": a.ID, "error": err.Error()},
				})
			}
		}(a)
	}
	wg.Wait()
	return failed.Load()
}

// intervene applies one scripted action. Interview runs the persona's
// model; everything else goes through the same dispatch path a model
// turn uses, so scripted actions leave identical traces. A platform
// rejection is logged, not fatal: scripted scenarios keep going.
func (e *Env) intervene(ctx context.Context, m ManualAction) error {
	a := e.graph.Agent(m.AgentID)

	if m.Action == action.Interview {
		if a == nil {
			return fmt.Errorf("interview agent %d: not registered", m.AgentID)
		}
		prompt, _ := m.Args["prompt"].(string)
		if prompt == "" {
			return fmt.Errorf("interview agent %d: prompt is required", m.AgentID)
		}
		if _, err := a.Interview(ctx, prompt); err != nil {
			return fmt.Errorf("interview agent %d: %w", m.AgentID, err)
		}
		return nil
	}

	var (
		reply map[string]any
		err   error
	)
	if a != nil {
		reply, err = a.ActByManual(ctx, m.Action, m.Args)
	} else {
		// Unregistered senders (operator accounts, seeded bots) can
		// still drive the platform directly.
		reply, err = e.ch.Send(ctx, m.AgentID, m.Action, m.Args)
	}
	if err != nil {
		return fmt.Errorf("agent %d %s: %w", m.AgentID, m.Action, err)
	}
	if ok, _ := reply["success"].(bool); !ok {
		e.logger.Warn("intervention rejected",
			"agent_id", m.AgentID, "action", m.Action, "error", reply["error"])
	}
	return nil
}

// seedProfiles bulk-inserts the population in one transaction: user
// rows, the follow edges their profiles declare, and their previous
// posts, all timestamped at the current clock value. No trace rows are
// written; seeded history predates the simulation. Follower counts come
// from the profile when it carries one and are otherwise derived from
// the declared edges.
func (e *Env) seedProfiles(ctx context.Context, agents []*agent.SocialAgent) error {
	now := e.clock.Now()

	incoming := make(map[int64]int64)
	for _, a := range agents {
		for _, followee := range a.Profile.Following {
			if followee != a.ID {
				incoming[followee]++
			}
		}
	}

	err := e.store.Mutate(ctx, nil, func(tx *sql.Tx) error {
		for _, a := range agents {
			p := a.Profile
			name := p.Name
			if name == "" {
				name = p.Username
			}
			followings := p.NumFollowing
			if followings == 0 {
				followings = int64(len(p.Following))
			}
			followers := incoming[a.ID]
			if p.NumFollowers > 0 {
				followers = p.NumFollowers
			}
			u := &store.User{
				UserID:        a.ID,
				AgentID:       a.ID,
				UserName:      p.Username,
				Name:          name,
				Bio:           p.Bio,
				CreatedAt:     now,
				NumFollowings: followings,
				NumFollowers:  followers,
			}
			if err := store.InsertUser(tx, u); err != nil {
				return fmt.Errorf("user %d: %w", a.ID, err)
			}
		}
		for _, a := range agents {
			for _, followee := range a.Profile.Following {
				if followee == a.ID {
					continue
				}
				if _, err := store.InsertFollow(tx, a.ID, followee, now); err != nil {
					return fmt.Errorf("follow %d->%d: %w", a.ID, followee, err)
				}
			}
			for _, content := range a.Profile.PreviousPosts {
				p := &store.Post{UserID: a.ID, Content: content, CreatedAt: now}
				if _, err := store.InsertPost(tx, p); err != nil {
					return fmt.Errorf("post for %d: %w", a.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, a := range agents {
		for _, followee := range a.Profile.Following {
			e.graph.AddEdge(a.ID, followee)
		}
	}
	return nil
}

// signUpAll registers every agent through the channel, one concurrent
// sign_up request each, so the platform assigns rows and traces exactly
// as it would for live registrations.
func (e *Env) signUpAll(ctx context.Context, agents []*agent.SocialAgent) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range agents {
		a := a
		g.Go(func() error {
			p := a.Profile
			name := p.Name
			if name == "" {
				name = p.Username
			}
			reply, err := e.ch.Send(gctx, a.ID, action.SignUp, map[string]any{
				"user_name": p.Username,
				"name":      name,
				"bio":       p.Bio,
			})
			if err != nil {
				return fmt.Errorf("agent %d: %w", a.ID, err)
			}
			if ok, _ := reply["success"].(bool); !ok {
				return fmt.Errorf("agent %d: %v", a.ID, reply["error"])
			}
			return nil
		})
	}
	return g.Wait()
}
