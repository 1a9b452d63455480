// Package graph maintains the in-memory social graph: the registry of
// live agents and the follow edges between them. The platform mirrors
// follow and unfollow commits into it, so readers see the same edges the
// follow table holds.
package graph

import (
	"sort"
	"sync"

	"github.com/aviarysim/aviary/internal/agent"
)

// Graph is a directed follow graph over registered agents. All methods
// are safe for concurrent use: agent turns run in parallel while the
// platform goroutine mirrors edge changes.
//
// Edges may name ids that have no registered agent (bulk-seeded follow
// rows land before control agents register, for example). NumNodes
// counts registered agents only.
type Graph struct {
	mu     sync.RWMutex
	agents map[int64]*agent.SocialAgent
	edges  map[int64]map[int64]struct{} // follower -> followees
	nedges int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		agents: make(map[int64]*agent.SocialAgent),
		edges:  make(map[int64]map[int64]struct{}),
	}
}

// AddAgent registers an agent under its ID, replacing any previous
// registration. Nil agents are ignored.
func (g *Graph) AddAgent(a *agent.SocialAgent) {
	if a == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.agents[a.ID] = a
}

// RemoveAgent drops an agent and every edge incident to it. Unknown ids
// are a no-op for the registry but still clear stray edges.
func (g *Graph) RemoveAgent(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.agents, id)

	if out, ok := g.edges[id]; ok {
		g.nedges -= len(out)
		delete(g.edges, id)
	}
	for from, out := range g.edges {
		if _, ok := out[id]; ok {
			delete(out, id)
			g.nedges--
			if len(out) == 0 {
				delete(g.edges, from)
			}
		}
	}
}

// AddEdge records a follow edge. Self-loops and duplicates are ignored.
func (g *Graph) AddEdge(from, to int64) {
	if from == to {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out, ok := g.edges[from]
	if !ok {
		out = make(map[int64]struct{})
		g.edges[from] = out
	}
	if _, exists := out[to]; exists {
		return
	}
	out[to] = struct{}{}
	g.nedges++
}

// RemoveEdge deletes a follow edge. Absent edges are a no-op.
func (g *Graph) RemoveEdge(from, to int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out, ok := g.edges[from]
	if !ok {
		return
	}
	if _, exists := out[to]; !exists {
		return
	}
	delete(out, to)
	g.nedges--
	if len(out) == 0 {
		delete(g.edges, from)
	}
}

// HasEdge reports whether from currently follows to.
func (g *Graph) HasEdge(from, to int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[from][to]
	return ok
}

// Agent returns the registered agent for id, or nil.
func (g *Graph) Agent(id int64) *agent.SocialAgent {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.agents[id]
}

// Agents returns the agents for the given ids in request order, skipping
// ids with no registration. With no ids it returns every registered
// agent sorted by ID.
func (g *Graph) Agents(ids ...int64) []*agent.SocialAgent {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(ids) > 0 {
		out := make([]*agent.SocialAgent, 0, len(ids))
		for _, id := range ids {
			if a, ok := g.agents[id]; ok {
				out = append(out, a)
			}
		}
		return out
	}

	out := make([]*agent.SocialAgent, 0, len(g.agents))
	for _, a := range g.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NumNodes returns the number of registered agents.
func (g *Graph) NumNodes() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.agents)
}

// NumEdges returns the number of follow edges.
func (g *Graph) NumEdges() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nedges
}

// Followees returns the ids an agent follows, sorted.
func (g *Graph) Followees(from int64) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]int64, 0, len(g.edges[from]))
	for to := range g.edges[from] {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
