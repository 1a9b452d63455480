package graph

import (
	"reflect"
	"sync"
	"testing"

	"github.com/aviarysim/aviary/internal/agent"
	"github.com/aviarysim/aviary/internal/profiles"
)

func testAgent(id int64, name string) *agent.SocialAgent {
	return agent.New(id, profiles.Profile{Name: name}, agent.Deps{})
}

func ids(agents []*agent.SocialAgent) []int64 {
	out := make([]int64, len(agents))
	for i, a := range agents {
		out[i] = a.ID
	}
	return out
}

func TestAddAndGetAgent(t *testing.T) {
	g := New()
	g.AddAgent(testAgent(3, "C"))
	g.AddAgent(testAgent(1, "A"))

	if g.NumNodes() != 2 {
		t.Errorf("NumNodes = %d, want 2", g.NumNodes())
	}
	a := g.Agent(3)
	if a == nil || a.Profile.Name != "C" {
		t.Errorf("Agent(3) = %+v, want agent C", a)
	}
	if g.Agent(99) != nil {
		t.Error("Agent(99) should be nil for unknown id")
	}

	// Re-registering replaces.
	g.AddAgent(testAgent(3, "C2"))
	if g.NumNodes() != 2 {
		t.Errorf("NumNodes after replace = %d, want 2", g.NumNodes())
	}
	if got := g.Agent(3).Profile.Name; got != "C2" {
		t.Errorf("replaced agent name = %q, want C2", got)
	}
}

func TestAgentsAllSortedByID(t *testing.T) {
	g := New()
	for _, id := range []int64{5, 1, 9, 3} {
		g.AddAgent(testAgent(id, "x"))
	}

	got := ids(g.Agents())
	want := []int64{1, 3, 5, 9}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Agents() ids = %v, want %v", got, want)
	}
}

func TestAgentsSubsetKeepsRequestOrder(t *testing.T) {
	g := New()
	for _, id := range []int64{1, 2, 3} {
		g.AddAgent(testAgent(id, "x"))
	}

	got := ids(g.Agents(3, 1, 42))
	want := []int64{3, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Agents(3,1,42) ids = %v, want %v (unknown skipped)", got, want)
	}
}

func TestEdges(t *testing.T) {
	g := New()
	g.AddEdge(1, 2)
	g.AddEdge(1, 3)
	g.AddEdge(2, 1)

	if g.NumEdges() != 3 {
		t.Errorf("NumEdges = %d, want 3", g.NumEdges())
	}
	if !g.HasEdge(1, 2) {
		t.Error("HasEdge(1,2) = false after AddEdge")
	}
	if g.HasEdge(2, 3) {
		t.Error("HasEdge(2,3) = true, edge never added")
	}
	if got, want := g.Followees(1), []int64{2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Followees(1) = %v, want %v", got, want)
	}

	g.RemoveEdge(1, 2)
	if g.NumEdges() != 2 {
		t.Errorf("NumEdges after remove = %d, want 2", g.NumEdges())
	}
	if g.HasEdge(1, 2) {
		t.Error("HasEdge(1,2) = true after RemoveEdge")
	}
}

func TestAddEdgeRejectsSelfLoop(t *testing.T) {
	g := New()
	g.AddEdge(4, 4)
	if g.NumEdges() != 0 {
		t.Errorf("NumEdges = %d, want 0 (self-loop dropped)", g.NumEdges())
	}
}

func TestAddEdgeIdempotent(t *testing.T) {
	g := New()
	g.AddEdge(1, 2)
	g.AddEdge(1, 2)
	if g.NumEdges() != 1 {
		t.Errorf("NumEdges = %d, want 1 (duplicate ignored)", g.NumEdges())
	}
}

func TestRemoveEdgeMissing(t *testing.T) {
	g := New()
	g.AddEdge(1, 2)
	g.RemoveEdge(7, 8)
	g.RemoveEdge(1, 9)
	if g.NumEdges() != 1 {
		t.Errorf("NumEdges = %d, want 1 (missing removals are no-ops)", g.NumEdges())
	}
}

func TestRemoveAgentDropsIncidentEdges(t *testing.T) {
	g := New()
	for _, id := range []int64{1, 2, 3} {
		g.AddAgent(testAgent(id, "x"))
	}
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(3, 2)
	g.AddEdge(1, 3)

	g.RemoveAgent(2)

	if g.NumNodes() != 2 {
		t.Errorf("NumNodes = %d, want 2", g.NumNodes())
	}
	if g.NumEdges() != 1 {
		t.Errorf("NumEdges = %d, want 1 (only 1->3 survives)", g.NumEdges())
	}
	if !g.HasEdge(1, 3) {
		t.Error("HasEdge(1,3) should survive removal of agent 2")
	}
}

func TestConcurrentEdgeMutation(t *testing.T) {
	g := New()
	const n = 64

	var wg sync.WaitGroup
	for i := int64(0); i < n; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			g.AddEdge(i, 1000+i)
			g.HasEdge(i, 1000+i)
			g.NumEdges()
		}(i)
	}
	wg.Wait()

	if g.NumEdges() != n {
		t.Errorf("NumEdges = %d, want %d", g.NumEdges(), n)
	}
}
