// Package graph holds the model reference graph of one analysis pass: nodes
// are discovered models, edges are declared references between them. The
// graph is built once per pass and read concurrently afterwards (the MCP
// server shares it across handlers), so reads take the lock but nothing
// mutates after Build returns.
package graph

import (
	"sort"
	"sync"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
)

// Graph is the in-memory model reference graph.
type Graph struct {
	mu           sync.RWMutex
	nodes        map[string]*domain.ModelNode
	order        []string
	edges        map[string][]*domain.ReferenceEdge
	reverseEdges map[string][]*domain.ReferenceEdge
	edgeCount    int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:        make(map[string]*domain.ModelNode),
		edges:        make(map[string][]*domain.ReferenceEdge),
		reverseEdges: make(map[string][]*domain.ReferenceEdge),
	}
}

// AddNode registers a node. Adding the same ID twice keeps the first node;
// one node per distinct type per pass.
func (g *Graph) AddNode(node *domain.ModelNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[node.ID]; ok {
		return
	}
	g.nodes[node.ID] = node
	g.order = append(g.order, node.ID)
}

// AddEdge registers a reference edge. Edges are kept in insertion order,
// which follows declaration order by construction.
func (g *Graph) AddEdge(e *domain.ReferenceEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.DeclOrder = g.edgeCount
	g.edgeCount++
	g.edges[e.From] = append(g.edges[e.From], e)
	g.reverseEdges[e.To] = append(g.reverseEdges[e.To], e)
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*domain.ModelNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in discovery order.
func (g *Graph) Nodes() []*domain.ModelNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*domain.ModelNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// EdgesFrom returns the outgoing edges of id in declaration order.
func (g *Graph) EdgesFrom(id string) []*domain.ReferenceEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*domain.ReferenceEdge(nil), g.edges[id]...)
}

// EdgesTo returns the incoming edges of id in declaration order.
func (g *Graph) EdgesTo(id string) []*domain.ReferenceEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*domain.ReferenceEdge(nil), g.reverseEdges[id]...)
}

// Edges returns every edge ordered by declaration.
func (g *Graph) Edges() []*domain.ReferenceEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*domain.ReferenceEdge
	for _, es := range g.edges {
		out = append(out, es...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeclOrder < out[j].DeclOrder })
	return out
}

// Dependents walks reverse edges from id and returns every model that
// directly or transitively references it, in a deterministic order. This is
// the impact ("blast radius") query exposed over MCP.
func (g *Graph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.reverseEdges[cur] {
			if visited[e.From] {
				continue
			}
			visited[e.From] = true
			queue = append(queue, e.From)
			out = append(out, e.From)
		}
	}
	sort.Strings(out)
	return out
}
