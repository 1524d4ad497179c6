// Package depgraph implements the in-memory dependency graph of spec.md
// §4.D: item-key nodes with two edge colors (global, item), reverse-edge
// dependents lookup, transitive-dirty BFS, and item->item cycle detection.
// The cycle-detection shape mirrors the Kahn's-algorithm topological sort
// in the reference repo's internal/hugo/transforms/toposort.go, restricted
// to the item-colored subgraph.
package depgraph

import (
	"sort"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/sitegenerr"
)

// Color distinguishes the two edge kinds a node may carry.
type Color int

const (
	// ColorGlobal is an item -> global-name edge (declared_deps, pagination.from).
	ColorGlobal Color = iota
	// ColorItem is an item -> item edge (template inclusion).
	ColorItem
)

type edge struct {
	to    string
	color Color
}

// Graph is the adjacency map item-key -> []edge. Global-colored edges
// point at synthetic nodes named "global:<name>" so dependents_of and the
// dirty-set BFS can treat both colors uniformly.
type Graph struct {
	nodes map[string]struct{}
	out   map[string][]edge
	in    map[string][]edge // reverse index: to -> incoming edges
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		out:   make(map[string][]edge),
		in:    make(map[string][]edge),
	}
}

// GlobalNode returns the synthetic node name for a global, for callers
// that want to add edges to/from a global by name.
func GlobalNode(name string) string { return "global:" + name }

// AddNode registers key as a node, if not already present.
func (g *Graph) AddNode(key string) {
	g.nodes[key] = struct{}{}
}

// AddEdge adds a from -> to edge of the given color. Both endpoints are
// implicitly registered as nodes.
func (g *Graph) AddEdge(from, to string, color Color) {
	g.AddNode(from)
	g.AddNode(to)
	g.out[from] = append(g.out[from], edge{to: to, color: color})
	g.in[to] = append(g.in[to], edge{to: from, color: color})
}

// DependentsOf returns the direct reverse-edges of key: every node with an
// edge (of either color) pointing at key.
func (g *Graph) DependentsOf(key string) []string {
	incoming := g.in[key]
	seen := make(map[string]struct{}, len(incoming))
	var out []string
	for _, e := range incoming {
		if _, ok := seen[e.to]; ok {
			continue
		}
		seen[e.to] = struct{}{}
		out = append(out, e.to)
	}
	sort.Strings(out)
	return out
}

// TransitiveDirty runs a BFS over reverse edges starting from seeds,
// returning every node (including the seeds themselves) that must be
// rebuilt as a consequence.
func (g *Graph) TransitiveDirty(seeds []string) map[string]struct{} {
	dirty := make(map[string]struct{}, len(seeds))
	queue := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := dirty[s]; !ok {
			dirty[s] = struct{}{}
			queue = append(queue, s)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.DependentsOf(cur) {
			if _, ok := dirty[dep]; ok {
				continue
			}
			dirty[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}
	return dirty
}

// ValidateAcyclic checks the item-colored subgraph for cycles using Kahn's
// algorithm (in-degree counting + queue of zero-in-degree nodes, sorted for
// determinism), the same shape as transforms.topologicalSort. Global edges
// are excluded: only template inclusion (item -> item) must be acyclic.
func (g *Graph) ValidateAcyclic() error {
	itemNodes := make(map[string]struct{})
	adj := make(map[string][]string)
	inDegree := make(map[string]int)

	for from, edges := range g.out {
		for _, e := range edges {
			if e.color != ColorItem {
				continue
			}
			itemNodes[from] = struct{}{}
			itemNodes[e.to] = struct{}{}
			adj[from] = append(adj[from], e.to)
			inDegree[e.to]++
			if _, ok := inDegree[from]; !ok {
				inDegree[from] = 0
			}
		}
	}
	if len(itemNodes) == 0 {
		return nil
	}

	var queue []string
	for n := range itemNodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	visited := make(map[string]bool, len(itemNodes))
	visitedCount := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		visitedCount++

		neighbors := append([]string(nil), adj[cur]...)
		sort.Strings(neighbors)
		for _, n := range neighbors {
			inDegree[n]--
			if inDegree[n] == 0 {
				queue = append(queue, n)
				sort.Strings(queue)
			}
		}
	}

	if visitedCount != len(itemNodes) {
		var unvisited []string
		for n := range itemNodes {
			if !visited[n] {
				unvisited = append(unvisited, n)
			}
		}
		sort.Strings(unvisited)
		return &sitegenerr.CycleError{Keys: unvisited}
	}
	return nil
}
