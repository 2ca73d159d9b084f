// Package rag implements the Resource Allocation Graph: a sparse,
// directed bipartite multigraph over Process and Resource vertices, with
// Request (P->R) and Allocation (R->P) edges. It is a value built once per
// detection pass and never mutated after the cycle detector (internal/cycle)
// has consumed it.
package rag

import "github.com/lazytrace/deadlockd/internal/kerr"

// VertexKind tags a vertex as Process or Resource. Go has no sum types, so
// this follows spec.md §9's guidance to encode the two natural variants as
// a tagged field rather than reaching for an interface with subtype
// dispatch nothing in the design needs.
type VertexKind int

const (
	Process VertexKind = iota
	Resource
)

// EdgeKind tags an edge as Request (P->R) or Allocation (R->P).
type EdgeKind int

const (
	Request EdgeKind = iota
	Allocation
)

// Color is a DFS traversal state, reset between detector runs.
type Color int

const (
	Unvisited Color = iota
	OnStack
	Done
)

// edge is one adjacency-list entry: a neighbor vertex index and the kind
// of edge reaching it.
type edge struct {
	neighbor int
	kind     EdgeKind
}

// Graph is the RAG. Vertex indices are stable for the graph's lifetime
// once assigned monotonically on first sight, per spec.md §5's ordering
// guarantees.
type Graph struct {
	kind       []VertexKind
	externalID []int
	instances  []int
	// resourceLabel is a best-effort tag on Resource vertices ("pipe",
	// "lock", or "" if never set) naming which dependency-analyzer pass
	// produced the resource id. It plays no role in detection or
	// classification, only in picking a resource-specific recommendation.
	resourceLabel []string
	adjacency     [][]edge

	color  []Color
	parent []int

	edgeCount int

	maxProcessVertices  int
	maxResourceVertices int
}

// NewGraph returns an empty graph bounded by the given per-kind vertex
// capacities, per spec.md §4.4's "pre-declared capacity" language.
func NewGraph(maxProcessVertices, maxResourceVertices int) *Graph {
	return &Graph{
		maxProcessVertices:  maxProcessVertices,
		maxResourceVertices: maxResourceVertices,
	}
}

func (g *Graph) processCount() int {
	n := 0
	for _, k := range g.kind {
		if k == Process {
			n++
		}
	}
	return n
}

func (g *Graph) resourceCount() int {
	return len(g.kind) - g.processCount()
}

// findVertex does a linear scan for an existing vertex of the given kind
// and external id. Acceptable per spec.md §4.4: V is bounded by the
// process count.
func (g *Graph) findVertex(kind VertexKind, externalID int) (int, bool) {
	for i, k := range g.kind {
		if k == kind && g.externalID[i] == externalID {
			return i, true
		}
	}
	return -1, false
}

func (g *Graph) appendVertex(kind VertexKind, externalID, instances int) int {
	idx := len(g.kind)
	g.kind = append(g.kind, kind)
	g.externalID = append(g.externalID, externalID)
	g.instances = append(g.instances, instances)
	g.resourceLabel = append(g.resourceLabel, "")
	g.adjacency = append(g.adjacency, nil)
	g.color = append(g.color, Unvisited)
	g.parent = append(g.parent, -1)
	return idx
}

// AddProcess inserts or returns the existing vertex for pid. Fails with
// GraphFull if the process-vertex capacity is exhausted.
func (g *Graph) AddProcess(pid int) (int, error) {
	if idx, ok := g.findVertex(Process, pid); ok {
		return idx, nil
	}
	if g.processCount() >= g.maxProcessVertices {
		return -1, kerr.New(kerr.GraphFull, "process vertex capacity %d exhausted", g.maxProcessVertices)
	}
	return g.appendVertex(Process, pid, 0), nil
}

// AddResource inserts a resource vertex, or updates the instance count of
// an existing one, for rid. Fails with GraphFull if the resource-vertex
// capacity is exhausted.
func (g *Graph) AddResource(rid int, instances int) (int, error) {
	if instances < 1 {
		instances = 1
	}
	if idx, ok := g.findVertex(Resource, rid); ok {
		g.instances[idx] = instances
		return idx, nil
	}
	if g.resourceCount() >= g.maxResourceVertices {
		return -1, kerr.New(kerr.GraphFull, "resource vertex capacity %d exhausted", g.maxResourceVertices)
	}
	return g.appendVertex(Resource, rid, instances), nil
}

func (g *Graph) hasEdge(from, to int, kind EdgeKind) bool {
	for _, e := range g.adjacency[from] {
		if e.neighbor == to && e.kind == kind {
			return true
		}
	}
	return false
}

// AddRequestEdge adds a P->R request edge, implicitly creating the
// process/resource endpoints if absent. A duplicate (same source,
// destination, kind) is a no-op.
func (g *Graph) AddRequestEdge(pid, rid int) error {
	p, err := g.AddProcess(pid)
	if err != nil {
		return err
	}
	r, err := g.AddResource(rid, 1)
	if err != nil {
		return err
	}
	if g.hasEdge(p, r, Request) {
		return nil
	}
	g.adjacency[p] = append(g.adjacency[p], edge{neighbor: r, kind: Request})
	g.edgeCount++
	return nil
}

// AddAllocationEdge adds an R->P allocation edge, implicitly creating the
// resource/process endpoints if absent. A duplicate is a no-op.
func (g *Graph) AddAllocationEdge(rid, pid int) error {
	r, err := g.AddResource(rid, 1)
	if err != nil {
		return err
	}
	p, err := g.AddProcess(pid)
	if err != nil {
		return err
	}
	if g.hasEdge(r, p, Allocation) {
		return nil
	}
	g.adjacency[r] = append(g.adjacency[r], edge{neighbor: p, kind: Allocation})
	g.edgeCount++
	return nil
}

// FindByPID returns the vertex index for a process external id.
func (g *Graph) FindByPID(pid int) (int, bool) {
	return g.findVertex(Process, pid)
}

// FindByRID returns the vertex index for a resource external id.
func (g *Graph) FindByRID(rid int) (int, bool) {
	return g.findVertex(Resource, rid)
}

// ResetTraversalState clears the DFS color and parent arrays, allowing a
// fresh cycle-detection run over the same graph value.
func (g *Graph) ResetTraversalState() {
	for i := range g.color {
		g.color[i] = Unvisited
		g.parent[i] = -1
	}
}

// Statistics returns (process count, resource count, edge count).
func (g *Graph) Statistics() (processes, resources, edges int) {
	return g.processCount(), g.resourceCount(), g.edgeCount
}

// VertexCount returns the total number of vertices (process + resource).
func (g *Graph) VertexCount() int {
	return len(g.kind)
}

// VertexKind returns the kind of vertex at index i.
func (g *Graph) VertexKind(i int) VertexKind {
	return g.kind[i]
}

// VertexExternalID returns the external PID/resource-id of vertex i.
func (g *Graph) VertexExternalID(i int) int {
	return g.externalID[i]
}

// VertexInstances returns the instance count of vertex i (0 for a Process
// vertex, >=1 for a Resource vertex).
func (g *Graph) VertexInstances(i int) int {
	return g.instances[i]
}

// ResourceLabel returns the resource-vertex label set by SetResourceLabel,
// or "" if never set or if i is a Process vertex.
func (g *Graph) ResourceLabel(i int) string {
	return g.resourceLabel[i]
}

// SetResourceLabel tags a resource vertex with which analyzer pass
// produced it ("pipe" or "lock"). Purely informational; detection and the
// definite/potential labeling never read it, only recommendation
// generation does.
func (g *Graph) SetResourceLabel(i int, label string) {
	g.resourceLabel[i] = label
}

// Color returns the current DFS color of vertex i.
func (g *Graph) Color(i int) Color {
	return g.color[i]
}

// SetColor sets the DFS color of vertex i.
func (g *Graph) SetColor(i int, c Color) {
	g.color[i] = c
}

// Parent returns the DFS parent of vertex i, or -1 if unset.
func (g *Graph) Parent(i int) int {
	return g.parent[i]
}

// SetParent records the DFS parent of vertex i.
func (g *Graph) SetParent(i, parent int) {
	g.parent[i] = parent
}

// Edges returns the outgoing edges of vertex i, iterated in insertion
// order (the order the dependency analyzer emitted them).
func (g *Graph) Edges(i int) []struct {
	Neighbor int
	Kind     EdgeKind
} {
	out := make([]struct {
		Neighbor int
		Kind     EdgeKind
	}, len(g.adjacency[i]))
	for j, e := range g.adjacency[i] {
		out[j] = struct {
			Neighbor int
			Kind     EdgeKind
		}{Neighbor: e.neighbor, Kind: e.kind}
	}
	return out
}

// ProjectWaitForGraph builds the Wait-For Graph: vertices are only
// processes, with an edge P1 -> P2 iff some resource R has both P1 -> R
// (request) and R -> P2 (allocation). Functionally equivalent to the RAG
// for single-instance resources; spec.md §4.4 offers it as an alternative
// traversal target.
func (g *Graph) ProjectWaitForGraph() *Graph {
	wfg := NewGraph(g.maxProcessVertices, g.maxProcessVertices)
	for i, k := range g.kind {
		if k != Process {
			continue
		}
		pid := g.externalID[i]
		for _, e := range g.adjacency[i] {
			if e.kind != Request || g.kind[e.neighbor] != Resource {
				continue
			}
			resourceIdx := e.neighbor
			for _, re := range g.adjacency[resourceIdx] {
				if re.kind != Allocation || g.kind[re.neighbor] != Process {
					continue
				}
				otherPID := g.externalID[re.neighbor]
				if otherPID == pid {
					continue
				}
				srcIdx, _ := wfg.AddProcess(pid)
				dstIdx, _ := wfg.AddProcess(otherPID)
				if !wfg.hasEdge(srcIdx, dstIdx, Request) {
					wfg.adjacency[srcIdx] = append(wfg.adjacency[srcIdx], edge{neighbor: dstIdx, kind: Request})
					wfg.edgeCount++
				}
			}
		}
	}
	return wfg
}
