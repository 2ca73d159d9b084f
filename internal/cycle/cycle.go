// Package cycle enumerates simple directed cycles in a Resource
// Allocation Graph (internal/rag) using colored DFS with an explicit
// stack — spec.md §9 calls out recursive DFS as a stack-overflow risk at
// the declared maximum vertex count, so the traversal here never recurses.
package cycle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lazytrace/deadlockd/internal/rag"
)

// Cycle is the closed vertex sequence spec.md §3 specifies, plus the
// derived partition into process and resource external ids (excluding
// the closing duplicate).
type Cycle struct {
	Path        []int
	ProcessIDs  []int
	ResourceIDs []int
}

// Length is the number of edges in the cycle (path length minus the
// closing duplicate).
func (c Cycle) Length() int {
	if len(c.Path) == 0 {
		return 0
	}
	return len(c.Path) - 1
}

// StartVertex is the vertex index the cycle was recorded as starting
// from (the back edge's ancestor).
func (c Cycle) StartVertex() int {
	if len(c.Path) == 0 {
		return -1
	}
	return c.Path[0]
}

// String renders a cycle as a one-line summary for log lines, grounded on
// the teacher's GetDisplayStrings convention of giving domain objects a
// terse debug rendering rather than leaning on the default struct dump.
func (c Cycle) String() string {
	return fmt.Sprintf(
		"cycle{processes=[%s] resources=[%s] length=%d}",
		joinInts(c.ProcessIDs), joinInts(c.ResourceIDs), c.Length(),
	)
}

func joinInts(values []int) string {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = strconv.Itoa(v)
	}
	return strings.Join(strs, ",")
}

// frame is one explicit-stack DFS activation record: the vertex being
// visited and the index of the next outgoing edge to examine.
type frame struct {
	vertex  int
	edgeIdx int
}

// Detect enumerates all simple directed cycles in g, iterating root
// vertices in ascending index order and, within each vertex, outgoing
// edges in adjacency order — both orderings spec.md §5 declares
// observable.
func Detect(g *rag.Graph) []Cycle {
	g.ResetTraversalState()

	var cycles []Cycle
	for root := 0; root < g.VertexCount(); root++ {
		if g.Color(root) != rag.Unvisited {
			continue
		}
		g.SetParent(root, -1)
		cycles = append(cycles, dfs(g, root)...)
	}
	return dedup(cycles)
}

func dfs(g *rag.Graph, root int) []Cycle {
	var cycles []Cycle
	stack := []frame{{vertex: root, edgeIdx: 0}}
	g.SetColor(root, rag.OnStack)

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		edges := g.Edges(top.vertex)

		if top.edgeIdx >= len(edges) {
			g.SetColor(top.vertex, rag.Done)
			stack = stack[:len(stack)-1]
			continue
		}

		e := edges[top.edgeIdx]
		top.edgeIdx++

		switch g.Color(e.Neighbor) {
		case rag.Unvisited:
			g.SetParent(e.Neighbor, top.vertex)
			g.SetColor(e.Neighbor, rag.OnStack)
			stack = append(stack, frame{vertex: e.Neighbor, edgeIdx: 0})
		case rag.OnStack:
			if c, ok := reconstructCycle(g, top.vertex, e.Neighbor); ok {
				cycles = append(cycles, c)
			}
		case rag.Done:
			// ignore
		}
	}

	return dedup(cycles)
}

// reconstructCycle walks the parent chain from current backward until
// reaching ancestor, per spec.md §4.5. A self-loop (current == ancestor)
// yields the closed path [v, v], whose Length is 1. If the parent chain never reaches
// ancestor the back edge is dropped as invalid.
func reconstructCycle(g *rag.Graph, current, ancestor int) (Cycle, bool) {
	if current == ancestor {
		return buildCycle(g, []int{current, ancestor})
	}

	chain := []int{current}
	v := current
	for v != ancestor {
		p := g.Parent(v)
		if p == -1 {
			return Cycle{}, false
		}
		chain = append(chain, p)
		v = p
	}
	// chain is now current,...,ancestor. The cycle record is
	// ancestor,...,current,ancestor: reverse the chain, then close it.
	reversed := make([]int, len(chain))
	for i, x := range chain {
		reversed[len(chain)-1-i] = x
	}
	path := append(reversed, ancestor)
	return buildCycle(g, path)
}

func buildCycle(g *rag.Graph, path []int) (Cycle, bool) {
	var pids, rids []int
	for _, v := range path[:len(path)-1] {
		switch g.VertexKind(v) {
		case rag.Process:
			pids = append(pids, g.VertexExternalID(v))
		case rag.Resource:
			rids = append(rids, g.VertexExternalID(v))
		}
	}
	return Cycle{Path: path, ProcessIDs: pids, ResourceIDs: rids}, true
}

// canonicalRotation rotates a cycle's path so the minimum vertex index
// (excluding the closing duplicate) is first, the optimization spec.md §9
// recommends in place of the quadratic rotation-equivalence test.
func canonicalRotation(path []int) []int {
	body := path[:len(path)-1]
	if len(body) == 0 {
		return path
	}
	minIdx := 0
	for i, v := range body {
		if v < body[minIdx] {
			minIdx = i
		}
	}
	rotated := make([]int, 0, len(path))
	for i := 0; i < len(body); i++ {
		rotated = append(rotated, body[(minIdx+i)%len(body)])
	}
	rotated = append(rotated, rotated[0])
	return rotated
}

func canonicalKey(path []int) string {
	rotated := canonicalRotation(path)
	key := make([]byte, 0, len(rotated)*8)
	for _, v := range rotated {
		key = append(key, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), ',')
	}
	return string(key)
}

func dedup(cycles []Cycle) []Cycle {
	seen := make(map[string]bool, len(cycles))
	out := make([]Cycle, 0, len(cycles))
	for _, c := range cycles {
		key := canonicalKey(c.Path)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// Validate checks that a cycle record's consecutive pairs are real edges
// in g and the path closes, per spec.md §4.5's validation predicate.
func Validate(c Cycle, g *rag.Graph) bool {
	if len(c.Path) < 2 {
		return false
	}
	if c.Path[0] != c.Path[len(c.Path)-1] {
		return false
	}
	for i := 0; i < len(c.Path)-1; i++ {
		from, to := c.Path[i], c.Path[i+1]
		if !hasAnyEdge(g, from, to) {
			return false
		}
	}
	return true
}

func hasAnyEdge(g *rag.Graph, from, to int) bool {
	for _, e := range g.Edges(from) {
		if e.Neighbor == to {
			return true
		}
	}
	return false
}
