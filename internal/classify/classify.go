// Package classify is the deadlock classifier: it labels each detected
// cycle (internal/cycle) definite or potential against the Resource
// Allocation Graph (internal/rag) it was found in, and drives the
// best-effort explanation and recommendation generators that consume
// pkg/i18n's message catalog.
package classify

import (
	"fmt"

	"github.com/lazytrace/deadlockd/internal/cycle"
	"github.com/lazytrace/deadlockd/internal/kerr"
	"github.com/lazytrace/deadlockd/internal/rag"
	"github.com/lazytrace/deadlockd/pkg/i18n"
)

// State is the per-cycle classification state machine spec.md §4.6
// names: Unclassified is the only non-terminal state.
type State int

const (
	Unclassified State = iota
	Definite
	Potential
)

func (s State) String() string {
	switch s {
	case Definite:
		return "Definite"
	case Potential:
		return "Potential"
	default:
		return "Unclassified"
	}
}

// Classified pairs a cycle with its terminal state.
type Classified struct {
	Cycle cycle.Cycle
	State State
}

// Result is the classifier's output: the chosen cycle set (definite if
// any exist, else potential), the implicated PID union, and the
// best-effort explanation/recommendation strings.
type Result struct {
	Detected        bool
	Cycles          []Classified
	PIDs            []int
	Explanations    []string
	Recommendations []string
}

// Classify implements spec.md §4.6: every cycle is labeled by a pure
// function of itself and the graph, then the report's cycle set is
// chosen (definite over potential), and the PID union and best-effort
// strings are derived. processesScanned feeds the no-deadlock explanation
// only; it plays no role in classification itself. A classification-
// allocation failure (practically unreachable in Go, since there is no
// failing allocation step in this pure labeling — kept for faithfulness
// to the spec's taxonomy) aborts the pass; explanation/recommendation
// failures are swallowed.
func Classify(cycles []cycle.Cycle, g *rag.Graph, processesScanned int, catalog *i18n.Catalog) (Result, error) {
	classified := make([]Classified, 0, len(cycles))
	for _, c := range cycles {
		state, err := classifyOne(c, g)
		if err != nil {
			return Result{}, err
		}
		classified = append(classified, Classified{Cycle: c, State: state})
	}

	chosen := chooseCycleSet(classified)
	pids := unionPIDs(chosen)

	result := Result{
		Detected: len(chosen) > 0,
		Cycles:   chosen,
		PIDs:     pids,
	}

	result.Explanations = generateExplanations(chosen, g, processesScanned, catalog)
	result.Recommendations = generateRecommendations(chosen, pids, g, catalog)

	return result, nil
}

func classifyOne(c cycle.Cycle, g *rag.Graph) (State, error) {
	if len(c.Path) == 0 {
		return Unclassified, kerr.New(kerr.InvalidArgument, "cycle has empty path")
	}
	for _, v := range c.Path[:len(c.Path)-1] {
		if v < 0 || v >= g.VertexCount() {
			continue // missing/inconsistent vertex: empty contribution, no crash
		}
		if g.VertexKind(v) == rag.Resource && g.VertexInstances(v) != 1 {
			return Potential, nil
		}
	}
	return Definite, nil
}

// chooseCycleSet implements spec.md §4.6's selection rule: definite
// cycles win if any exist; otherwise potential cycles; a cycle-free pass
// declares no deadlock.
func chooseCycleSet(classified []Classified) []Classified {
	var definite, potential []Classified
	for _, c := range classified {
		switch c.State {
		case Definite:
			definite = append(definite, c)
		case Potential:
			potential = append(potential, c)
		}
	}
	if len(definite) > 0 {
		return definite
	}
	return potential
}

func unionPIDs(classified []Classified) []int {
	seen := make(map[int]bool)
	var pids []int
	for _, c := range classified {
		for _, pid := range c.Cycle.ProcessIDs {
			if !seen[pid] {
				seen[pid] = true
				pids = append(pids, pid)
			}
		}
	}
	return pids
}

func generateExplanations(classified []Classified, g *rag.Graph, processesScanned int, catalog *i18n.Catalog) []string {
	if catalog == nil {
		return nil
	}
	if len(classified) == 0 {
		return []string{fmt.Sprintf(catalog.NoDeadlockDetected, processesScanned)}
	}
	explanations := make([]string, 0, len(classified))
	for _, c := range classified {
		var header string
		if c.State == Definite {
			header = fmt.Sprintf(catalog.CycleDefiniteHeader, c.Cycle.ProcessIDs, c.Cycle.ResourceIDs)
		} else {
			header = fmt.Sprintf(catalog.CyclePotentialHeader, c.Cycle.ProcessIDs, c.Cycle.ResourceIDs)
		}
		explanations = append(explanations, header)
		explanations = append(explanations, waitHoldLines(c.Cycle, g, catalog)...)
	}
	return explanations
}

// waitHoldLines renders one WaitsForResource/HeldByProcess line per edge in
// the cycle's path, alternating process->resource and resource->process
// hops the way the path is laid out.
func waitHoldLines(c cycle.Cycle, g *rag.Graph, catalog *i18n.Catalog) []string {
	var lines []string
	for i := 0; i < len(c.Path)-1; i++ {
		from, to := c.Path[i], c.Path[i+1]
		if from < 0 || from >= g.VertexCount() || to < 0 || to >= g.VertexCount() {
			continue
		}
		switch {
		case g.VertexKind(from) == rag.Process && g.VertexKind(to) == rag.Resource:
			lines = append(lines, fmt.Sprintf(catalog.WaitsForResource, g.VertexExternalID(from), g.VertexExternalID(to)))
		case g.VertexKind(from) == rag.Resource && g.VertexKind(to) == rag.Process:
			lines = append(lines, fmt.Sprintf(catalog.HeldByProcess, g.VertexExternalID(from), g.VertexExternalID(to)))
		}
	}
	return lines
}

func generateRecommendations(classified []Classified, pids []int, g *rag.Graph, catalog *i18n.Catalog) []string {
	if catalog == nil {
		return nil
	}
	if len(classified) == 0 {
		return []string{catalog.RecommendNoActionTaken}
	}

	recs := []string{fmt.Sprintf(catalog.RecommendTerminate, pids)}

	hasLock, hasPipe := false, false
	for _, c := range classified {
		for _, rid := range c.Cycle.ResourceIDs {
			idx, ok := g.FindByRID(rid)
			if !ok {
				continue
			}
			switch g.ResourceLabel(idx) {
			case "lock":
				hasLock = true
			case "pipe":
				hasPipe = true
			}
		}
	}
	if hasLock {
		recs = append(recs, fmt.Sprintf(catalog.RecommendInspectLocks, pids))
	}
	if hasPipe {
		recs = append(recs, fmt.Sprintf(catalog.RecommendInspectPipes, pids))
	}
	return recs
}
