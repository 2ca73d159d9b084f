// Package depgraph is the dependency analyzer: the hardest piece per
// spec.md §4.3. It cross-joins the snapshot list (internal/snapshot) to
// derive hold/wait relations over pipes and locks, then emits them as
// edges into the Resource Allocation Graph (internal/rag).
package depgraph

import (
	"github.com/lazytrace/deadlockd/internal/kview"
	"github.com/lazytrace/deadlockd/internal/snapshot"
)

// pipeModulus is the fixed constant P spec.md §3/§9 names for deriving a
// compact pipe resource id from an inode: collisions are possible and
// accepted, per the spec's own open-question note.
const pipeModulus = 1000000

// PipeResourceID derives the resource id for a pipe inode.
func PipeResourceID(inode uint64) int {
	return int(inode % pipeModulus)
}

// Capacities bounds the per-process waiting-PID and waiting-resource
// record counts; overflow beyond these is silently truncated, per
// spec.md §4.3.
type Capacities struct {
	MaxWaitingPIDsPerProcess      int
	MaxWaitingResourcesPerProcess int
}

// DefaultCapacities matches pkg/config's GetDefaultConfig values.
func DefaultCapacities() Capacities {
	return Capacities{MaxWaitingPIDsPerProcess: 64, MaxWaitingResourcesPerProcess: 64}
}

// Edge is one emitted hold/wait relation, tagged Request (P->R) or
// Allocation (R->P), in the (snapshot-index x resource-index) order
// spec.md §5 declares observable. Resource names which pass produced the
// resource id ("pipe" or "lock"); it is informational only, consumed by
// the classifier to pick a resource-specific recommendation.
type Edge struct {
	Kind     EdgeKind
	PID      int
	RID      int
	Resource string
}

type EdgeKind int

const (
	Request EdgeKind = iota
	Allocation
)

// Resource kind labels, matching internal/rag.Graph.SetResourceLabel's
// expected values.
const (
	ResourcePipe = "pipe"
	ResourceLock = "lock"
)

// WaitsOn records, per process, the set of PIDs it is known to be
// waiting on — a downstream hint for explanation generation, per
// spec.md §3.
type WaitsOn map[int][]int

// Analyze runs the pipe pass and the lock pass over snaps and returns the
// edges to feed into the RAG plus the waits-on-PID hints. systemLocks is
// the system-wide lock table the lock pass consults per spec.md §4.3
// (kview.Reader.ReadSystemLocks), independent of any one process's own
// held-lock list.
func Analyze(snaps []snapshot.Snapshot, systemLocks []kview.LockRecord, cap Capacities) ([]Edge, WaitsOn) {
	var edges []Edge
	waitsOn := make(WaitsOn)

	edges = append(edges, pipePass(snaps, cap, waitsOn)...)
	edges = append(edges, lockPass(snaps, systemLocks, cap, waitsOn)...)

	return edges, waitsOn
}

// pipePass implements spec.md §4.3's pipe pass: for each ordered pair of
// distinct snapshots sharing a pipe inode, emit allocation edges for
// holders and request edges for waiters.
func pipePass(snaps []snapshot.Snapshot, cap Capacities, waitsOn WaitsOn) []Edge {
	var edges []Edge

	for i := range snaps {
		a := &snaps[i]
		for j := range snaps {
			if i == j {
				continue
			}
			b := &snaps[j]

			sharedInodes := sharedPipeInodes(a, b)
			for _, inode := range sharedInodes {
				rid := PipeResourceID(inode)

				// both hold endpoints of this pipe
				edges = append(edges, Edge{Kind: Allocation, PID: a.PID, RID: rid, Resource: ResourcePipe})
				edges = append(edges, Edge{Kind: Allocation, PID: b.PID, RID: rid, Resource: ResourcePipe})

				if a.IsBlockedOnPipe {
					edges = append(edges, Edge{Kind: Request, PID: a.PID, RID: rid, Resource: ResourcePipe})
					addWaitsOn(waitsOn, a.PID, b.PID, cap.MaxWaitingPIDsPerProcess)
				}
				if b.IsBlockedOnPipe {
					edges = append(edges, Edge{Kind: Request, PID: b.PID, RID: rid, Resource: ResourcePipe})
					addWaitsOn(waitsOn, b.PID, a.PID, cap.MaxWaitingPIDsPerProcess)
				}
			}
		}
	}

	return truncateResourceEdges(edges, cap.MaxWaitingResourcesPerProcess)
}

func sharedPipeInodes(a, b *snapshot.Snapshot) []uint64 {
	bInodes := make(map[uint64]bool, len(b.PipeEndpoints))
	for _, e := range b.PipeEndpoints {
		bInodes[e.Inode] = true
	}

	seen := make(map[uint64]bool)
	var shared []uint64
	for _, e := range a.PipeEndpoints {
		if bInodes[e.Inode] && !seen[e.Inode] {
			shared = append(shared, e.Inode)
			seen[e.Inode] = true
		}
	}
	return shared
}

// lockPass implements spec.md §4.3's lock pass: each process blocked on a
// lock consults the system-wide lock table for blocking locks it does
// not own; its own held locks are materialized as allocation edges.
func lockPass(snaps []snapshot.Snapshot, systemLocks []kview.LockRecord, cap Capacities, waitsOn WaitsOn) []Edge {
	var edges []Edge

	for i := range snaps {
		a := &snaps[i]

		for _, lock := range a.HeldLocks {
			edges = append(edges, Edge{Kind: Allocation, PID: a.PID, RID: lock.SeqID, Resource: ResourceLock})
		}

		if !a.IsBlockedOnLock {
			continue
		}

		waitCount := 0
		for _, lock := range systemLocks {
			if !lock.IsWrite || lock.OwningPID == a.PID {
				continue
			}
			if waitCount >= cap.MaxWaitingPIDsPerProcess {
				break
			}
			edges = append(edges, Edge{Kind: Request, PID: a.PID, RID: lock.SeqID, Resource: ResourceLock})
			addWaitsOn(waitsOn, a.PID, lock.OwningPID, cap.MaxWaitingPIDsPerProcess)
			waitCount++
		}
	}

	return truncateResourceEdges(edges, cap.MaxWaitingResourcesPerProcess)
}

func addWaitsOn(waitsOn WaitsOn, pid, waitsOnPID, maxPerProcess int) {
	existing := waitsOn[pid]
	if len(existing) >= maxPerProcess {
		return
	}
	for _, p := range existing {
		if p == waitsOnPID {
			return
		}
	}
	waitsOn[pid] = append(existing, waitsOnPID)
}

// truncateResourceEdges enforces the per-process waiting-resource-record
// cap by dropping excess Request edges past the bound, per process,
// preserving emission order.
func truncateResourceEdges(edges []Edge, maxPerProcess int) []Edge {
	counts := make(map[int]int)
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.Kind == Request {
			counts[e.PID]++
			if counts[e.PID] > maxPerProcess {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
