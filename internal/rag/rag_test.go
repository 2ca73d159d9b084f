package rag

import (
	"testing"

	"github.com/lazytrace/deadlockd/internal/kerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexIdentityIsAFunction(t *testing.T) {
	g := NewGraph(10, 10)

	i1, err := g.AddProcess(1001)
	require.NoError(t, err)
	i2, err := g.AddProcess(1001)
	require.NoError(t, err)
	assert.Equal(t, i1, i2)

	r1, err := g.AddResource(1, 1)
	require.NoError(t, err)
	r2, err := g.AddResource(1, 1)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestEdgeDeduplication(t *testing.T) {
	g := NewGraph(10, 10)

	require.NoError(t, g.AddRequestEdge(1001, 1))
	require.NoError(t, g.AddRequestEdge(1001, 1))
	require.NoError(t, g.AddAllocationEdge(2, 1001))
	require.NoError(t, g.AddAllocationEdge(2, 1001))

	_, _, edges := g.Statistics()
	assert.Equal(t, 2, edges)
}

func TestBipartiteTyping(t *testing.T) {
	g := NewGraph(10, 10)
	require.NoError(t, g.AddRequestEdge(1001, 1))
	require.NoError(t, g.AddAllocationEdge(1, 1001))

	pIdx, _ := g.FindByPID(1001)
	rIdx, _ := g.FindByRID(1)

	for _, e := range g.Edges(pIdx) {
		assert.Equal(t, Request, e.Kind)
		assert.Equal(t, Resource, g.VertexKind(e.Neighbor))
	}
	for _, e := range g.Edges(rIdx) {
		assert.Equal(t, Allocation, e.Kind)
		assert.Equal(t, Process, g.VertexKind(e.Neighbor))
	}
}

func TestResourceInstancesDefaultAndUpdate(t *testing.T) {
	g := NewGraph(10, 10)
	idx, err := g.AddResource(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, g.VertexInstances(idx))

	idx2, err := g.AddResource(1, 5)
	require.NoError(t, err)
	assert.Equal(t, idx, idx2)
	assert.Equal(t, 5, g.VertexInstances(idx))
}

func TestProcessVertexHasZeroInstances(t *testing.T) {
	g := NewGraph(10, 10)
	idx, err := g.AddProcess(1001)
	require.NoError(t, err)
	assert.Equal(t, 0, g.VertexInstances(idx))
}

func TestGraphFullOnCapacityExhausted(t *testing.T) {
	g := NewGraph(1, 10)
	_, err := g.AddProcess(1001)
	require.NoError(t, err)
	_, err = g.AddProcess(1002)
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.GraphFull))

	processes, _, _ := g.Statistics()
	assert.Equal(t, 1, processes)
}

func TestResetTraversalState(t *testing.T) {
	g := NewGraph(10, 10)
	idx, err := g.AddProcess(1001)
	require.NoError(t, err)
	g.SetColor(idx, OnStack)
	g.SetParent(idx, 5)

	g.ResetTraversalState()
	assert.Equal(t, Unvisited, g.Color(idx))
	assert.Equal(t, -1, g.Parent(idx))
}

func TestProjectWaitForGraph(t *testing.T) {
	g := NewGraph(10, 10)
	require.NoError(t, g.AddRequestEdge(1001, 1))
	require.NoError(t, g.AddAllocationEdge(1, 1002))

	wfg := g.ProjectWaitForGraph()
	p1, ok := wfg.FindByPID(1001)
	require.True(t, ok)
	p2, ok := wfg.FindByPID(1002)
	require.True(t, ok)

	found := false
	for _, e := range wfg.Edges(p1) {
		if e.Neighbor == p2 {
			found = true
		}
	}
	assert.True(t, found)
}
