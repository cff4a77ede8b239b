package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_TopoOrder(t *testing.T) {
	g := New(4)
	g.AddEdge(0, 2)
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	order, ok := g.TopoOrder()
	assert.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3}, order)
	assert.Equal(t, []int{0, 1}, g.Roots())

	g.AddEdge(3, 1)
	_, ok = g.TopoOrder()
	assert.False(t, ok)
}

func Test_SelfLoop_IsCycle(t *testing.T) {
	g := New(2)
	g.AddEdge(1, 1)
	assert.True(t, g.IsSelfLoop(1))
	_, ok := g.TopoOrder()
	assert.False(t, ok)
}

func Test_Digest(t *testing.T) {
	a := New(3)
	a.AddEdge(0, 1)
	a.AddEdge(0, 2)
	b := New(3)
	b.AddEdge(0, 2)
	b.AddEdge(0, 1)
	assert.Equal(t, a.Digest(), b.Digest())
	assert.Len(t, a.Digest(), 64)
	b.AddEdge(1, 2)
	assert.NotEqual(t, a.Digest(), b.Digest())
	assert.Equal(t, "[3]{(0->2)(0->1)(1->2)}", b.DebugString())
}
