package graph

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

type Vertices []int

func (vs *Vertices) Append(v int) {
	*vs = append(*vs, v)
}

type Node struct {
	Rank     int
	SelfLoop bool
	Prevs    Vertices
	Nexts    Vertices
}

func (n *Node) isIsolated() bool {
	return len(n.Prevs) == 0 && len(n.Nexts) == 0
}

// Graph represents a graph of integers numbered from 0 to n - 1.
type Graph struct {
	Nodes []Node
}

func New(n int) *Graph {
	var nodes []Node
	for i := 0; i < n; i++ {
		nodes = append(nodes, Node{Rank: i})
	}
	return &Graph{
		Nodes: nodes,
	}
}

func (g *Graph) AddEdge(i, j int) {
	if i == j {
		g.Nodes[i].SelfLoop = true
		return
	}
	g.Nodes[i].Nexts.Append(j)
	g.Nodes[j].Prevs.Append(i)
}

func (g Graph) IsSelfLoop(i int) bool {
	return g.Nodes[i].SelfLoop
}

func (g Graph) IsIsolated(i int) bool {
	return g.Nodes[i].isIsolated()
}

func (g Graph) Prevs(i int) []int {
	return g.Nodes[i].Prevs
}

func (g Graph) Nexts(i int) []int {
	return g.Nodes[i].Nexts
}

// Roots returns the vertices without predecessors.
func (g Graph) Roots() []int {
	var rs []int
	for i, n := range g.Nodes {
		if len(n.Prevs) == 0 {
			rs = append(rs, i)
		}
	}
	return rs
}

// TopoOrder returns a topological order of the vertices, or false if the
// graph has a cycle (self loops included).
func (g Graph) TopoOrder() ([]int, bool) {
	indeg := make([]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.SelfLoop {
			return nil, false
		}
		indeg[i] = len(n.Prevs)
	}
	q := g.Roots()
	var order []int
	for len(q) > 0 {
		i := q[0]
		q = q[1:]
		order = append(order, i)
		for _, j := range g.Nodes[i].Nexts {
			if indeg[j]--; indeg[j] == 0 {
				q = append(q, j)
			}
		}
	}
	return order, len(order) == len(g.Nodes)
}

func (g *Graph) DebugString() string {
	b := &bytes.Buffer{}
	fmt.Fprintf(b, "[%d]{", len(g.Nodes))
	for i := range g.Nodes {
		if g.IsSelfLoop(i) {
			fmt.Fprintf(b, "(%d)", i)
		}
	}
	for i, n := range g.Nodes {
		for _, j := range n.Nexts {
			fmt.Fprintf(b, "(%d->%d)", i, j)
		}
	}
	fmt.Fprintf(b, "}")
	return b.String()
}

func (g *Graph) DigestBytes() []byte {
	b := &bytes.Buffer{}
	w32 := func(x int32) { binary.Write(b, binary.LittleEndian, x) }
	w32(int32(len(g.Nodes)))
	for _, node := range g.Nodes {
		deg := len(node.Nexts)
		vs := make([]int, deg)
		copy(vs, node.Nexts)
		sort.Ints(vs)
		w32(b2i(node.SelfLoop))
		w32(int32(deg))
		for _, j := range vs {
			w32(int32(j))
		}
	}
	return b.Bytes()
}

// Digest returns the hex encoded BLAKE2b-256 sum of DigestBytes.
func (g *Graph) Digest() string {
	sum := blake2b.Sum256(g.DigestBytes())
	return hex.EncodeToString(sum[:])
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
