package plan

// ComputeTree returns the shape of the recursive doubling tree over nproc
// participants: the number of rounds, the midpoint and the virtual size,
// which is the smallest power of two not less than nproc.
func ComputeTree(nproc int) (log2nproc, midpoint, pow2nproc int) {
	pow2nproc = 1
	for pow2nproc < nproc {
		log2nproc++
		pow2nproc *= 2
	}
	midpoint = pow2nproc / 2
	return
}

// VirtualRankMap maps nproc physical ranks onto a power of two virtual ranks.
// The first virtualNproc-nproc physical ranks play two consecutive virtual
// roles, the others one.
type VirtualRankMap struct {
	nproc        int
	virtualNproc int
	toReal       []int
	toVirtual    [][]int
}

func NewVirtualRankMap(nproc, virtualNproc int) *VirtualRankMap {
	m := &VirtualRankMap{
		nproc:        nproc,
		virtualNproc: virtualNproc,
		toReal:       make([]int, virtualNproc),
		toVirtual:    make([][]int, nproc),
	}
	twoRoles := virtualNproc - nproc
	for v := 0; v < virtualNproc; v++ {
		var r int
		if v < 2*twoRoles {
			r = v / 2
		} else {
			r = v - twoRoles
		}
		m.toReal[v] = r
		m.toVirtual[r] = append(m.toVirtual[r], v)
	}
	return m
}

func (m *VirtualRankMap) Nproc() int        { return m.nproc }
func (m *VirtualRankMap) VirtualNproc() int { return m.virtualNproc }

// RealToVirtual returns the 1 or 2 virtual roles of rank in increasing order.
func (m *VirtualRankMap) RealToVirtual(rank int) []int {
	return m.toVirtual[rank]
}

func (m *VirtualRankMap) VirtualToReal(v int) int {
	return m.toReal[v]
}

// Colocated reports whether two virtual ranks are played by the same physical rank.
func (m *VirtualRankMap) Colocated(u, v int) bool {
	return m.toReal[u] == m.toReal[v]
}
