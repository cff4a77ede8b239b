package collective

import (
	"github.com/lsds/dagcoll/srcs/go/base"
	"github.com/lsds/dagcoll/srcs/go/log"
	"github.com/lsds/dagcoll/srcs/go/plan"
	"github.com/lsds/dagcoll/srcs/go/slicer"
	"github.com/pkg/errors"
)

// Result is handed to the issuing layer once a collective is over. Buffer
// is the final result for participants that receive one, nil otherwise.
type Result struct {
	Tag    int
	Rank   int
	Buffer *base.Vector
	Err    error
}

// ReduceActor builds and runs a reduce or allreduce as recursive halving
// over a power of two of virtual ranks, followed by the mirrored gather.
type ReduceActor struct {
	*DagActor

	root      int
	allreduce bool
	w         base.Workspace
	nelems    int

	log2nproc    int
	midpoint     int
	virtualNproc int
	rankMap      *plan.VirtualRankMap

	ownsResult bool
	callback   func(Result)
}

// NewReduceActor prepares a reduce of w.SendBuf to root, or an allreduce
// when allreduce is set, in which case root is ignored. w.RecvBuf receives
// the result on root (on every rank for an allreduce) and may alias
// w.SendBuf. sl may be nil to use a flat slicer for w.OP.
func NewReduceActor(cfg Config, t Transport, comm plan.Communicator, tag, root int, allreduce bool,
	w base.Workspace, sl slicer.Slicer, callback func(Result)) (*ReduceActor, error) {
	if allreduce {
		root = 0
	}
	if root < 0 || root >= comm.Size() {
		return nil, errors.Errorf("invalid root %d for %d ranks", root, comm.Size())
	}
	if w.SendBuf == nil {
		return nil, errors.New("reduce without send buffer")
	}
	receives := allreduce || comm.Rank() == root
	if receives {
		if w.RecvBuf == nil {
			return nil, errors.Errorf("rank %d needs a receive buffer", comm.Rank())
		}
		if w.RecvBuf.Count != w.SendBuf.Count || w.RecvBuf.Type != w.SendBuf.Type {
			return nil, errors.Errorf("inconsistent buffers %d:%s vs %d:%s",
				w.RecvBuf.Count, w.RecvBuf.Type, w.SendBuf.Count, w.SendBuf.Type)
		}
	}
	if sl == nil {
		var err error
		if sl, err = slicer.ForOP(w.OP, w.SendBuf.Type); err != nil {
			return nil, err
		}
	}
	size := sl.BufferSize(w.SendBuf.Count)
	if len(w.SendBuf.Data) < size || (receives && len(w.RecvBuf.Data) < size) {
		return nil, errors.Errorf("%d elements need buffers of %d bytes", w.SendBuf.Count, size)
	}
	r := &ReduceActor{
		DagActor:  NewDagActor(cfg, t, comm, tag, sl),
		root:      root,
		allreduce: allreduce,
		w:         w,
		nelems:    w.SendBuf.Count,
		callback:  callback,
	}
	r.log2nproc, r.midpoint, r.virtualNproc = plan.ComputeTree(comm.Size())
	r.rankMap = plan.NewVirtualRankMap(comm.Size(), r.virtualNproc)
	r.SetReducingRounds(r.log2nproc)
	r.OnDone(r.finalize)
	return r, nil
}

// RelayRound is the round of the extra step that moves the result to a non-zero root.
func (r *ReduceActor) RelayRound() int {
	return 2 * r.log2nproc
}

func (r *ReduceActor) receivesResult() bool {
	return r.allreduce || r.me == r.root
}

// initBuffers allocates the scratch buffers and seeds the result buffer with the input.
func (r *ReduceActor) initBuffers() {
	sl := r.slicer
	packedSize := r.nelems * sl.ElementSize()
	b := Buffers{Recv: r.transport.AllocateWorkspace(packedSize)}
	if !sl.Contiguous() {
		b.Send = r.transport.AllocateWorkspace(packedSize)
	}
	if r.receivesResult() {
		b.Result = r.w.RecvBuf.Data
	} else {
		b.Result = r.transport.AllocateWorkspace(sl.BufferSize(r.nelems))
		r.ownsResult = true
	}
	if !r.receivesResult() || !r.w.IsInplace() {
		copy(b.Result, r.w.SendBuf.Data)
	}
	r.SetBuffers(b)
}

func (r *ReduceActor) finalize(err error) {
	b := r.Buffers()
	if err == nil {
		// a failed collective may still have transfers in flight on the scratch buffers
		r.transport.FreeWorkspace(b.Recv)
		if b.Send != nil {
			r.transport.FreeWorkspace(b.Send)
		}
		if r.ownsResult {
			r.transport.FreeWorkspace(b.Result)
		}
	}
	res := Result{Tag: r.tag, Rank: r.me, Err: err}
	if err == nil && r.receivesResult() {
		res.Buffer = r.w.RecvBuf
	}
	if r.callback != nil {
		r.callback(res)
	}
}

// chain links the rounds of one virtual role: every action of a round
// depends on every action of the previous round of the same role.
type chain struct {
	prev []ActionID
}

func (r *ReduceActor) addRound(c *chain, as ...*Action) error {
	var ids []ActionID
	for _, a := range as {
		id, err := r.AddAction(a)
		if err != nil {
			return err
		}
		for _, p := range c.prev {
			if err := r.AddDependency(p, id); err != nil {
				return err
			}
		}
		ids = append(ids, id)
	}
	c.prev = ids
	return nil
}

func (r *ReduceActor) skip(u, v int) bool {
	return r.rankMap.Colocated(u, v) && !r.cfg.LoopbackColocated
}

// complement returns the part of whole not covered by part, which is
// either the first or the second half of whole.
func complement(whole, part plan.Interval) plan.Interval {
	if part.Begin == whole.Begin {
		return plan.Interval{Begin: part.End, End: whole.End}
	}
	return plan.Interval{Begin: whole.Begin, End: part.Begin}
}

// BuildGraph populates the DAG of this rank.
func (r *ReduceActor) BuildGraph() error {
	var terminals []ActionID
	for _, v := range r.rankMap.RealToVirtual(r.me) {
		c, err := r.buildRole(v)
		if err != nil {
			return err
		}
		terminals = append(terminals, c.prev...)
	}
	if r.allreduce || r.root == 0 || len(terminals) == 0 {
		return nil
	}
	join, err := r.AddJoin(r.RelayRound()-1, terminals...)
	if err != nil {
		return err
	}
	return r.buildRelay(join)
}

// buildRole adds the fan-out and fan-in rounds of virtual rank v and
// returns the chain left at its last round.
func (r *ReduceActor) buildRole(v int) (*chain, error) {
	c := &chain{}
	m := r.rankMap
	held := make([]plan.Interval, r.log2nproc+1)
	held[0] = plan.Interval{Begin: 0, End: r.nelems}
	for i, gap := 0, 1; i < r.log2nproc; i, gap = i+1, gap*2 {
		partner := v ^ gap
		first, second := held[i].Halve()
		keep, give := first, second
		if v&gap != 0 {
			keep, give = second, first
		}
		held[i+1] = keep
		if r.skip(v, partner) {
			continue
		}
		p := m.VirtualToReal(partner)
		send := NewSend(i, v, partner, p, give.Begin, give.Len(), SendInPlace)
		recv := NewRecv(i, v, partner, p, keep.Begin, keep.Len(), RecvReduce)
		if err := r.addRound(c, send, recv); err != nil {
			return nil, err
		}
	}

	rounds := r.log2nproc
	if !r.allreduce && r.root != 0 {
		rounds--
	}
	for j := 0; j < rounds; j++ {
		i := r.log2nproc - 1 - j
		gap := 1 << i
		if !r.allreduce && v >= 2*gap {
			break
		}
		partner := v ^ gap
		if r.skip(v, partner) {
			continue
		}
		round := r.log2nproc + j
		p := m.VirtualToReal(partner)
		mine := held[i+1]
		theirs := complement(held[i], mine)
		send := NewSend(round, v, partner, p, mine.Begin, mine.Len(), SendInPlace)
		recv := NewRecv(round, v, partner, p, theirs.Begin, theirs.Len(), RecvInPlace)
		var err error
		switch {
		case r.allreduce:
			err = r.addRound(c, send, recv)
		case v < gap:
			err = r.addRound(c, recv)
		default:
			err = r.addRound(c, send)
		}
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// buildRelay moves the two halves held by virtual ranks 0 and 1 to root
// once the join of this rank is done. When both halves live on the same
// rank it is sent as one message.
func (r *ReduceActor) buildRelay(join ActionID) error {
	m := r.rankMap
	round := r.RelayRound()
	first, second := plan.Interval{Begin: 0, End: r.nelems}.Halve()
	halves := []struct {
		v     int
		owner int
		part  plan.Interval
	}{
		{0, m.VirtualToReal(0), first},
		{1, m.VirtualToReal(1), second},
	}
	if halves[0].owner == halves[1].owner {
		halves[0].part = first.Union(second)
		halves = halves[:1]
	}
	rootV := m.RealToVirtual(r.root)[0]
	for _, h := range halves {
		if h.owner == r.root {
			continue
		}
		var a *Action
		switch r.me {
		case h.owner:
			a = NewSend(round, h.v, rootV, r.root, h.part.Begin, h.part.Len(), SendInPlace)
		case r.root:
			a = NewRecv(round, rootV, h.v, h.owner, h.part.Begin, h.part.Len(), RecvInPlace)
		default:
			continue
		}
		id, err := r.AddAction(a)
		if err != nil {
			return err
		}
		if err := r.AddDependency(join, id); err != nil {
			return err
		}
	}
	return nil
}

// Start allocates the buffers and starts the graph. Nothing is allocated
// when the actor was already started or the graph is malformed.
func (r *ReduceActor) Start() error {
	if r.started {
		return errAlreadyStarted
	}
	if err := r.validate(); err != nil {
		return err
	}
	r.initBuffers()
	log.Debugf("Rank %s tag=%d starting %s of %d elements over %d virtual ranks",
		r.rankStr(), r.tag, r.name(), r.nelems, r.virtualNproc)
	return r.DagActor.Start()
}

func (r *ReduceActor) name() string {
	if r.allreduce {
		return "allreduce"
	}
	return "reduce"
}
