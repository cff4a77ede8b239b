package collective

import (
	"bytes"
	"fmt"

	"github.com/lsds/dagcoll/srcs/go/log"
	"github.com/lsds/dagcoll/srcs/go/plan"
	"github.com/lsds/dagcoll/srcs/go/plan/graph"
	"github.com/lsds/dagcoll/srcs/go/rchannel/connection"
	"github.com/lsds/dagcoll/srcs/go/slicer"
	"github.com/pkg/errors"
)

type edge struct {
	pre  ActionID
	succ ActionID
}

// Buffers are the three buffers a collective works on. Result is a logical
// buffer addressed through the slicer, Send and Recv are packed scratch
// buffers indexed by element offset. The DagActor never allocates them.
type Buffers struct {
	Send   []byte
	Recv   []byte
	Result []byte
}

// DagActor drives a graph of actions to completion. Actions live in a table
// keyed by ActionID and edges are kept as successor lists keyed by the
// precursor id. It is not safe for concurrent use: Start and
// OnTransportEvent must be called from one goroutine.
type DagActor struct {
	CollectiveActor

	cfg       Config
	transport Transport
	slicer    slicer.Slicer
	bufs      Buffers

	// rounds below reducingRounds combine incoming data, later rounds copy it
	reducingRounds int

	actions   map[ActionID]*Action
	order     []ActionID
	succs     map[ActionID][]ActionID
	edges     map[edge]struct{}
	pending   map[ActionID]*Action
	ready     map[ActionID]*Action
	active    map[ActionID]*Action
	completed []ActionID

	shuffle func(a *Action) error
	notify  func(err error)
	started bool
}

func NewDagActor(cfg Config, t Transport, comm plan.Communicator, tag int, sl slicer.Slicer) *DagActor {
	return &DagActor{
		CollectiveActor: newCollectiveActor(comm, tag),
		cfg:             cfg,
		transport:       t,
		slicer:          sl,
		actions:         make(map[ActionID]*Action),
		succs:           make(map[ActionID][]ActionID),
		edges:           make(map[edge]struct{}),
		pending:         make(map[ActionID]*Action),
		ready:           make(map[ActionID]*Action),
		active:          make(map[ActionID]*Action),
	}
}

func (d *DagActor) SetBuffers(b Buffers)              { d.bufs = b }
func (d *DagActor) Buffers() Buffers                  { return d.bufs }
func (d *DagActor) SetReducingRounds(n int)           { d.reducingRounds = n }
func (d *DagActor) ReducingRounds() int               { return d.reducingRounds }
func (d *DagActor) OnDone(f func(err error))          { d.notify = f }
func (d *DagActor) SetShuffler(f func(*Action) error) { d.shuffle = f }

// Action returns the action registered under id.
func (d *DagActor) Action(id ActionID) (*Action, bool) {
	a, ok := d.actions[id]
	return a, ok
}

// Actions returns all actions in registration order.
func (d *DagActor) Actions() []*Action {
	as := make([]*Action, 0, len(d.order))
	for _, id := range d.order {
		as = append(as, d.actions[id])
	}
	return as
}

// Successors returns the ids depending on id.
func (d *DagActor) Successors(id ActionID) []ActionID {
	return d.succs[id]
}

// AddAction registers a. Adding an action whose id is already registered
// returns the existing id, provided both describe the same step. Joins are
// added with AddJoin.
func (d *DagActor) AddAction(a *Action) (ActionID, error) {
	if a.ID.Kind == Join {
		return a.ID, malformed("join %s must be added with its precursors", a.ID)
	}
	return d.addAction(a)
}

func (d *DagActor) addAction(a *Action) (ActionID, error) {
	if d.started {
		return a.ID, errAlreadyStarted
	}
	if old, ok := d.actions[a.ID]; ok {
		if !old.sameShape(a) {
			return a.ID, malformed("conflicting definitions of %s", a.ID)
		}
		return a.ID, nil
	}
	a.state = Created
	d.actions[a.ID] = a
	d.order = append(d.order, a.ID)
	log.Debugf("Rank %s tag=%d adding %s", d.rankStr(), d.tag, a)
	return a.ID, nil
}

// AddJoin registers a join of the given precursors. A join needs at least one.
func (d *DagActor) AddJoin(round int, precursors ...ActionID) (ActionID, error) {
	id := ActionID{Kind: Join, Round: round}
	if len(precursors) == 0 {
		return id, malformed("join %s has no precursors", id)
	}
	if _, err := d.addAction(NewUtility(Join, round, 0)); err != nil {
		return id, err
	}
	for _, p := range precursors {
		if err := d.AddDependency(p, id); err != nil {
			return id, err
		}
	}
	return id, nil
}

// AddDependency makes succ wait for pre. Registering the same edge twice
// has no effect. An already completed precursor does not hold succ back.
func (d *DagActor) AddDependency(pre, succ ActionID) error {
	p, ok := d.actions[pre]
	if !ok {
		return malformed("unknown precursor %s", pre)
	}
	s, ok := d.actions[succ]
	if !ok {
		return malformed("unknown successor %s", succ)
	}
	if pre == succ {
		return malformed("%s depends on itself", pre)
	}
	if s.state > Pending {
		return errors.Errorf("%s is already %s", succ, s.state)
	}
	e := edge{pre: pre, succ: succ}
	if _, ok := d.edges[e]; ok {
		return nil
	}
	d.edges[e] = struct{}{}
	d.succs[pre] = append(d.succs[pre], succ)
	s.nprecs++
	if p.state != Completed {
		s.unmet++
	}
	return nil
}

// Graph exports the dependency graph, vertex i being the i-th registered action.
func (d *DagActor) Graph() *graph.Graph {
	index := make(map[ActionID]int, len(d.order))
	for i, id := range d.order {
		index[id] = i
	}
	g := graph.New(len(d.order))
	for i, id := range d.order {
		for _, s := range d.succs[id] {
			g.AddEdge(i, index[s])
		}
	}
	return g
}

// Digest fingerprints the graph shape.
func (d *DagActor) Digest() string {
	return d.Graph().Digest()
}

func (d *DagActor) validate() error {
	for _, id := range d.order {
		a := d.actions[id]
		switch id.Kind {
		case Join:
			if a.nprecs == 0 {
				return malformed("join %s has no precursors", id)
			}
		case Shuffle:
			if d.shuffle == nil {
				return malformed("%s in a collective that does not shuffle data", id)
			}
		}
	}
	if _, ok := d.Graph().TopoOrder(); !ok {
		return malformed("cycle detected")
	}
	return nil
}

// Start activates every action without unmet dependencies. It must be called
// once, after the whole graph is built.
func (d *DagActor) Start() error {
	if d.started {
		return errAlreadyStarted
	}
	if err := d.validate(); err != nil {
		return err
	}
	d.started = true
	var roots []*Action
	for _, id := range d.order {
		a := d.actions[id]
		if a.unmet > 0 {
			a.state = Pending
			d.pending[id] = a
		} else if a.state == Created {
			a.state = Ready
			d.ready[id] = a
			roots = append(roots, a)
		}
	}
	log.Debugf("Rank %s tag=%d starting with %d roots, %d pending", d.rankStr(), d.tag, len(roots), len(d.pending))
	var done []*Action
	for _, a := range roots {
		finished, err := d.startAction(a)
		if err != nil {
			return d.fail(a.ID, err)
		}
		if finished {
			done = append(done, a)
		}
	}
	if err := d.drain(done); err != nil {
		return err
	}
	d.checkDone()
	return nil
}

// RankResolved clears the Resolve action waiting on commRank.
func (d *DagActor) RankResolved(commRank int) error {
	return d.OnTransportEvent(ActionID{Kind: Resolve, Partner: commRank}, Event{})
}

// OnTransportEvent is called by the transport when the step of action id
// finishes or fails.
func (d *DagActor) OnTransportEvent(id ActionID, ev Event) error {
	if !d.started {
		return errNotStarted
	}
	if d.err != nil {
		log.Debugf("Rank %s tag=%d dropping event for %s after failure", d.rankStr(), d.tag, id)
		return nil
	}
	a, ok := d.active[id]
	if !ok {
		return errors.Errorf("rank %s tag=%d: event for %s which is not active", d.rankStr(), d.tag, id)
	}
	if ev.Err != nil {
		return d.fail(id, ev.Err)
	}
	if id.Kind == Recv {
		if err := d.merge(a, ev); err != nil {
			return d.fail(id, err)
		}
	}
	log.Debugf("Rank %s finishing %s to partner %s tag=%d", d.rankStr(), a, d.partnerStr(a.PhysPartner), d.tag)
	return d.drain([]*Action{a})
}

// drain completes the given actions and everything their completion
// unblocks, using an explicit worklist.
func (d *DagActor) drain(q []*Action) error {
	for len(q) > 0 {
		a := q[0]
		q = q[1:]
		delete(d.active, a.ID)
		delete(d.ready, a.ID)
		a.state = Completed
		a.buf = nil
		d.completed = append(d.completed, a.ID)
		for _, sid := range d.succs[a.ID] {
			s := d.actions[sid]
			s.unmet--
			log.Debugf("Rank %s satisfying dependency to join counter %d for %s with %s tag=%d",
				d.rankStr(), s.unmet, s, a.ID, d.tag)
			if s.unmet > 0 {
				continue
			}
			delete(d.pending, sid)
			s.state = Ready
			d.ready[sid] = s
			finished, err := d.startAction(s)
			if err != nil {
				return d.fail(sid, err)
			}
			if finished {
				q = append(q, s)
			}
		}
		d.checkDone()
	}
	return nil
}

// startAction activates a and reports whether it finished on the spot.
func (d *DagActor) startAction(a *Action) (bool, error) {
	log.Debugf("Rank %s starting %s to partner %s tag=%d: %d active, %d pending",
		d.rankStr(), a, d.partnerStr(a.PhysPartner), d.tag, len(d.active), len(d.pending))
	switch a.ID.Kind {
	case Send:
		return false, d.startSend(a)
	case Recv:
		return false, d.startRecv(a)
	case Shuffle:
		return true, d.shuffle(a)
	case Resolve:
		d.activate(a)
		return false, nil
	default:
		return true, nil
	}
}

func (d *DagActor) activate(a *Action) {
	delete(d.ready, a.ID)
	a.state = Active
	d.active[a.ID] = a
}

// ProtocolFor picks the transfer protocol of a. Both ends of a transfer
// compute it from the same length and configuration.
func (d *DagActor) ProtocolFor(a *Action) connection.Protocol {
	n := uint64(a.Count * d.slicer.ElementSize())
	switch {
	case n < d.cfg.EagerCutoff:
		return connection.Eager
	case d.cfg.UseGetProtocol:
		return connection.Get
	default:
		return connection.Put
	}
}

func (d *DagActor) isReducing(a *Action) bool {
	return a.ID.Round < d.reducingRounds
}

func (d *DagActor) header(a *Action) connection.Header {
	h := connection.Header{
		Protocol: d.ProtocolFor(a),
		Comm:     uint32(d.comm.ID()),
		Tag:      uint32(d.tag),
		Round:    uint32(a.ID.Round),
		Count:    uint32(a.Count),
		TypeSize: uint32(d.slicer.ElementSize()),
	}
	if a.ID.Kind == Send {
		h.Sender, h.Recver = uint32(a.Self), uint32(a.ID.Partner)
	} else {
		h.Sender, h.Recver = uint32(a.ID.Partner), uint32(a.Self)
	}
	return h
}

func (d *DagActor) packed(buf []byte, a *Action) []byte {
	es := d.slicer.ElementSize()
	return buf[a.Offset*es : (a.Offset+a.Count)*es]
}

// sendBuffer resolves the buffer role of a send, packing non-contiguous
// data into the send scratch buffer first.
func (d *DagActor) sendBuffer(a *Action) ([]byte, error) {
	switch a.SendRole {
	case SendInPlace:
		if d.slicer.Contiguous() {
			return d.packed(d.bufs.Result, a), nil
		}
		buf := d.packed(d.bufs.Send, a)
		d.slicer.Pack(buf, d.bufs.Result, a.Offset, a.Count)
		return buf, nil
	case SendPrevRecv:
		return d.packed(d.bufs.Recv, a), nil
	case SendTemp:
		return d.packed(d.bufs.Send, a), nil
	}
	return nil, errors.Errorf("invalid send role %d", a.SendRole)
}

// recvInPlace reports whether rendezvous data for a can land in the result
// buffer directly.
func (d *DagActor) recvInPlace(a *Action) bool {
	return a.RecvRole == RecvInPlace && d.slicer.Contiguous() && !d.isReducing(a)
}

func (d *DagActor) recvBuffer(a *Action) []byte {
	if d.recvInPlace(a) {
		return d.packed(d.bufs.Result, a)
	}
	return d.packed(d.bufs.Recv, a)
}

func (d *DagActor) startSend(a *Action) error {
	buf, err := d.sendBuffer(a)
	if err != nil {
		return err
	}
	d.activate(a)
	a.buf = buf
	return d.transport.Send(&Request{
		Action:  a.ID,
		Header:  d.header(a),
		Src:     d.globalRank(d.me),
		Dst:     d.globalRank(a.PhysPartner),
		Buffer:  buf,
		Handler: d,
	})
}

func (d *DagActor) startRecv(a *Action) error {
	d.activate(a)
	a.buf = d.recvBuffer(a)
	return d.transport.Recv(&Request{
		Action:  a.ID,
		Header:  d.header(a),
		Src:     d.globalRank(a.PhysPartner),
		Dst:     d.globalRank(d.me),
		Buffer:  a.buf,
		Handler: d,
	})
}

// merge applies the arrived data of a finished receive: reduce in the
// reducing rounds, copy afterwards.
func (d *DagActor) merge(a *Action, ev Event) error {
	if a.PhysPartner == d.me {
		// both ends are roles of this rank, the data is already local
		return nil
	}
	eager := ev.Protocol == connection.Eager
	src := a.buf
	if eager {
		src = ev.Payload
	}
	if len(src) < a.Count*d.slicer.ElementSize() {
		return errors.Errorf("short payload for %s: %d bytes", a, len(src))
	}
	if d.isReducing(a) {
		return d.slicer.Reduce(d.bufs.Result, src, a.Offset, a.Count)
	}
	switch {
	case a.RecvRole == RecvPackedTemp:
		if eager {
			copy(a.buf, src)
		}
	case d.recvInPlace(a):
		if eager {
			d.slicer.Unpack(d.bufs.Result, src, a.Offset, a.Count)
		}
	default:
		d.slicer.Unpack(d.bufs.Result, src, a.Offset, a.Count)
	}
	return nil
}

func (d *DagActor) fail(id ActionID, cause error) error {
	err := &TransferFailed{Action: id, Cause: cause}
	if d.err != nil {
		return err
	}
	d.err = err
	log.Warnf("Rank %s tag=%d collective failed: %v", d.rankStr(), d.tag, err)
	if log.DebugEnabled() {
		log.Debugf("%s", d.DeadlockReport())
	}
	d.putDoneNotification()
	return err
}

func (d *DagActor) checkDone() {
	log.Debugf("Rank %s has %d active, %d ready, %d pending actions", d.rankStr(), len(d.active), len(d.ready), len(d.pending))
	if len(d.active) == 0 && len(d.ready) == 0 && len(d.pending) == 0 {
		d.putDoneNotification()
	}
}

func (d *DagActor) putDoneNotification() {
	if d.complete {
		return
	}
	d.complete = true
	log.Debugf("Rank %s putting done notification on tag=%d", d.rankStr(), d.tag)
	if d.notify != nil {
		d.notify(d.err)
	}
}

// DeadlockReport describes every action that has not completed.
func (d *DagActor) DeadlockReport() string {
	b := &bytes.Buffer{}
	fmt.Fprintf(b, "actor %d of %d on tag %d: %d completed\n", d.me, d.nproc, d.tag, len(d.completed))
	for _, id := range d.order {
		a := d.actions[id]
		switch a.state {
		case Active:
			fmt.Fprintf(b, "  active %s\n", a)
		case Pending, Created:
			fmt.Fprintf(b, "  %s %s waiting on %d\n", a.state, a, a.unmet)
		}
	}
	return b.String()
}
