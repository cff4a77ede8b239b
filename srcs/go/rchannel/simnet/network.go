// Package simnet is an in-memory transport for collectives. Every posted
// send and receive is matched by its header and completed through an event
// queue that Run drains, optionally in a seeded random order.
package simnet

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"

	"github.com/lsds/dagcoll/srcs/go/collective"
	"github.com/lsds/dagcoll/srcs/go/log"
	"github.com/lsds/dagcoll/srcs/go/monitor"
	"github.com/lsds/dagcoll/srcs/go/rchannel/connection"
	"github.com/lsds/dagcoll/srcs/go/utils"
	"github.com/pkg/errors"
)

var (
	ErrProtocolMismatch = errors.New("protocol mismatch")
	ErrInjectedFault    = errors.New("injected fault")
	errLengthMismatch   = errors.New("length mismatch")
)

// Fault makes every message sent by global rank Src in round Round fail.
// With Corrupt set the header is damaged on the wire instead.
type Fault struct {
	Src     int
	Round   int
	Corrupt bool
}

type matchKey struct {
	comm   uint32
	tag    uint32
	round  uint32
	sender uint32
	recver uint32
	src    int
	dst    int
}

func keyOf(req *collective.Request) matchKey {
	h := req.Header
	return matchKey{
		comm:   h.Comm,
		tag:    h.Tag,
		round:  h.Round,
		sender: h.Sender,
		recver: h.Recver,
		src:    req.Src,
		dst:    req.Dst,
	}
}

type postedSend struct {
	req  *collective.Request
	wire []byte
}

type event struct {
	req     *collective.Request
	ev      collective.Event
	release func()
}

// Network connects size global ranks. It implements collective.Transport
// for all of them.
type Network struct {
	size     int
	pool     *connection.ByteSlicePool
	counters *monitor.Counters

	sync.Mutex
	sends  map[matchKey][]*postedSend
	recvs  map[matchKey][]*collective.Request
	queue  []event
	rng    *rand.Rand
	faults []Fault
	steps  int
}

// New creates a network of size ranks. A non-zero seed delivers pending
// events in a random order derived from it, zero delivers them in order.
func New(size int, seed int64) *Network {
	n := &Network{
		size:     size,
		pool:     connection.NewByteSlicePool(),
		counters: monitor.NewCounters(),
		sends:    make(map[matchKey][]*postedSend),
		recvs:    make(map[matchKey][]*collective.Request),
	}
	if seed != 0 {
		n.rng = rand.New(rand.NewSource(seed))
	}
	return n
}

func (n *Network) Size() int                   { return n.size }
func (n *Network) Counters() *monitor.Counters { return n.counters }

// Steps returns the number of events delivered so far.
func (n *Network) Steps() int {
	n.Lock()
	defer n.Unlock()
	return n.steps
}

func (n *Network) InjectFault(f Fault) {
	n.Lock()
	defer n.Unlock()
	n.faults = append(n.faults, f)
}

func (n *Network) AllocateWorkspace(size int) []byte {
	return n.pool.GetBuf(uint32(size))
}

func (n *Network) FreeWorkspace(buf []byte) {
	n.pool.PutBuf(buf)
}

// WorkspacesInUse returns the number of workspaces allocated and not freed.
func (n *Network) WorkspacesInUse() int64 { return n.pool.Live() }

func (n *Network) checkRanks(req *collective.Request) error {
	if req.Src < 0 || req.Src >= n.size || req.Dst < 0 || req.Dst >= n.size {
		return errors.Errorf("%s: ranks %d->%d out of range [0, %d)", req.Action, req.Src, req.Dst, n.size)
	}
	return nil
}

func (n *Network) fault(req *collective.Request) *Fault {
	for i, f := range n.faults {
		if f.Src == req.Src && uint32(f.Round) == req.Header.Round {
			return &n.faults[i]
		}
	}
	return nil
}

// encode writes the header, followed by the payload for eager messages.
func (n *Network) encode(req *collective.Request) ([]byte, error) {
	b := &bytes.Buffer{}
	if err := req.Header.WriteTo(b); err != nil {
		return nil, err
	}
	if req.Header.Protocol == connection.Eager {
		m := connection.Message{Length: uint32(len(req.Buffer)), Data: req.Buffer}
		if err := m.WriteTo(b); err != nil {
			return nil, err
		}
	}
	wire := b.Bytes()
	if f := n.fault(req); f != nil && f.Corrupt {
		wire[0] = 0xff
	}
	return wire, nil
}

func (n *Network) Send(req *collective.Request) error {
	if err := n.checkRanks(req); err != nil {
		return err
	}
	n.Lock()
	defer n.Unlock()
	wire, err := n.encode(req)
	if err != nil {
		return err
	}
	k := keyOf(req)
	n.sends[k] = append(n.sends[k], &postedSend{req: req, wire: wire})
	if req.Header.Protocol == connection.Eager {
		// the payload is on the wire, the send buffer is free again
		n.push(event{req: req, ev: collective.Event{Protocol: connection.Eager}})
	}
	n.match(k)
	return nil
}

func (n *Network) Recv(req *collective.Request) error {
	if err := n.checkRanks(req); err != nil {
		return err
	}
	n.Lock()
	defer n.Unlock()
	k := keyOf(req)
	n.recvs[k] = append(n.recvs[k], req)
	n.match(k)
	return nil
}

func (n *Network) push(e event) {
	n.queue = append(n.queue, e)
}

func (n *Network) match(k matchKey) {
	ss, rs := n.sends[k], n.recvs[k]
	for len(ss) > 0 && len(rs) > 0 {
		n.deliver(ss[0], rs[0])
		ss, rs = ss[1:], rs[1:]
	}
	n.sends[k], n.recvs[k] = ss, rs
	if len(ss) == 0 {
		delete(n.sends, k)
	}
	if len(rs) == 0 {
		delete(n.recvs, k)
	}
}

func (n *Network) failBoth(s *postedSend, r *collective.Request, err error) {
	n.counters.Failure()
	p := r.Header.Protocol
	if s.req.Header.Protocol != connection.Eager {
		n.push(event{req: s.req, ev: collective.Event{Protocol: p, Err: err}})
	}
	n.push(event{req: r, ev: collective.Event{Protocol: p, Err: err}})
}

// deliver moves the data of a matched pair according to the protocol the
// receiver expects.
func (n *Network) deliver(s *postedSend, r *collective.Request) {
	rd := bytes.NewReader(s.wire)
	var h connection.Header
	if err := h.ReadFrom(rd); err != nil {
		n.failBoth(s, r, errors.Wrap(err, "decoding header"))
		return
	}
	if h.Protocol != r.Header.Protocol {
		n.failBoth(s, r, errors.Wrapf(ErrProtocolMismatch, "sent %s, expected %s", h.Protocol, r.Header.Protocol))
		return
	}
	if h.Count != r.Header.Count || h.TypeSize != r.Header.TypeSize {
		n.failBoth(s, r, errors.Wrapf(errLengthMismatch, "sent %s, expected %s", h, r.Header))
		return
	}
	if f := n.fault(s.req); f != nil {
		n.failBoth(s, r, errors.Wrapf(ErrInjectedFault, "%s", h))
		return
	}
	switch h.Protocol {
	case connection.Eager:
		var m connection.Message
		if err := m.ReadFrom(rd); err != nil {
			n.failBoth(s, r, errors.Wrap(err, "reading eager payload"))
			return
		}
		n.counters.Transfer(h.Protocol, int64(m.Length))
		n.push(event{
			req:     r,
			ev:      collective.Event{Protocol: h.Protocol, Payload: m.Data},
			release: func() { connection.PutBuf(m.Data) },
		})
	case connection.Put, connection.Get:
		if len(r.Buffer) != len(s.req.Buffer) {
			n.failBoth(s, r, errors.Wrapf(errLengthMismatch, "%d bytes into %d", len(s.req.Buffer), len(r.Buffer)))
			return
		}
		copy(r.Buffer, s.req.Buffer)
		n.counters.Transfer(h.Protocol, int64(len(r.Buffer)))
		first, second := s.req, r
		if h.Protocol == connection.Get {
			// the receiver pulls, then releases the sender
			first, second = r, s.req
		}
		n.push(event{req: first, ev: collective.Event{Protocol: h.Protocol}})
		n.push(event{req: second, ev: collective.Event{Protocol: h.Protocol}})
	}
	log.Debugf("simnet delivered %s from %d to %d", h, s.req.Src, r.Dst)
}

func (n *Network) pop() (event, bool) {
	n.Lock()
	defer n.Unlock()
	if len(n.queue) == 0 {
		return event{}, false
	}
	i := 0
	if n.rng != nil {
		i = n.rng.Intn(len(n.queue))
	}
	e := n.queue[i]
	n.queue = append(n.queue[:i], n.queue[i+1:]...)
	n.steps++
	return e, true
}

// Run delivers events until none is left. Errors returned by the handlers
// are merged into one.
func (n *Network) Run() error {
	var errs []error
	for {
		e, ok := n.pop()
		if !ok {
			break
		}
		if err := e.req.Handler.OnTransportEvent(e.req.Action, e.ev); err != nil {
			errs = append(errs, err)
		}
		if e.release != nil {
			e.release()
		}
	}
	return utils.MergeErrors(errs, "simnet")
}

// Unmatched returns the number of posted sends and receives still waiting for their peer.
func (n *Network) Unmatched() int {
	n.Lock()
	defer n.Unlock()
	var k int
	for _, ss := range n.sends {
		k += len(ss)
	}
	for _, rs := range n.recvs {
		k += len(rs)
	}
	return k
}

func (n *Network) String() string {
	unmatched := n.Unmatched()
	n.Lock()
	defer n.Unlock()
	return fmt.Sprintf("simnet{size=%d, pending=%d, unmatched=%d}", n.size, len(n.queue), unmatched)
}
