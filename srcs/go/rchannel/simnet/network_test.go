package simnet

import (
	"testing"

	"github.com/lsds/dagcoll/srcs/go/collective"
	"github.com/lsds/dagcoll/srcs/go/rchannel/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	events map[collective.ActionID]collective.Event
	order  []collective.ActionID
}

func newSink() *sink {
	return &sink{events: make(map[collective.ActionID]collective.Event)}
}

func (s *sink) OnTransportEvent(id collective.ActionID, ev collective.Event) error {
	if ev.Payload != nil {
		ev.Payload = append([]byte(nil), ev.Payload...)
	}
	s.events[id] = ev
	s.order = append(s.order, id)
	return nil
}

var (
	sendID = collective.ActionID{Kind: collective.Send, Round: 2, Partner: 1}
	recvID = collective.ActionID{Kind: collective.Recv, Round: 2, Partner: 0}
)

func pair(p connection.Protocol, data []byte, h *sink) (*collective.Request, *collective.Request) {
	hdr := connection.Header{Protocol: p, Tag: 3, Round: 2, Sender: 0, Recver: 1, Count: uint32(len(data)), TypeSize: 1}
	s := &collective.Request{Action: sendID, Header: hdr, Src: 0, Dst: 1, Buffer: data, Handler: h}
	r := &collective.Request{Action: recvID, Header: hdr, Src: 0, Dst: 1, Buffer: make([]byte, len(data)), Handler: h}
	return s, r
}

func Test_Eager(t *testing.T) {
	n := New(2, 0)
	h := newSink()
	data := []byte{1, 2, 3}
	s, r := pair(connection.Eager, data, h)
	require.NoError(t, n.Send(s))
	// the payload is copied on send
	data[0] = 9
	require.NoError(t, n.Recv(r))
	require.NoError(t, n.Run())

	assert.Equal(t, []collective.ActionID{sendID, recvID}, h.order)
	assert.Equal(t, []byte{1, 2, 3}, h.events[recvID].Payload)
	assert.Equal(t, []byte{0, 0, 0}, r.Buffer)
	assert.EqualValues(t, 1, n.Counters().Messages(connection.Eager))
	assert.EqualValues(t, 3, n.Counters().Bytes(connection.Eager))
	assert.Equal(t, 0, n.Unmatched())
	assert.Equal(t, 2, n.Steps())
}

func Test_Rendezvous(t *testing.T) {
	for _, p := range []connection.Protocol{connection.Put, connection.Get} {
		n := New(2, 0)
		h := newSink()
		s, r := pair(p, []byte{4, 5}, h)
		require.NoError(t, n.Recv(r))
		require.NoError(t, n.Run())
		assert.Empty(t, h.order)
		assert.Equal(t, 1, n.Unmatched())

		require.NoError(t, n.Send(s))
		require.NoError(t, n.Run())
		assert.Equal(t, []byte{4, 5}, r.Buffer)
		require.Len(t, h.order, 2)
		if p == connection.Put {
			assert.Equal(t, sendID, h.order[0])
		} else {
			assert.Equal(t, recvID, h.order[0])
		}
		assert.NoError(t, h.events[recvID].Err)
		assert.EqualValues(t, 1, n.Counters().Messages(p))
	}
}

func Test_ProtocolMismatch(t *testing.T) {
	n := New(2, 0)
	h := newSink()
	s, _ := pair(connection.Put, []byte{1}, h)
	_, r := pair(connection.Get, []byte{1}, h)
	require.NoError(t, n.Send(s))
	require.NoError(t, n.Recv(r))
	require.NoError(t, n.Run())
	assert.ErrorIs(t, h.events[sendID].Err, ErrProtocolMismatch)
	assert.ErrorIs(t, h.events[recvID].Err, ErrProtocolMismatch)
	assert.EqualValues(t, 1, n.Counters().Failures())
}

func Test_LengthMismatch(t *testing.T) {
	n := New(2, 0)
	h := newSink()
	s, r := pair(connection.Put, []byte{1, 2}, h)
	r.Header.Count = 1
	require.NoError(t, n.Send(s))
	require.NoError(t, n.Recv(r))
	require.NoError(t, n.Run())
	assert.Error(t, h.events[recvID].Err)
}

func Test_Faults(t *testing.T) {
	n := New(2, 0)
	n.InjectFault(Fault{Src: 0, Round: 2, Corrupt: true})
	h := newSink()
	s, r := pair(connection.Get, []byte{1}, h)
	require.NoError(t, n.Send(s))
	require.NoError(t, n.Recv(r))
	require.NoError(t, n.Run())
	assert.ErrorIs(t, h.events[recvID].Err, connection.ErrBadProtocol)
	assert.ErrorIs(t, h.events[sendID].Err, connection.ErrBadProtocol)

	n = New(2, 0)
	n.InjectFault(Fault{Src: 0, Round: 2})
	h = newSink()
	s, r = pair(connection.Eager, []byte{1}, h)
	require.NoError(t, n.Send(s))
	require.NoError(t, n.Recv(r))
	require.NoError(t, n.Run())
	assert.NoError(t, h.events[sendID].Err)
	assert.ErrorIs(t, h.events[recvID].Err, ErrInjectedFault)
}

func Test_RankRange(t *testing.T) {
	n := New(2, 0)
	s, r := pair(connection.Eager, []byte{1}, newSink())
	s.Dst = 2
	r.Src = -1
	assert.Error(t, n.Send(s))
	assert.Error(t, n.Recv(r))
}

func Test_SeededOrderIsReproducible(t *testing.T) {
	order := func(seed int64) []collective.ActionID {
		n := New(2, seed)
		h := newSink()
		for round := 0; round < 8; round++ {
			hdr := connection.Header{Protocol: connection.Put, Round: uint32(round), Count: 1, TypeSize: 1}
			s := &collective.Request{Action: collective.ActionID{Kind: collective.Send, Round: round}, Header: hdr, Dst: 1, Buffer: []byte{1}, Handler: h}
			r := &collective.Request{Action: collective.ActionID{Kind: collective.Recv, Round: round}, Header: hdr, Dst: 1, Buffer: []byte{0}, Handler: h}
			require.NoError(t, n.Send(s))
			require.NoError(t, n.Recv(r))
		}
		require.NoError(t, n.Run())
		return h.order
	}
	assert.Equal(t, order(42), order(42))
	assert.Len(t, order(42), 16)
}
