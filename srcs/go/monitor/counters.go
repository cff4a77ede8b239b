package monitor

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/lsds/dagcoll/srcs/go/rchannel/connection"
	"github.com/lsds/dagcoll/srcs/go/utils"
)

type accumulator struct {
	name  string
	value int64
}

func newAccumulator(name string) *accumulator {
	return &accumulator{
		name: name,
	}
}

func (a *accumulator) Add(n int64) int64 {
	return atomic.AddInt64(&a.value, n)
}

func (a *accumulator) Get() int64 {
	return atomic.LoadInt64(&a.value)
}

func (a *accumulator) WriteTo(w io.Writer) {
	val := atomic.LoadInt64(&a.value)
	fmt.Fprintf(w, "%s %d\n", a.name, val)
}

var protocols = []connection.Protocol{connection.Eager, connection.Put, connection.Get}

// Counters accumulates transferred bytes and message counts per protocol,
// plus failed transfers.
type Counters struct {
	bytes    map[connection.Protocol]*accumulator
	messages map[connection.Protocol]*accumulator
	failures *accumulator
}

func NewCounters() *Counters {
	c := &Counters{
		bytes:    make(map[connection.Protocol]*accumulator),
		messages: make(map[connection.Protocol]*accumulator),
		failures: newAccumulator(`dagcoll_failed_transfers`),
	}
	for _, p := range protocols {
		c.bytes[p] = newAccumulator(fmt.Sprintf(`dagcoll_%s_bytes`, p))
		c.messages[p] = newAccumulator(fmt.Sprintf(`dagcoll_%s_messages`, p))
	}
	return c
}

// Transfer records one delivered message of n bytes.
func (c *Counters) Transfer(p connection.Protocol, n int64) {
	c.bytes[p].Add(n)
	c.messages[p].Add(1)
}

func (c *Counters) Failure() {
	c.failures.Add(1)
}

func (c *Counters) Bytes(p connection.Protocol) int64    { return c.bytes[p].Get() }
func (c *Counters) Messages(p connection.Protocol) int64 { return c.messages[p].Get() }
func (c *Counters) Failures() int64                      { return c.failures.Get() }

// WriteTo writes all counters in the text exposition format.
func (c *Counters) WriteTo(w io.Writer) {
	for _, p := range protocols {
		c.bytes[p].WriteTo(w)
		c.messages[p].WriteTo(w)
	}
	c.failures.WriteTo(w)
}

// Summary is a one line human readable digest.
func (c *Counters) Summary() string {
	var total, msgs int64
	for _, p := range protocols {
		total += c.Bytes(p)
		msgs += c.Messages(p)
	}
	return fmt.Sprintf("%s in %s (eager %d, put %d, get %d), %s",
		utils.ShowBytes(total), utils.Pluralize(int(msgs), "message", "messages"),
		c.Messages(connection.Eager), c.Messages(connection.Put), c.Messages(connection.Get),
		utils.Pluralize(int(c.Failures()), "failure", "failures"))
}
