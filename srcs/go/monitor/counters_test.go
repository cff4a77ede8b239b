package monitor

import (
	"bytes"
	"testing"

	"github.com/lsds/dagcoll/srcs/go/rchannel/connection"
	"github.com/stretchr/testify/assert"
)

func Test_Counters(t *testing.T) {
	c := NewCounters()
	c.Transfer(connection.Eager, 16)
	c.Transfer(connection.Eager, 4)
	c.Transfer(connection.Get, 1000)
	c.Failure()
	assert.Equal(t, int64(20), c.Bytes(connection.Eager))
	assert.Equal(t, int64(2), c.Messages(connection.Eager))
	assert.Equal(t, int64(0), c.Messages(connection.Put))
	assert.Equal(t, int64(1), c.Failures())

	b := &bytes.Buffer{}
	c.WriteTo(b)
	assert.Contains(t, b.String(), "dagcoll_get_bytes 1000\n")
	assert.Equal(t, "1.0 kB in 3 messages (eager 2, put 0, get 1), 1 failure", c.Summary())
}
