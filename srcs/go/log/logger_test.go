package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ParseLevel(t *testing.T) {
	assert.Equal(t, Debug, ParseLevel("DEBUG"))
	assert.Equal(t, Error, ParseLevel("ERROR"))
	assert.Equal(t, Info, ParseLevel("bogus"))
}

func Test_Logger_Level(t *testing.T) {
	b := &bytes.Buffer{}
	l := New()
	l.SetOutput(b)
	l.SetLevel(Warn)
	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)
	assert.Equal(t, "[W] shown 2\n", b.String())
	assert.False(t, l.DebugEnabled())
	l.SetLevel(Debug)
	assert.True(t, l.DebugEnabled())
}
