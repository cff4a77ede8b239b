package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ParseBytes(t *testing.T) {
	assert.Equal(t, uint64(512), parseBytes("512B"))
	assert.Equal(t, uint64(4096), parseBytes("4KiB"))
	assert.Equal(t, uint64(1000), parseBytes("1kB"))
}

func Test_IsTrue(t *testing.T) {
	assert.True(t, isTrue("true"))
	assert.False(t, isTrue("1"))
	assert.False(t, isTrue("false"))
}
