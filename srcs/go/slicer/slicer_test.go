package slicer

import (
	"testing"

	"github.com/lsds/dagcoll/srcs/go/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i32s(xs ...int32) *base.Vector {
	v := base.NewVector(len(xs), base.I32)
	copy(v.AsI32(), xs)
	return v
}

func Test_DefaultSlicer(t *testing.T) {
	s, err := ForOP(base.SUM, base.I32)
	require.NoError(t, err)
	assert.True(t, s.Contiguous())
	assert.Equal(t, 4, s.ElementSize())
	assert.Equal(t, 12, s.BufferSize(3))

	buf := i32s(1, 2, 3, 4)
	packed := base.NewVector(2, base.I32)
	assert.Equal(t, 8, s.Pack(packed.Data, buf.Data, 1, 2))
	assert.Equal(t, []int32{2, 3}, packed.AsI32())

	require.NoError(t, s.Reduce(buf.Data, packed.Data, 2, 2))
	assert.Equal(t, []int32{1, 2, 5, 7}, buf.AsI32())

	s.Unpack(buf.Data, i32s(9).Data, 0, 1)
	assert.Equal(t, []int32{9, 2, 5, 7}, buf.AsI32())
}

func Test_NullReducer(t *testing.T) {
	s := New(4, nil)
	err := s.Reduce(make([]byte, 8), make([]byte, 8), 0, 2)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	ss, err := NewStrided(4, 8, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, ss.Reduce(make([]byte, 16), make([]byte, 8), 0, 2), ErrUnsupportedOperation)
}

func Test_StridedSlicer(t *testing.T) {
	fn, err := base.NewReduceFunc(base.SUM, base.I32)
	require.NoError(t, err)
	s, err := NewStrided(4, 8, fn)
	require.NoError(t, err)
	assert.False(t, s.Contiguous())
	assert.Equal(t, 20, s.BufferSize(3))

	// logical elements live at int32 index 0, 2, 4
	buf := i32s(1, -1, 2, -1, 3)
	packed := base.NewVector(2, base.I32)
	s.Pack(packed.Data, buf.Data, 1, 2)
	assert.Equal(t, []int32{2, 3}, packed.AsI32())

	require.NoError(t, s.Reduce(buf.Data, i32s(10, 20).Data, 0, 2))
	assert.Equal(t, []int32{11, -1, 22, -1, 3}, buf.AsI32())

	s.Unpack(buf.Data, i32s(7).Data, 2, 1)
	assert.Equal(t, []int32{11, -1, 22, -1, 7}, buf.AsI32())

	_, err = NewStrided(8, 4, fn)
	assert.Error(t, err)
}
