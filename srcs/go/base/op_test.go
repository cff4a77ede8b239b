package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Transform(t *testing.T) {
	y := NewVector(3, I32)
	x := NewVector(3, I32)
	copy(y.AsI32(), []int32{1, 5, -2})
	copy(x.AsI32(), []int32{4, 2, -7})

	cases := []struct {
		op   OP
		want []int32
	}{
		{SUM, []int32{5, 7, -9}},
		{MIN, []int32{1, 2, -7}},
		{MAX, []int32{4, 5, -2}},
		{PROD, []int32{4, 10, 14}},
	}
	for _, c := range cases {
		z := y.Clone()
		require.NoError(t, Transform(z, x, c.op))
		assert.Equal(t, c.want, z.AsI32(), c.op.String())
	}
}

func Test_Transform_Inconsistent(t *testing.T) {
	assert.Error(t, Transform(NewVector(2, F32), NewVector(3, F32), SUM))
	assert.Error(t, Transform(NewVector(2, F32), NewVector(2, F64), SUM))
}

func Test_ReduceFunc_AllTypes(t *testing.T) {
	for dt := range dtypeNames {
		y := NewVector(4, dt)
		x := NewVector(4, dt)
		for i := 0; i < 4; i++ {
			y.SetFloat64At(i, float64(i+1))
			x.SetFloat64At(i, 2)
		}
		f, err := NewReduceFunc(SUM, dt)
		require.NoError(t, err)
		f(y.Data, x.Data)
		for i := 0; i < 4; i++ {
			assert.Equal(t, float64(i+3), y.Float64At(i), dt.String())
		}
	}
}

func Test_ParseNames(t *testing.T) {
	dt, err := ParseDataType("f16")
	require.NoError(t, err)
	assert.Equal(t, F16, dt)
	assert.Equal(t, 2, dt.Size())
	_, err = ParseDataType("f128")
	assert.Error(t, err)

	op, err := ParseOP("max")
	require.NoError(t, err)
	assert.Equal(t, MAX, op)
	_, err = ParseOP("xor")
	assert.Error(t, err)
}

func Test_Workspace_Inplace(t *testing.T) {
	a := NewVector(2, I32)
	b := NewVector(2, I32)
	assert.True(t, Workspace{SendBuf: a, RecvBuf: a}.IsInplace())
	w := Workspace{SendBuf: a, RecvBuf: b}
	assert.False(t, w.IsInplace())
	a.AsI32()[1] = 9
	require.NoError(t, w.Forward())
	assert.Equal(t, []int32{0, 9}, b.AsI32())
}
