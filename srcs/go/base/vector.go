package base

import (
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

type Vector struct {
	Data  []byte
	Count int
	Type  DataType
}

func NewVector(count int, dtype DataType) *Vector {
	return &Vector{
		Data:  make([]byte, count*dtype.Size()),
		Count: count,
		Type:  dtype,
	}
}

// Slice returns a new Vector that points to a subset of the original Vector.
// 0 <= begin <= end <= count
func (b *Vector) Slice(begin, end int) *Vector {
	return &Vector{
		Data:  b.Data[begin*b.Type.Size() : end*b.Type.Size()],
		Count: end - begin,
		Type:  b.Type,
	}
}

func (b *Vector) CopyFrom(c *Vector) error {
	if b.Count != c.Count {
		return errors.Errorf("Vector::Copy error: inconsistent count: %d vs %d", b.Count, c.Count)
	}
	if b.Type != c.Type {
		return errors.Errorf("Vector::Copy error: inconsistent type: %s vs %s", b.Type, c.Type)
	}
	copy(b.Data, c.Data)
	return nil
}

func (b *Vector) Clone() *Vector {
	c := NewVector(b.Count, b.Type)
	copy(c.Data, b.Data)
	return c
}

func (b *Vector) AsF32() []float32 { return view[float32](b.Data) }
func (b *Vector) AsF64() []float64 { return view[float64](b.Data) }
func (b *Vector) AsI8() []int8     { return view[int8](b.Data) }
func (b *Vector) AsI32() []int32   { return view[int32](b.Data) }
func (b *Vector) AsI64() []int64   { return view[int64](b.Data) }
func (b *Vector) AsU16() []uint16  { return view[uint16](b.Data) }

// Float64At reads element i of any data type as a float64.
func (b *Vector) Float64At(i int) float64 {
	x := b.Slice(i, i+1)
	switch b.Type {
	case U8:
		return float64(x.Data[0])
	case U16:
		return float64(view[uint16](x.Data)[0])
	case U32:
		return float64(view[uint32](x.Data)[0])
	case U64:
		return float64(view[uint64](x.Data)[0])
	case I8:
		return float64(view[int8](x.Data)[0])
	case I16:
		return float64(view[int16](x.Data)[0])
	case I32:
		return float64(view[int32](x.Data)[0])
	case I64:
		return float64(view[int64](x.Data)[0])
	case F16:
		return float64(float16.Frombits(view[uint16](x.Data)[0]).Float32())
	case F32:
		return float64(view[float32](x.Data)[0])
	case F64:
		return view[float64](x.Data)[0]
	}
	return 0
}

// SetFloat64At stores v into element i, converting to the vector's data type.
func (b *Vector) SetFloat64At(i int, v float64) {
	x := b.Slice(i, i+1)
	switch b.Type {
	case U8:
		x.Data[0] = uint8(v)
	case U16:
		view[uint16](x.Data)[0] = uint16(v)
	case U32:
		view[uint32](x.Data)[0] = uint32(v)
	case U64:
		view[uint64](x.Data)[0] = uint64(v)
	case I8:
		view[int8](x.Data)[0] = int8(v)
	case I16:
		view[int16](x.Data)[0] = int16(v)
	case I32:
		view[int32](x.Data)[0] = int32(v)
	case I64:
		view[int64](x.Data)[0] = int64(v)
	case F16:
		view[uint16](x.Data)[0] = float16.Fromfloat32(float32(v)).Bits()
	case F32:
		view[float32](x.Data)[0] = float32(v)
	case F64:
		view[float64](x.Data)[0] = v
	}
}
