package base

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

type OP uint8

const (
	SUM OP = iota
	MIN
	MAX
	PROD
)

var opNames = map[OP]string{
	SUM:  "sum",
	MIN:  "min",
	MAX:  "max",
	PROD: "prod",
}

func (op OP) String() string {
	return opNames[op]
}

// Set implements flag.Value
func (op *OP) Set(val string) error {
	o, err := ParseOP(val)
	if err != nil {
		return err
	}
	*op = o
	return nil
}

func ParseOP(s string) (OP, error) {
	for k, v := range opNames {
		if s == v {
			return k, nil
		}
	}
	return 0, errors.Errorf("invalid reduce op %q", s)
}

// ReduceFunc combines src into dst element-wise: dst[i] = dst[i] op src[i].
// Both slices hold packed elements and have the same length.
type ReduceFunc func(dst, src []byte)

type number interface {
	constraints.Integer | constraints.Float
}

func kernel[T number](op OP) (func(z, x []T), error) {
	switch op {
	case SUM:
		return func(z, x []T) {
			for i := range z {
				z[i] += x[i]
			}
		}, nil
	case MIN:
		return func(z, x []T) {
			for i := range z {
				z[i] = min(z[i], x[i])
			}
		}, nil
	case MAX:
		return func(z, x []T) {
			for i := range z {
				z[i] = max(z[i], x[i])
			}
		}, nil
	case PROD:
		return func(z, x []T) {
			for i := range z {
				z[i] *= x[i]
			}
		}, nil
	}
	return nil, errors.Errorf("unknown reduce op %d", op)
}

func view[T any](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	var t T
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/int(unsafe.Sizeof(t)))
}

func bytesKernel[T number](op OP) (ReduceFunc, error) {
	f, err := kernel[T](op)
	if err != nil {
		return nil, err
	}
	return func(dst, src []byte) { f(view[T](dst), view[T](src)) }, nil
}

// f16 values are reduced in float32 and rounded back.
func f16Kernel(op OP) (ReduceFunc, error) {
	f, err := kernel[float32](op)
	if err != nil {
		return nil, err
	}
	return func(dst, src []byte) {
		z, x := view[uint16](dst), view[uint16](src)
		a, b := make([]float32, 1), make([]float32, 1)
		for i := range z {
			a[0] = float16.Frombits(z[i]).Float32()
			b[0] = float16.Frombits(x[i]).Float32()
			f(a, b)
			z[i] = float16.Fromfloat32(a[0]).Bits()
		}
	}, nil
}

// NewReduceFunc returns the element-wise kernel of op over dtype.
func NewReduceFunc(op OP, dtype DataType) (ReduceFunc, error) {
	switch dtype {
	case U8:
		return bytesKernel[uint8](op)
	case U16:
		return bytesKernel[uint16](op)
	case U32:
		return bytesKernel[uint32](op)
	case U64:
		return bytesKernel[uint64](op)
	case I8:
		return bytesKernel[int8](op)
	case I16:
		return bytesKernel[int16](op)
	case I32:
		return bytesKernel[int32](op)
	case I64:
		return bytesKernel[int64](op)
	case F16:
		return f16Kernel(op)
	case F32:
		return bytesKernel[float32](op)
	case F64:
		return bytesKernel[float64](op)
	}
	return nil, errors.Errorf("unsupported data type %d", dtype)
}

// Transform performs y[i] = y[i] op x[i] for vectors y and x
func Transform(y, x *Vector, op OP) error {
	if y.Count != x.Count || y.Type != x.Type {
		return errors.Errorf("Transform: inconsistent vectors %d:%s vs %d:%s", y.Count, y.Type, x.Count, x.Type)
	}
	f, err := NewReduceFunc(op, y.Type)
	if err != nil {
		return err
	}
	f(y.Data, x.Data)
	return nil
}
