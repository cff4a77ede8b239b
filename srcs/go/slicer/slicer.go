// Package slicer reads, writes and reduces sub-ranges of a logical data
// buffer. Offsets and counts are in elements; packed buffers hold elements
// back to back, logical buffers may not.
package slicer

import (
	"github.com/lsds/dagcoll/srcs/go/base"
	"github.com/pkg/errors"
)

// ErrUnsupportedOperation is returned by Reduce on a slicer that has no
// reduce operator, e.g. one configured for a broadcast.
var ErrUnsupportedOperation = errors.New("unsupported operation: slicer has no reduce operator")

type Slicer interface {
	// Pack copies n elements starting at offset of the logical buffer src
	// into the packed buffer dst and returns the number of bytes written.
	Pack(dst, src []byte, offset, n int) int
	// Unpack copies n packed elements of src into the logical buffer dst at offset.
	Unpack(dst, src []byte, offset, n int)
	// Reduce combines n packed elements of src into the logical buffer dst at offset.
	Reduce(dst, src []byte, offset, n int) error
	Contiguous() bool
	ElementSize() int
	// BufferSize is the size in bytes of a logical buffer of n elements.
	BufferSize(n int) int
}

type DefaultSlicer struct {
	typeSize int
	fn       base.ReduceFunc
}

// New returns a slicer over flat arrays. fn may be nil for collectives that never reduce.
func New(typeSize int, fn base.ReduceFunc) *DefaultSlicer {
	return &DefaultSlicer{typeSize: typeSize, fn: fn}
}

// ForOP returns a flat slicer reducing dtype elements with op.
func ForOP(op base.OP, dtype base.DataType) (*DefaultSlicer, error) {
	fn, err := base.NewReduceFunc(op, dtype)
	if err != nil {
		return nil, err
	}
	return New(dtype.Size(), fn), nil
}

func (s *DefaultSlicer) Pack(dst, src []byte, offset, n int) int {
	return copy(dst[:n*s.typeSize], src[offset*s.typeSize:(offset+n)*s.typeSize])
}

func (s *DefaultSlicer) Unpack(dst, src []byte, offset, n int) {
	copy(dst[offset*s.typeSize:(offset+n)*s.typeSize], src[:n*s.typeSize])
}

func (s *DefaultSlicer) Reduce(dst, src []byte, offset, n int) error {
	if s.fn == nil {
		return ErrUnsupportedOperation
	}
	s.fn(dst[offset*s.typeSize:(offset+n)*s.typeSize], src[:n*s.typeSize])
	return nil
}

func (s *DefaultSlicer) Contiguous() bool     { return true }
func (s *DefaultSlicer) ElementSize() int     { return s.typeSize }
func (s *DefaultSlicer) BufferSize(n int) int { return n * s.typeSize }

// StridedSlicer addresses elements placed every stride bytes, as in a
// column of a row-major matrix. It is never contiguous unless stride equals
// the element size.
type StridedSlicer struct {
	typeSize int
	stride   int
	fn       base.ReduceFunc
}

func NewStrided(typeSize, stride int, fn base.ReduceFunc) (*StridedSlicer, error) {
	if stride < typeSize {
		return nil, errors.Errorf("stride %d is smaller than element size %d", stride, typeSize)
	}
	return &StridedSlicer{typeSize: typeSize, stride: stride, fn: fn}, nil
}

func (s *StridedSlicer) elem(buf []byte, i int) []byte {
	return buf[i*s.stride : i*s.stride+s.typeSize]
}

func (s *StridedSlicer) Pack(dst, src []byte, offset, n int) int {
	for i := 0; i < n; i++ {
		copy(dst[i*s.typeSize:(i+1)*s.typeSize], s.elem(src, offset+i))
	}
	return n * s.typeSize
}

func (s *StridedSlicer) Unpack(dst, src []byte, offset, n int) {
	for i := 0; i < n; i++ {
		copy(s.elem(dst, offset+i), src[i*s.typeSize:(i+1)*s.typeSize])
	}
}

func (s *StridedSlicer) Reduce(dst, src []byte, offset, n int) error {
	if s.fn == nil {
		return ErrUnsupportedOperation
	}
	for i := 0; i < n; i++ {
		s.fn(s.elem(dst, offset+i), src[i*s.typeSize:(i+1)*s.typeSize])
	}
	return nil
}

func (s *StridedSlicer) Contiguous() bool { return s.stride == s.typeSize }
func (s *StridedSlicer) ElementSize() int { return s.typeSize }

func (s *StridedSlicer) BufferSize(n int) int {
	if n == 0 {
		return 0
	}
	return (n-1)*s.stride + s.typeSize
}
