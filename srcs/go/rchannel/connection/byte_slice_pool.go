package connection

import (
	"sync"
	"sync/atomic"
)

// ByteSlicePool recycles byte slices by capacity. It also counts the
// slices handed out and not given back, so that workspace leaks show up.
type ByteSlicePool struct {
	sync.Mutex
	buffers map[uint32]*sync.Pool

	live   int64
	reused int64
}

// slices smaller than this are cheaper to allocate than to pool
const minBufSize uint32 = 512

var (
	defaultPool = NewByteSlicePool()
	GetBuf      = defaultPool.GetBuf
	PutBuf      = defaultPool.PutBuf
)

func NewByteSlicePool() *ByteSlicePool {
	return &ByteSlicePool{
		buffers: make(map[uint32]*sync.Pool),
	}
}

func (p *ByteSlicePool) class(size uint32) *sync.Pool {
	p.Lock()
	defer p.Unlock()
	c, ok := p.buffers[size]
	if !ok {
		c = new(sync.Pool)
		p.buffers[size] = c
	}
	return c
}

// GetBuf returns a slice of the given size, reused when possible.
// Reused slices are not zeroed.
func (p *ByteSlicePool) GetBuf(size uint32) []byte {
	atomic.AddInt64(&p.live, 1)
	if size < minBufSize {
		return make([]byte, size)
	}
	if v := p.class(size).Get(); v != nil {
		atomic.AddInt64(&p.reused, 1)
		return v.([]byte)[:size]
	}
	return make([]byte, size)
}

// PutBuf gives back a slice obtained from GetBuf.
func (p *ByteSlicePool) PutBuf(buf []byte) {
	atomic.AddInt64(&p.live, -1)
	size := uint32(cap(buf))
	if size < minBufSize {
		return
	}
	p.class(size).Put(buf[:size])
}

// Live returns the number of slices handed out and not given back.
func (p *ByteSlicePool) Live() int64 { return atomic.LoadInt64(&p.live) }

func (p *ByteSlicePool) Reused() int64 { return atomic.LoadInt64(&p.reused) }
