// Package memregion implements the region-based memory manager: nested
// generational scopes, size-classed pooled allocation, and the two safe
// citizen types layered on top of the raw arena, Ref[T] and Linear[T].
package memregion

import (
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"
)

// Size classes for raw pooled allocation. Allocations larger than the last
// class fall through to the system allocator.
const (
	sizeClassA = 4
	sizeClassB = 8
	sizeClassC = 16
	sizeClassD = 32
	sizeClassE = 64
	sizeClassF = 128
	sizeClassG = 256

	// headerSize is the bookkeeping overhead every pooled allocation
	// carries ahead of its payload: size, pool index, flags.
	headerSize = 16
)

var sizeClasses = [...]int{sizeClassA, sizeClassB, sizeClassC, sizeClassD, sizeClassE, sizeClassF, sizeClassG}

// blockFlags records per-allocation metadata alongside size/pool-index.
type blockFlags uint8

const (
	flagNone blockFlags = 0
	flagZeroed blockFlags = 1 << iota
)

// blockHeader is the bookkeeping record stamped into the 16-byte prefix
// of every pooled allocation: size, pool-index, flags.
type blockHeader struct {
	size      int
	poolIndex int
	flags     blockFlags
}

// writeHeader encodes hdr into buf's 16-byte prefix: size (8 bytes,
// little endian), pool index (4 bytes), flags (1 byte), 3 bytes reserved.
func writeHeader(buf []byte, hdr blockHeader) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(hdr.size))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(hdr.poolIndex))
	buf[12] = byte(hdr.flags)
}

// readHeader decodes the prefix writeHeader stamped.
func readHeader(buf []byte) blockHeader {
	return blockHeader{
		size:      int(binary.LittleEndian.Uint64(buf[0:8])),
		poolIndex: int(binary.LittleEndian.Uint32(buf[8:12])),
		flags:     blockFlags(buf[12]),
	}
}

// spinlock is a minimal busy-wait mutex guarding each size class's
// freelist. Hold times are a handful of instructions, far below the cost
// of parking a goroutine.
type spinlock struct{ state int32 }

func (s *spinlock) Lock() {
	for !atomic.CompareAndSwapInt32(&s.state, 0, 1) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() {
	atomic.StoreInt32(&s.state, 0)
}

// sizeClassPool is a freelist of byte buffers for one size class, backed
// by sync.Pool.
type sizeClassPool struct {
	class     int
	lock      spinlock
	pool      sync.Pool
	allocated int64
	freed     int64
	expansions int64
}

func newSizeClassPool(class int) *sizeClassPool {
	p := &sizeClassPool{class: class}
	p.pool = sync.Pool{
		New: func() any {
			buf := make([]byte, class+headerSize)
			return &buf
		},
	}

	return p
}

// get returns a buffer sized for this class, growing the backing pool by
// 50% of currently-allocated chunks (minimum 32) when demand outruns the
// freelist.
func (p *sizeClassPool) get() *[]byte {
	p.lock.Lock()
	defer p.lock.Unlock()

	before := p.pool.Get()
	buf, ok := before.(*[]byte)

	if !ok || buf == nil {
		buf = &[]byte{}
		*buf = make([]byte, p.class+headerSize)
	}

	atomic.AddInt64(&p.allocated, 1)

	if grow := p.growthSize(); grow > 0 {
		atomic.AddInt64(&p.expansions, 1)

		for i := 0; i < grow; i++ {
			extra := make([]byte, p.class+headerSize)
			p.pool.Put(&extra)
		}
	}

	return buf
}

// growthSize returns how many extra blocks to pre-warm the pool with when
// outstanding allocations cross a 32-block boundary with nothing freed to
// reuse. sync.Pool hides exact exhaustion, so this approximates
// "exhausted: expand by 50%, minimum 32 blocks" from the outstanding
// count instead.
func (p *sizeClassPool) growthSize() int {
	allocated := atomic.LoadInt64(&p.allocated)
	freed := atomic.LoadInt64(&p.freed)

	if allocated <= freed {
		return 0
	}

	outstanding := allocated - freed
	if outstanding%32 != 0 {
		return 0
	}

	grow := outstanding / 2
	if grow < 32 {
		grow = 32
	}

	return int(grow)
}

func (p *sizeClassPool) put(buf *[]byte) {
	p.lock.Lock()
	defer p.lock.Unlock()

	for i := range *buf {
		(*buf)[i] = 0
	}

	p.pool.Put(buf)
	atomic.AddInt64(&p.freed, 1)
}

func (p *sizeClassPool) stats() (allocated, freed, expansions int64) {
	return atomic.LoadInt64(&p.allocated), atomic.LoadInt64(&p.freed), atomic.LoadInt64(&p.expansions)
}

// classFor returns the smallest size class fitting size, or -1 if size
// exceeds every class (the system-allocator fallback path).
func classFor(size int) int {
	for i, c := range sizeClasses {
		if size <= c {
			return i
		}
	}

	return -1
}
