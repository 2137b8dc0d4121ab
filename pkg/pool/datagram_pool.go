package pool

import (
	"sync"
)

// DatagramBuffer is a strongly typed wrapper around a sync.Pool for fixed size receive buffers.  Pointers to
// slices are pooled so that Put does not allocate.
type DatagramBuffer struct {
	p    sync.Pool
	size int
}

// NewDatagramBuffer returns a pool of buffers of exactly size bytes.
func NewDatagramBuffer(size int) *DatagramBuffer {
	return &DatagramBuffer{
		p: sync.Pool{
			New: func() interface{} {
				b := make([]byte, size)
				return &b
			},
		},
		size: size,
	}
}

// Get returns a buffer of the full size.
func (p *DatagramBuffer) Get() *[]byte {
	b := p.p.Get().(*[]byte)
	*b = (*b)[:p.size]
	return b
}

// Put returns b to the pool.  b must not be used afterwards.
func (p *DatagramBuffer) Put(b *[]byte) {
	p.p.Put(b)
}
