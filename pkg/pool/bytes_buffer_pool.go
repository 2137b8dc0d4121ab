package pool

import (
	"bytes"
	"sync"
)

// BytesBuffer is a strongly typed wrapper around a sync.Pool for *bytes.Buffer
type BytesBuffer struct {
	p sync.Pool
}

// NewBytesBuffer returns a pool of buffers which start with room for initialSize bytes.
func NewBytesBuffer(initialSize int) *BytesBuffer {
	return &BytesBuffer{
		p: sync.Pool{
			New: func() interface{} {
				buf := new(bytes.Buffer)
				buf.Grow(initialSize)
				return buf
			},
		},
	}
}

// Get returns an empty buffer.
func (p *BytesBuffer) Get() *bytes.Buffer {
	buffer := p.p.Get().(*bytes.Buffer)
	buffer.Reset()
	return buffer
}

func (p *BytesBuffer) Put(b *bytes.Buffer) {
	p.p.Put(b)
}
