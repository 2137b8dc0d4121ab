package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesBufferIsEmpty(t *testing.T) {
	t.Parallel()
	p := NewBytesBuffer(64)
	buf := p.Get()
	require.Zero(t, buf.Len())
	assert.GreaterOrEqual(t, buf.Cap(), 64)
	buf.WriteString("leftover")
	p.Put(buf)
	assert.Zero(t, p.Get().Len())
}

func TestDatagramBufferFullSize(t *testing.T) {
	t.Parallel()
	p := NewDatagramBuffer(1452)
	b := p.Get()
	require.Len(t, *b, 1452)
	*b = (*b)[:10]
	p.Put(b)
	assert.Len(t, *p.Get(), 1452)
}
