package collectd

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartReader(t *testing.T) {
	t.Parallel()
	var dg []byte
	dg = AppendString(dg, PartHost, "host")
	dg = AppendNumber(dg, PartTime, 42)
	dg = AppendPart(dg, 0x7777, []byte{1, 2, 3})

	pr := NewPartReader(dg)
	p, err := pr.Next()
	require.NoError(t, err)
	assert.Equal(t, PartHost, p.Code)
	assert.EqualValues(t, 9, p.Length)
	assert.Equal(t, 0, p.Offset)
	assert.Equal(t, []byte("host\x00"), p.Payload)

	p, err = pr.Next()
	require.NoError(t, err)
	assert.Equal(t, PartTime, p.Code)
	assert.Equal(t, 9, p.Offset)
	assert.Len(t, p.Payload, 8)

	p, err = pr.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 0x7777, p.Code)
	assert.Equal(t, []byte{1, 2, 3}, p.Payload)

	_, err = pr.Next()
	require.Equal(t, io.EOF, err)
	_, err = pr.Next()
	require.Equal(t, io.EOF, err)
}

func TestPartReaderEmptyPayload(t *testing.T) {
	t.Parallel()
	pr := NewPartReader(AppendPart(nil, 0x1234, nil))
	p, err := pr.Next()
	require.NoError(t, err)
	assert.Empty(t, p.Payload)
	_, err = pr.Next()
	require.Equal(t, io.EOF, err)
}

func TestPartReaderTruncated(t *testing.T) {
	t.Parallel()
	valid := AppendString(nil, PartHost, "h")
	tests := []struct {
		name      string
		datagram  []byte
		offset    int
		declared  int
		remaining int
	}{
		{"short header", []byte{0, 0, 0}, 0, -1, 3},
		{"short trailing header", append(append([]byte(nil), valid...), 0, 1), len(valid), -1, 2},
		{"length beyond datagram", []byte{0, 0, 0, 10, 'a', 0}, 0, 10, 6},
		{"length below header", []byte{0, 0, 0, 3, 0}, 0, 3, 5},
		{"zero length", []byte{0, 0, 0, 0}, 0, 0, 4},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			pr := NewPartReader(tc.datagram)
			var err error
			for err == nil {
				_, err = pr.Next()
			}
			var trunc *TruncatedPacketError
			require.True(t, errors.As(err, &trunc), err)
			assert.Equal(t, tc.offset, trunc.Offset)
			assert.Equal(t, tc.declared, trunc.Declared)
			assert.Equal(t, tc.remaining, trunc.Remaining)
			assert.NotEmpty(t, trunc.Error())
		})
	}
}

func TestPartName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "time_hr", PartName(PartTimeHR))
	assert.Equal(t, "encryption", PartName(PartEncryption))
	assert.Equal(t, "unknown", PartName(0x4242))
}
