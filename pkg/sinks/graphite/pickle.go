package graphite

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/atlassian/gocollectd"
)

// Pickle protocol 2 opcodes used to encode a list of (name, (timestamp, value)) tuples.
const (
	opProto      = 0x80
	opEmptyList  = ']'
	opMark       = '('
	opAppends    = 'e'
	opBinUnicode = 'X'
	opBinFloat   = 'G'
	opTuple2     = 0x86
	opStop       = '.'
)

// appendPickle writes samples to buf as one length prefixed frame for the carbon pickle receiver.
func appendPickle(buf *bytes.Buffer, samples []gocollectd.Sample) {
	var scratch [8]byte
	start := buf.Len()
	buf.Write(scratch[:4]) // length, filled in below

	buf.WriteByte(opProto)
	buf.WriteByte(2)
	buf.WriteByte(opEmptyList)
	buf.WriteByte(opMark)
	for _, s := range samples {
		buf.WriteByte(opBinUnicode)
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(s.Name)))
		buf.Write(scratch[:4])
		buf.WriteString(s.Name)

		buf.WriteByte(opBinFloat)
		binary.BigEndian.PutUint64(scratch[:], math.Float64bits(s.Timestamp))
		buf.Write(scratch[:])
		buf.WriteByte(opBinFloat)
		binary.BigEndian.PutUint64(scratch[:], math.Float64bits(s.Value))
		buf.Write(scratch[:])

		buf.WriteByte(opTuple2)
		buf.WriteByte(opTuple2)
	}
	buf.WriteByte(opAppends)
	buf.WriteByte(opStop)

	b := buf.Bytes()
	binary.BigEndian.PutUint32(b[start:start+4], uint32(len(b)-start-4))
}
