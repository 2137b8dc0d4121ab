package collectd

import (
	"encoding/binary"
	"io"
)

// Part type codes of the collectd binary network protocol.
const (
	PartHost           uint16 = 0x0000
	PartTime           uint16 = 0x0001
	PartPlugin         uint16 = 0x0002
	PartPluginInstance uint16 = 0x0003
	PartType           uint16 = 0x0004
	PartTypeInstance   uint16 = 0x0005
	PartValues         uint16 = 0x0006
	PartInterval       uint16 = 0x0007
	PartTimeHR         uint16 = 0x0008
	PartIntervalHR     uint16 = 0x0009
	PartMessage        uint16 = 0x0100
	PartSeverity       uint16 = 0x0101
	PartSignature      uint16 = 0x0200
	PartEncryption     uint16 = 0x0210
)

const partHeaderLen = 4

// MaxDatagramSize is the largest datagram that can be received.  The ip packet size is stored in two bytes.
const MaxDatagramSize = 0xffff

var partNames = map[uint16]string{
	PartHost:           "host",
	PartTime:           "time",
	PartPlugin:         "plugin",
	PartPluginInstance: "plugin_instance",
	PartType:           "type",
	PartTypeInstance:   "type_instance",
	PartValues:         "values",
	PartInterval:       "interval",
	PartTimeHR:         "time_hr",
	PartIntervalHR:     "interval_hr",
	PartMessage:        "message",
	PartSeverity:       "severity",
	PartSignature:      "signature",
	PartEncryption:     "encryption",
}

// PartName returns a human readable name for a part code.
func PartName(code uint16) string {
	if name, ok := partNames[code]; ok {
		return name
	}
	return "unknown"
}

// Part is a single type-length-value field of a datagram.
type Part struct {
	Code    uint16
	Length  uint16 // Including the 4 byte header
	Offset  int    // Offset of the header within the datagram
	Payload []byte // Aliases the datagram
}

// PartReader splits a datagram into parts.  It does not interpret the payloads.
type PartReader struct {
	buf    []byte
	offset int
}

// NewPartReader returns a PartReader positioned at the start of datagram.
func NewPartReader(datagram []byte) *PartReader {
	return &PartReader{
		buf: datagram,
	}
}

// Next returns the next part, or io.EOF when the datagram is exhausted.
func (pr *PartReader) Next() (Part, error) {
	remaining := len(pr.buf) - pr.offset
	if remaining == 0 {
		return Part{}, io.EOF
	}
	if remaining < partHeaderLen {
		return Part{}, &TruncatedPacketError{
			Offset:    pr.offset,
			Declared:  -1,
			Remaining: remaining,
		}
	}
	code := binary.BigEndian.Uint16(pr.buf[pr.offset:])
	length := binary.BigEndian.Uint16(pr.buf[pr.offset+2:])
	if int(length) < partHeaderLen || int(length) > remaining {
		return Part{}, &TruncatedPacketError{
			Offset:    pr.offset,
			Declared:  int(length),
			Remaining: remaining,
		}
	}
	p := Part{
		Code:    code,
		Length:  length,
		Offset:  pr.offset,
		Payload: pr.buf[pr.offset+partHeaderLen : pr.offset+int(length)],
	}
	pr.offset += int(length)
	return p, nil
}
