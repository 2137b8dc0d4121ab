package collectd

import (
	"encoding/binary"
	"math"
)

// Encoder builds datagrams the way the collectd network plugin does: metadata parts are only written when
// they differ from the previous values part of the same datagram.
type Encoder struct {
	// HighResolution selects TIME_HR and INTERVAL_HR parts instead of TIME and INTERVAL.
	HighResolution bool

	gaugeOrder binary.ByteOrder
	buf        []byte
	last       *Descriptor
}

// NewEncoder returns an Encoder writing gauge doubles in the given byte order.
func NewEncoder(gaugeOrder binary.ByteOrder) *Encoder {
	if gaugeOrder == nil {
		gaugeOrder = binary.LittleEndian
	}
	return &Encoder{
		gaugeOrder: gaugeOrder,
	}
}

// Write appends the parts needed to describe values under d.
func (e *Encoder) Write(d Descriptor, values ...Value) {
	first := e.last == nil
	if first {
		e.last = &Descriptor{}
	}
	if first || d.Host != e.last.Host {
		e.buf = AppendString(e.buf, PartHost, d.Host)
	}
	if first || d.Time != e.last.Time {
		if e.HighResolution {
			e.buf = AppendNumber(e.buf, PartTimeHR, uint64(math.Round(d.Time*hrScale)))
		} else {
			e.buf = AppendNumber(e.buf, PartTime, uint64(d.Time))
		}
	}
	if d.Interval != 0 && (first || d.Interval != e.last.Interval) {
		if e.HighResolution {
			e.buf = AppendNumber(e.buf, PartIntervalHR, uint64(math.Round(d.Interval*hrScale)))
		} else {
			e.buf = AppendNumber(e.buf, PartInterval, uint64(d.Interval))
		}
	}
	if first || d.Plugin != e.last.Plugin {
		e.buf = AppendString(e.buf, PartPlugin, d.Plugin)
	}
	if first || d.PluginInstance != e.last.PluginInstance {
		e.buf = AppendString(e.buf, PartPluginInstance, d.PluginInstance)
	}
	if first || d.Type != e.last.Type {
		e.buf = AppendString(e.buf, PartType, d.Type)
	}
	if first || d.TypeInstance != e.last.TypeInstance {
		e.buf = AppendString(e.buf, PartTypeInstance, d.TypeInstance)
	}
	e.buf = AppendValues(e.buf, e.gaugeOrder, values...)
	*e.last = d
}

// Len returns the size of the datagram built so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Bytes returns the datagram built so far.  It is valid until the next call to Write or Reset.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Reset starts a new datagram.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.last = nil
}

func appendHeader(b []byte, code uint16, length int) []byte {
	return append(b, byte(code>>8), byte(code), byte(length>>8), byte(length))
}

// AppendString appends a NUL terminated string part.
func AppendString(b []byte, code uint16, s string) []byte {
	b = appendHeader(b, code, partHeaderLen+len(s)+1)
	b = append(b, s...)
	return append(b, 0)
}

// AppendNumber appends an 8 byte big endian numeric part.
func AppendNumber(b []byte, code uint16, n uint64) []byte {
	b = appendHeader(b, code, partHeaderLen+8)
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], n)
	return append(b, scratch[:]...)
}

// AppendValues appends a values part.
func AppendValues(b []byte, gaugeOrder binary.ByteOrder, values ...Value) []byte {
	b = appendHeader(b, PartValues, partHeaderLen+2+9*len(values))
	return appendValues(b, values, gaugeOrder)
}

// AppendPart appends a part with an arbitrary code and payload.
func AppendPart(b []byte, code uint16, payload []byte) []byte {
	b = appendHeader(b, code, partHeaderLen+len(payload))
	return append(b, payload...)
}
