package collectd

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ValueType is the per-value type tag carried in a values part.
type ValueType uint8

// Value type tags as written by collectd.
const (
	TypeCounter  ValueType = 0
	TypeGauge    ValueType = 1
	TypeDerive   ValueType = 2
	TypeAbsolute ValueType = 3
)

func (vt ValueType) String() string {
	switch vt {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeDerive:
		return "derive"
	case TypeAbsolute:
		return "absolute"
	}
	return fmt.Sprintf("ValueType(%d)", uint8(vt))
}

// Value is a raw value from the wire.  Bits holds the 8 value bytes exactly as decoded, so integer
// counters keep their full 64 bit precision.
type Value struct {
	Type ValueType
	Bits uint64
}

// GaugeValue returns a gauge Value.
func GaugeValue(f float64) Value {
	return Value{Type: TypeGauge, Bits: math.Float64bits(f)}
}

// CounterValue returns a counter Value.
func CounterValue(u uint64) Value {
	return Value{Type: TypeCounter, Bits: u}
}

// DeriveValue returns a derive Value.
func DeriveValue(i int64) Value {
	return Value{Type: TypeDerive, Bits: uint64(i)}
}

// AbsoluteValue returns an absolute Value.
func AbsoluteValue(u uint64) Value {
	return Value{Type: TypeAbsolute, Bits: u}
}

// IsFloat reports if the value was sent as a double.
func (v Value) IsFloat() bool {
	return v.Type == TypeGauge
}

// Float converts the value to a float64 according to its type tag.
func (v Value) Float() float64 {
	switch v.Type {
	case TypeGauge:
		return math.Float64frombits(v.Bits)
	case TypeDerive:
		return float64(int64(v.Bits))
	default:
		return float64(v.Bits)
	}
}

func (v Value) String() string {
	switch v.Type {
	case TypeGauge:
		return fmt.Sprintf("gauge:%g", v.Float())
	case TypeDerive:
		return fmt.Sprintf("derive:%d", int64(v.Bits))
	}
	return fmt.Sprintf("%s:%d", v.Type, v.Bits)
}

// ParseByteOrder parses "little" or "big".
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "little", "little-endian", "le":
		return binary.LittleEndian, nil
	case "big", "big-endian", "be":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("unknown byte order %q", s)
}

// decodeValues decodes the payload of a values part.  Integers are big endian, doubles use gaugeOrder.
func decodeValues(p Part, gaugeOrder binary.ByteOrder) ([]Value, error) {
	if len(p.Payload) < 2 {
		return nil, &MalformedPartError{Code: p.Code, Offset: p.Offset, Reason: "missing value count"}
	}
	count := int(binary.BigEndian.Uint16(p.Payload))
	if count == 0 {
		return nil, &MalformedPartError{Code: p.Code, Offset: p.Offset, Reason: "no values"}
	}
	if len(p.Payload) != 2+9*count {
		return nil, &MalformedPartError{
			Code:   p.Code,
			Offset: p.Offset,
			Reason: fmt.Sprintf("%d values need %d payload bytes, got %d", count, 2+9*count, len(p.Payload)),
		}
	}
	tags := p.Payload[2 : 2+count]
	data := p.Payload[2+count:]
	values := make([]Value, count)
	for i, tag := range tags {
		raw := data[i*8 : i*8+8]
		vt := ValueType(tag)
		switch vt {
		case TypeGauge:
			values[i] = Value{Type: vt, Bits: gaugeOrder.Uint64(raw)}
		case TypeCounter, TypeDerive, TypeAbsolute:
			values[i] = Value{Type: vt, Bits: binary.BigEndian.Uint64(raw)}
		default:
			return nil, &MalformedPartError{
				Code:   p.Code,
				Offset: p.Offset,
				Reason: fmt.Sprintf("unknown value type %d at position %d", tag, i),
			}
		}
	}
	return values, nil
}

// appendValues appends the payload of a values part.
func appendValues(b []byte, values []Value, gaugeOrder binary.ByteOrder) []byte {
	var scratch [8]byte
	b = append(b, byte(len(values)>>8), byte(len(values)))
	for _, v := range values {
		b = append(b, byte(v.Type))
	}
	for _, v := range values {
		if v.Type == TypeGauge {
			gaugeOrder.PutUint64(scratch[:], v.Bits)
		} else {
			binary.BigEndian.PutUint64(scratch[:], v.Bits)
		}
		b = append(b, scratch[:]...)
	}
	return b
}
