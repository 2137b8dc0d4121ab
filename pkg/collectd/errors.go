package collectd

import (
	"fmt"
)

// TruncatedPacketError is returned when a part declares more bytes than the datagram holds.
type TruncatedPacketError struct {
	Offset    int // Offset of the part header within the datagram
	Declared  int // Length declared by the part header, -1 if the header itself is cut short
	Remaining int // Bytes left in the datagram from Offset
}

func (e *TruncatedPacketError) Error() string {
	if e.Declared < 0 {
		return fmt.Sprintf("truncated packet: %d trailing bytes at offset %d, need %d for a part header", e.Remaining, e.Offset, partHeaderLen)
	}
	return fmt.Sprintf("truncated packet: part at offset %d declares %d bytes, %d remaining", e.Offset, e.Declared, e.Remaining)
}

// UnsupportedPartError is returned for signed or encrypted datagrams.
type UnsupportedPartError struct {
	Code uint16
}

func (e *UnsupportedPartError) Error() string {
	return fmt.Sprintf("unsupported part %s (0x%04x)", PartName(e.Code), e.Code)
}

// IncompleteContextError is returned when a values part arrives before the plugin and type it belongs to.
type IncompleteContextError struct {
	Offset  int
	Missing string
}

func (e *IncompleteContextError) Error() string {
	return fmt.Sprintf("values part at offset %d has no %s", e.Offset, e.Missing)
}

// ArityMismatchError is returned when the number of values does not match the type definition.
type ArityMismatchError struct {
	Type     string
	Expected int
	Got      int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("type %q has %d data sources, got %d values", e.Type, e.Expected, e.Got)
}

// MalformedPartError is returned when the payload of a known part can not be decoded.
type MalformedPartError struct {
	Code   uint16
	Offset int
	Reason string
}

func (e *MalformedPartError) Error() string {
	return fmt.Sprintf("malformed %s part at offset %d: %s", PartName(e.Code), e.Offset, e.Reason)
}
