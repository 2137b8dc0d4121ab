package collectd

import (
	"bytes"
	"encoding/binary"
	"io"
)

// hrScale is the number of high resolution time units per second.
const hrScale = 1 << 30

// Decoder turns datagrams into ValueLists.  It holds no per-datagram state and is safe for concurrent use.
type Decoder struct {
	gaugeOrder binary.ByteOrder
}

// NewDecoder returns a Decoder reading gauge doubles in the given byte order.
func NewDecoder(gaugeOrder binary.ByteOrder) *Decoder {
	if gaugeOrder == nil {
		gaugeOrder = binary.LittleEndian
	}
	return &Decoder{
		gaugeOrder: gaugeOrder,
	}
}

// Decode folds every part of datagram into a Descriptor and returns a ValueList for each values part.  The
// descriptor starts empty for every datagram.  Either the whole datagram decodes, or an error is returned
// and no ValueLists are.
func (d *Decoder) Decode(datagram []byte) ([]ValueList, error) {
	var (
		desc       Descriptor
		timeHR     bool
		intervalHR bool
		lists      []ValueList
	)
	pr := NewPartReader(datagram)
	for {
		p, err := pr.Next()
		if err == io.EOF {
			return lists, nil
		}
		if err != nil {
			return nil, err
		}
		switch p.Code {
		case PartHost:
			desc.Host, err = decodeString(p)
		case PartPlugin:
			desc.Plugin, err = decodeString(p)
		case PartPluginInstance:
			desc.PluginInstance, err = decodeString(p)
		case PartType:
			desc.Type, err = decodeString(p)
		case PartTypeInstance:
			desc.TypeInstance, err = decodeString(p)
		case PartTime:
			var n uint64
			if n, err = decodeNumber(p); err == nil && !timeHR {
				desc.Time = float64(n)
			}
		case PartTimeHR:
			var n uint64
			if n, err = decodeNumber(p); err == nil {
				desc.Time = float64(n) / hrScale
				timeHR = true
			}
		case PartInterval:
			var n uint64
			if n, err = decodeNumber(p); err == nil && !intervalHR {
				desc.Interval = float64(n)
			}
		case PartIntervalHR:
			var n uint64
			if n, err = decodeNumber(p); err == nil {
				desc.Interval = float64(n) / hrScale
				intervalHR = true
			}
		case PartValues:
			if desc.Plugin == "" {
				return nil, &IncompleteContextError{Offset: p.Offset, Missing: "plugin"}
			}
			if desc.Type == "" {
				return nil, &IncompleteContextError{Offset: p.Offset, Missing: "type"}
			}
			var values []Value
			if values, err = decodeValues(p, d.gaugeOrder); err == nil {
				lists = append(lists, ValueList{
					Descriptor: desc,
					Values:     values,
				})
			}
		case PartSignature, PartEncryption:
			return nil, &UnsupportedPartError{Code: p.Code}
		default:
			// Notifications and unknown parts are skipped.
		}
		if err != nil {
			return nil, err
		}
	}
}

func decodeString(p Part) (string, error) {
	idx := bytes.IndexByte(p.Payload, 0)
	if idx < 0 {
		return "", &MalformedPartError{Code: p.Code, Offset: p.Offset, Reason: "string is not NUL terminated"}
	}
	return string(p.Payload[:idx]), nil
}

func decodeNumber(p Part) (uint64, error) {
	if len(p.Payload) != 8 {
		return 0, &MalformedPartError{Code: p.Code, Offset: p.Offset, Reason: "numeric payload must be 8 bytes"}
	}
	return binary.BigEndian.Uint64(p.Payload), nil
}
