//go:build gofuzz
// +build gofuzz

package collectd

import (
	"encoding/binary"
	"fmt"
)

func Fuzz(data []byte) int {
	lists, err := NewDecoder(binary.LittleEndian).Decode(data)
	if err != nil {
		if lists != nil {
			panic(fmt.Errorf("value lists returned with error %v: %+v", err, lists))
		}
		return 0
	}
	for _, vl := range lists {
		if vl.Plugin == "" || vl.Type == "" || len(vl.Values) == 0 {
			panic(fmt.Errorf("incomplete value list: %+v", vl))
		}
	}
	if len(lists) > 0 {
		return 1
	}
	return 0
}
