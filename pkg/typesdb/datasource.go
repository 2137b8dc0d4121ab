package typesdb

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is the way the raw value of a data source is turned into a calibrated value.
type Kind byte

const (
	_ = iota
	// Gauge values are taken as-is.
	Gauge Kind = iota
	// Counter values are monotonically increasing and may wrap around.
	Counter
	// Derive values are signed and converted to a rate without wraparound correction.
	Derive
	// Absolute values are reset on every read, and are converted to a rate over the elapsed time.
	Absolute
)

func (k Kind) String() string {
	switch k {
	case Gauge:
		return "GAUGE"
	case Counter:
		return "COUNTER"
	case Derive:
		return "DERIVE"
	case Absolute:
		return "ABSOLUTE"
	}
	return "unknown"
}

// ParseKind converts a case-sensitive kind token into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "GAUGE":
		return Gauge, nil
	case "COUNTER":
		return Counter, nil
	case "DERIVE":
		return Derive, nil
	case "ABSOLUTE":
		return Absolute, nil
	}
	return 0, fmt.Errorf("unknown data source kind %q", s)
}

// Unbounded is the marker for a missing minimum or maximum.
const Unbounded = "U"

// DataSource is one named, typed value slot within a type definition.
type DataSource struct {
	Name string
	Kind Kind
	Min  float64 // NaN if unbounded
	Max  float64 // NaN if unbounded
}

// InBounds reports if v lies within [Min, Max].  Bounds are inclusive, an unbounded side always passes.
func (ds DataSource) InBounds(v float64) bool {
	if !math.IsNaN(ds.Min) && v < ds.Min {
		return false
	}
	if !math.IsNaN(ds.Max) && v > ds.Max {
		return false
	}
	return true
}

// Bounds returns Min and Max as written in a types database, "U" when unbounded.
func (ds DataSource) Bounds() (min string, max string) {
	return formatBound(ds.Min), formatBound(ds.Max)
}

func (ds DataSource) String() string {
	return ds.Name + ":" + ds.Kind.String() + ":" + formatBound(ds.Min) + ":" + formatBound(ds.Max)
}

// TypeDefinition is the ordered list of data sources of a type.  Raw values are matched by position.
type TypeDefinition []DataSource

// Names returns the data source names in order.
func (td TypeDefinition) Names() []string {
	names := make([]string, len(td))
	for i, ds := range td {
		names[i] = ds.Name
	}
	return names
}

func parseBound(s string) (float64, error) {
	if s == Unbounded {
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bound %q", s)
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("invalid bound %q", s)
	}
	return f, nil
}

func formatBound(f float64) string {
	if math.IsNaN(f) {
		return Unbounded
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
