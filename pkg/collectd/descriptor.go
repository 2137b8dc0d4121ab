package collectd

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultDataSourceName is the name of the only data source of most collectd types.  It is not part of
// sample names.
const DefaultDataSourceName = "value"

// Descriptor identifies the series that following values belong to.  Metadata parts are only sent when they
// change, so a Descriptor is folded over the parts of a datagram.
type Descriptor struct {
	Host           string
	Plugin         string
	PluginInstance string
	Type           string
	TypeInstance   string
	Time           float64 // Seconds since the epoch, 0 if not sent
	Interval       float64 // Seconds, 0 if not sent
}

// Key returns the SeriesKey of the named data source.
func (d *Descriptor) Key(dsName string) SeriesKey {
	return SeriesKey{
		Host:           d.Host,
		Plugin:         d.Plugin,
		PluginInstance: d.PluginInstance,
		Type:           d.Type,
		TypeInstance:   d.TypeInstance,
		DataSource:     dsName,
	}
}

// Name builds the dot separated sample name of the named data source:
// host.plugin[.plugin_instance].type[.type_instance][.ds].  Dots in the host are replaced with '_'.
func (d *Descriptor) Name(dsName string) string {
	var sb strings.Builder
	sb.Grow(len(d.Host) + len(d.Plugin) + len(d.PluginInstance) + len(d.Type) + len(d.TypeInstance) + len(dsName) + 5)
	sb.WriteString(strings.Replace(d.Host, ".", "_", -1))
	sb.WriteByte('.')
	sb.WriteString(d.Plugin)
	if d.PluginInstance != "" {
		sb.WriteByte('.')
		sb.WriteString(d.PluginInstance)
	}
	sb.WriteByte('.')
	sb.WriteString(d.Type)
	if d.TypeInstance != "" {
		sb.WriteByte('.')
		sb.WriteString(d.TypeInstance)
	}
	if dsName != DefaultDataSourceName {
		sb.WriteByte('.')
		sb.WriteString(dsName)
	}
	return sb.String()
}

// SeriesKey is the identity of one rate tracked data source.
type SeriesKey struct {
	Host           string
	Plugin         string
	PluginInstance string
	Type           string
	TypeInstance   string
	DataSource     string
}

func (k SeriesKey) hash() uint64 {
	d := xxhash.New()
	for _, s := range [...]string{k.Host, k.Plugin, k.PluginInstance, k.Type, k.TypeInstance, k.DataSource} {
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

func (k SeriesKey) String() string {
	return strings.Join([]string{k.Host, k.Plugin, k.PluginInstance, k.Type, k.TypeInstance, k.DataSource}, "/")
}

// ValueList is the snapshot of the descriptor and the raw values of one values part.
type ValueList struct {
	Descriptor
	Values []Value
}
