package gocollectd

import (
	"runtime"
	"time"

	"github.com/spf13/pflag"
)

// DefaultTypesDB is the default list of types database files. Empty means the built in database is used.
var DefaultTypesDB = []string{}

// DefaultSinks is the list of default sinks' names.
var DefaultSinks = []string{"graphite"}

// DefaultMaxReaders is the default number of socket reading goroutines.
var DefaultMaxReaders = minInt(8, runtime.NumCPU())

// DefaultMaxParsers is the default number of goroutines that decode datagrams.
var DefaultMaxParsers = runtime.NumCPU()

// DefaultNameHostTrim is the default list of host name suffixes to trim.
var DefaultNameHostTrim = []string{}

// DefaultHTTPServers is the default list of http servers to start.
var DefaultHTTPServers = []string{}

const (
	// DefaultCollectdAddr is the default address on which to listen for collectd datagrams.
	DefaultCollectdAddr = "127.0.0.1:25826"
	// DefaultReceiveBatchSize is the number of datagrams to read in each receive batch.
	DefaultReceiveBatchSize = 50
	// DefaultConnPerReader is the default for whether to create a connection per reader.
	DefaultConnPerReader = false
	// DefaultMaxQueueSize is the default size of the sample queue between the decoders and the forwarder.
	DefaultMaxQueueSize = 10000 // arbitrary
	// DefaultQueuePolicy is the default behaviour of a full sample queue.
	DefaultQueuePolicy = "block"
	// DefaultStateExpiryInterval is the default idle time after which per-series state is dropped. 0 never drops.
	DefaultStateExpiryInterval = time.Duration(0)
	// DefaultGaugeByteOrder is the byte order of gauge values on the wire.  collectd writes them in x86 order.
	DefaultGaugeByteOrder = "little"
	// DefaultBadDatagramsPerMinute is the default number of malformed datagrams to warn about per minute.
	DefaultBadDatagramsPerMinute = 0
	// DefaultFlushInterval is the default interval at which batched samples are sent to the sinks.
	DefaultFlushInterval = 1 * time.Second
	// DefaultMaxBatchSize is the default number of samples sent to the sinks in one batch.
	DefaultMaxBatchSize = 500
	// DefaultInternalNamespace is the default namespace of internal metrics.
	DefaultInternalNamespace = "gocollectd"
	// DefaultStatserType is the default type of statser.
	DefaultStatserType = StatserInternal
	// DefaultNameReplaceChar is the default replacement for characters that are not valid in a metric path.
	DefaultNameReplaceChar = "_"
	// DefaultNameStripDuplicates is the default for stripping consecutive duplicate path components.
	DefaultNameStripDuplicates = true
	// DefaultHeartbeatEnabled is the default heartbeat enabled flag
	DefaultHeartbeatEnabled = false
)

const (
	// StatserInternal is the name used to indicate the use of the internal statser.
	StatserInternal = "internal"
	// StatserLogging is the name used to indicate the use of the logging statser.
	StatserLogging = "logging"
	// StatserNull is the name used to indicate the use of the null statser.
	StatserNull = "null"
	// StatserPrometheus is the name used to indicate the use of the prometheus statser.
	StatserPrometheus = "prometheus"
)

const (
	// ParamCollectdAddr is the name of parameter with address on which to listen for collectd datagrams.
	ParamCollectdAddr = "collectd-addr"
	// ParamTypesDB is the name of parameter with the list of types database files.
	ParamTypesDB = "types-db"
	// ParamMaxReaders is the name of parameter with number of socket readers.
	ParamMaxReaders = "max-readers"
	// ParamMaxParsers is the name of parameter with number of goroutines that decode datagrams.
	ParamMaxParsers = "max-parsers"
	// ParamReceiveBatchSize is the name of parameter with number of datagrams to read in each receive batch.
	ParamReceiveBatchSize = "receive-batch-size"
	// ParamConnPerReader is the name of parameter indicating whether to create a connection per reader.
	ParamConnPerReader = "conn-per-reader"
	// ParamMaxQueueSize is the name of parameter with the size of the sample queue.
	ParamMaxQueueSize = "max-queue-size"
	// ParamQueuePolicy is the name of parameter with the behaviour of a full sample queue (block or drop).
	ParamQueuePolicy = "queue-policy"
	// ParamStateExpiryInterval is the name of parameter with the idle time after which per-series state is dropped.
	ParamStateExpiryInterval = "state-expiry-interval"
	// ParamGaugeByteOrder is the name of parameter with the byte order of gauge values on the wire.
	ParamGaugeByteOrder = "gauge-byte-order"
	// ParamBadDatagramsPerMinute is the name of the parameter indicating how many malformed datagrams to warn about per minute.
	ParamBadDatagramsPerMinute = "bad-datagrams-per-minute"
	// ParamSinks is the name of parameter with sinks.
	ParamSinks = "sinks"
	// ParamFlushInterval is the name of parameter with the interval at which batched samples are sent.
	ParamFlushInterval = "flush-interval"
	// ParamMaxBatchSize is the name of parameter with the number of samples sent in one batch.
	ParamMaxBatchSize = "max-batch-size"
	// ParamInternalNamespace is the name of parameter with the namespace of internal metrics.
	ParamInternalNamespace = "internal-namespace"
	// ParamStatserType is the name of parameter with type of statser.
	ParamStatserType = "statser-type"
	// ParamHeartbeatEnabled is the name of the parameter indicating if heartbeat is enabled.
	ParamHeartbeatEnabled = "heartbeat-enabled"
	// ParamHTTPServers is the name of the parameter with the list of http servers to start.
	ParamHTTPServers = "http-servers"
	// ParamNamePrefix is the name of parameter with a string prepended to every metric name.
	ParamNamePrefix = "name-prefix"
	// ParamNamePrefixParts is the name of parameter with path components prepended to every metric name.
	ParamNamePrefixParts = "name-prefix-parts"
	// ParamNamePostfix is the name of parameter with a string appended to every metric name.
	ParamNamePostfix = "name-postfix"
	// ParamNamePostfixParts is the name of parameter with path components appended to every metric name.
	ParamNamePostfixParts = "name-postfix-parts"
	// ParamNameReplaceChar is the name of parameter with the replacement for invalid metric path characters.
	ParamNameReplaceChar = "name-replace-char"
	// ParamNameStripDuplicates is the name of parameter indicating if consecutive duplicate path components are stripped.
	ParamNameStripDuplicates = "name-strip-duplicates"
	// ParamNameHostTrim is the name of parameter with the host name suffixes to trim.
	ParamNameHostTrim = "name-host-trim"
)

// AddFlags adds flags to the specified FlagSet.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ParamCollectdAddr, DefaultCollectdAddr, "Address on which to listen for collectd datagrams")
	fs.StringSlice(ParamTypesDB, DefaultTypesDB, "Types database files, later files override earlier ones")
	fs.Int(ParamMaxReaders, DefaultMaxReaders, "Maximum number of socket readers")
	fs.Int(ParamMaxParsers, DefaultMaxParsers, "Maximum number of workers to decode datagrams")
	fs.Int(ParamReceiveBatchSize, DefaultReceiveBatchSize, "The number of datagrams to read in each receive batch")
	fs.Bool(ParamConnPerReader, DefaultConnPerReader, "Create a separate connection per reader (requires system support for reusing addresses)")
	fs.Int(ParamMaxQueueSize, DefaultMaxQueueSize, "Maximum number of buffered samples between decoders and sinks")
	fs.String(ParamQueuePolicy, DefaultQueuePolicy, "Behaviour when the sample queue is full, block or drop")
	fs.Duration(ParamStateExpiryInterval, DefaultStateExpiryInterval, "Drop rate state of series not seen for this long (0 to disable)")
	fs.String(ParamGaugeByteOrder, DefaultGaugeByteOrder, "Byte order of gauge values on the wire, little or big")
	fs.Float64(ParamBadDatagramsPerMinute, DefaultBadDatagramsPerMinute, "The number of malformed datagrams to warn about per minute")
	fs.StringSlice(ParamSinks, DefaultSinks, "Sinks to forward samples to")
	fs.Duration(ParamFlushInterval, DefaultFlushInterval, "How often to flush batched samples to the sinks")
	fs.Int(ParamMaxBatchSize, DefaultMaxBatchSize, "Maximum number of samples sent to a sink in one batch")
	fs.String(ParamInternalNamespace, DefaultInternalNamespace, "Namespace for internal metrics")
	fs.String(ParamStatserType, DefaultStatserType, "Statser type to be used for sending metrics")
	fs.Bool(ParamHeartbeatEnabled, DefaultHeartbeatEnabled, "Enables heartbeat")
	fs.StringSlice(ParamHTTPServers, DefaultHTTPServers, "Http servers to start, configured under http.<name>")
	fs.String(ParamNamePrefix, "", "String prepended to every metric name")
	fs.StringSlice(ParamNamePrefixParts, nil, "Path components prepended to every metric name")
	fs.String(ParamNamePostfix, "", "String appended to every metric name")
	fs.StringSlice(ParamNamePostfixParts, nil, "Path components appended to every metric name")
	fs.String(ParamNameReplaceChar, DefaultNameReplaceChar, "Replacement for characters not valid in a metric path")
	fs.Bool(ParamNameStripDuplicates, DefaultNameStripDuplicates, "Strip consecutive duplicate path components")
	fs.StringSlice(ParamNameHostTrim, DefaultNameHostTrim, "Host name suffixes to trim, for example .example.com")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
