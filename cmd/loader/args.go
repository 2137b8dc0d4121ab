package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

type commandOptions struct {
	Target         string  `short:"a" long:"address"                 default:"127.0.0.1:25826" description:"Address to send datagrams"                         `
	HostPrefix     string  `short:"p" long:"host-prefix"             default:"loadtest-"       description:"Host name prefix"                                  `
	Plugin         string  `          long:"plugin"                  default:"loader"          description:"Plugin name of every value list"                   `
	Rate           uint    `short:"r" long:"rate"                    default:"1000"            description:"Target packets per second"                         `
	DatagramSize   uint    `          long:"buffer-size"             default:"1452"            description:"Maximum size of datagram to send"                  `
	Workers        uint    `short:"w" long:"workers"                 default:"1"               description:"Number of parallel workers to use"                 `
	Interval       float64 `          long:"interval"                default:"10"              description:"Interval to report in each value list, in seconds" `
	HighResolution bool    `          long:"high-resolution"                                   description:"Send TIME_HR and INTERVAL_HR parts"                `
	GaugeByteOrder string  `          long:"gauge-byte-order"        default:"little"          description:"Byte order of gauge values, little or big"         `
	Counts         struct {
		Gauge    uint64 `     short:"g" long:"gauge-count"                                       description:"Number of gauges to send"                          `
		Counter  uint64 `     short:"c" long:"counter-count"                                     description:"Number of counters to send"                        `
		Derive   uint64 `     short:"d" long:"derive-count"                                      description:"Number of derives to send"                         `
		Absolute uint64 `     short:"b" long:"absolute-count"                                    description:"Number of absolutes to send"                       `
	} `group:"Value count"`
	HostCard     uint `         long:"host-cardinality"        default:"1"               description:"Cardinality of host names per worker"              `
	InstanceCard struct {
		Gauge    uint `        long:"gauge-cardinality"       default:"1"               description:"Cardinality of gauge type instances"               `
		Counter  uint `        long:"counter-cardinality"     default:"1"               description:"Cardinality of counter type instances"             `
		Derive   uint `        long:"derive-cardinality"      default:"1"               description:"Cardinality of derive type instances"              `
		Absolute uint `        long:"absolute-cardinality"    default:"1"               description:"Cardinality of absolute type instances"            `
	} `group:"Type instance cardinality"`
	ValueRange struct {
		Gauge     uint `       long:"gauge-value-limit"       default:"100"             description:"Maximum value of gauges"                           `
		Increment uint `       long:"increment-limit"         default:"100"             description:"Maximum step of counters, derives and absolutes"   `
	} `group:"Value range"`
}

func parseArgs(args []string) commandOptions {
	var opts commandOptions
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.LongDescription = "" + // because gofmt
		"Every worker sends value lists for its own set of hosts, named <host-prefix><worker>-<N>.\n" +
		"The maximum number of series per kind will be:\n\n" +
		"|workers| * |hosts| * |type instances|\n\n" +
		"Counters, derives and absolutes grow by a random step every time they are sent."

	positional, err := parser.ParseArgs(args)
	if err != nil {
		if !isHelp(err) {
			parser.WriteHelp(os.Stderr)
			_, _ = fmt.Fprintf(os.Stderr, "\n\nerror parsing command line: %v\n", err)
			os.Exit(1)
		}
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}

	if len(positional) != 0 {
		// Near as I can tell there's no way to say no positional arguments allowed.
		parser.WriteHelp(os.Stderr)
		_, _ = fmt.Fprintf(os.Stderr, "\n\nno positional arguments allowed\n")
		os.Exit(1)
	}

	if opts.Counts.Gauge+opts.Counts.Counter+opts.Counts.Derive+opts.Counts.Absolute == 0 {
		parser.WriteHelp(os.Stderr)
		_, _ = fmt.Fprintf(os.Stderr, "\n\nAt least one of gauge-count, counter-count, derive-count, or absolute-count must be non-zero\n")
		os.Exit(1)
	}
	if opts.Workers == 0 || opts.Rate == 0 || opts.HostCard == 0 {
		parser.WriteHelp(os.Stderr)
		_, _ = fmt.Fprintf(os.Stderr, "\n\nworkers, rate and host-cardinality must be non-zero\n")
		os.Exit(1)
	}
	return opts
}

// isHelp is a helper to test the error from ParseArgs() to
// determine if the help message was written. It is safe to
// call without first checking that error is nil.
func isHelp(err error) bool {
	if err == nil { // No error
		return false
	}

	flagError, ok := err.(*flags.Error)
	if !ok { // Not a go-flag error
		return false
	}

	return flagError.Type == flags.ErrHelp
}
