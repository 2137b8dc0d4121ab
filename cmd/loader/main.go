package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/atlassian/gocollectd/pkg/collectd"
)

func main() {
	opts := parseArgs(os.Args[1:])

	gaugeOrder, err := collectd.ParseByteOrder(opts.GaugeByteOrder)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pendingWorkers := make(chan struct{}, opts.Workers)
	valueGenerators := make([]*valueGenerator, 0, opts.Workers)
	for i := uint(0); i < opts.Workers; i++ {
		generator := newValueGenerator(opts, i)
		valueGenerators = append(valueGenerators, generator)

		encoder := collectd.NewEncoder(gaugeOrder)
		encoder.HighResolution = opts.HighResolution
		go sendValuesWorker(
			ctx,
			opts.Target,
			opts.DatagramSize,
			rate.Limit(float64(opts.Rate)/float64(opts.Workers)),
			encoder,
			generator,
			pendingWorkers,
		)
	}

	runningWorkers := opts.Workers
	statusTicker := time.NewTicker(1 * time.Second)
	defer statusTicker.Stop()
	for runningWorkers > 0 {
		select {
		case <-pendingWorkers:
			runningWorkers--
		case <-statusTicker.C:
			gauges := uint64(0)
			counters := uint64(0)
			derives := uint64(0)
			absolutes := uint64(0)
			for _, vg := range valueGenerators {
				gauges += atomic.LoadUint64(&vg.gauges.count)
				counters += atomic.LoadUint64(&vg.counters.count)
				derives += atomic.LoadUint64(&vg.derives.count)
				absolutes += atomic.LoadUint64(&vg.absolutes.count)
			}
			fmt.Printf("%d gauges, %d counters, %d derives, %d absolutes\n", gauges, counters, derives, absolutes)
		}
	}
}

func newValueGenerator(opts commandOptions, worker uint) *valueGenerator {
	return &valueGenerator{
		rnd:        rand.New(rand.NewSource(rand.Int63())),
		hostFormat: fmt.Sprintf("%s%d-%%d", opts.HostPrefix, worker),
		plugin:     opts.Plugin,
		interval:   opts.Interval,
		gauges: seriesData{
			count:           opts.Counts.Gauge / uint64(opts.Workers),
			typeName:        "gauge",
			instanceCard:    opts.InstanceCard.Gauge,
			valueLimit:      opts.ValueRange.Gauge,
			hostCardinality: opts.HostCard,
		},
		counters: seriesData{
			count:           opts.Counts.Counter / uint64(opts.Workers),
			typeName:        "counter",
			instanceCard:    opts.InstanceCard.Counter,
			valueLimit:      opts.ValueRange.Increment,
			cumulative:      map[string]uint64{},
			newCumulative:   collectd.CounterValue,
			hostCardinality: opts.HostCard,
		},
		derives: seriesData{
			count:        opts.Counts.Derive / uint64(opts.Workers),
			typeName:     "derive",
			instanceCard: opts.InstanceCard.Derive,
			valueLimit:   opts.ValueRange.Increment,
			cumulative:   map[string]uint64{},
			newCumulative: func(u uint64) collectd.Value {
				return collectd.DeriveValue(int64(u))
			},
			hostCardinality: opts.HostCard,
		},
		absolutes: seriesData{
			count:           opts.Counts.Absolute / uint64(opts.Workers),
			typeName:        "absolute",
			instanceCard:    opts.InstanceCard.Absolute,
			valueLimit:      opts.ValueRange.Increment,
			newCumulative:   collectd.AbsoluteValue,
			hostCardinality: opts.HostCard,
		},
	}
}

func sendValuesWorker(
	ctx context.Context,
	address string,
	bufSize uint,
	packetRate rate.Limit,
	encoder *collectd.Encoder,
	generator *valueGenerator,
	chDone chan<- struct{},
) {
	defer func() {
		chDone <- struct{}{}
	}()
	s, err := net.DialTimeout("udp", address, 1*time.Second)
	if err != nil {
		panic(err)
	}
	defer s.Close()

	limiter := rate.NewLimiter(packetRate, 1)
	send := func(datagram []byte) bool {
		if err := limiter.Wait(ctx); err != nil {
			return false
		}
		if _, err := s.Write(datagram); err != nil {
			fmt.Printf("Pausing for 1 second, error sending packet: %v\n", err)
			time.Sleep(1 * time.Second)
		}
		return true
	}

	for {
		now := float64(time.Now().UnixNano()) / float64(time.Second)
		d, v, ok := generator.next(now)
		if !ok {
			break
		}
		before := encoder.Len()
		encoder.Write(d, v)
		if uint(encoder.Len()) > bufSize && before > 0 {
			// Send what fitted, and start the next datagram with this value list.
			if !send(encoder.Bytes()[:before]) {
				return
			}
			encoder.Reset()
			encoder.Write(d, v)
		}
	}

	if encoder.Len() > 0 {
		send(encoder.Bytes())
	}
}
