package collectd

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/pkg/stats"
)

// DatagramParser decodes datagrams, reconstructs their samples and hands them to a SampleHandler.  A datagram
// that fails to decode is dropped whole and never stops the parser.
type DatagramParser struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	datagramsParsed uint64
	badDatagrams    uint64
	badValueLists   uint64
	valueLists      uint64

	logger         logrus.FieldLogger
	badDatagramLog *rate.Limiter
	decoder        *Decoder
	engine         *Engine
	handler        gocollectd.SampleHandler

	in <-chan *Datagram // Input chan of datagrams to parse
}

// NewDatagramParser initialises a new DatagramParser.  Up to badDatagramsPerMinute malformed datagrams are
// logged as warnings, the rest only at debug level.
func NewDatagramParser(logger logrus.FieldLogger, in <-chan *Datagram, decoder *Decoder, engine *Engine, handler gocollectd.SampleHandler, badDatagramsPerMinute float64) *DatagramParser {
	var limiter *rate.Limiter
	if badDatagramsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(badDatagramsPerMinute/60), 1)
	}
	return &DatagramParser{
		logger:         logger,
		badDatagramLog: limiter,
		decoder:        decoder,
		engine:         engine,
		handler:        handler,
		in:             in,
	}
}

// RunMetricsContext reports parse counters on every flush.
func (dp *DatagramParser) RunMetricsContext(ctx context.Context) {
	statser := stats.FromContext(ctx)
	flushed, unregister := statser.RegisterFlush()
	defer unregister()
	for {
		select {
		case <-ctx.Done():
			return
		case <-flushed:
			statser.Count("parser.datagrams_parsed", float64(atomic.SwapUint64(&dp.datagramsParsed, 0)), nil)
			statser.Count("parser.bad_datagrams", float64(atomic.SwapUint64(&dp.badDatagrams, 0)), nil)
			statser.Count("parser.bad_value_lists", float64(atomic.SwapUint64(&dp.badValueLists, 0)), nil)
			statser.Count("parser.value_lists", float64(atomic.SwapUint64(&dp.valueLists, 0)), nil)
		}
	}
}

// Run parses datagrams until ctx is done.
func (dp *DatagramParser) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case dg := <-dp.in:
			err := dp.HandleDatagram(ctx, dg)
			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				dp.logger.WithError(err).Warn("Failed to dispatch samples")
			}
		}
	}
}

// HandleDatagram processes one datagram and releases it.  Decode failures are counted and logged, only an
// error from the SampleHandler is returned.
func (dp *DatagramParser) HandleDatagram(ctx context.Context, dg *Datagram) error {
	lists, err := dp.decoder.Decode(dg.Msg)
	if dg.DoneFunc != nil {
		dg.DoneFunc()
	}
	atomic.AddUint64(&dp.datagramsParsed, 1)
	if err != nil {
		atomic.AddUint64(&dp.badDatagrams, 1)
		dp.logBad(dg, err)
		return nil
	}
	atomic.AddUint64(&dp.valueLists, uint64(len(lists)))

	var samples []gocollectd.Sample
	for _, vl := range lists {
		s, err := dp.engine.Reconstruct(ctx, vl)
		if err != nil {
			atomic.AddUint64(&dp.badValueLists, 1)
			dp.logBad(dg, err)
			continue
		}
		samples = append(samples, s...)
	}
	if len(samples) == 0 {
		return nil
	}
	return dp.handler.DispatchSamples(ctx, samples...)
}

func (dp *DatagramParser) logBad(dg *Datagram, err error) {
	logger := dp.logger.WithError(err).WithField("addr", addrString(dg))
	var arity *ArityMismatchError
	if errors.As(err, &arity) {
		logger = logger.WithField("type", arity.Type)
	}
	// logging as debug to avoid spamming logs when a bad actor sends
	// badly formatted datagrams
	if dp.badDatagramLog != nil && dp.badDatagramLog.Allow() {
		logger.Warn("Error decoding datagram")
		return
	}
	logger.Debug("Error decoding datagram")
}

func addrString(dg *Datagram) string {
	if dg.Addr == nil {
		return "unknown"
	}
	return dg.Addr.String()
}
