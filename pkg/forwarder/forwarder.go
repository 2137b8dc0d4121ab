package forwarder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/pkg/namer"
	"github.com/atlassian/gocollectd/pkg/stats"
	"github.com/atlassian/gocollectd/pkg/util"
)

// DefaultMaxConcurrentSends is the default number of batches in flight to the sinks at once.
const DefaultMaxConcurrentSends = 10

// Forwarder drains the sample queue, names the samples and sends them to every sink in batches.  A batch is
// sent when it reaches maxBatchSize samples, or on every flushInterval tick if it is not empty.
type Forwarder struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	lastSend      int64 // Last time a batch was sent successfully. Unix timestamp in nsec.
	lastSendError int64 // Time of the last failed send. Unix timestamp in nsec.
	sent          uint64
	failed        uint64
	batches       uint64

	logger        logrus.FieldLogger
	in            <-chan gocollectd.Sample
	namer         *namer.Namer
	sinks         []gocollectd.Sink
	flushInterval time.Duration
	maxBatchSize  int
	sem           util.Semaphore
}

// NewForwarder creates a Forwarder reading from in.
func NewForwarder(logger logrus.FieldLogger, in <-chan gocollectd.Sample, n *namer.Namer, sinks []gocollectd.Sink, flushInterval time.Duration, maxBatchSize, maxConcurrentSends int) *Forwarder {
	return &Forwarder{
		logger:        logger,
		in:            in,
		namer:         n,
		sinks:         sinks,
		flushInterval: flushInterval,
		maxBatchSize:  maxBatchSize,
		sem:           util.NewSemaphore(maxConcurrentSends),
	}
}

// Run forwards samples until ctx is done, then waits for sends in flight.  Samples still batched are
// dropped.
func (f *Forwarder) Run(ctx context.Context) {
	ticker := clock.FromContext(ctx).NewTicker(f.flushInterval)
	defer ticker.Stop()

	var sendWg sync.WaitGroup
	defer sendWg.Wait()

	batch := make([]gocollectd.Sample, 0, f.maxBatchSize)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-f.in:
			batch = append(batch, s)
			if len(batch) >= f.maxBatchSize {
				f.send(ctx, &sendWg, batch)
				batch = make([]gocollectd.Sample, 0, f.maxBatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				f.send(ctx, &sendWg, batch)
				batch = make([]gocollectd.Sample, 0, f.maxBatchSize)
			}
		}
	}
}

func (f *Forwarder) send(ctx context.Context, wg *sync.WaitGroup, batch []gocollectd.Sample) {
	if f.namer != nil {
		f.namer.Rename(batch)
	}
	atomic.AddUint64(&f.batches, 1)
	for _, sink := range f.sinks {
		if !f.sem.Acquire(ctx) {
			return
		}
		wg.Add(1)
		sink := sink
		sink.SendSamplesAsync(ctx, batch, func(errs []error) {
			defer wg.Done()
			defer f.sem.Release()
			f.handleSendResult(sink, len(batch), errs)
		})
	}
}

func (f *Forwarder) handleSendResult(sink gocollectd.Sink, n int, errs []error) {
	timestampPointer := &f.lastSend
	for _, err := range errs {
		if err != nil {
			timestampPointer = &f.lastSendError
			if err != context.DeadlineExceeded && err != context.Canceled {
				f.logger.WithError(err).WithField("sink", sink.Name()).Error("Sending samples to sink failed")
			}
		}
	}
	if timestampPointer == &f.lastSendError {
		atomic.AddUint64(&f.failed, uint64(n))
	} else {
		atomic.AddUint64(&f.sent, uint64(n))
	}
	atomic.StoreInt64(timestampPointer, time.Now().UnixNano())
}

// RunMetricsContext reports forwarding counters on every flush.
func (f *Forwarder) RunMetricsContext(ctx context.Context) {
	statser := stats.FromContext(ctx)
	flushed, unregister := statser.RegisterFlush()
	defer unregister()
	for {
		select {
		case <-ctx.Done():
			return
		case <-flushed:
			statser.Count("forwarder.sent", float64(atomic.SwapUint64(&f.sent, 0)), nil)
			statser.Count("forwarder.failed", float64(atomic.SwapUint64(&f.failed, 0)), nil)
			statser.Count("forwarder.batches", float64(atomic.SwapUint64(&f.batches, 0)), nil)
			f.sendSinceLast(statser, "forwarder.time_since_last_send", atomic.LoadInt64(&f.lastSend))
			f.sendSinceLast(statser, "forwarder.time_since_last_send_error", atomic.LoadInt64(&f.lastSendError))
		}
	}
}

func (f *Forwarder) sendSinceLast(statser stats.Statser, name string, last int64) {
	if last == 0 {
		return
	}
	statser.TimingDuration(name, time.Since(time.Unix(0, last)), nil)
}
