// Package emitter is the bounded queue between the decoders and the forwarder.
package emitter

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/pkg/stats"
)

// Policy is what an Emitter does when its queue is full.
type Policy int

const (
	// Block waits for room in the queue, pushing back on the decoders.
	Block Policy = iota
	// Drop discards samples that do not fit, and counts them.
	Drop
)

func (p Policy) String() string {
	switch p {
	case Block:
		return "block"
	case Drop:
		return "drop"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses "block" or "drop".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "block":
		return Block, nil
	case "drop":
		return Drop, nil
	}
	return 0, fmt.Errorf("unknown queue policy %q, must be block or drop", s)
}

// Emitter queues samples for the forwarder.
type Emitter struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	emitted uint64
	dropped uint64

	policy Policy
	queue  chan gocollectd.Sample
}

// New creates an Emitter holding up to capacity samples.
func New(capacity int, policy Policy) *Emitter {
	return &Emitter{
		policy: policy,
		queue:  make(chan gocollectd.Sample, capacity),
	}
}

// DispatchSamples enqueues samples.  With the Block policy it waits for room and only returns an error if
// ctx is done first, in which case samples not yet queued are lost.
func (e *Emitter) DispatchSamples(ctx context.Context, samples ...gocollectd.Sample) error {
	for i, s := range samples {
		if e.policy == Drop {
			select {
			case e.queue <- s:
				atomic.AddUint64(&e.emitted, 1)
			default:
				atomic.AddUint64(&e.dropped, 1)
			}
			continue
		}
		select {
		case e.queue <- s:
			atomic.AddUint64(&e.emitted, 1)
		case <-ctx.Done():
			atomic.AddUint64(&e.dropped, uint64(len(samples)-i))
			return ctx.Err()
		}
	}
	return nil
}

// C returns the channel samples are queued on.
func (e *Emitter) C() <-chan gocollectd.Sample {
	return e.queue
}

// Len returns the number of queued samples.
func (e *Emitter) Len() int {
	return len(e.queue)
}

// Cap returns the capacity of the queue.
func (e *Emitter) Cap() int {
	return cap(e.queue)
}

// Dropped returns the number of samples dropped since the Emitter was created.
func (e *Emitter) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

// RunMetricsContext reports queue usage and drops on every flush.
func (e *Emitter) RunMetricsContext(ctx context.Context) {
	csw := stats.NewChannelStatsWatcher("emitter", nil, e.Cap(), e.Len)
	go csw.Run(ctx)

	statser := stats.FromContext(ctx)
	flushed, unregister := statser.RegisterFlush()
	defer unregister()

	var lastEmitted, lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-flushed:
			emitted := atomic.LoadUint64(&e.emitted)
			dropped := atomic.LoadUint64(&e.dropped)
			statser.Count("emitter.emitted", float64(emitted-lastEmitted), nil)
			statser.Count("emitter.dropped", float64(dropped-lastDropped), nil)
			lastEmitted, lastDropped = emitted, dropped
		}
	}
}
