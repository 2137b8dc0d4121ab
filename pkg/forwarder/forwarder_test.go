package forwarder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/internal/fixtures"
	"github.com/atlassian/gocollectd/pkg/namer"
)

type capturingSink struct {
	lock    sync.Mutex
	batches [][]gocollectd.Sample
	err     error
	sent    chan struct{}
}

func newCapturingSink(err error) *capturingSink {
	return &capturingSink{
		err:  err,
		sent: make(chan struct{}, 10),
	}
}

func (cs *capturingSink) Name() string {
	return "capturing"
}

func (cs *capturingSink) SendSamplesAsync(ctx context.Context, samples []gocollectd.Sample, cb gocollectd.SendCallback) {
	cs.lock.Lock()
	cs.batches = append(cs.batches, append([]gocollectd.Sample(nil), samples...))
	cs.lock.Unlock()
	go func() {
		cb([]error{cs.err})
		cs.sent <- struct{}{}
	}()
}

func (cs *capturingSink) get() [][]gocollectd.Sample {
	cs.lock.Lock()
	defer cs.lock.Unlock()
	return append([][]gocollectd.Sample(nil), cs.batches...)
}

func waitSent(ctx context.Context, t *testing.T, cs *capturingSink) {
	select {
	case <-cs.sent:
	case <-ctx.Done():
		require.FailNow(t, "timed out waiting for send")
	}
}

func TestForwarderBatches(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx, clck := fixtures.NewMockClockContext(ctx, time.Unix(1500000000, 0))

	in := make(chan gocollectd.Sample)
	cs := newCapturingSink(nil)
	n := namer.NewNamer("pre", nil, "", nil, "_", false, nil)
	f := NewForwarder(fixtures.NewTestLogger(t), in, n, []gocollectd.Sink{cs}, time.Second, 2, 1)

	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	in <- gocollectd.NewSample("a.b", 1, 1)
	in <- gocollectd.NewSample("a.c", 2, 1)
	waitSent(ctx, t, cs)

	// The third sample waits for the flush tick.
	in <- gocollectd.NewSample("a.d", 3, 1)
	fixtures.NextStep(ctx, clck)
	waitSent(ctx, t, cs)

	cancel()
	<-done
	assert.Equal(t, [][]gocollectd.Sample{
		{gocollectd.NewSample("pre.a.b", 1, 1), gocollectd.NewSample("pre.a.c", 2, 1)},
		{gocollectd.NewSample("pre.a.d", 3, 1)},
	}, cs.get())
	assert.EqualValues(t, 3, atomic.LoadUint64(&f.sent))
	assert.EqualValues(t, 2, atomic.LoadUint64(&f.batches))
	assert.Zero(t, atomic.LoadUint64(&f.failed))
}

func TestForwarderEveryTickWithoutSamplesSendsNothing(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx, clck := fixtures.NewMockClockContext(ctx, time.Unix(0, 0))

	cs := newCapturingSink(nil)
	f := NewForwarder(fixtures.NewTestLogger(t), make(chan gocollectd.Sample), nil, []gocollectd.Sink{cs}, time.Second, 10, 1)
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()
	for i := 0; i < 3; i++ {
		fixtures.NextStep(ctx, clck)
	}
	cancel()
	<-done
	assert.Empty(t, cs.get())
}

func TestForwarderSendsToAllSinksAndCountsFailures(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in := make(chan gocollectd.Sample)
	good := newCapturingSink(nil)
	bad := newCapturingSink(errors.New("carbon went away"))
	f := NewForwarder(fixtures.NewTestLogger(t), in, nil, []gocollectd.Sink{good, bad}, time.Hour, 1, 2)

	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()
	in <- gocollectd.NewSample("a.b", 1, 1)
	waitSent(ctx, t, good)
	waitSent(ctx, t, bad)
	cancel()
	<-done

	assert.Len(t, good.get(), 1)
	assert.Len(t, bad.get(), 1)
	assert.EqualValues(t, 1, atomic.LoadUint64(&f.sent))
	assert.EqualValues(t, 1, atomic.LoadUint64(&f.failed))
	assert.NotZero(t, atomic.LoadInt64(&f.lastSendError))
}
