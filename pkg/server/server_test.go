package server

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/internal/fixtures"
	"github.com/atlassian/gocollectd/pkg/emitter"
	"github.com/atlassian/gocollectd/pkg/fakesocket"
	"github.com/atlassian/gocollectd/pkg/namer"
	"github.com/atlassian/gocollectd/pkg/ready"
	"github.com/atlassian/gocollectd/pkg/typesdb"
)

type countingSink struct {
	lock    sync.Mutex
	samples []gocollectd.Sample
}

func (cs *countingSink) Name() string {
	return "counting"
}

func (cs *countingSink) SendSamplesAsync(ctx context.Context, samples []gocollectd.Sample, cb gocollectd.SendCallback) {
	cs.lock.Lock()
	cs.samples = append(cs.samples, samples...)
	cs.lock.Unlock()
	cb(nil)
}

func (cs *countingSink) find(prefix string) int {
	cs.lock.Lock()
	defer cs.lock.Unlock()
	n := 0
	for _, s := range cs.samples {
		if strings.HasPrefix(s.Name, prefix) {
			n++
		}
	}
	return n
}

func newTestServer(t *testing.T, sink gocollectd.Sink, statserType string) *Server {
	return &Server{
		Sinks:             []gocollectd.Sink{sink},
		Types:             typesdb.Builtin(),
		Namer:             namer.NewNamer("", nil, "", nil, "_", false, nil),
		InternalNamespace: gocollectd.DefaultInternalNamespace,
		StatserType:       statserType,
		CollectdAddr:      "127.0.0.1:0",
		MaxReaders:        2,
		MaxParsers:        2,
		ReceiveBatchSize:  gocollectd.DefaultReceiveBatchSize,
		MaxQueueSize:      1000,
		QueuePolicy:       emitter.Block,
		GaugeByteOrder:    binary.LittleEndian,
		FlushInterval:     10 * time.Millisecond,
		MaxBatchSize:      100,
		Logger:            fixtures.NewTestLogger(t),
	}
}

func waitFor(ctx context.Context, t *testing.T, cond func() bool) {
	for !cond() {
		select {
		case <-ctx.Done():
			require.FailNow(t, "timed out")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestServerForwardsSamples(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sink := &countingSink{}
	s := newTestServer(t, sink, gocollectd.StatserInternal)

	runCtx, runCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.RunWithCustomSocket(runCtx, fakesocket.Factory)
	}()

	waitFor(ctx, t, func() bool {
		return sink.find("tester.plugin_") >= 100
	})
	// Internal metrics flow through the same pipeline.
	waitFor(ctx, t, func() bool {
		return sink.find(gocollectd.DefaultInternalNamespace+".parser.datagrams_parsed") > 0
	})
	runCancel()
	assert.Equal(t, context.Canceled, <-errCh)
}

func TestServerConnPerReader(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sink := &countingSink{}
	s := newTestServer(t, sink, gocollectd.StatserNull)
	s.ConnPerReader = true

	var lock sync.Mutex
	opened := 0
	factory := func() (net.PacketConn, error) {
		lock.Lock()
		opened++
		lock.Unlock()
		return fakesocket.Factory()
	}

	runCtx, runCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.RunWithCustomSocket(runCtx, factory)
	}()
	waitFor(ctx, t, func() bool {
		return sink.find("tester.") > 0
	})
	runCancel()
	assert.Equal(t, context.Canceled, <-errCh)
	assert.Equal(t, 2, opened)
}

func TestServerSocketError(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &countingSink{}, gocollectd.StatserNull)
	errSocket := errors.New("address in use")
	err := s.RunWithCustomSocket(context.Background(), func() (net.PacketConn, error) {
		return nil, errSocket
	})
	assert.Equal(t, errSocket, err)
}

func TestServerUnknownStatser(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &countingSink{}, "carrier-pigeon")
	err := s.RunWithCustomSocket(context.Background(), fakesocket.Factory)
	assert.EqualError(t, err, `unknown statser type "carrier-pigeon"`)
}

func TestServerRealSocket(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := pc.LocalAddr().String()

	sink := &countingSink{}
	s := newTestServer(t, sink, gocollectd.StatserNull)
	runCtx, runCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.RunWithCustomSocket(runCtx, func() (net.PacketConn, error) {
			return pc, nil
		})
	}()

	conn, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer conn.Close()
	waitFor(ctx, t, func() bool {
		_, _ = conn.Write(fakesocket.FakeDatagram)
		return sink.find(fakesocket.FakeDatagramSampleName) > 0
	})
	runCancel()
	assert.Equal(t, context.Canceled, <-errCh)
}

func TestServerSignalsReady(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	runCtx, runCancel := context.WithCancel(ready.WithWaitGroup(ctx, &wg))
	ready.Add(runCtx, 1)

	s := newTestServer(t, &countingSink{}, gocollectd.StatserNull)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.RunWithCustomSocket(runCtx, fakesocket.Factory)
	}()
	wg.Wait()
	runCancel()
	assert.Equal(t, context.Canceled, <-errCh)
}
