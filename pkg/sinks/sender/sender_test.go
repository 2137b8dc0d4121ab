package sender

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/gocollectd/internal/fixtures"
	"github.com/atlassian/gocollectd/pkg/pool"
	"github.com/atlassian/gocollectd/pkg/util"
)

func newTestSender(t *testing.T, factory ConnFactory, maxRetries uint64) *Sender {
	return &Sender{
		Logger:      fixtures.NewTestLogger(t),
		ConnFactory: factory,
		Sink:        make(chan Stream),
		BufPool:     pool.NewBytesBuffer(0),
		Backoff:     util.NewBackoffFactory(1.0, time.Second, time.Millisecond, maxRetries),
	}
}

func stream(ctx context.Context, s *Sender, errs chan<- []error, payloads ...string) Stream {
	ch := make(chan *bytes.Buffer, len(payloads))
	for _, p := range payloads {
		buf := s.GetBuffer()
		buf.WriteString(p)
		ch <- buf
	}
	close(ch)
	return Stream{
		Ctx: ctx,
		Cb: func(e []error) {
			errs <- e
		},
		Buf: ch,
	}
}

func TestSenderWrites(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, server := net.Pipe()
	s := newTestSender(t, func() (net.Conn, error) {
		return client, nil
	}, 0)

	received := make(chan []byte)
	go func() {
		data, _ := ioutil.ReadAll(server)
		received <- data
	}()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	errs := make(chan []error, 2)
	s.Sink <- stream(ctx, s, errs, "a 1 1\n", "b 2 1\n")
	assert.Empty(t, <-errs)
	assert.True(t, s.Connected())
	s.Sink <- stream(ctx, s, errs, "c 3 1\n")
	assert.Empty(t, <-errs)

	cancel()
	<-done
	assert.False(t, s.Connected())
	assert.Equal(t, "a 1 1\nb 2 1\nc 3 1\n", string(<-received))
}

func TestSenderGivesUpConnecting(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errConnect := errors.New("connection refused")
	s := newTestSender(t, func() (net.Conn, error) {
		return nil, errConnect
	}, 1)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	errs := make(chan []error, 1)
	s.Sink <- stream(ctx, s, errs, "a 1 1\n")
	select {
	case e := <-errs:
		require.Len(t, e, 1)
		assert.Equal(t, errConnect, e[0])
	case <-ctx.Done():
		require.FailNow(t, "timed out")
	}
	cancel()
	<-done
}

func TestSenderSkipsCancelledStream(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, server := net.Pipe()
	defer server.Close()
	s := newTestSender(t, func() (net.Conn, error) {
		return client, nil
	}, 0)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	streamCtx, streamCancel := context.WithCancel(ctx)
	streamCancel()
	errs := make(chan []error, 1)
	s.Sink <- stream(streamCtx, s, errs, "a 1 1\n")
	e := <-errs
	require.Len(t, e, 1)
	assert.Equal(t, context.Canceled, e[0])

	cancel()
	<-done
}
