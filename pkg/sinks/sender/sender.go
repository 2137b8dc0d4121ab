package sender

import (
	"bytes"
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/pkg/pool"
	"github.com/atlassian/gocollectd/pkg/util"
)

const maxStreamsPerConnection = 100

// ConnFactory opens a new connection to the downstream server.
type ConnFactory func() (net.Conn, error)

// Stream is a set of buffers written as one unit.  Buf must be closed by the producer.  Cb is called once all
// of Buf has been written or discarded.
type Stream struct {
	Ctx context.Context
	Cb  gocollectd.SendCallback
	Buf <-chan *bytes.Buffer
}

// Sender writes Streams to a stream oriented connection, reconnecting as needed.
type Sender struct {
	connected int32 // atomic

	Logger       logrus.FieldLogger
	ConnFactory  ConnFactory
	Sink         chan Stream
	BufPool      *pool.BytesBuffer
	WriteTimeout time.Duration
	// Backoff paces reconnection attempts.  Once it gives up, the next Stream is failed and a new sequence of
	// attempts starts.
	Backoff util.BackoffFactory
}

// Connected reports if the Sender currently holds an open connection.
func (s *Sender) Connected() bool {
	return atomic.LoadInt32(&s.connected) != 0
}

// Run sends Streams from Sink until ctx is done.
func (s *Sender) Run(ctx context.Context) {
	var stream *Stream
	var errs []error
	defer func() {
		if stream != nil {
			s.discard(stream, append(errs, ctx.Err()))
		}
	}()
	for {
		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.Logger.WithError(err).Error("Giving up connecting, dropping data")
			if stream == nil {
				select {
				case <-ctx.Done():
					return
				case st := <-s.Sink:
					stream = &st
				}
			}
			s.discard(stream, append(errs, err))
			stream, errs = nil, nil
			continue
		}
		if stream, errs, err = s.innerRun(ctx, conn, stream, errs); err != nil {
			if err == context.Canceled || err == context.DeadlineExceeded {
				return
			}
			s.Logger.WithError(err).Warn("Failed to write")
			errs = append(errs, err)
		}
	}
}

func (s *Sender) connect(ctx context.Context) (net.Conn, error) {
	var conn net.Conn
	err := util.Retry(ctx, s.Backoff, func() error {
		var err error
		conn, err = s.ConnFactory()
		return err
	}, func(err error, next time.Duration) {
		s.Logger.WithError(err).WithField("retry-in", next).Warn("Failed to connect")
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *Sender) innerRun(ctx context.Context, conn net.Conn, stream *Stream, errs []error) (*Stream, []error, error) {
	atomic.StoreInt32(&s.connected, 1)
	defer func() {
		atomic.StoreInt32(&s.connected, 0)
		if err := conn.Close(); err != nil {
			s.Logger.WithError(err).Warn("Close failed")
		}
	}()
	var err error
loop:
	for streamCount := 0; streamCount < maxStreamsPerConnection; streamCount++ {
		if stream == nil {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				break loop
			case st := <-s.Sink:
				stream = &st
			}
		}
		if stream.Ctx != nil && stream.Ctx.Err() != nil {
			s.discard(stream, append(errs, stream.Ctx.Err()))
			stream, errs = nil, nil
			continue
		}
		for buf := range stream.Buf {
			if s.WriteTimeout > 0 {
				if e := conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout)); e != nil {
					s.Logger.WithError(e).Warn("Failed to set write deadline")
				}
			}
			_, err = conn.Write(buf.Bytes())
			if err != nil {
				// The buffer is written again on the next connection.
				stream.Buf = prepend(buf, stream.Buf)
				break loop
			}
			s.PutBuffer(buf)
		}
		stream.Cb(errs)
		stream = nil
		errs = nil
	}
	return stream, errs, err
}

// prepend returns a channel yielding buf followed by everything left in rest.
func prepend(buf *bytes.Buffer, rest <-chan *bytes.Buffer) <-chan *bytes.Buffer {
	ch := make(chan *bytes.Buffer, 1+len(rest))
	ch <- buf
	for b := range rest {
		ch <- b
	}
	close(ch)
	return ch
}

func (s *Sender) discard(stream *Stream, errs []error) {
	for buf := range stream.Buf {
		s.PutBuffer(buf)
	}
	stream.Cb(errs)
}

// GetBuffer returns an empty buffer from the pool.
func (s *Sender) GetBuffer() *bytes.Buffer {
	return s.BufPool.Get()
}

// PutBuffer returns buf to the pool.
func (s *Sender) PutBuffer(buf *bytes.Buffer) {
	s.BufPool.Put(buf)
}
