package collectd

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv6"

	"github.com/atlassian/gocollectd/pkg/pool"
	"github.com/atlassian/gocollectd/pkg/stats"
)

// Datagram is a received packet.  DoneFunc must be called once Msg is no longer used.
type Datagram struct {
	Addr     net.Addr
	Msg      []byte
	DoneFunc func()
}

var bufferPool = pool.NewDatagramBuffer(MaxDatagramSize)

func newDatagram(addr net.Addr, buf *[]byte, n int) *Datagram {
	return &Datagram{
		Addr: addr,
		Msg:  (*buf)[:n],
		DoneFunc: func() {
			bufferPool.Put(buf)
		},
	}
}

// DatagramReceiver reads datagrams from a socket and passes them to the parsers.
type DatagramReceiver struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	datagramsReceived uint64
	batchesRead       uint64

	logger           logrus.FieldLogger
	receiveBatchSize int
	out              chan<- *Datagram
}

// NewDatagramReceiver initialises a new DatagramReceiver.
func NewDatagramReceiver(logger logrus.FieldLogger, out chan<- *Datagram, receiveBatchSize int) *DatagramReceiver {
	if receiveBatchSize < 1 {
		receiveBatchSize = 1
	}
	return &DatagramReceiver{
		logger:           logger,
		receiveBatchSize: receiveBatchSize,
		out:              out,
	}
}

// RunMetricsContext reports receive counters on every flush.
func (dr *DatagramReceiver) RunMetricsContext(ctx context.Context) {
	statser := stats.FromContext(ctx)
	flushed, unregister := statser.RegisterFlush()
	defer unregister()
	for {
		select {
		case <-ctx.Done():
			return
		case <-flushed:
			datagrams := atomic.SwapUint64(&dr.datagramsReceived, 0)
			batches := atomic.SwapUint64(&dr.batchesRead, 0)
			statser.Count("receiver.datagrams_received", float64(datagrams), nil)
			statser.Count("receiver.batches_read", float64(batches), nil)
			if batches > 0 {
				statser.Gauge("receiver.avg_batch_size", float64(datagrams)/float64(batches), nil)
			}
		}
	}
}

// Receive reads datagrams from c until ctx is done or c fails.  UDP sockets are read in batches.
func (dr *DatagramReceiver) Receive(ctx context.Context, c net.PacketConn) {
	if udp, ok := c.(*net.UDPConn); ok && dr.receiveBatchSize > 1 {
		dr.receiveBatch(ctx, ipv6.NewPacketConn(udp))
		return
	}
	dr.receiveSingle(ctx, c)
}

func (dr *DatagramReceiver) receiveSingle(ctx context.Context, c net.PacketConn) {
	for {
		buf := bufferPool.Get()
		// This will error out when the socket is closed.
		n, addr, err := c.ReadFrom(*buf)
		if err != nil {
			bufferPool.Put(buf)
			if !dr.handleError(ctx, err) {
				return
			}
			continue
		}
		atomic.AddUint64(&dr.datagramsReceived, 1)
		atomic.AddUint64(&dr.batchesRead, 1)
		if !dr.send(ctx, newDatagram(addr, buf, n)) {
			return
		}
	}
}

func (dr *DatagramReceiver) receiveBatch(ctx context.Context, c *ipv6.PacketConn) {
	msgs := make([]ipv6.Message, dr.receiveBatchSize)
	bufs := make([]*[]byte, dr.receiveBatchSize)
	for i := range msgs {
		bufs[i] = bufferPool.Get()
		msgs[i].Buffers = [][]byte{*bufs[i]}
	}
	defer func() {
		for _, buf := range bufs {
			bufferPool.Put(buf)
		}
	}()

	for {
		// This will error out when the socket is closed.
		n, err := c.ReadBatch(msgs, 0)
		if err != nil {
			if !dr.handleError(ctx, err) {
				return
			}
			continue
		}
		atomic.AddUint64(&dr.datagramsReceived, uint64(n))
		atomic.AddUint64(&dr.batchesRead, 1)
		for i := 0; i < n; i++ {
			dg := newDatagram(msgs[i].Addr, bufs[i], msgs[i].N)
			// The buffer now belongs to the datagram.
			bufs[i] = bufferPool.Get()
			msgs[i].Buffers[0] = *bufs[i]
			if !dr.send(ctx, dg) {
				return
			}
		}
	}
}

// handleError logs a read error and reports if reading should continue.
func (dr *DatagramReceiver) handleError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if netErr, ok := err.(net.Error); ok && netErr.Temporary() {
		dr.logger.WithError(err).Warn("Error reading from socket")
		return true
	}
	dr.logger.WithError(err).Error("Non-temporary error reading from socket, stopping receiver")
	return false
}

func (dr *DatagramReceiver) send(ctx context.Context, dg *Datagram) bool {
	select {
	case dr.out <- dg:
		return true
	case <-ctx.Done():
		dg.DoneFunc()
		return false
	}
}
