package server

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/ash2k/stager/wait"
	reuseport "github.com/libp2p/go-reuseport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/pkg/collectd"
	"github.com/atlassian/gocollectd/pkg/emitter"
	"github.com/atlassian/gocollectd/pkg/forwarder"
	"github.com/atlassian/gocollectd/pkg/namer"
	"github.com/atlassian/gocollectd/pkg/ready"
	"github.com/atlassian/gocollectd/pkg/stats"
	"github.com/atlassian/gocollectd/pkg/typesdb"
)

// Server encapsulates all of the parameters necessary for starting up
// the collectd server. These can either be set via command line or directly.
type Server struct {
	Sinks                 []gocollectd.Sink
	Types                 *typesdb.Database
	Namer                 *namer.Namer
	InternalTags          gocollectd.Tags
	InternalNamespace     string
	StatserType           string
	PrometheusRegisterer  prometheus.Registerer
	CollectdAddr          string
	MaxReaders            int
	MaxParsers            int
	ReceiveBatchSize      int
	ConnPerReader         bool
	MaxQueueSize          int
	QueuePolicy           emitter.Policy
	StateExpiryInterval   time.Duration
	GaugeByteOrder        binary.ByteOrder
	BadDatagramsPerMinute float64
	FlushInterval         time.Duration
	MaxBatchSize          int
	HeartbeatEnabled      bool
	HeartbeatTags         gocollectd.Tags
	Logger                logrus.FieldLogger
}

// SocketFactory is an indirection layer over net.ListenPacket() to allow for different implementations.
type SocketFactory func() (net.PacketConn, error)

// Run runs the server until context signals done.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithCustomSocket(ctx, s.socketFactory())
}

func (s *Server) socketFactory() SocketFactory {
	if s.ConnPerReader {
		return func() (net.PacketConn, error) {
			return reuseport.ListenPacket("udp", s.CollectdAddr)
		}
	}
	return func() (net.PacketConn, error) {
		return net.ListenPacket("udp", s.CollectdAddr)
	}
}

// RunWithCustomSocket runs the server until context signals done.
// Listening sockets are created using sf, once per reader if ConnPerReader is set.
func (s *Server) RunWithCustomSocket(ctx context.Context, sf SocketFactory) error {
	// 0. Open the sockets first, nothing is running yet if it fails
	conns, err := s.openSockets(sf)
	if err != nil {
		return err
	}
	defer func() {
		// This makes receivers error out and stop
		for _, c := range conns {
			if e := c.Close(); e != nil {
				s.Logger.WithError(e).Warn("Error closing socket")
			}
		}
	}()

	// 1. Start runnable sinks
	var wgSinks wait.Group
	defer wgSinks.Wait()                                              // Wait for sinks to shutdown
	ctxSinks, cancelSinks := context.WithCancel(context.Background()) // Separate context!
	defer cancelSinks()                                               // Tell sinks to shutdown
	for _, sink := range s.Sinks {
		if r, ok := sink.(gocollectd.Runner); ok {
			wgSinks.StartWithContext(ctxSinks, r.Run)
		}
	}

	// 2. Create the pipeline, back to front
	queue := emitter.New(s.MaxQueueSize, s.QueuePolicy)
	fwd := forwarder.NewForwarder(s.Logger, queue.C(), s.Namer, s.Sinks, s.FlushInterval, s.MaxBatchSize, forwarder.DefaultMaxConcurrentSends)
	store := collectd.NewStateStore(s.Logger, collectd.DefaultStateShards, s.StateExpiryInterval)
	engine := collectd.NewEngine(s.Logger, s.Types, store)
	datagrams := make(chan *collectd.Datagram, s.MaxReaders*s.ReceiveBatchSize)
	parser := collectd.NewDatagramParser(s.Logger, datagrams, collectd.NewDecoder(s.GaugeByteOrder), engine, queue, s.BadDatagramsPerMinute)
	receiver := collectd.NewDatagramReceiver(s.Logger, datagrams, s.ReceiveBatchSize)

	// 3. Attach the statser
	statser, err := s.createStatser(queue)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(stats.NewContext(ctx, statser))
	defer cancel()

	var wg wait.Group
	defer wg.Wait()

	var runnables []gocollectd.Runnable
	runnables = gocollectd.MaybeAppendRunnable(runnables, fwd)
	runnables = gocollectd.MaybeAppendRunnable(runnables, queue)
	runnables = gocollectd.MaybeAppendRunnable(runnables, store)
	runnables = gocollectd.MaybeAppendRunnable(runnables, engine)
	runnables = gocollectd.MaybeAppendRunnable(runnables, parser)
	runnables = gocollectd.MaybeAppendRunnable(runnables, stats.NewFlusher(s.FlushInterval))
	if s.HeartbeatEnabled {
		runnables = gocollectd.MaybeAppendRunnable(runnables, stats.NewHeartBeater("heartbeat", s.HeartbeatTags))
	}
	for _, r := range runnables {
		wg.StartWithContext(ctx, r)
	}

	// 4. Start the parsers, the first one is already running
	for p := 1; p < s.MaxParsers; p++ {
		wg.StartWithContext(ctx, parser.Run)
	}

	// 5. Start the receivers
	wg.StartWithContext(ctx, receiver.RunMetricsContext)
	for r := 0; r < s.MaxReaders; r++ {
		c := conns[r%len(conns)]
		wg.Start(func() {
			receiver.Receive(ctx, c)
		})
	}

	s.Logger.WithFields(logrus.Fields{
		"address":     s.CollectdAddr,
		"readers":     s.MaxReaders,
		"parsers":     s.MaxParsers,
		"types":       s.Types.Len(),
		"sinks":       len(s.Sinks),
		"statser":     s.StatserType,
		"queuePolicy": s.QueuePolicy,
	}).Info("Server started")
	ready.SignalReady(ctx)

	// 6. Listen until done
	<-ctx.Done()
	for _, c := range conns {
		_ = c.Close()
	}
	conns = nil
	return ctx.Err()
}

func (s *Server) openSockets(sf SocketFactory) ([]net.PacketConn, error) {
	n := 1
	if s.ConnPerReader {
		n = s.MaxReaders
	}
	conns := make([]net.PacketConn, 0, n)
	for i := 0; i < n; i++ {
		c, err := sf()
		if err != nil {
			for _, open := range conns {
				_ = open.Close()
			}
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, nil
}

func (s *Server) createStatser(handler gocollectd.SampleHandler) (stats.Statser, error) {
	switch s.StatserType {
	case gocollectd.StatserNull:
		return stats.NewNullStatser(), nil
	case gocollectd.StatserLogging:
		return stats.NewLoggingStatser(s.InternalTags, s.Logger), nil
	case gocollectd.StatserPrometheus:
		registerer := s.PrometheusRegisterer
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		return stats.NewPrometheusStatser(s.Logger, registerer, s.InternalNamespace, s.InternalTags), nil
	case gocollectd.StatserInternal, "":
		return stats.NewInternalStatser(s.InternalTags, s.InternalNamespace, handler), nil
	default:
		return nil, fmt.Errorf("unknown statser type %q", s.StatserType)
	}
}
