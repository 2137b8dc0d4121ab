package graphite

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/pkg/healthcheck"
	"github.com/atlassian/gocollectd/pkg/pool"
	"github.com/atlassian/gocollectd/pkg/sinks/sender"
	"github.com/atlassian/gocollectd/pkg/util"
)

const (
	// SinkName is the name of this sink.
	SinkName = "graphite"
	// DefaultAddress is the default address of the carbon receiver.
	DefaultAddress = "127.0.0.1:2003"
	// DefaultDialTimeout is the default net.Dial timeout.
	DefaultDialTimeout = 5 * time.Second
	// DefaultWriteTimeout is the default socket write timeout.
	DefaultWriteTimeout = 30 * time.Second
	// DefaultMode is the default line protocol.
	DefaultMode = ModePlaintext
	// DefaultPickleBatchSize is the default number of samples in one pickle frame.
	DefaultPickleBatchSize = 500
	// DefaultReconnectDelay is the default delay between reconnection attempts.
	DefaultReconnectDelay = 5 * time.Second
	// DefaultMaxReconnects is the default number of reconnection attempts before data is dropped.
	DefaultMaxReconnects = 3
)

const (
	// ModePlaintext sends one "name value timestamp" line per sample.
	ModePlaintext = "plaintext"
	// ModePickle sends length prefixed pickled lists of samples.
	ModePickle = "pickle"
)

const (
	bufSize = 64 * 1024
	// maxConcurrentSends is the number of max concurrent SendSamplesAsync calls that can actually make progress.
	// More calls will block. The current implementation uses maximum 1 call.
	maxConcurrentSends = 10
)

// Client sends samples to a carbon server over TCP.
type Client struct {
	sender          *sender.Sender
	address         string
	pickle          bool
	pickleBatchSize int
}

// Run writes queued payloads until ctx is done.
func (client *Client) Run(ctx context.Context) {
	client.sender.Run(ctx)
}

// SendSamplesAsync flushes the samples to the carbon server, preparing payload synchronously but doing the send asynchronously.
func (client *Client) SendSamplesAsync(ctx context.Context, samples []gocollectd.Sample, cb gocollectd.SendCallback) {
	bufs := client.preparePayload(samples)
	sink := make(chan *bytes.Buffer, len(bufs))
	for _, buf := range bufs {
		sink <- buf
	}
	close(sink)
	select {
	case <-ctx.Done():
		for buf := range sink {
			client.sender.PutBuffer(buf)
		}
		cb([]error{ctx.Err()})
	case client.sender.Sink <- sender.Stream{Ctx: ctx, Cb: cb, Buf: sink}:
	}
}

func (client *Client) preparePayload(samples []gocollectd.Sample) []*bytes.Buffer {
	if !client.pickle {
		buf := client.sender.GetBuffer()
		for _, s := range samples {
			appendPlaintext(buf, s)
		}
		return []*bytes.Buffer{buf}
	}
	var bufs []*bytes.Buffer
	for len(samples) > 0 {
		n := client.pickleBatchSize
		if n > len(samples) {
			n = len(samples)
		}
		buf := client.sender.GetBuffer()
		appendPickle(buf, samples[:n])
		bufs = append(bufs, buf)
		samples = samples[n:]
	}
	return bufs
}

func appendPlaintext(buf *bytes.Buffer, s gocollectd.Sample) {
	var scratch [32]byte
	buf.WriteString(s.Name)
	buf.WriteByte(' ')
	buf.Write(strconv.AppendFloat(scratch[:0], s.Value, 'f', -1, 64))
	buf.WriteByte(' ')
	buf.Write(strconv.AppendFloat(scratch[:0], s.Timestamp, 'f', -1, 64))
	buf.WriteByte('\n')
}

// Name returns the name of the sink.
func (client *Client) Name() string {
	return SinkName
}

// DeepChecks reports if the connection to the carbon server is up.
func (client *Client) DeepChecks() []healthcheck.HealthcheckFunc {
	return []healthcheck.HealthcheckFunc{
		func() (string, healthcheck.HealthyStatus) {
			if client.sender.Connected() {
				return "graphite connected to " + client.address, healthcheck.Healthy
			}
			return "graphite not connected to " + client.address, healthcheck.Unhealthy
		},
	}
}

// NewClientFromViper constructs a Client object using configuration provided by Viper
func NewClientFromViper(v *viper.Viper, logger logrus.FieldLogger) (gocollectd.Sink, error) {
	g := util.GetSubViper(v, "graphite")
	g.SetDefault("address", DefaultAddress)
	g.SetDefault("dial-timeout", DefaultDialTimeout)
	g.SetDefault("write-timeout", DefaultWriteTimeout)
	g.SetDefault("mode", DefaultMode)
	g.SetDefault("pickle-batch-size", DefaultPickleBatchSize)
	util.SetRetryDefaults(g, DefaultReconnectDelay, DefaultMaxReconnects, util.RetryConstant)
	retry, err := util.GetRetryFromViper(g)
	if err != nil {
		return nil, fmt.Errorf("[%s] %v", SinkName, err)
	}
	return NewClient(
		g.GetString("address"),
		g.GetDuration("dial-timeout"),
		g.GetDuration("write-timeout"),
		g.GetString("mode"),
		g.GetInt("pickle-batch-size"),
		retry,
		logger,
	)
}

// NewClient constructs a graphite sink.
func NewClient(
	address string,
	dialTimeout time.Duration,
	writeTimeout time.Duration,
	mode string,
	pickleBatchSize int,
	retry util.BackoffFactory,
	logger logrus.FieldLogger,
) (*Client, error) {
	if address == "" {
		return nil, fmt.Errorf("[%s] address is required", SinkName)
	}
	if dialTimeout <= 0 {
		return nil, fmt.Errorf("[%s] dialTimeout should be positive", SinkName)
	}
	if writeTimeout < 0 {
		return nil, fmt.Errorf("[%s] writeTimeout should be non-negative", SinkName)
	}
	var pickle bool
	switch mode {
	case ModePlaintext:
	case ModePickle:
		pickle = true
		if pickleBatchSize <= 0 {
			return nil, fmt.Errorf("[%s] pickle-batch-size should be positive", SinkName)
		}
	default:
		return nil, fmt.Errorf("[%s] mode must be one of '%s' or '%s'", SinkName, ModePlaintext, ModePickle)
	}

	logger = logger.WithField("sink", SinkName)
	logger.WithFields(logrus.Fields{
		"address":           address,
		"dial-timeout":      dialTimeout,
		"write-timeout":     writeTimeout,
		"mode":              mode,
		"pickle-batch-size": pickleBatchSize,
	}).Info("created sink")

	return &Client{
		sender: &sender.Sender{
			Logger: logger,
			ConnFactory: func() (net.Conn, error) {
				return net.DialTimeout("tcp", address, dialTimeout)
			},
			Sink:         make(chan sender.Stream, maxConcurrentSends),
			BufPool:      pool.NewBytesBuffer(bufSize),
			WriteTimeout: writeTimeout,
			Backoff:      retry,
		},
		address:         address,
		pickle:          pickle,
		pickleBatchSize: pickleBatchSize,
	}, nil
}
