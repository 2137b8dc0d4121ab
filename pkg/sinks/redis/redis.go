package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/tilinna/clock"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/pkg/util"
)

const (
	// SinkName is the name of this sink.
	SinkName = "redis"
	// DefaultAddress is the default address of the redis server.
	DefaultAddress = "127.0.0.1:6379"
	// DefaultKey is the default list every batch is pushed onto.
	DefaultKey = "gocollectd:history"
	// DefaultHistoryDepth is the default number of batches kept in the list.
	DefaultHistoryDepth = 9600
)

// Publish is the document pushed onto the list for every batch.
type Publish struct {
	Samples   []PublishedSample `json:"samples"`
	TimeStamp int64             `json:"timestamp"`
	DateTime  string            `json:"datetime"`
}

// PublishedSample is a Sample as it appears in a Publish document.
type PublishedSample struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Timestamp float64 `json:"timestamp"`
}

// Client pushes batches of samples as JSON documents onto a capped redis list.
type Client struct {
	logger       logrus.FieldLogger
	redis        *redis.Client
	key          string
	historyDepth int64
}

// NewClientFromViper constructs a redis sink from the redis.* parameters.
func NewClientFromViper(v *viper.Viper, logger logrus.FieldLogger) (gocollectd.Sink, error) {
	r := util.GetSubViper(v, "redis")
	r.SetDefault("address", DefaultAddress)
	r.SetDefault("password", "")
	r.SetDefault("db", 0)
	r.SetDefault("key", DefaultKey)
	r.SetDefault("history-depth", DefaultHistoryDepth)
	return NewClient(
		&redis.Options{
			Addr:     r.GetString("address"),
			Password: r.GetString("password"),
			DB:       r.GetInt("db"),
		},
		r.GetString("key"),
		r.GetInt64("history-depth"),
		logger,
	)
}

// NewClient constructs a redis sink.
func NewClient(opts *redis.Options, key string, historyDepth int64, logger logrus.FieldLogger) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("[%s] key is required", SinkName)
	}
	if historyDepth <= 0 {
		return nil, fmt.Errorf("[%s] history-depth should be positive", SinkName)
	}
	logger = logger.WithField("sink", SinkName)
	logger.WithFields(logrus.Fields{
		"address":       opts.Addr,
		"db":            opts.DB,
		"key":           key,
		"history-depth": historyDepth,
	}).Info("created sink")
	return &Client{
		logger:       logger,
		redis:        redis.NewClient(opts),
		key:          key,
		historyDepth: historyDepth,
	}, nil
}

// Name returns the name of the sink.
func (client *Client) Name() string {
	return SinkName
}

// Run closes the redis client once ctx is done.
func (client *Client) Run(ctx context.Context) {
	<-ctx.Done()
	if err := client.redis.Close(); err != nil {
		client.logger.WithError(err).Warn("Failed to close redis client")
	}
}

// SendSamplesAsync pushes the samples as one document, preparing payload synchronously but doing the send
// asynchronously.
func (client *Client) SendSamplesAsync(ctx context.Context, samples []gocollectd.Sample, cb gocollectd.SendCallback) {
	payload, err := preparePayload(samples, clock.FromContext(ctx).Now())
	if err != nil {
		cb([]error{err})
		return
	}
	go func() {
		cb([]error{client.writePayload(ctx, payload)})
	}()
}

// writePayload pushes payload and trims the list to the history depth in one transaction.
func (client *Client) writePayload(ctx context.Context, payload []byte) error {
	pipe := client.redis.WithContext(ctx).TxPipeline()
	pipe.LPush(client.key, payload)
	pipe.LTrim(client.key, 0, client.historyDepth-1)
	if _, err := pipe.Exec(); err != nil {
		client.logger.WithError(err).Warn("Failed to push samples")
		return err
	}
	return nil
}

func preparePayload(samples []gocollectd.Sample, now time.Time) ([]byte, error) {
	pub := Publish{
		Samples:   make([]PublishedSample, 0, len(samples)),
		TimeStamp: now.Unix(),
		DateTime:  now.UTC().Format(time.RFC3339),
	}
	for _, s := range samples {
		pub.Samples = append(pub.Samples, PublishedSample(s))
	}
	return jsoniter.ConfigFastest.Marshal(&pub)
}
