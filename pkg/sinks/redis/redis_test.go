package redis

import (
	"testing"
	"time"

	"github.com/go-redis/redis"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/internal/fixtures"
)

func TestPreparePayload(t *testing.T) {
	t.Parallel()
	payload, err := preparePayload([]gocollectd.Sample{
		gocollectd.NewSample("test.squares.gauge", 81, 1500000009),
		gocollectd.NewSample("test.squares.derive", 8.5, 1500000018.25),
	}, time.Unix(1500000020, 0))
	require.NoError(t, err)

	var pub Publish
	require.NoError(t, jsoniter.Unmarshal(payload, &pub))
	assert.Equal(t, Publish{
		Samples: []PublishedSample{
			{Name: "test.squares.gauge", Value: 81, Timestamp: 1500000009},
			{Name: "test.squares.derive", Value: 8.5, Timestamp: 1500000018.25},
		},
		TimeStamp: 1500000020,
		DateTime:  "2017-07-14T02:40:20Z",
	}, pub)
}

func TestPreparePayloadEmpty(t *testing.T) {
	t.Parallel()
	payload, err := preparePayload(nil, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"samples":[]`)
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	logger := fixtures.NewTestLogger(t)
	_, err := NewClient(&redis.Options{Addr: DefaultAddress}, "", 10, logger)
	assert.Error(t, err)
	_, err = NewClient(&redis.Options{Addr: DefaultAddress}, DefaultKey, 0, logger)
	assert.Error(t, err)

	v := viper.New()
	v.Set("redis.key", "custom")
	sink, err := NewClientFromViper(v, logger)
	require.NoError(t, err)
	c := sink.(*Client)
	assert.Equal(t, SinkName, c.Name())
	assert.Equal(t, "custom", c.key)
	assert.EqualValues(t, DefaultHistoryDepth, c.historyDepth)
	require.NoError(t, c.redis.Close())
}
