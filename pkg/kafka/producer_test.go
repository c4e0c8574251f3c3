package kafka

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerNeedsBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestNewProducerAppliesOptions(t *testing.T) {
	SetProducerMetricsRegisterer(prometheus.NewRegistry())
	p, err := NewProducer(
		WithBrokers([]string{"localhost:9092"}),
		WithCompression("lz4"),
		WithRequiredAcks(1),
		WithBatchSize(42),
		WithHashByKey(false),
	)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 42, p.writer.BatchSize)
	assert.Equal(t, kafka.RequireOne, p.writer.RequiredAcks)
	assert.Equal(t, kafka.Lz4, p.writer.Compression)
	assert.IsType(t, &kafka.LeastBytes{}, p.writer.Balancer)
	assert.Equal(t, "lz4", p.comp)
}

func TestEncodeMessages(t *testing.T) {
	now := time.Unix(100, 0)
	msgs, n, err := encodeMessages("ticks", []Message{
		{Key: []byte("A"), Value: []byte("raw")},
		{Key: []byte("B"), Value: "text"},
		{Key: []byte("C"), Value: map[string]int{"v": 1}},
	}, now)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "raw", string(msgs[0].Value))
	assert.Equal(t, "text", string(msgs[1].Value))
	assert.JSONEq(t, `{"v":1}`, string(msgs[2].Value))
	assert.Equal(t, int64(3+4+7), n)
	for _, m := range msgs {
		assert.Equal(t, "ticks", m.Topic)
		assert.Equal(t, now, m.Time)
	}

	_, _, err = encodeMessages("ticks", []Message{{Value: make(chan int)}}, now)
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Gzip, parseCompression("bogus"))
}

func TestObserveProducerMetrics(t *testing.T) {
	initProducerMetrics()
	before := testutil.ToFloat64(producerMsgsTotal.WithLabelValues("obs", "zstd", "ok"))
	observeProducerMetrics("obs", "zstd", 10, 3, time.Millisecond, nil)
	assert.Equal(t, before+3, testutil.ToFloat64(producerMsgsTotal.WithLabelValues("obs", "zstd", "ok")))
}

func TestProducerConfigValidate(t *testing.T) {
	cfg := defaultProducerConfig()
	assert.Error(t, cfg.validate(), "no brokers")

	cfg.Brokers = []string{"b:9092"}
	require.NoError(t, cfg.validate())

	bad := cfg
	bad.RequiredAcks = 2
	assert.Error(t, bad.validate())

	bad = cfg
	bad.BatchSize = 0
	assert.Error(t, bad.validate())
}
