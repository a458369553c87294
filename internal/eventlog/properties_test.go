package eventlog

import (
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/require"
)

func TestApplyProducerProperties_OverridesSelectedFields(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 500 * time.Millisecond

	applyProducerProperties(cfg, map[string]string{
		"acks":               "all",
		"compression.type":   "zstd",
		"flush.frequency.ms": "250",
		"message.max.bytes":  "2000000",
	})

	require.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	require.Equal(t, sarama.CompressionZSTD, cfg.Producer.Compression)
	require.Equal(t, 250*time.Millisecond, cfg.Producer.Flush.Frequency)
	require.Equal(t, 2000000, cfg.Producer.MaxMessageBytes)
}

func TestApplyProducerProperties_NilIsNoop(t *testing.T) {
	cfg := sarama.NewConfig()
	before := cfg.Producer.RequiredAcks
	applyProducerProperties(cfg, nil)
	require.Equal(t, before, cfg.Producer.RequiredAcks)
}

func TestApplyProducerProperties_UnknownValuesLeaveDefaults(t *testing.T) {
	cfg := sarama.NewConfig()
	before := cfg.Producer.Compression
	applyProducerProperties(cfg, map[string]string{"compression.type": "bogus"})
	require.Equal(t, before, cfg.Producer.Compression)
}

func TestApplyConsumerProperties_OverridesSelectedFields(t *testing.T) {
	cfg := sarama.NewConfig()

	applyConsumerProperties(cfg, map[string]string{
		"fetch.max.wait.ms": "100",
		"fetch.min.bytes":   "1024",
	})

	require.Equal(t, 100*time.Millisecond, cfg.Consumer.MaxWaitTime)
	require.Equal(t, int32(1024), cfg.Consumer.Fetch.Min)
}

func TestApplyConsumerProperties_NilIsNoop(t *testing.T) {
	cfg := sarama.NewConfig()
	before := cfg.Consumer.MaxWaitTime
	applyConsumerProperties(cfg, nil)
	require.Equal(t, before, cfg.Consumer.MaxWaitTime)
}
