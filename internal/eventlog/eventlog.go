// Package eventlog implements the durable partitioned event log TIPS
// publishes bundle/UserOperation/builder lifecycle events to, backed by
// Kafka via Sarama. Grounded on the klaytn chaindatafetcher's KafkaBroker/
// Consumer pair: an async producer for publishing, a sarama.ConsumerGroup
// driving a ConsumeClaim loop for consuming, and cluster-admin-based topic
// auto-provisioning.
package eventlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/flashbots/tips/internal/config"
	"github.com/flashbots/tips/internal/metrics"
)

// Topic names, per the spec's event log layout.
const (
	TopicIngressBundles    = "tips-ingress-bundles"
	TopicUserOperation     = "tips-user-operation"
	TopicBuilderEvents     = "tips-builder-events"
	TopicBundlerDirectives = "tips-bundler-directives"
)

// Config describes how to reach the Kafka cluster and how new topics (if
// missing) should be provisioned.
type Config struct {
	Brokers    []string
	Partitions int32
	Replicas   int16
	GroupID    string

	// Properties holds Kafka client tuning knobs sourced from a
	// KAFKA_*_PROPERTIES_FILE Java-style properties file (spec.md §6), via
	// internal/config.Kafka.LoadProperties. Recognized keys: "acks",
	// "compression.type", "flush.frequency.ms", "message.max.bytes" for a
	// producer; "fetch.max.wait.ms", "fetch.min.bytes" for a consumer. A nil
	// or missing key leaves the corresponding sarama default untouched.
	Properties map[string]string
}

// applyProducerProperties overrides producerCfg's defaults with whatever
// cfg.Properties sets, using the same Java Kafka client property names the
// properties file is expected to carry.
func applyProducerProperties(producerCfg *sarama.Config, props map[string]string) {
	if props == nil {
		return
	}

	switch props["acks"] {
	case "0":
		producerCfg.Producer.RequiredAcks = sarama.NoResponse
	case "1":
		producerCfg.Producer.RequiredAcks = sarama.WaitForLocal
	case "-1", "all":
		producerCfg.Producer.RequiredAcks = sarama.WaitForAll
	}

	switch props["compression.type"] {
	case "none":
		producerCfg.Producer.Compression = sarama.CompressionNone
	case "gzip":
		producerCfg.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		producerCfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		producerCfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		producerCfg.Producer.Compression = sarama.CompressionZSTD
	}

	if ms := config.PropertyInt(props, "flush.frequency.ms", 0); ms > 0 {
		producerCfg.Producer.Flush.Frequency = time.Duration(ms) * time.Millisecond
	}
	if maxBytes := config.PropertyInt(props, "message.max.bytes", 0); maxBytes > 0 {
		producerCfg.Producer.MaxMessageBytes = maxBytes
	}
}

// applyConsumerProperties is applyProducerProperties's consumer-side
// counterpart.
func applyConsumerProperties(consumerCfg *sarama.Config, props map[string]string) {
	if props == nil {
		return
	}

	if ms := config.PropertyInt(props, "fetch.max.wait.ms", 0); ms > 0 {
		consumerCfg.Consumer.MaxWaitTime = time.Duration(ms) * time.Millisecond
	}
	if minBytes := config.PropertyInt(props, "fetch.min.bytes", 0); minBytes > 0 {
		consumerCfg.Consumer.Fetch.Min = int32(minBytes)
	}
}

// Keyed is implemented by event payloads that want a specific partition key
// (e.g. bundle uuid, userOpHash) instead of the topic name.
type Keyed interface {
	Key() string
}

// Handler processes one decoded message. Returning an error does not stop
// the consumer group; it is logged by the caller and the message is still
// marked consumed (at-least-once, not exactly-once - downstream consumers
// are expected to dedup via the event's Key field).
type Handler func(ctx context.Context, topic string, key string, value []byte) error

// Log is a typed publisher/consumer pair over a Kafka cluster.
type Log struct {
	cfg      Config
	producer sarama.AsyncProducer
	admin    sarama.ClusterAdmin

	knownMu sync.Mutex
	known   map[string]bool
}

// New dials the cluster, starting an async producer and a cluster admin
// client. Call Close when done.
func New(cfg Config) (*Log, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("eventlog: no brokers configured")
	}

	producerCfg := sarama.NewConfig()
	producerCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producerCfg.Producer.Compression = sarama.CompressionSnappy
	producerCfg.Producer.Flush.Frequency = 500 * time.Millisecond
	producerCfg.Producer.Return.Errors = true
	producerCfg.Producer.Return.Successes = true
	applyProducerProperties(producerCfg, cfg.Properties)

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, producerCfg)
	if err != nil {
		return nil, fmt.Errorf("eventlog: starting producer: %w", err)
	}

	adminCfg := sarama.NewConfig()
	adminCfg.Version = sarama.MaxVersion
	admin, err := sarama.NewClusterAdmin(cfg.Brokers, adminCfg)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("eventlog: starting cluster admin: %w", err)
	}

	l := &Log{
		cfg:      cfg,
		producer: producer,
		admin:    admin,
		known:    make(map[string]bool),
	}

	go l.drainProducerErrors()
	go l.drainProducerSuccesses()

	return l, nil
}

// ackChan is stashed in ProducerMessage.Metadata so the matching entry on
// the Errors()/Successes() channels can be correlated back to the Publish
// call that is blocked waiting for it.
type ackChan chan error

func (l *Log) drainProducerErrors() {
	for perr := range l.producer.Errors() {
		metrics.IncEventPublishError(perr.Msg.Topic)
		if done, ok := perr.Msg.Metadata.(ackChan); ok {
			done <- perr.Err
		}
	}
}

func (l *Log) drainProducerSuccesses() {
	for msg := range l.producer.Successes() {
		if done, ok := msg.Metadata.(ackChan); ok {
			done <- nil
		}
	}
}

// CreateTopic provisions a topic with the configured partition/replica
// counts if it does not already exist. Safe to call repeatedly and
// concurrently.
func (l *Log) CreateTopic(topic string) error {
	l.knownMu.Lock()
	known := l.known[topic]
	l.knownMu.Unlock()
	if known {
		return nil
	}

	err := l.admin.CreateTopic(topic, &sarama.TopicDetail{
		NumPartitions:     l.cfg.Partitions,
		ReplicationFactor: l.cfg.Replicas,
	}, false)
	if err != nil {
		if terr, ok := err.(*sarama.TopicError); ok && terr.Err == sarama.ErrTopicAlreadyExists {
			l.knownMu.Lock()
			l.known[topic] = true
			l.knownMu.Unlock()
			return nil
		}
		return fmt.Errorf("eventlog: creating topic %q: %w", topic, err)
	}

	l.knownMu.Lock()
	l.known[topic] = true
	l.knownMu.Unlock()
	return nil
}

// Publish JSON-marshals value and publishes it to topic, blocking until the
// broker has acknowledged the write (spec.md §4.2: a publisher must not
// report success before the log broker acks). If value implements Keyed,
// its Key() is used as the Kafka message key; otherwise a random uuid is
// used so messages spread evenly across partitions.
func (l *Log) Publish(topic string, value any) error {
	if err := l.CreateTopic(topic); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		metrics.IncEventPublishError(topic)
		return fmt.Errorf("eventlog: marshaling value for topic %q: %w", topic, err)
	}

	key := uuid.NewString()
	if keyed, ok := value.(Keyed); ok {
		key = keyed.Key()
	}

	done := make(ackChan, 1)
	l.producer.Input() <- &sarama.ProducerMessage{
		Topic:    topic,
		Key:      sarama.StringEncoder(key),
		Value:    sarama.ByteEncoder(data),
		Metadata: done,
	}

	if err := <-done; err != nil {
		metrics.IncEventPublishError(topic)
		return fmt.Errorf("eventlog: publishing to topic %q: %w", topic, err)
	}

	metrics.IncEventPublished(topic)
	return nil
}

// Close shuts down the producer and cluster admin connections.
func (l *Log) Close() error {
	if err := l.producer.Close(); err != nil {
		return err
	}
	return l.admin.Close()
}
