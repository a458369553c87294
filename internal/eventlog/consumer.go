package eventlog

import (
	"context"
	"fmt"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"github.com/flashbots/tips/internal/metrics"
	"github.com/flashbots/tips/logutils"
)

// Consumer drives one or more sarama.ConsumerGroup topics through a single
// ConsumeClaim loop per topic set, reconnecting the Consume call whenever it
// returns (mirrors eventlog's klaytn-derived KafkaBroker.Consumer design).
type Consumer struct {
	group    sarama.ConsumerGroup
	handlers map[string]Handler
}

// NewConsumer dials a consumer group for groupID against the cluster in cfg.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("eventlog: consumer group id is required")
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.MaxVersion
	saramaCfg.Consumer.Return.Errors = true
	applyConsumerProperties(saramaCfg, cfg.Properties)

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("eventlog: starting consumer group: %w", err)
	}

	return &Consumer{
		group:    group,
		handlers: make(map[string]Handler),
	}, nil
}

// Subscribe registers handler for topic. Must be called before Run.
func (c *Consumer) Subscribe(topic string, handler Handler) {
	c.handlers[topic] = handler
}

// Run blocks, repeatedly calling ConsumerGroup.Consume for the subscribed
// topics until ctx is cancelled. Transient errors from Consume are logged
// and retried; this is the long-running loop a cmd/ entrypoint spawns as a
// goroutine.
func (c *Consumer) Run(ctx context.Context) error {
	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}

	go func() {
		for err := range c.group.Errors() {
			logutils.ZapFromContext(ctx).Error("eventlog: consumer group error", zap.Error(err))
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.group.Consume(ctx, topics, c); err != nil {
			logutils.ZapFromContext(ctx).Error("eventlog: consume loop returned, retrying", zap.Error(err))
		}
	}
}

// Close shuts down the underlying consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler, dispatching each
// message to the handler registered for its topic and marking it consumed
// regardless of handler outcome (at-least-once; downstream dedups by key).
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for message := range claim.Messages() {
		metrics.IncEventConsumed(message.Topic)

		if handler, ok := c.handlers[message.Topic]; ok {
			if err := handler(ctx, message.Topic, string(message.Key), message.Value); err != nil {
				logutils.ZapFromContext(ctx).Error("eventlog: handler failed",
					zap.String("topic", message.Topic), zap.Error(err))
			}
		}

		session.MarkMessage(message, "")
	}
	return nil
}
