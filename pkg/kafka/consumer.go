// pkg/kafka/consumer.go
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/backoff"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
)

// ConsumerConfig configures the consumer group.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Version string // sarama version string, default 2.1.0
	Oldest  bool   // start from the oldest offset when no commit exists
	Backoff backoff.Config
}

type consumerGroup struct {
	group sarama.ConsumerGroup
	log   *logger.Logger
}

// NewConsumer joins a consumer group, retrying the initial connection.
func NewConsumer(ctx context.Context, cfg ConsumerConfig, log *logger.Logger) (Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka: group id is required")
	}
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka: parse version: %w", err)
		}
		sc.Version = v
	}
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	if cfg.Oldest {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	log = log.Named("kafka-consumer")

	var group sarama.ConsumerGroup
	connect := func(ctx context.Context) error {
		g, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
		if err != nil {
			return err
		}
		group = g
		return nil
	}
	if err := backoff.Execute(ctx, cfg.Backoff, log, connect); err != nil {
		return nil, fmt.Errorf("kafka consumer connect: %w", err)
	}
	log.Info("kafka consumer group joined", zap.String("group", cfg.GroupID))
	return &consumerGroup{group: group, log: log}, nil
}

// Consume blocks until ctx is cancelled, re-entering the group after every
// rebalance.
func (c *consumerGroup) Consume(ctx context.Context, topics []string, handler Handler) error {
	h := &groupHandler{handler: handler, log: c.log}
	for {
		if err := c.group.Consume(ctx, topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.WithContext(ctx).Error("kafka consume error", zap.Error(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *consumerGroup) Close() error {
	return c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	handler Handler
	log     *logger.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.dispatch(session.Context(), msg)
		session.MarkMessage(msg, "")
	}
	return nil
}

func (h *groupHandler) dispatch(ctx context.Context, msg *sarama.ConsumerMessage) {
	ctx, span := tracer.Start(ctx, "Kafka.Consume", trace.WithAttributes(
		attribute.String("topic", msg.Topic),
		attribute.Int64("offset", msg.Offset),
	))
	defer span.End()

	m := &Message{
		Topic:     msg.Topic,
		Key:       msg.Key,
		Value:     msg.Value,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}
	if err := h.handler(ctx, m); err != nil {
		span.RecordError(err)
		h.log.WithContext(ctx).Warn("kafka handler failed",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}
