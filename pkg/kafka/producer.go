// pkg/kafka/producer.go
package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/backoff"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
)

var tracer = otel.Tracer("chart-grouping/kafka")

// Config configures the sync producer.
type Config struct {
	Brokers      []string
	RequiredAcks string        // all | leader | none
	Timeout      time.Duration // default 15s
	Compression  string        // none | gzip | snappy | lz4 | zstd
	Backoff      backoff.Config
}

func (c *Config) applyDefaults() {
	if c.RequiredAcks == "" {
		c.RequiredAcks = "all"
	}
	if c.Compression == "" {
		c.Compression = "none"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

func (c *Config) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka: at least one broker is required")
	}
	return nil
}

func buildSaramaConfig(cfg Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Timeout = cfg.Timeout

	switch strings.ToLower(cfg.RequiredAcks) {
	case "all":
		sc.Producer.RequiredAcks = sarama.WaitForAll
	case "leader":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "none":
		sc.Producer.RequiredAcks = sarama.NoResponse
	default:
		return nil, fmt.Errorf("kafka: invalid required acks %q", cfg.RequiredAcks)
	}

	switch strings.ToLower(cfg.Compression) {
	case "none":
		sc.Producer.Compression = sarama.CompressionNone
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	default:
		return nil, fmt.Errorf("kafka: invalid compression %q", cfg.Compression)
	}
	return sc, nil
}

type kafkaProducer struct {
	client     sarama.Client
	prod       sarama.SyncProducer
	logger     *logger.Logger
	backoffCfg backoff.Config
}

// NewProducer connects a sync producer, retrying with backoff.
func NewProducer(ctx context.Context, cfg Config, log *logger.Logger) (Producer, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	log = log.Named("kafka-producer")

	var (
		client sarama.Client
		prod   sarama.SyncProducer
	)
	connect := func(ctx context.Context) error {
		c, err := sarama.NewClient(cfg.Brokers, sc)
		if err != nil {
			return err
		}
		p, err := sarama.NewSyncProducerFromClient(c)
		if err != nil {
			_ = c.Close()
			return err
		}
		client, prod = c, p
		return nil
	}
	if err := backoff.Execute(ctx, cfg.Backoff, log, connect); err != nil {
		return nil, fmt.Errorf("kafka producer connect: %w", err)
	}
	log.Info("kafka producer connected", zap.Strings("brokers", cfg.Brokers))

	return &kafkaProducer{client: client, prod: prod, logger: log, backoffCfg: cfg.Backoff}, nil
}

// Publish sends one record, retrying transient failures.
func (p *kafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	ctx, span := tracer.Start(ctx, "Kafka.Publish", trace.WithAttributes(attribute.String("topic", topic)))
	defer span.End()

	msg := &sarama.ProducerMessage{Topic: topic, Value: sarama.ByteEncoder(value)}
	if key != nil {
		msg.Key = sarama.ByteEncoder(key)
	}
	op := func(ctx context.Context) error {
		_, _, err := p.prod.SendMessage(msg)
		return err
	}
	if err := backoff.Execute(ctx, p.backoffCfg, p.logger, op); err != nil {
		span.RecordError(err)
		p.logger.WithContext(ctx).Error("kafka publish failed", zap.String("topic", topic), zap.Error(err))
		return err
	}
	return nil
}

// Ping refreshes cluster metadata.
func (p *kafkaProducer) Ping() error {
	if p.client == nil {
		return nil
	}
	return p.client.RefreshMetadata()
}

func (p *kafkaProducer) Close() error {
	err := p.prod.Close()
	if p.client != nil && !p.client.Closed() {
		if cerr := p.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
