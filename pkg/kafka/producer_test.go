// pkg/kafka/producer_test.go
package kafka

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/backoff"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
)

func TestConfigDefaultsAndValidate(t *testing.T) {
	cases := []struct {
		name     string
		input    Config
		wantErr  bool
		wantAcks string
		wantComp string
	}{
		{"empty", Config{}, true, "all", "none"},
		{"noBrokers", Config{Compression: "gzip"}, true, "all", "gzip"},
		{"ok", Config{Brokers: []string{"b1"}}, false, "all", "none"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := c.input
			cfg.applyDefaults()
			if got := cfg.RequiredAcks; got != c.wantAcks {
				t.Errorf("RequiredAcks = %q; want %q", got, c.wantAcks)
			}
			if got := cfg.Compression; got != c.wantComp {
				t.Errorf("Compression = %q; want %q", got, c.wantComp)
			}
			if err := cfg.validate(); (err != nil) != c.wantErr {
				t.Errorf("validate() error = %v; wantErr=%v", err, c.wantErr)
			}
		})
	}
}

func TestBuildSaramaConfig_RequiredAcks(t *testing.T) {
	cases := []struct {
		acks    string
		wantErr bool
	}{
		{"all", false}, {"leader", false}, {"none", false},
		{"ALL", false}, {"LeAdEr", false}, {"invalid", true},
	}
	for _, c := range cases {
		t.Run(c.acks, func(t *testing.T) {
			sc, err := buildSaramaConfig(Config{RequiredAcks: c.acks, Compression: "none", Brokers: []string{"x"}})
			if c.wantErr {
				if err == nil {
					t.Errorf("buildSaramaConfig(%q) expected error", c.acks)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := map[string]sarama.RequiredAcks{
				"all": sarama.WaitForAll, "leader": sarama.WaitForLocal, "none": sarama.NoResponse,
			}[strings.ToLower(c.acks)]
			if sc.Producer.RequiredAcks != want {
				t.Errorf("got %v; want %v", sc.Producer.RequiredAcks, want)
			}
		})
	}
}

func TestBuildSaramaConfig_Compression(t *testing.T) {
	for _, comp := range []string{"none", "gzip", "snappy", "lz4", "zstd", "NONE"} {
		if _, err := buildSaramaConfig(Config{RequiredAcks: "all", Compression: comp}); err != nil {
			t.Errorf("compression %q: unexpected error %v", comp, err)
		}
	}
	if _, err := buildSaramaConfig(Config{RequiredAcks: "all", Compression: "bogus"}); err == nil {
		t.Error("expected error for bogus compression")
	}
}

func TestPublish_RetryAndSuccess(t *testing.T) {
	mockProd := mocks.NewSyncProducer(t, sarama.NewConfig())
	defer mockProd.Close()

	mockProd.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	mockProd.ExpectSendMessageAndSucceed()

	kp := &kafkaProducer{
		prod:       mockProd,
		logger:     logger.NewNop(),
		backoffCfg: backoff.Config{InitialInterval: time.Millisecond, Multiplier: 1, MaxInterval: time.Millisecond, MaxElapsedTime: 100 * time.Millisecond},
	}
	if err := kp.Publish(context.Background(), "topic", []byte("key"), []byte("value")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := kp.Ping(); err != nil {
		t.Errorf("Ping without client: %v", err)
	}
}

func TestNewProducer_InvalidConfig(t *testing.T) {
	if _, err := NewProducer(context.Background(), Config{}, logger.NewNop()); err == nil {
		t.Fatal("expected error for empty Config, got nil")
	}
	cfg := Config{Brokers: []string{"dummy"}, RequiredAcks: "invalid"}
	if _, err := NewProducer(context.Background(), cfg, logger.NewNop()); err == nil {
		t.Fatal("expected error for invalid RequiredAcks, got nil")
	}
}

func TestNewConsumer_InvalidConfig(t *testing.T) {
	if _, err := NewConsumer(context.Background(), ConsumerConfig{GroupID: "g"}, logger.NewNop()); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewConsumer(context.Background(), ConsumerConfig{Brokers: []string{"b"}}, logger.NewNop()); err == nil {
		t.Error("expected error without group id")
	}
}
