// Package kafka produces messages into Kafka topic keyed by channel, so
// messages of one channel stay in one partition in sequence order.
package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"github.com/windi-messenger/chathub/internal/configtypes"
	"github.com/windi-messenger/chathub/internal/hub"
)

type Config = configtypes.KafkaStore

const clientID = "chathub"

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Store is a Kafka message log.
type Store struct {
	client producer
	topic  string
}

func clientOptions(config Config) ([]kgo.Opt, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("brokers required")
	}
	if config.Topic == "" {
		return nil, errors.New("topic required")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(config.Brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(config.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if config.TLS.Enabled {
		tlsConfig, err := config.TLS.ToGoTLSConfig("kafka_store")
		if err != nil {
			return nil, fmt.Errorf("error making TLS configuration: %w", err)
		}
		dialer := &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: 10 * time.Second},
			Config:    tlsConfig,
		}
		opts = append(opts, kgo.Dialer(dialer.DialContext))
	}
	if config.SASLMechanism != "" {
		if config.SASLMechanism != "plain" {
			return nil, errors.New("only plain SASL auth mechanism is supported")
		}
		opts = append(opts, kgo.SASL(plain.Auth{
			User: config.SASLUser,
			Pass: config.SASLPassword,
		}.AsMechanism()))
	}
	return opts, nil
}

// New creates Kafka client and pings brokers.
func New(ctx context.Context, config Config) (*Store, error) {
	opts, err := clientOptions(config)
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("error ping Kafka: %w", err)
	}
	return &Store{client: client, topic: config.Topic}, nil
}

func (s *Store) Name() string { return "kafka" }

// Persist implements store.Backend.
func (s *Store) Persist(ctx context.Context, m *hub.Message) error {
	rec, err := record(s.topic, m)
	if err != nil {
		return err
	}
	return s.client.ProduceSync(ctx, rec).FirstErr()
}

func record(topic string, m *hub.Message) (*kgo.Record, error) {
	value, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic:     topic,
		Key:       []byte(m.Channel),
		Value:     value,
		Timestamp: m.Time,
		Headers: []kgo.RecordHeader{
			{Key: "seq", Value: []byte(strconv.FormatUint(m.Seq, 10))},
		},
	}, nil
}

func (s *Store) Close() {
	s.client.Close()
}
