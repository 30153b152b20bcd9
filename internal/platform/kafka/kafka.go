// Package kafka wraps franz-go clients for the producers and consumer groups
// used by the service.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"tradeledger/pkg/platform/strings"
)

// ErrNoBrokers is returned when a client is built without seed brokers.
var ErrNoBrokers = errors.New("kafka: no brokers configured")

// Message is a consumed record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
}

// Handler processes one message. Returning an error only logs; handlers that
// need retries republish explicitly.
type Handler func(ctx context.Context, msg Message) error

// Producer publishes records synchronously.
type Producer struct {
	client *kgo.Client
}

func NewProducer(brokers []string, opts ...kgo.Opt) (*Producer, error) {
	seeds := strings.CleanList(brokers)
	if len(seeds) == 0 {
		return nil, ErrNoBrokers
	}
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(seeds...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}, opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client}, nil
}

// Produce writes one record and waits for the broker acknowledgement.
func (p *Producer) Produce(ctx context.Context, topic string, key, value []byte) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}

// Consumer reads topics as a member of a consumer group. Offsets are
// committed after each polled batch has been handled.
type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
}

func NewConsumer(brokers []string, group string, topics []string, logger *slog.Logger, opts ...kgo.Opt) (*Consumer, error) {
	seeds := strings.CleanList(brokers)
	if len(seeds) == 0 {
		return nil, ErrNoBrokers
	}
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(seeds...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	}, opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, logger: logger}, nil
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(rec *kgo.Record) {
			msg := Message{
				Topic:     rec.Topic,
				Key:       rec.Key,
				Value:     rec.Value,
				Partition: rec.Partition,
				Offset:    rec.Offset,
			}
			if err := handle(ctx, msg); err != nil {
				c.logger.ErrorContext(ctx, "kafka handler failed",
					"topic", rec.Topic,
					"offset", rec.Offset,
					"error", err,
				)
			}
		})
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			c.logger.WarnContext(ctx, "kafka commit failed", "error", err)
		}
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}

// EnsureTopics creates the given topics, ignoring ones that already exist.
func EnsureTopics(ctx context.Context, brokers []string, partitions int32, topics ...string) error {
	seeds := strings.CleanList(brokers)
	if len(seeds) == 0 {
		return ErrNoBrokers
	}
	client, err := kgo.NewClient(kgo.SeedBrokers(seeds...))
	if err != nil {
		return fmt.Errorf("create kafka admin client: %w", err)
	}
	defer client.Close()

	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, partitions, -1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, resp := range resps.Sorted() {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}
