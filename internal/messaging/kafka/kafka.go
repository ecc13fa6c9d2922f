package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	wkafka "github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/EduardooSodre/zarife-sub000/internal/messaging"
)

const partitionKeyMetadata = "partition_key"

type publisher struct {
	pub *wkafka.Publisher
}

// NewPublisher creates a Kafka-backed Publisher. Events for the same order
// share a partition key so downstream consumers see them in order.
func NewPublisher(brokers []string) (messaging.Publisher, func() error, error) {
	saramaCfg := wkafka.DefaultSaramaSyncPublisherConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll

	pub, err := wkafka.NewPublisher(wkafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             wkafka.NewWithPartitioningMarshaler(partitionKey),
		OverwriteSaramaConfig: saramaCfg,
	}, watermill.NewSlogLogger(slog.Default()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return &publisher{pub: pub}, pub.Close, nil
}

func partitionKey(topic string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(partitionKeyMetadata), nil
}

func (p *publisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(partitionKeyMetadata, key)
	msg.SetContext(ctx)

	return p.pub.Publish(topic, msg)
}

type subscriber struct {
	brokers []string
}

// NewSubscriber creates a Kafka-backed Subscriber using consumer groups.
func NewSubscriber(brokers []string) messaging.Subscriber {
	return &subscriber{brokers: brokers}
}

func (s *subscriber) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers: s.brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Consumer shutting down", "topic", topic)
				return
			}
			slog.Error("Error reading message", "topic", topic, "err", err)
			continue
		}

		if err := handler(ctx, msg.Value); err != nil {
			slog.Error("Error handling message", "topic", topic, "err", err)
		}
	}
}
