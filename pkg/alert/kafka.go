package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/elonfeng/aqiwatch/pkg/location"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes notifications to a topic, keyed by city so that one
// city's alerts stay ordered within a partition.
type Kafka struct {
	writer messageWriter
	topic  string
}

// NewKafka creates a Kafka notifier.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		topic: topic,
	}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Send(ctx context.Context, n *Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal kafka message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(location.Slug(n.State) + "/" + location.Slug(n.City)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "risk_score", Value: []byte(fmt.Sprint(n.RiskScore))},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
