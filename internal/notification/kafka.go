package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier publishes ledger events as JSON keyed by wallet id so events
// for one wallet land on one partition in order.
type KafkaNotifier struct {
	writer MessageWriter
}

// NewKafkaNotifier builds a notifier on top of a kafka writer.
func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

// Send encodes and publishes the message.
func (n *KafkaNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", message.Kind, err)
	}
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(message.WalletID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(message.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", message.Kind, err)
	}
	return nil
}
