// README: Kafka sink; one message per event keyed by the pickup geohash cell.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaSink struct {
	writer  MessageWriter
	timeout time.Duration
}

func NewKafkaSink(w MessageWriter) *KafkaSink {
	return &KafkaSink{writer: w, timeout: 2 * time.Second}
}

// Publish keys by pickup cell so events for one area stay ordered on a partition.
func (k *KafkaSink) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	key := e.Trip.Cell
	if key == "" {
		key = string(e.Trip.ID)
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "recipient_id", Value: []byte(e.RecipientID)},
		},
		Time: e.At,
	})
}
