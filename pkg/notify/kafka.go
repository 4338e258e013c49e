package notify

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/segmentio/kafka-go"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange"
)

// Kafka publishes one message per event, keyed so that every event of an
// order lands on the same partition.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Messages builds the kafka messages for a transaction's events
func Messages(tx common.Hash, events []exchange.Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := Encode(tx, ev)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   ev.Key(),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event", Value: []byte(ev.Name())},
			},
		})
	}
	return msgs, nil
}

func (k *Kafka) Publish(ctx context.Context, tx common.Hash, events []exchange.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := Messages(tx, events)
	if err != nil {
		return err
	}
	return Error.Wrap(k.writer.WriteMessages(ctx, msgs...))
}

func (k *Kafka) Close() error {
	return Error.Wrap(k.writer.Close())
}
