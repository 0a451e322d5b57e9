package invalidation

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"dossier/pkg/requestcontext"
)

// KafkaPublisher writes one record per affected player, keyed by external id so
// every player's signals land on one partition in order.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(client *kgo.Client, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, signal Signal) error {
	requestID := requestcontext.RequestID(ctx)
	now := requestcontext.Now(ctx)

	records := make([]*kgo.Record, 0, len(signal.ExternalIDs))
	for _, externalID := range signal.ExternalIDs {
		payload, err := encode(New(externalID), requestID, now)
		if err != nil {
			return fmt.Errorf("encode invalidation record: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(externalID),
			Value: payload,
		})
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}
