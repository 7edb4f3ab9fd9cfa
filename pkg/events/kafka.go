package events

import (
	"context"
	"encoding/json"
	"fmt"

	"wayfare/pkg/kafka"
)

// KafkaPublisher adapts the Kafka producer to the Publisher contract.
// Facts about the same trip share a partition key, so Kafka preserves
// publish order per trip; at-least-once delivery comes from the broker.
type KafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaPublisher(producer *kafka.Producer, source string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		source:   source,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, fact Fact) error {
	msg, err := encodeFact(fact, p.source)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

// PublishAll encodes the buffered facts and hands them to the producer in
// a single batch write.
func (p *KafkaPublisher) PublishAll(ctx context.Context, facts []Fact) error {
	if len(facts) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(facts))
	for _, fact := range facts {
		msg, err := encodeFact(fact, p.source)
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}
	return p.producer.PublishBatch(ctx, messages)
}

func encodeFact(fact Fact, source string) (kafka.Message, error) {
	env, err := Wrap(fact)
	if err != nil {
		return kafka.Message{}, err
	}

	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode envelope: %w", err)
	}

	return kafka.NewMessage().
		WithKey(fact.Key()).
		WithRawValue(value).
		WithEventID("").
		WithEventType(string(fact.FactType())).
		WithSchemaVersion("1").
		WithSource(source).
		Build(), nil
}

// ConsumerHandler builds the kafka.MessageHandler that decodes envelopes and
// routes facts through the dispatcher. Decode failures are permanent errors
// so they go straight to the DLQ instead of being retried.
func ConsumerHandler(dispatcher *Dispatcher) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var env Envelope
		if err := msg.DecodeValue(&env); err != nil {
			return kafka.NewPermanentError("invalid fact envelope", err)
		}

		fact, err := Unwrap(env)
		if err != nil {
			return kafka.NewPermanentError("undecodable fact", err)
		}

		return dispatcher.Dispatch(ctx, fact)
	}
}
