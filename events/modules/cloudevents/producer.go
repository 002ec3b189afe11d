package cloudevents

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/clousec/clousec/model"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// Producer publishes cloud events to Kafka for the event processor
type Producer struct {
	Writer *kafka.Writer
}

// NewProducer initializes a Kafka writer. SASL/PLAIN over TLS is used when
// credentials are given.
func NewProducer(brokers []string, topic, username, password string) *Producer {
	transport := &kafka.Transport{}
	if username != "" && password != "" {
		transport.SASL = plain.Mechanism{Username: username, Password: password}
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Producer{
		Writer: &kafka.Writer{
			Addr:      kafka.TCP(brokers...),
			Topic:     topic,
			Balancer:  &kafka.Hash{},
			Transport: transport,
		},
	}
}

// Publish wraps the event in an envelope and writes it keyed by source. The
// hash balancer keeps events of one service on one partition, in order.
func (p *Producer) Publish(ctx context.Context, ev model.CloudEvent) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	envelope := PublishedEvent{
		EventID:       ev.ID,
		EventTime:     time.Now().UTC(),
		SchemaVersion: "v1",
		Event:         ev,
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}

	return ev.ID, p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Source),
		Value: payload,
	})
}

// Close cleans up the Kafka writer
func (p *Producer) Close() error {
	return p.Writer.Close()
}

// UnwrapPublished returns the event inside a producer envelope, or msg itself
// when it is a bare event.
func UnwrapPublished(msg []byte) []byte {
	var envelope struct {
		SchemaVersion string          `json:"schema_version"`
		Event         json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil || envelope.SchemaVersion == "" || len(envelope.Event) == 0 {
		return msg
	}
	return envelope.Event
}
