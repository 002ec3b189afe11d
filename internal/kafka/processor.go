// Package kafka consumes cloud events from a Kafka topic and hands them to the
// event router.
package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/clousec/clousec/events/modules/cloudevents"
	"github.com/clousec/clousec/internal/metrics"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"
)

// ProcessorConfig configures the consumer.
type ProcessorConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	Username string
	Password string
}

const defaultGroupID = "clousec-event-worker"

func newDialer(cfg ProcessorConfig) *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	// Only configure SASL/TLS if credentials are provided
	if cfg.Username != "" && cfg.Password != "" {
		dialer.SASLMechanism = plain.Mechanism{
			Username: cfg.Username,
			Password: cfg.Password,
		}
		dialer.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return dialer
}

// RunEventProcessor checks the first broker is reachable, then consumes the
// topic in the background until ctx is cancelled. The returned channel is
// closed when the consumer has stopped.
func RunEventProcessor(
	ctx context.Context,
	cfg ProcessorConfig,
	router *cloudevents.Router,
	dispatcher cloudevents.Dispatcher,
	logger *zap.Logger,
) (<-chan struct{}, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no Kafka brokers configured")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = defaultGroupID
	}

	dialer := newDialer(cfg)

	attempt := 0
	dial := func() error {
		attempt++
		logger.Info("Kafka connection attempt", zap.Int("attempt", attempt), zap.String("broker", cfg.Brokers[0]))
		conn, err := dialer.DialContext(ctx, "tcp", cfg.Brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	if err := backoff.Retry(dial, backoff.WithContext(backoff.WithMaxRetries(policy, 2), ctx)); err != nil {
		return nil, err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MaxBytes: 10e6,
		Dialer:   dialer,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer reader.Close()

		logger.Info("Kafka event processor started", zap.String("topic", cfg.Topic))

		retry := backoff.NewExponentialBackOff()
		retry.InitialInterval = 500 * time.Millisecond
		retry.MaxInterval = 30 * time.Second
		retry.MaxElapsedTime = 0

		consume(ctx, reader, retry, func(value []byte) {
			handleMessage(ctx, value, router, dispatcher, logger)
		}, logger)
	}()

	return done, nil
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// consume reads until ctx is cancelled. Read errors wait out the retry policy
// before the next read; a successful read resets it.
func consume(ctx context.Context, reader messageReader, retry backoff.BackOff, handle func([]byte), logger *zap.Logger) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := retry.NextBackOff()
			if wait == backoff.Stop {
				retry.Reset()
				wait = retry.NextBackOff()
			}
			logger.Warn("Failed to read Kafka message", zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()
		handle(msg.Value)
	}
}

// handleMessage routes one message. Malformed messages are logged and skipped;
// the offset is committed either way.
func handleMessage(ctx context.Context, value []byte, router *cloudevents.Router, dispatcher cloudevents.Dispatcher, logger *zap.Logger) {
	routing, err := cloudevents.HandleCloudEvent(ctx, cloudevents.UnwrapPublished(value), router, dispatcher)
	metrics.RecordEvent("kafka", cloudevents.Outcome(routing, err))

	switch {
	case err != nil:
		logger.Warn("Skipping malformed Kafka event", zap.Error(err))
	case !routing.Routed():
		logger.Debug("Unroutable Kafka event", zap.String("reason", routing.Unroutable))
	}
}
