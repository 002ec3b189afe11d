// Package eventbus consumes cloud events published on a NATS subject.
package eventbus

import (
	"context"
	"time"

	"github.com/clousec/clousec/events/modules/cloudevents"
	"github.com/clousec/clousec/internal/metrics"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const queueGroup = "clousec-event-workers"

// Subscriber feeds NATS messages to the event router. Replicas share the
// subject through a queue group, so each event is handled once.
type Subscriber struct {
	conn         *nats.Conn
	subscription *nats.Subscription
	subject      string
	router       *cloudevents.Router
	dispatcher   cloudevents.Dispatcher
	logger       *zap.Logger
	ctx          context.Context
}

// NewSubscriber connects to natsURL, retrying in the background if the server
// is not up yet.
func NewSubscriber(ctx context.Context, natsURL, subject string, router *cloudevents.Router, dispatcher cloudevents.Dispatcher, logger *zap.Logger) (*Subscriber, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("clousec"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Connected to NATS", zap.String("url", natsURL))

	return newSubscriber(ctx, conn, subject, router, dispatcher, logger), nil
}

func newSubscriber(ctx context.Context, conn *nats.Conn, subject string, router *cloudevents.Router, dispatcher cloudevents.Dispatcher, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		conn:       conn,
		subject:    subject,
		router:     router,
		dispatcher: dispatcher,
		logger:     logger,
		ctx:        ctx,
	}
}

// Start subscribes to the subject.
func (s *Subscriber) Start() error {
	var err error
	s.subscription, err = s.conn.QueueSubscribe(s.subject, queueGroup, s.handle)
	if err != nil {
		return err
	}

	s.logger.Info("Subscribed to cloud events", zap.String("subject", s.subject))
	return nil
}

func (s *Subscriber) handle(msg *nats.Msg) {
	routing, err := cloudevents.HandleCloudEvent(s.ctx, cloudevents.UnwrapPublished(msg.Data), s.router, s.dispatcher)
	metrics.RecordEvent("nats", cloudevents.Outcome(routing, err))

	switch {
	case err != nil:
		s.logger.Warn("Skipping malformed NATS event", zap.Int("bytes", len(msg.Data)), zap.Error(err))
	case !routing.Routed():
		s.logger.Debug("Unroutable NATS event", zap.String("reason", routing.Unroutable))
	}
}

// Close drains the subscription and closes the connection.
func (s *Subscriber) Close() {
	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.logger.Warn("Failed to unsubscribe", zap.Error(err))
		}
	}
	if s.conn != nil {
		s.conn.Close()
		s.logger.Info("Disconnected from NATS")
	}
}
