package nats

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/edelagziel/SkyWatch/internal/engine"
	"github.com/edelagziel/SkyWatch/internal/metrics"
	"github.com/edelagziel/SkyWatch/internal/model"
	"github.com/edelagziel/SkyWatch/internal/schema"
)

// Subscriber consumes normalized snapshot documents from NATS, evaluates
// them, and hands results to the publisher. Each message is evaluated
// independently; the shared registry is read-only, so the queue group can
// scale horizontally.
type Subscriber struct {
	nc        *nats.Conn
	engine    *engine.Engine
	publisher *Publisher
	validator *schema.SnapshotValidator
	subject   string
	queue     string
	metrics   *metrics.Metrics
	logger    *slog.Logger

	sub *nats.Subscription
}

// NewSubscriber creates a subscriber on the given subject and queue group.
// metrics may be nil.
func NewSubscriber(nc *nats.Conn, eng *engine.Engine, publisher *Publisher, validator *schema.SnapshotValidator, subject, queue string, m *metrics.Metrics, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		nc:        nc,
		engine:    eng,
		publisher: publisher,
		validator: validator,
		subject:   subject,
		queue:     queue,
		metrics:   m,
		logger:    logger,
	}
}

// Subscribe starts consuming snapshots and blocks until the context is
// cancelled, then drains the subscription.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	s.logger.Info("Subscribing to snapshots", "subject", s.subject, "queue", s.queue)

	sub, err := s.nc.QueueSubscribe(s.subject, s.queue, s.handleMessage)
	if err != nil {
		s.logger.Error("Failed to subscribe to snapshots", "error", err)
		return err
	}
	s.sub = sub

	<-ctx.Done()

	s.logger.Info("Draining snapshot subscription")
	if err := sub.Drain(); err != nil {
		s.logger.Error("Error draining subscription", "error", err)
		return err
	}
	return nil
}

// handleMessage processes one inbound snapshot document. Rejected
// documents are logged and counted; they never stop the subscriber.
func (s *Subscriber) handleMessage(msg *nats.Msg) {
	s.logger.Debug("Received snapshot document", "subject", msg.Subject, "data_length", len(msg.Data))

	if err := s.validator.Validate(msg.Data); err != nil {
		s.logger.Warn("Rejected snapshot document", "error", err)
		s.incRejected()
		return
	}

	snapshot, err := model.ParseSnapshot(msg.Data)
	if err != nil {
		s.logger.Warn("Failed to parse snapshot document", "error", err)
		s.incRejected()
		return
	}

	result, err := s.engine.Evaluate(snapshot)
	if err != nil {
		s.logger.Error("Evaluation failed", "snapshot_id", snapshot.SnapshotID, "error", err)
		return
	}

	if s.metrics != nil {
		s.metrics.IncSnapshotsProcessed()
	}

	if s.publisher != nil {
		if err := s.publisher.PublishResult(snapshot, result); err != nil {
			s.logger.Error("Failed to publish evaluation result",
				"snapshot_id", snapshot.SnapshotID, "error", err)
		}
	}
}

func (s *Subscriber) incRejected() {
	if s.metrics != nil {
		s.metrics.IncSnapshotsRejected()
	}
}
