package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fpt-devteam/csv-processor/internal/domain"
	"github.com/fpt-devteam/csv-processor/shared/rabbitmq"
	"github.com/google/uuid"
)

// Handler processes one decoded change event. Returning an error
// requeues the event for redelivery.
type Handler interface {
	Handle(ctx context.Context, event *domain.ChangeEvent) error
}

// ackDecision is the outcome of handling one delivery.
type ackDecision int

const (
	// ackMessage removes the event from the queue. Used for handled
	// events and for events that can never be decoded.
	ackMessage ackDecision = iota
	// nackRequeue returns the event to the queue for redelivery.
	nackRequeue
)

// Subscriber consumes change events from an ephemeral queue bound to the
// changes exchange. Each Subscriber gets its own queue, so every running
// subscriber receives every event published while it is bound.
type Subscriber struct {
	client   *rabbitmq.Client
	exchange string
	name     string
	logger   *slog.Logger
}

// NewSubscriber creates a change subscriber. The name identifies the
// subscriber in logs and in its consumer tag.
func NewSubscriber(client *rabbitmq.Client, exchange, name string, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		client:   client,
		exchange: exchange,
		name:     name,
		logger:   logger,
	}
}

// Run subscribes and dispatches events to the handler until the context
// is canceled. Handler failures nack-requeue the event; events that
// cannot be decoded are acknowledged and dropped.
func (s *Subscriber) Run(ctx context.Context, handler Handler) error {
	consumerTag := fmt.Sprintf("%s-%s", s.name, strings.ReplaceAll(uuid.New().String(), "-", "")[:8])

	deliveries, queueName, err := s.client.SubscribeFanout(s.exchange, consumerTag)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	s.logger.Info("Change subscriber started",
		slog.String("subscriber", s.name),
		slog.String("exchange", s.exchange),
		slog.String("queue", queueName),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Change subscriber stopped - context canceled",
				slog.String("subscriber", s.name),
			)
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				s.logger.Warn("Delivery channel closed",
					slog.String("subscriber", s.name),
				)
				return fmt.Errorf("delivery channel closed")
			}

			decision := s.handleDelivery(ctx, handler, delivery.Body)

			switch decision {
			case ackMessage:
				if err := delivery.Ack(false); err != nil {
					s.logger.Error("Failed to ACK change event",
						slog.Any("error", err),
					)
				}
			case nackRequeue:
				if err := delivery.Nack(false, true); err != nil {
					s.logger.Error("Failed to NACK change event",
						slog.Any("error", err),
					)
				}
			}
		}
	}
}

// handleDelivery resolves one delivery into an ack/nack decision. An
// event that cannot be decoded is permanently invalid and is dropped; a
// handler failure requeues the event for redelivery.
func (s *Subscriber) handleDelivery(ctx context.Context, handler Handler, body []byte) ackDecision {
	var event domain.ChangeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Warn("Dropping undecodable change event",
			slog.String("subscriber", s.name),
			slog.Any("error", err),
		)
		return ackMessage
	}

	if err := handler.Handle(ctx, &event); err != nil {
		s.logger.Error("Change handler failed, requeueing event",
			slog.String("subscriber", s.name),
			slog.String("change_type", event.ChangeType),
			slog.Any("error", err),
		)
		return nackRequeue
	}

	return ackMessage
}
