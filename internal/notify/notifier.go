// Package notify implements the fan-out change notification channel:
// publishers emit transient ChangeEvent envelopes to a fanout exchange,
// subscribers receive them on ephemeral broker-named queues. Events are
// fire-and-forget; a subscriber that is not bound when an event is
// published never sees it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/domain"
)

// FanoutPublisher publishes a raw body to a fanout exchange.
type FanoutPublisher interface {
	PublishFanout(ctx context.Context, exchange string, body []byte) error
}

// Notifier publishes change events to the changes exchange.
type Notifier struct {
	publisher FanoutPublisher
	exchange  string
	logger    *slog.Logger
}

// NewNotifier creates a change notifier bound to one exchange.
func NewNotifier(publisher FanoutPublisher, exchange string, logger *slog.Logger) *Notifier {
	return &Notifier{
		publisher: publisher,
		exchange:  exchange,
		logger:    logger,
	}
}

// Publish wraps the document in a ChangeEvent envelope and fans it out.
// Delivery is best-effort: the broker confirms the publish, not that any
// subscriber received it.
func (n *Notifier) Publish(ctx context.Context, changeType string, document any) error {
	event := domain.ChangeEvent{
		ChangeType:  changeType,
		Document:    document,
		PublishedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}

	if err := n.publisher.PublishFanout(ctx, n.exchange, body); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	n.logger.Debug("Change event published",
		slog.String("exchange", n.exchange),
		slog.String("change_type", changeType),
	)

	return nil
}
