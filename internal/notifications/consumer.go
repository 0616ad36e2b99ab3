package notifications

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox/registry"
	"github.com/angelmondragon/fanjava-backend/pkg/types"
)

const eventNotificationConsumer = "event-notifications"

type notifier interface {
	Notify(ctx context.Context, input NotifyInput) (int, error)
}

// EventDecoders returns the payload decoders the consumer understands.
func EventDecoders() *registry.DecoderRegistry {
	return registry.Decoders()
}

// Consumer watches domain events and turns them into system notifications.
type Consumer struct {
	notifier     notifier
	subscription *pubsub.Subscriber
	decoders     *registry.DecoderRegistry
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the event notification consumer.
func NewConsumer(n notifier, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if n == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		notifier:     n,
		subscription: subscription,
		decoders:     EventDecoders(),
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	payload, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	claim, err := c.idempotency.Claim(ctx, eventNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if claim.Duplicate {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())
	if err := c.handle(logCtx, eventID, payload); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		if relErr := c.idempotency.Release(ctx, claim); relErr != nil {
			c.logg.Error(logCtx, "failed to release event claim", relErr)
		}
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

// handle is safe to repeat for the same event: every notification it creates
// has an id derived from the event, so a redelivery only completes what a
// failed attempt left out.
func (c *Consumer) handle(ctx context.Context, eventID uuid.UUID, payload any) error {
	for _, input := range notificationsFor(eventID, payload) {
		if _, err := c.notifier.Notify(ctx, input); err != nil {
			if !pkgerrors.Retryable(err) {
				c.logg.Warn(ctx, "dropping notification: "+err.Error())
				continue
			}
			return err
		}
	}
	c.logg.Info(ctx, "event notifications delivered")
	return nil
}

// notificationsFor maps a decoded event to the notifications it produces.
func notificationsFor(eventID uuid.UUID, payload any) []NotifyInput {
	switch event := payload.(type) {
	case *payloads.OrderCreatedEvent:
		out := make([]NotifyInput, 0, len(event.Orders))
		for _, order := range event.Orders {
			out = append(out, NotifyInput{
				ID:         notificationIDFor(eventID, order.OrderID),
				Type:       enums.NotificationTypeOrder,
				Title:      "New order " + order.Number,
				Body:       fmt.Sprintf("Order %s was placed for %s.", order.Number, types.FormatCents(order.TotalCents)),
				Link:       stringPtr("/vendor/orders/" + order.OrderID.String()),
				Recipients: []uuid.UUID{order.VendorID},
			})
		}
		return out
	case *payloads.OrderStatusChangedEvent:
		return []NotifyInput{{
			ID:         notificationIDFor(eventID, event.OrderID),
			Type:       enums.NotificationTypeOrderStatus,
			Title:      fmt.Sprintf("Order %s is %s", event.Number, event.To),
			Body:       fmt.Sprintf("Your order %s moved from %s to %s.", event.Number, event.From, event.To),
			Link:       stringPtr("/orders/" + event.OrderID.String()),
			Recipients: []uuid.UUID{event.ClientID},
		}}
	case *payloads.ProductStockLowEvent:
		return []NotifyInput{{
			ID:         notificationIDFor(eventID, event.ProductID),
			Type:       enums.NotificationTypeStock,
			Title:      "Low stock: " + event.Name,
			Body:       fmt.Sprintf("%s has %d units left (alert threshold %d).", event.Name, event.Stock, event.AlertThreshold),
			Link:       stringPtr("/vendor/products/" + event.ProductID.String()),
			Recipients: []uuid.UUID{event.VendorID},
		}}
	case *payloads.ReviewApprovedEvent:
		return []NotifyInput{{
			ID:         notificationIDFor(eventID, event.ReviewID),
			Type:       enums.NotificationTypeReview,
			Title:      "New review published",
			Body:       fmt.Sprintf("A %d-star review was published on one of your products.", event.Rating),
			Link:       stringPtr("/products/" + event.ProductID.String()),
			Recipients: []uuid.UUID{event.VendorID},
		}}
	}
	return nil
}

// notificationIDFor names the notification an event produces about subject.
func notificationIDFor(eventID, subject uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(eventID, subject[:])
}

func stringPtr(value string) *string {
	return &value
}
