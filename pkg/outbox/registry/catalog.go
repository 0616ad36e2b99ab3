package registry

import (
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox/payloads"
)

// schema is one published payload shape.
type schema struct {
	event     enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	version   int
	decode    DecoderFunc
}

var catalog = []schema{
	{enums.EventOrderCreated, enums.AggregateCheckoutGroup, 1, JSONDecoder[payloads.OrderCreatedEvent]()},
	{enums.EventOrderStatusChanged, enums.AggregateOrder, 1, JSONDecoder[payloads.OrderStatusChangedEvent]()},
	{enums.EventProductStockLow, enums.AggregateProduct, 1, JSONDecoder[payloads.ProductStockLowEvent]()},
	{enums.EventReviewApproved, enums.AggregateReview, 1, JSONDecoder[payloads.ReviewApprovedEvent]()},
}

// Decoders returns a registry preloaded with every published payload version.
func Decoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	for _, s := range catalog {
		reg.Register(s.event, s.version, s.decode)
	}
	return reg
}
