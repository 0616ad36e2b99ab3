package inventory

import (
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox/payloads"
)

// CrossedThreshold reports whether a stock change moved the product from above
// its alert threshold to at or below it.
func CrossedThreshold(beforeStock int, after models.Product) bool {
	return beforeStock > after.AlertThreshold && after.Stock <= after.AlertThreshold
}

// LowStockEvent builds the outbox event announcing a low-stock product.
func LowStockEvent(product models.Product, actor *outbox.ActorRef) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventProductStockLow,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		Actor:         actor,
		Data: payloads.ProductStockLowEvent{
			ProductID:      product.ID,
			VendorID:       product.VendorID,
			Name:           product.Name,
			Stock:          product.Stock,
			AlertThreshold: product.AlertThreshold,
		},
	}
}
