package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/pkg/enums"
)

// OrderRef summarizes one vendor order created by a checkout.
type OrderRef struct {
	OrderID    uuid.UUID `json:"order_id"`
	VendorID   uuid.UUID `json:"vendor_id"`
	Number     string    `json:"number"`
	TotalCents int64     `json:"total_cents"`
}

// OrderCreatedEvent signals a committed checkout split across vendors.
type OrderCreatedEvent struct {
	CheckoutGroupID uuid.UUID  `json:"checkout_group_id"`
	Reference       string     `json:"reference"`
	ClientID        uuid.UUID  `json:"client_id"`
	Orders          []OrderRef `json:"orders"`
}

// OrderStatusChangedEvent is emitted after every committed ledger transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	Number    string            `json:"number"`
	ClientID  uuid.UUID         `json:"client_id"`
	VendorID  uuid.UUID         `json:"vendor_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ActorRole enums.UserRole    `json:"actor_role"`
	Restocked bool              `json:"restocked"`
}

// ProductStockLowEvent fires when a checkout leaves a product at or under its alert threshold.
type ProductStockLowEvent struct {
	ProductID      uuid.UUID `json:"product_id"`
	VendorID       uuid.UUID `json:"vendor_id"`
	Name           string    `json:"name"`
	Stock          int       `json:"stock"`
	AlertThreshold int       `json:"alert_threshold"`
}

// ReviewApprovedEvent tells the vendor a review went live on one of their products.
type ReviewApprovedEvent struct {
	ReviewID  uuid.UUID `json:"review_id"`
	ProductID uuid.UUID `json:"product_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Rating    int       `json:"rating"`
}
