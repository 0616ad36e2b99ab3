package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/types"
)

// Order is the per-vendor slice of a checkout.
type Order struct {
	ID                    uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Number                string                 `gorm:"column:number;not null;uniqueIndex"`
	CheckoutGroupID       uuid.UUID              `gorm:"column:checkout_group_id;type:uuid;not null;index"`
	ClientID              uuid.UUID              `gorm:"column:client_id;type:uuid;not null;index"`
	VendorID              uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null;index"`
	Status                enums.OrderStatus      `gorm:"column:status;type:text;not null"`
	Version               int                    `gorm:"column:version;not null"`
	Restocked             bool                   `gorm:"column:restocked;not null"`
	RestockedAt           *time.Time             `gorm:"column:restocked_at"`
	Shipping              types.ShippingSnapshot `gorm:"embedded;embeddedPrefix:shipping_"`
	SubtotalCents         int64                  `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents      int64                  `gorm:"column:delivery_fee_cents;not null"`
	TotalCents            int64                  `gorm:"column:total_cents;not null"`
	ClientNote            *string                `gorm:"column:client_note"`
	TrackingNumber        *string                `gorm:"column:tracking_number"`
	EstimatedDeliveryDate *time.Time             `gorm:"column:estimated_delivery_date"`
	DeliveredAt           *time.Time             `gorm:"column:delivered_at"`
	CancelledAt           *time.Time             `gorm:"column:cancelled_at"`
	RefundedAt            *time.Time             `gorm:"column:refunded_at"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	Lines []OrderLine `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderLine freezes the product name and unit price at checkout time.
type OrderLine struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	ProductName    string    `gorm:"column:product_name;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// Units is the total quantity across the order's lines.
func (o Order) Units() int {
	total := 0
	for _, line := range o.Lines {
		total += line.Quantity
	}
	return total
}
