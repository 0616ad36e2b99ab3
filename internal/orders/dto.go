package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/types"
)

// OrderLineDTO is a frozen order line.
type OrderLineDTO struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	LineTotalCents int64     `json:"line_total_cents"`
}

// OrderDTO is the order payload shared by checkout and ledger reads.
type OrderDTO struct {
	ID                    uuid.UUID              `json:"id"`
	Number                string                 `json:"number"`
	CheckoutGroupID       uuid.UUID              `json:"checkout_group_id"`
	ClientID              uuid.UUID              `json:"client_id"`
	VendorID              uuid.UUID              `json:"vendor_id"`
	Status                enums.OrderStatus      `json:"status"`
	AllowedTransitions    []enums.OrderStatus    `json:"allowed_transitions"`
	Version               int                    `json:"version"`
	Restocked             bool                   `json:"restocked"`
	Shipping              types.ShippingSnapshot `json:"shipping"`
	SubtotalCents         int64                  `json:"subtotal_cents"`
	DeliveryFeeCents      int64                  `json:"delivery_fee_cents"`
	TotalCents            int64                  `json:"total_cents"`
	Total                 string                 `json:"total"`
	ClientNote            *string                `json:"client_note,omitempty"`
	TrackingNumber        *string                `json:"tracking_number,omitempty"`
	EstimatedDeliveryDate *time.Time             `json:"estimated_delivery_date,omitempty"`
	DeliveredAt           *time.Time             `json:"delivered_at,omitempty"`
	CancelledAt           *time.Time             `json:"cancelled_at,omitempty"`
	RefundedAt            *time.Time             `json:"refunded_at,omitempty"`
	Lines                 []OrderLineDTO         `json:"lines"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// CheckoutGroupDTO is the response of a committed checkout.
type CheckoutGroupDTO struct {
	ID         uuid.UUID  `json:"id"`
	Reference  string     `json:"reference"`
	ClientID   uuid.UUID  `json:"client_id"`
	TotalCents int64      `json:"total_cents"`
	Total      string     `json:"total"`
	Orders     []OrderDTO `json:"orders"`
	CreatedAt  time.Time  `json:"created_at"`
}

// OrderList wraps one page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func NewOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                    order.ID,
		Number:                order.Number,
		CheckoutGroupID:       order.CheckoutGroupID,
		ClientID:              order.ClientID,
		VendorID:              order.VendorID,
		Status:                order.Status,
		AllowedTransitions:    order.Status.AllowedTransitions(),
		Version:               order.Version,
		Restocked:             order.Restocked,
		Shipping:              order.Shipping,
		SubtotalCents:         order.SubtotalCents,
		DeliveryFeeCents:      order.DeliveryFeeCents,
		TotalCents:            order.TotalCents,
		Total:                 types.FormatCents(order.TotalCents),
		ClientNote:            order.ClientNote,
		TrackingNumber:        order.TrackingNumber,
		EstimatedDeliveryDate: order.EstimatedDeliveryDate,
		DeliveredAt:           order.DeliveredAt,
		CancelledAt:           order.CancelledAt,
		RefundedAt:            order.RefundedAt,
		Lines:                 make([]OrderLineDTO, 0, len(order.Lines)),
		CreatedAt:             order.CreatedAt,
		UpdatedAt:             order.UpdatedAt,
	}
	for _, line := range order.Lines {
		dto.Lines = append(dto.Lines, OrderLineDTO{
			ID:             line.ID,
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			LineTotalCents: line.LineTotalCents,
		})
	}
	return dto
}

func NewCheckoutGroupDTO(group *models.CheckoutGroup) CheckoutGroupDTO {
	dto := CheckoutGroupDTO{
		ID:         group.ID,
		Reference:  group.Reference,
		ClientID:   group.ClientID,
		TotalCents: group.TotalCents,
		Total:      types.FormatCents(group.TotalCents),
		Orders:     make([]OrderDTO, 0, len(group.Orders)),
		CreatedAt:  group.CreatedAt,
	}
	for i := range group.Orders {
		dto.Orders = append(dto.Orders, NewOrderDTO(&group.Orders[i]))
	}
	return dto
}
