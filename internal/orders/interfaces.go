package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

// Repository defines persistence operations for checkout groups and orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateCheckoutGroup(ctx context.Context, group *models.CheckoutGroup) error
	CreateOrder(ctx context.Context, order *models.Order) error
	FindCheckoutGroup(ctx context.Context, id uuid.UUID) (*models.CheckoutGroup, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, version int, updates map[string]any) (bool, error)
	MarkRestocked(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	HasDeliveredPurchase(ctx context.Context, clientID, productID uuid.UUID) (bool, error)
}

// ListFilter narrows an order listing. Nil fields are not applied.
type ListFilter struct {
	ClientID *uuid.UUID
	VendorID *uuid.UUID
	Status   *enums.OrderStatus
	// CreatedBefore limits the listing to orders placed strictly before the instant.
	CreatedBefore *time.Time
}
