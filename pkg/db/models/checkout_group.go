package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CheckoutGroup ties together the per-vendor orders produced by one checkout.
type CheckoutGroup struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Reference  string    `gorm:"column:reference;not null;uniqueIndex"`
	ClientID   uuid.UUID `gorm:"column:client_id;type:uuid;not null;index"`
	TotalCents int64     `gorm:"column:total_cents;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`

	Orders []Order `gorm:"foreignKey:CheckoutGroupID"`
}

func (g *CheckoutGroup) BeforeCreate(*gorm.DB) error {
	assignID(&g.ID)
	return nil
}
