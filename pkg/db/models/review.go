package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Review struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:reviews_client_product_key"`
	ClientID   uuid.UUID  `gorm:"column:client_id;type:uuid;not null;uniqueIndex:reviews_client_product_key"`
	Rating     int        `gorm:"column:rating;not null"`
	Title      *string    `gorm:"column:title"`
	Body       string     `gorm:"column:body;not null"`
	Approved   bool       `gorm:"column:approved;not null"`
	ApprovedAt *time.Time `gorm:"column:approved_at"`
	ApprovedBy *uuid.UUID `gorm:"column:approved_by;type:uuid"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
